package models

// OutfitSearchIn is the inbound search request. Audience drives both the
// catalog queries and the strict item filter.
type OutfitSearchIn struct {
	Prompt   string   `json:"prompt" validate:"required,min=3,max=500"`
	Audience string   `json:"audience" validate:"required,oneof=men women"`
	Sources  []string `json:"sources" validate:"omitempty,dive,oneof=asos amazon"`
	MaxPrice *float64 `json:"max_price" validate:"omitempty,gt=0"`
}

type OutfitSearchOut struct {
	Success         bool          `json:"success"`
	Message         string        `json:"message"`
	Outfits         []Combination `json:"outfits"`
	TotalCount      int           `json:"total_count"`
	ProcessingTime  float64       `json:"processing_time"`
	DegradedSources []string      `json:"degraded_sources,omitempty"`
}

type OutfitRenderIn struct {
	OutfitID string `json:"outfit_id" validate:"required"`
}

type OutfitRenderOut struct {
	Success  bool   `json:"success"`
	RenderID uint   `json:"render_id"`
	OutfitID string `json:"outfit_id"`
	Status   string `json:"status"`
	ImageURL string `json:"image_url,omitempty"`
}

type UsageOut struct {
	SearchCount             int  `json:"search_count"`
	RenderCount             int  `json:"render_count"`
	SearchLimit             int  `json:"search_limit"`
	RenderLimit             int  `json:"render_limit"`
	CanSearch               bool `json:"can_search"`
	CanRender               bool `json:"can_render"`
	SearchExhausted         bool `json:"search_exhausted"`
	RenderExhausted         bool `json:"render_exhausted"`
	GlobalSearchesRemaining int  `json:"global_searches_remaining"`
	GlobalRendersRemaining  int  `json:"global_renders_remaining"`
}

type AdminStatsOut struct {
	GlobalSearchCount    int   `json:"global_search_count"`
	GlobalRenderCount    int   `json:"global_render_count"`
	GlobalSearchLimit    int   `json:"global_search_limit"`
	GlobalRenderLimit    int   `json:"global_render_limit"`
	TotalUsers           int64 `json:"total_users"`
	TotalRecommendations int64 `json:"total_recommendations"`
	TotalRenders         int64 `json:"total_renders"`
}

type HealthOut struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

type ErrorOut struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}
