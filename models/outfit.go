package models

import "time"

const (
	RenderStatusPending  = "pending"
	RenderStatusRendered = "rendered"
	RenderStatusDegraded = "degraded"
	RenderStatusFailed   = "failed"
)

// Render pass progression. Either pass failing moves the artifact to the
// degraded compositor, never back.
const (
	RenderPassNotStarted = "not_started"
	RenderPassOneDone    = "pass1_done"
	RenderPassTwoDone    = "pass2_done"
	RenderPassComplete   = "complete"
)

// OutfitRecommendation is the persisted snapshot of a selected combination.
// Catalogs are never stored; only the items of winning pairs survive a
// request so the render worker can pick them up later without re-fetching.
type OutfitRecommendation struct {
	JsonModel
	OutfitID       string  `gorm:"uniqueIndex" json:"outfit_id"`
	UserAccountID  uint    `json:"-"`
	Prompt         string  `json:"prompt"`
	TopItemJSON    string  `gorm:"type:text" json:"-"`
	BottomItemJSON string  `gorm:"type:text" json:"-"`
	TotalPrice     float64 `json:"total_price"`
	MatchScore     float64 `json:"match_score"`
}

// OutfitRender is the render artifact of one recommendation.
// "pending" -> "rendered" via the two model passes, or -> "degraded" via the
// deterministic compositor, or -> "failed" when even the fallback broke.
type OutfitRender struct {
	JsonModel
	OutfitID      string `json:"outfit_id"`
	UserAccountID uint   `json:"-"`
	//"pending", "rendered", "degraded", "failed"
	Status string `gorm:"default:pending" json:"status"`
	//"not_started", "pass1_done", "pass2_done", "complete"
	Pass             string  `gorm:"default:not_started" json:"pass"`
	ImageKey         *string `json:"-"`
	FailReason       *string `gorm:"type:text" json:"-"`
	RenderRetryTimes int     `gorm:"default:0" json:"-"`
	Duration         float64 `json:"duration"`

	LLMInputTokenCount    int32 `json:"-"`
	LLMThoughtsTokenCount int32 `json:"-"`
	LLMOutputTokenCount   int32 `json:"-"`
	LLMTotalTokenCount    int32 `json:"-"`
}

// UsageRecord carries the lifetime per-identity counters. Rows are only
// mutated inside the ledger transaction.
type UsageRecord struct {
	JsonModel
	IdentityKey string `gorm:"uniqueIndex" json:"identity_key"`
	SearchCount int    `gorm:"default:0" json:"search_count"`
	RenderCount int    `gorm:"default:0" json:"render_count"`
}

// GlobalUsage is the single shared counter row (ID is always 1).
type GlobalUsage struct {
	ID          uint `gorm:"primarykey" json:"-"`
	SearchCount int  `gorm:"default:0" json:"search_count"`
	RenderCount int  `gorm:"default:0" json:"render_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}
