package models

// ItemCategory is the canonical clothing category of a normalized item.
type ItemCategory string

const (
	CategoryTop    ItemCategory = "top"
	CategoryBottom ItemCategory = "bottom"
	CategoryDress  ItemCategory = "dress"
)

// Item is a catalog entry normalized from one external source. Records that
// fail the required-field rules never leave the connector that fetched them.
type Item struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Name        string       `json:"name"`
	Category    ItemCategory `json:"category"`
	Price       float64      `json:"price"`
	Currency    string       `json:"currency"`
	ImageURL    string       `json:"image_url"`
	BuyURL      string       `json:"buy_url"`
	Brand       *string      `json:"brand"`
	Description *string      `json:"description"`
	Colors      []string     `json:"colors"`
	// position in the source search results, zero based
	Rank int `json:"-"`
}

// Valid reports whether the item satisfies the normalization invariants.
func (it Item) Valid() bool {
	return it.ID != "" && it.Name != "" && it.ImageURL != "" && it.BuyURL != "" && it.Price > 0
}

// ParsedRequest holds the structured facets extracted from a free-text style
// request. Always populated, possibly by the deterministic fallback parser.
type ParsedRequest struct {
	OriginalPrompt string   `json:"original_prompt"`
	Mood           *string  `json:"mood"`
	Location       *string  `json:"location"`
	Occasion       *string  `json:"occasion"`
	Style          *string  `json:"style"`
	Colors         []string `json:"colors"`
	Season         *string  `json:"season"`
	Formality      *string  `json:"formality"`
	Keywords       []string `json:"keywords"`
	FallbackUsed   bool     `json:"-"`
}

type CompatibilityVerdict struct {
	Compatible bool    `json:"compatible"`
	Score      float64 `json:"compatibility_score"`
	Reasoning  string  `json:"reasoning"`
}

// Combination is a scored top+bottom pair eligible for recommendation.
type Combination struct {
	OutfitID   string   `json:"outfit_id"`
	Top        Item     `json:"top"`
	Bottom     Item     `json:"bottom"`
	TotalPrice float64  `json:"total_price"`
	MatchScore float64  `json:"match_score"`
	StyleTags  []string `json:"style_tags"`
}
