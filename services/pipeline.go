package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
)

const candidateLimitPerSource = 10

// SearchPipeline wires the whole recommendation flow: parse the request,
// fetch candidates from every selected catalog, filter by audience, score
// pairs and persist the winning combinations for later rendering.
type SearchPipeline struct {
	DB         *gorm.DB
	LLM        LLMProcessor
	Connectors []CatalogConnector
}

func (p *SearchPipeline) connectorsForSources(sources []string) []CatalogConnector {
	if len(sources) == 0 {
		return p.Connectors
	}
	wanted := map[string]bool{}
	for _, s := range sources {
		wanted[s] = true
	}
	selected := []CatalogConnector{}
	for _, c := range p.Connectors {
		if wanted[c.Name()] {
			selected = append(selected, c)
		}
	}
	return selected
}

// Run executes one search request end to end. Catalog sources degrade
// independently; the pipeline only errors when persistence breaks or no
// connector matched the request.
func (p *SearchPipeline) Run(ctx context.Context, user *models.UserAccount, in *models.OutfitSearchIn) (*models.OutfitSearchOut, error) {
	start := time.Now()

	connectors := p.connectorsForSources(in.Sources)
	if len(connectors) == 0 {
		return nil, fmt.Errorf("no catalog source available for request")
	}

	parsed := ParseStyleRequest(ctx, p.LLM, in.Prompt)
	baseQuery := BuildSearchQuery(parsed)

	queries := map[models.ItemCategory]string{
		models.CategoryTop:    BuildCategoryQuery(ctx, p.LLM, baseQuery, models.CategoryTop, in.Audience),
		models.CategoryBottom: BuildCategoryQuery(ctx, p.LLM, baseQuery, models.CategoryBottom, in.Audience),
	}

	set := FetchCandidates(ctx, connectors, queries, in.Audience, candidateLimitPerSource)
	tops := ApplyMaxPrice(set.Tops, in.MaxPrice)
	bottoms := ApplyMaxPrice(set.Bottoms, in.MaxPrice)

	tops = FilterItemsByAudience(ctx, p.LLM, tops, in.Audience)
	bottoms = FilterItemsByAudience(ctx, p.LLM, bottoms, in.Audience)

	mixedSources := len(connectors) > 1
	combinations := SelectCombinations(ctx, p.LLM, tops, bottoms, parsed, mixedSources)

	for _, combination := range combinations {
		topJSON, err := json.Marshal(combination.Top)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot top item: %w", err)
		}
		bottomJSON, err := json.Marshal(combination.Bottom)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot bottom item: %w", err)
		}
		recommendation := models.OutfitRecommendation{
			OutfitID:       combination.OutfitID,
			UserAccountID:  user.ID,
			Prompt:         in.Prompt,
			TopItemJSON:    string(topJSON),
			BottomItemJSON: string(bottomJSON),
			TotalPrice:     combination.TotalPrice,
			MatchScore:     combination.MatchScore,
		}
		if result := p.DB.Create(&recommendation); result.Error != nil {
			sentry.CaptureException(result.Error)
			return nil, fmt.Errorf("failed to persist recommendation: %w", result.Error)
		}
	}

	message := fmt.Sprintf("Found %d outfit combinations", len(combinations))
	if len(combinations) == 0 {
		message = "No compatible outfit combinations found for this request"
	}
	out := &models.OutfitSearchOut{
		Success:         true,
		Message:         message,
		Outfits:         combinations,
		TotalCount:      len(combinations),
		ProcessingTime:  time.Since(start).Seconds(),
		DegradedSources: set.DegradedSources,
	}
	fmt.Printf("[Pipeline] request served in %.2fs with %d outfits (degraded: %v)\n", out.ProcessingTime, out.TotalCount, out.DegradedSources)
	return out, nil
}
