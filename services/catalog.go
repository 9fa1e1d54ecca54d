package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
)

const CatalogCallTimeout = 15 * time.Second

// CatalogConnector is implemented once per external product source. A
// connector normalizes its raw payloads into models.Item and owns its own
// failure: an error here never aborts the other sources.
type CatalogConnector interface {
	Name() string
	Search(ctx context.Context, query string, category models.ItemCategory, audience string, limit int) ([]models.Item, error)
}

// CandidateSet holds the per-category fetch results of one request plus the
// names of sources that contributed nothing because they failed.
type CandidateSet struct {
	Tops            []models.Item
	Bottoms         []models.Item
	DegradedSources []string
}

type sourceCategoryResult struct {
	source   string
	category models.ItemCategory
	items    []models.Item
	err      error
}

// FetchCandidates fans out one call per connector per category, all
// concurrent, each with its own timeout. Item ranks are assigned per
// category in connector order so downstream ordering is deterministic.
func FetchCandidates(ctx context.Context, connectors []CatalogConnector, queries map[models.ItemCategory]string, audience string, limitPerSource int) *CandidateSet {
	var wg sync.WaitGroup
	results := make(chan sourceCategoryResult, len(connectors)*len(queries))

	for _, connector := range connectors {
		for category, query := range queries {
			wg.Add(1)
			go func(c CatalogConnector, cat models.ItemCategory, q string) {
				defer wg.Done()
				callCtx, cancel := context.WithTimeout(ctx, CatalogCallTimeout)
				defer cancel()
				items, err := c.Search(callCtx, q, cat, audience, limitPerSource)
				if err != nil {
					fmt.Printf("[Catalog: %s] %s fetch failed: %v\n", c.Name(), cat, err)
					sentry.CaptureException(fmt.Errorf("[Catalog: %s] %s fetch failed: %w", c.Name(), cat, err))
				}
				results <- sourceCategoryResult{source: c.Name(), category: cat, items: items, err: err}
			}(connector, category, query)
		}
	}
	wg.Wait()
	close(results)

	byKey := map[string][]models.Item{}
	failed := map[string]bool{}
	for r := range results {
		if r.err != nil {
			failed[r.source] = true
			continue
		}
		byKey[fmt.Sprintf("%s/%s", r.source, r.category)] = r.items
	}

	set := &CandidateSet{}
	// deterministic assembly in connector order, arrival order is irrelevant
	for _, connector := range connectors {
		set.Tops = append(set.Tops, byKey[fmt.Sprintf("%s/%s", connector.Name(), models.CategoryTop)]...)
		set.Bottoms = append(set.Bottoms, byKey[fmt.Sprintf("%s/%s", connector.Name(), models.CategoryBottom)]...)
		if failed[connector.Name()] {
			set.DegradedSources = append(set.DegradedSources, connector.Name())
		}
	}
	for i := range set.Tops {
		set.Tops[i].Rank = i
	}
	for i := range set.Bottoms {
		set.Bottoms[i].Rank = i
	}
	fmt.Printf("[Catalog] fetched %d tops, %d bottoms, degraded sources: %v\n", len(set.Tops), len(set.Bottoms), set.DegradedSources)
	return set
}

// keepValidItems enforces the normalization invariants. Dropped records are
// counted, not surfaced.
func keepValidItems(source string, items []models.Item) []models.Item {
	kept := items[:0]
	dropped := 0
	for _, it := range items {
		if !it.Valid() {
			dropped++
			continue
		}
		kept = append(kept, it)
	}
	if dropped > 0 {
		fmt.Printf("[Catalog: %s] dropped %d records missing required fields\n", source, dropped)
	}
	return kept
}

// ApplyMaxPrice drops items above the requested price ceiling.
func ApplyMaxPrice(items []models.Item, maxPrice *float64) []models.Item {
	if maxPrice == nil {
		return items
	}
	kept := []models.Item{}
	for _, it := range items {
		if it.Price <= *maxPrice {
			kept = append(kept, it)
		}
	}
	return kept
}
