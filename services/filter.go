package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
)

const audienceFilterBatchSize = 10
const audienceFilterConcurrency = 3

const audienceFilterSystemPrompt = `You are a STRICT fashion product classifier. Your job is to RIGOROUSLY filter products by gender.

Target gender: %s

CRITICAL RULES - BE VERY STRICT:
1. If target is MEN:
   - EXCLUDE ALL: dresses, skirts, blouses, women's tops, women's jeans, women's pants, lingerie, bras, women's shoes, heels, women's accessories
   - EXCLUDE products with keywords: "women", "woman", "womens", "ladies", "girl", "girls", "female", "feminine", "maternity"
   - EXCLUDE unisex items that are typically worn by women
   - INCLUDE ONLY: men's shirts, men's pants, men's jeans, men's suits, men's accessories, men's shoes

2. If target is WOMEN:
   - EXCLUDE ALL: men's suits, men's ties, men's dress shirts, men's formal wear, men's specific accessories
   - EXCLUDE products with keywords: "men", "mens", "man", "male", "gentleman", "boys"
   - EXCLUDE unisex items that are typically worn by men
   - INCLUDE: dresses, skirts, blouses, women's tops, women's jeans, women's pants, women's shoes, women's accessories

3. When in doubt, EXCLUDE the product. Only include products that are CLEARLY for %s.

For each product, analyze the name/title (most important), description, category and brand.

Respond with JSON array of indices (0-based) of products that match %s.
Example: [0, 2, 4] means products at indices 0, 2, and 4 match.

Return ONLY the JSON array, no other text.`

type filterProductPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
}

// FilterItemsByAudience runs the strict classifier over fixed-size batches,
// up to audienceFilterConcurrency batches in flight. A failing batch falls
// back to the keyword matcher on its own; the others are unaffected. Input
// order is preserved in the retained set.
func FilterItemsByAudience(ctx context.Context, llm LLMProcessor, items []models.Item, audience string) []models.Item {
	if len(items) == 0 {
		return []models.Item{}
	}

	batchCount := (len(items) + audienceFilterBatchSize - 1) / audienceFilterBatchSize
	retainedPerBatch := make([][]models.Item, batchCount)

	var wg sync.WaitGroup
	sem := make(chan struct{}, audienceFilterConcurrency)
	for b := 0; b < batchCount; b++ {
		start := b * audienceFilterBatchSize
		end := start + audienceFilterBatchSize
		if end > len(items) {
			end = len(items)
		}
		wg.Add(1)
		go func(idx int, batch []models.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			retainedPerBatch[idx] = filterBatch(ctx, llm, batch, audience)
		}(b, items[start:end])
	}
	wg.Wait()

	retained := []models.Item{}
	for _, batch := range retainedPerBatch {
		retained = append(retained, batch...)
	}
	fmt.Printf("[Filter] %d products -> %d for %s\n", len(items), len(retained), audience)
	return retained
}

func filterBatch(ctx context.Context, llm LLMProcessor, batch []models.Item, audience string) []models.Item {
	payload := make([]filterProductPayload, 0, len(batch))
	for _, it := range batch {
		description := ""
		if it.Description != nil {
			description = *it.Description
		}
		brand := ""
		if it.Brand != nil {
			brand = *it.Brand
		}
		payload = append(payload, filterProductPayload{
			Name:        it.Name,
			Description: description,
			Category:    string(it.Category),
			Brand:       brand,
		})
	}

	target := strings.ToUpper(audience)
	system := fmt.Sprintf(audienceFilterSystemPrompt, target, target, target)
	payloadJSON, _ := json.MarshalIndent(payload, "", "  ")
	prompt := fmt.Sprintf("Products to classify:\n%s\n\nReturn array of indices for %s products:", string(payloadJSON), target)

	result, err := llm.GenerateStyleText(ctx, system, prompt, 0.1, 200, Flash20)
	if err != nil {
		fmt.Printf("[Filter] batch model call failed, keyword fallback: %v\n", err)
		sentry.CaptureException(err)
		return FallbackAudienceFilter(batch, audience)
	}

	indices, ok := extractIndexArray(result.Response)
	if !ok || len(indices) == 0 {
		fmt.Printf("[Filter] unparseable batch output, keyword fallback: %.100s\n", result.Response)
		return FallbackAudienceFilter(batch, audience)
	}

	retained := []models.Item{}
	seen := map[int]bool{}
	for _, idx := range indices {
		if idx >= 0 && idx < len(batch) && !seen[idx] {
			seen[idx] = true
			retained = append(retained, batch[idx])
		}
	}
	return retained
}

func extractIndexArray(text string) ([]int, bool) {
	var indices []int
	if ExtractJSONArray(text, &indices) {
		return indices, true
	}
	// some responses wrap the array in an object
	var wrapped struct {
		Indices []int `json:"indices"`
	}
	if ExtractJSONObject(text, &wrapped) && wrapped.Indices != nil {
		return wrapped.Indices, true
	}
	return nil, false
}

// "women" contains "men", so the gendered words are matched padded.
var audienceMenExclude = []string{
	" women ", " woman ", " womens ", " women's ", "ladies", " girl ", "girls",
	" dress ", "dresses", " skirt ", "skirts", "blouse", " bra ",
	"lingerie", "maternity", " female ", "feminine",
}
var audienceMenInclude = []string{" men ", " mens ", " men's ", " man ", " male ", "for men", "gentleman"}
var audienceWomenExclude = []string{" men ", " mens ", " men's ", " man ", " male ", "for men", " boy ", "boys", "gentleman"}

// FallbackAudienceFilter keeps the asymmetric exclusion policy of the model
// path: ambiguous items are dropped, never kept.
func FallbackAudienceFilter(items []models.Item, audience string) []models.Item {
	filtered := []models.Item{}
	for _, it := range items {
		text := " " + strings.ToLower(it.Name)
		if it.Description != nil {
			text += " " + strings.ToLower(*it.Description)
		}
		text += " "

		if audience == "men" {
			if !containsAny(text, audienceMenExclude) && containsAny(text, audienceMenInclude) {
				filtered = append(filtered, it)
			}
		} else {
			if !containsAny(text, audienceWomenExclude) {
				filtered = append(filtered, it)
			}
		}
	}
	return filtered
}
