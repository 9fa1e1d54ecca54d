package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"fitmixapi/models"
	"fitmixapi/nameutil"
)

// Each side of the cartesian product is capped so one request costs at most
// maxPairSide*maxPairSide scoring calls.
const maxPairSide = 3
const maxCombinations = 3
const pairScorerConcurrency = 3
const crossSourceBonus = 0.1

const retainScoreThreshold = 0.4

// priceSimilarity is 1 at equal prices and decreases linearly with the gap
// relative to the larger price.
func priceSimilarity(a float64, b float64) float64 {
	max := math.Max(a, b)
	if max <= 0 {
		return 0.5
	}
	return 1 - math.Abs(a-b)/max
}

// positionBonus rewards items ranked earlier in their source results.
func positionBonus(topRank int, bottomRank int) float64 {
	bonus := 1 - float64(topRank+bottomRank)/float64(2*maxPairSide)
	if bonus < 0 {
		return 0
	}
	return bonus
}

func styleTags(parsed *models.ParsedRequest) []string {
	tags := []string{}
	appendTag := func(p *string) {
		if p != nil && *p != "" {
			tags = append(tags, *p)
		}
	}
	appendTag(parsed.Style)
	appendTag(parsed.Occasion)
	appendTag(parsed.Season)
	return tags
}

// SelectCombinations scores the bounded top x bottom product concurrently
// and returns the ranked survivors. Pairs whose scoring never ran because
// the request deadline hit are treated as non-compatible, so the result is
// best-effort but its order is still a pure function of the computed scores.
func SelectCombinations(ctx context.Context, llm LLMProcessor, tops []models.Item, bottoms []models.Item, parsed *models.ParsedRequest, mixedSources bool) []models.Combination {
	if len(tops) > maxPairSide {
		tops = tops[:maxPairSide]
	}
	if len(bottoms) > maxPairSide {
		bottoms = bottoms[:maxPairSide]
	}
	if len(tops) == 0 || len(bottoms) == 0 {
		return []models.Combination{}
	}

	verdicts := make([][]models.CompatibilityVerdict, len(tops))
	for i := range verdicts {
		verdicts[i] = make([]models.CompatibilityVerdict, len(bottoms))
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, pairScorerConcurrency)
	for i, top := range tops {
		for j, bottom := range bottoms {
			wg.Add(1)
			go func(i, j int, top, bottom models.Item) {
				defer wg.Done()
				select {
				case <-ctx.Done():
					// deadline reached, unscored pairs stay non-compatible
					verdicts[i][j] = models.CompatibilityVerdict{Compatible: false, Score: 0, Reasoning: "deadline reached before scoring"}
					return
				case sem <- struct{}{}:
				}
				defer func() { <-sem }()
				verdicts[i][j] = CheckPairCompatibility(ctx, llm, top, bottom, parsed.OriginalPrompt)
			}(i, j, top, bottom)
		}
	}
	wg.Wait()

	tags := styleTags(parsed)
	combinations := []models.Combination{}
	for i, top := range tops {
		for j, bottom := range bottoms {
			verdict := verdicts[i][j]

			matchScore := 0.5*verdict.Score + 0.3*priceSimilarity(top.Price, bottom.Price) + 0.2*positionBonus(top.Rank, bottom.Rank)
			if mixedSources && top.Source != bottom.Source {
				matchScore += crossSourceBonus
			}
			if matchScore > 1 {
				matchScore = 1
			}

			if !verdict.Compatible && verdict.Score < retainScoreThreshold {
				continue
			}

			combinations = append(combinations, models.Combination{
				OutfitID:   nameutil.OutfitID(),
				Top:        top,
				Bottom:     bottom,
				TotalPrice: top.Price + bottom.Price,
				MatchScore: matchScore,
				StyleTags:  tags,
			})
		}
	}

	sort.SliceStable(combinations, func(a, b int) bool {
		if combinations[a].MatchScore != combinations[b].MatchScore {
			return combinations[a].MatchScore > combinations[b].MatchScore
		}
		return combinations[a].TotalPrice < combinations[b].TotalPrice
	})
	if len(combinations) > maxCombinations {
		combinations = combinations[:maxCombinations]
	}
	fmt.Printf("[Select] %d tops x %d bottoms -> %d combinations\n", len(tops), len(bottoms), len(combinations))
	return combinations
}
