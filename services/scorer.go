package services

import (
	"context"
	"fmt"
	"strings"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
)

const compatibilitySystemPrompt = `You are a fashion stylist expert. Analyze if a top and bottom product go well together as an outfit.

Consider:
1. Style compatibility (casual with casual, formal with formal, etc.)
2. Color coordination (complementary, matching, or clashing colors)
3. Occasion appropriateness (both suitable for same occasion)
4. Aesthetic harmony (do they create a cohesive look?)
5. Fashion rules and trends

Respond with JSON only:
{
  "compatible": true/false,
  "compatibility_score": 0.0-1.0,
  "reasoning": "brief explanation why they match or don't match"
}

Be strict - only mark as compatible if they truly go well together.`

func itemPromptBlock(label string, it models.Item) string {
	description := ""
	if it.Description != nil {
		description = *it.Description
	}
	brand := ""
	if it.Brand != nil {
		brand = *it.Brand
	}
	return fmt.Sprintf("%s Product:\nName: %s\nDescription: %s\nCategory: %s\nBrand: %s\n", label, it.Name, description, it.Category, brand)
}

// CheckPairCompatibility asks the model for a strict verdict on one pair.
// Any failure lands in the deterministic style-bucket rule; a verdict is
// always returned.
func CheckPairCompatibility(ctx context.Context, llm LLMProcessor, top models.Item, bottom models.Item, stylePrompt string) models.CompatibilityVerdict {
	prompt := itemPromptBlock("Top", top) + "\n" + itemPromptBlock("Bottom", bottom)
	if stylePrompt != "" {
		prompt += fmt.Sprintf("\nUser's style request: %s", stylePrompt)
	}
	prompt += "\n\nDo these go well together? Respond with JSON:"

	result, err := llm.GenerateStyleText(ctx, compatibilitySystemPrompt, prompt, 0.2, 200, Flash20)
	if err != nil {
		fmt.Printf("[Score] model call failed, bucket fallback: %v\n", err)
		sentry.CaptureException(err)
		return FallbackCompatibility(top, bottom)
	}

	var verdict models.CompatibilityVerdict
	if !ExtractJSONObject(result.Response, &verdict) {
		fmt.Printf("[Score] unparseable verdict, bucket fallback: %.100s\n", result.Response)
		return FallbackCompatibility(top, bottom)
	}
	if verdict.Score < 0 {
		verdict.Score = 0
	}
	if verdict.Score > 1 {
		verdict.Score = 1
	}
	if verdict.Reasoning == "" {
		verdict.Reasoning = "No reasoning provided"
	}
	fmt.Printf("[Score] compatibility %v (score %.2f) for %s + %s\n", verdict.Compatible, verdict.Score, top.ID, bottom.ID)
	return verdict
}

var casualBucketWords = []string{"casual", "everyday", "relaxed", "comfortable", "t-shirt", "jeans"}
var formalBucketWords = []string{"formal", "dress", "suit", "elegant", "business", "professional"}
var sportyBucketWords = []string{"sport", "athletic", "gym", "workout", "active"}

func styleBucket(it models.Item) string {
	text := strings.ToLower(it.Name)
	if it.Description != nil {
		text += " " + strings.ToLower(*it.Description)
	}
	switch {
	case containsAny(text, casualBucketWords):
		return "casual"
	case containsAny(text, formalBucketWords):
		return "formal"
	case containsAny(text, sportyBucketWords):
		return "sporty"
	default:
		return ""
	}
}

// FallbackCompatibility maps both items to a coarse style bucket; matching
// buckets pass at 0.5, mismatched ones fail at 0.2.
func FallbackCompatibility(top models.Item, bottom models.Item) models.CompatibilityVerdict {
	topBucket := styleBucket(top)
	bottomBucket := styleBucket(bottom)

	labelOrUnknown := func(bucket string) string {
		if bucket == "" {
			return "unknown"
		}
		return bucket
	}
	reasoning := fmt.Sprintf("Fallback check: %s top with %s bottom", labelOrUnknown(topBucket), labelOrUnknown(bottomBucket))

	if topBucket == bottomBucket {
		return models.CompatibilityVerdict{Compatible: true, Score: 0.5, Reasoning: reasoning}
	}
	return models.CompatibilityVerdict{Compatible: false, Score: 0.2, Reasoning: reasoning}
}
