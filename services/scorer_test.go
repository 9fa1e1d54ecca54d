package services_test

import (
	"context"
	"errors"
	"testing"

	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedItem(id string, name string, category models.ItemCategory, price float64) models.Item {
	it := test.FakeItem(id, "asos", category, price)
	it.Name = name
	return it
}

func TestCheckPairCompatibilityParsesVerdict(t *testing.T) {
	llm := &test.LLMMock{TextResponses: []string{`{"compatible": true, "compatibility_score": 1.4, "reasoning": ""}`}}

	verdict := services.CheckPairCompatibility(context.Background(), llm,
		namedItem("t1", "Linen Shirt", models.CategoryTop, 100),
		namedItem("b1", "Chino Pants", models.CategoryBottom, 120),
		"beach party")

	assert.True(t, verdict.Compatible)
	assert.Equal(t, 1.0, verdict.Score, "score above 1 must clamp")
	assert.Equal(t, "No reasoning provided", verdict.Reasoning)
	require.Len(t, llm.TextCalls, 1)
	assert.Contains(t, llm.TextCalls[0], "Linen Shirt")
	assert.Contains(t, llm.TextCalls[0], "beach party")
}

func TestCheckPairCompatibilityFallbackOnModelError(t *testing.T) {
	llm := &test.LLMMock{TextErr: errors.New("model down")}

	verdict := services.CheckPairCompatibility(context.Background(), llm,
		namedItem("t1", "Casual T-Shirt", models.CategoryTop, 100),
		namedItem("b1", "Formal Suit Trousers", models.CategoryBottom, 120),
		"")

	assert.False(t, verdict.Compatible)
	assert.Equal(t, 0.2, verdict.Score)
	assert.NotEmpty(t, verdict.Reasoning)
}

func TestCheckPairCompatibilityFallbackOnGarbage(t *testing.T) {
	llm := &test.LLMMock{TextResponses: []string{"they look great together!"}}

	verdict := services.CheckPairCompatibility(context.Background(), llm,
		namedItem("t1", "Casual T-Shirt", models.CategoryTop, 100),
		namedItem("b1", "Relaxed Jeans", models.CategoryBottom, 120),
		"")

	// casual bucket on both sides
	assert.True(t, verdict.Compatible)
	assert.Equal(t, 0.5, verdict.Score)
}

func TestFallbackCompatibilityBuckets(t *testing.T) {
	casualTop := namedItem("t1", "Everyday T-Shirt", models.CategoryTop, 100)
	casualBottom := namedItem("b1", "Comfortable Jeans", models.CategoryBottom, 100)
	formalBottom := namedItem("b2", "Business Suit Trousers", models.CategoryBottom, 100)

	matching := services.FallbackCompatibility(casualTop, casualBottom)
	assert.True(t, matching.Compatible)
	assert.Equal(t, 0.5, matching.Score)

	clashing := services.FallbackCompatibility(casualTop, formalBottom)
	assert.False(t, clashing.Compatible)
	assert.Equal(t, 0.2, clashing.Score)

	// two unclassifiable items land in the same empty bucket
	unknown := services.FallbackCompatibility(
		namedItem("t2", "Zephyr Item", models.CategoryTop, 100),
		namedItem("b3", "Quartz Item", models.CategoryBottom, 100))
	assert.True(t, unknown.Compatible)
	assert.Equal(t, 0.5, unknown.Score)
}
