package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func menItems(count int) []models.Item {
	items := make([]models.Item, 0, count)
	for i := 0; i < count; i++ {
		it := test.FakeItem(fmt.Sprintf("m%02d", i), "asos", models.CategoryTop, 100)
		it.Name = fmt.Sprintf("Mens Shirt %02d", i)
		items = append(items, it)
	}
	return items
}

func TestFilterItemsByAudienceRetainsSubsetInOrder(t *testing.T) {
	items := menItems(12)
	llm := &test.LLMMock{TextScript: func(system, prompt string) (string, error) {
		return "[0, 2]", nil
	}}

	retained := services.FilterItemsByAudience(context.Background(), llm, items, "men")

	// two batches: first keeps indices 0 and 2, second has only two items so
	// index 2 is discarded and only its index 0 survives
	require.Len(t, retained, 3)
	assert.Equal(t, "m00", retained[0].ID)
	assert.Equal(t, "m02", retained[1].ID)
	assert.Equal(t, "m10", retained[2].ID)
}

func TestFilterItemsByAudienceBatchFallbackIsolation(t *testing.T) {
	items := menItems(10)
	jacket := test.FakeItem("j1", "amazon", models.CategoryTop, 150)
	jacket.Name = "Mens Denim Jacket"
	hoodie := test.FakeItem("h1", "amazon", models.CategoryTop, 90)
	hoodie.Name = "Plain Cotton Hoodie"
	items = append(items, jacket, hoodie)

	llm := &test.LLMMock{TextScript: func(system, prompt string) (string, error) {
		if strings.Contains(prompt, "Mens Denim Jacket") {
			return "", errors.New("batch call failed")
		}
		return "[0]", nil
	}}

	retained := services.FilterItemsByAudience(context.Background(), llm, items, "men")

	// first batch keeps its index 0; the failed batch falls back to the
	// keyword matcher which keeps the explicitly men-coded jacket only
	require.Len(t, retained, 2)
	assert.Equal(t, "m00", retained[0].ID)
	assert.Equal(t, "j1", retained[1].ID)
}

func TestFilterItemsByAudienceEmptyInput(t *testing.T) {
	llm := &test.LLMMock{TextErr: errors.New("must not be called")}
	retained := services.FilterItemsByAudience(context.Background(), llm, nil, "men")
	assert.NotNil(t, retained)
	assert.Empty(t, retained)
	assert.Empty(t, llm.TextCalls)
}

func TestFallbackAudienceFilterAsymmetry(t *testing.T) {
	mensShirt := test.FakeItem("1", "asos", models.CategoryTop, 100)
	mensShirt.Name = "Classic Mens Oxford Shirt"
	plainShirt := test.FakeItem("2", "asos", models.CategoryTop, 100)
	plainShirt.Name = "Plain Cotton Shirt"
	blouse := test.FakeItem("3", "asos", models.CategoryTop, 100)
	blouse.Name = "Womens Silk Blouse"

	items := []models.Item{mensShirt, plainShirt, blouse}

	// men-coded requests must name men explicitly, ambiguous items drop
	forMen := services.FallbackAudienceFilter(items, "men")
	require.Len(t, forMen, 1)
	assert.Equal(t, "1", forMen[0].ID)

	// women-coded requests are exclude-only, ambiguous items stay
	forWomen := services.FallbackAudienceFilter(items, "women")
	require.Len(t, forWomen, 2)
	assert.Equal(t, "2", forWomen[0].ID)
	assert.Equal(t, "3", forWomen[1].ID)
}
