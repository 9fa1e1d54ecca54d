package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fitmixapi/dbhelper"
	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPipelineLLM answers every call shape of one search request.
func scriptedPipelineLLM() *test.LLMMock {
	return &test.LLMMock{TextScript: func(system, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Analyze this outfit prompt"):
			return `{"mood":"relaxed","location":"beach","occasion":"party","style":"casual","colors":["bright"],"season":"summer","formality":"casual","keywords":["beach","party"]}`, nil
		case strings.Contains(prompt, "Generate search query"):
			return `{"is_direct": false, "search_query": "mens beach party shirt"}`, nil
		case strings.Contains(prompt, "Products to classify"):
			return "[0, 1]", nil
		default:
			return `{"compatible": true, "compatibility_score": 0.8, "reasoning": "cohesive casual look"}`, nil
		}
	}}
}

func beachConnector(name string) *test.CatalogConnectorMock {
	topOne := test.FakeItem(name+"-t1", name, models.CategoryTop, 900)
	topOne.Name = "Mens Printed Beach Shirt"
	topTwo := test.FakeItem(name+"-t2", name, models.CategoryTop, 700)
	topTwo.Name = "Mens Linen Shirt"
	bottomOne := test.FakeItem(name+"-b1", name, models.CategoryBottom, 1100)
	bottomOne.Name = "Mens Cotton Shorts"
	bottomTwo := test.FakeItem(name+"-b2", name, models.CategoryBottom, 800)
	bottomTwo.Name = "Mens Chino Pants"

	return &test.CatalogConnectorMock{
		SourceName: name,
		Items: map[models.ItemCategory][]models.Item{
			models.CategoryTop:    {topOne, topTwo},
			models.CategoryBottom: {bottomOne, bottomTwo},
		},
	}
}

func TestPipelineRunPersistsRecommendations(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Shopper", "shopper@example.com")
	pipeline := &services.SearchPipeline{
		DB:         db,
		LLM:        scriptedPipelineLLM(),
		Connectors: []services.CatalogConnector{beachConnector("asos")},
	}

	out, err := pipeline.Run(context.Background(), user, &models.OutfitSearchIn{
		Prompt:   "Beach party, colorful and relaxed",
		Audience: "men",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Contains(t, out.Message, "Found")
	require.NotEmpty(t, out.Outfits)
	assert.Equal(t, len(out.Outfits), out.TotalCount)
	assert.Empty(t, out.DegradedSources)
	assert.Greater(t, out.Outfits[0].MatchScore, 0.0)
	assert.NotEmpty(t, out.Outfits[0].OutfitID)

	var persisted int64
	db.Model(&models.OutfitRecommendation{}).Where("user_account_id = ?", user.ID).Count(&persisted)
	assert.Equal(t, int64(out.TotalCount), persisted)

	var recommendation models.OutfitRecommendation
	require.NoError(t, db.Where("outfit_id = ?", out.Outfits[0].OutfitID).Take(&recommendation).Error)
	assert.Contains(t, recommendation.TopItemJSON, out.Outfits[0].Top.ID)
	assert.Equal(t, "Beach party, colorful and relaxed", recommendation.Prompt)
}

func TestPipelineRunReportsDegradedSources(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Shopper", "shopper2@example.com")
	broken := &test.CatalogConnectorMock{SourceName: "amazon", Err: errors.New("api down")}
	pipeline := &services.SearchPipeline{
		DB:         db,
		LLM:        scriptedPipelineLLM(),
		Connectors: []services.CatalogConnector{beachConnector("asos"), broken},
	}

	out, err := pipeline.Run(context.Background(), user, &models.OutfitSearchIn{
		Prompt:   "Beach party, colorful and relaxed",
		Audience: "men",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, []string{"amazon"}, out.DegradedSources)
	assert.NotEmpty(t, out.Outfits, "the healthy source must still produce outfits")
}

func TestPipelineRunNoCombinations(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Shopper", "shopper3@example.com")
	empty := &test.CatalogConnectorMock{SourceName: "asos", Items: map[models.ItemCategory][]models.Item{}}
	pipeline := &services.SearchPipeline{
		DB:         db,
		LLM:        scriptedPipelineLLM(),
		Connectors: []services.CatalogConnector{empty},
	}

	out, err := pipeline.Run(context.Background(), user, &models.OutfitSearchIn{
		Prompt:   "Beach party",
		Audience: "men",
	})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, 0, out.TotalCount)
	assert.Equal(t, "No compatible outfit combinations found for this request", out.Message)
}

func TestPipelineRunUnknownSource(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Shopper", "shopper4@example.com")
	pipeline := &services.SearchPipeline{
		DB:         db,
		LLM:        scriptedPipelineLLM(),
		Connectors: []services.CatalogConnector{beachConnector("amazon")},
	}

	_, err := pipeline.Run(context.Background(), user, &models.OutfitSearchIn{
		Prompt:   "Beach party",
		Audience: "men",
		Sources:  []string{"asos"},
	})
	assert.Error(t, err)
}

func TestPipelineRunAppliesMaxPrice(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Shopper", "shopper5@example.com")
	pipeline := &services.SearchPipeline{
		DB:         db,
		LLM:        scriptedPipelineLLM(),
		Connectors: []services.CatalogConnector{beachConnector("asos")},
	}

	ceiling := 950.0
	out, err := pipeline.Run(context.Background(), user, &models.OutfitSearchIn{
		Prompt:   "Beach party",
		Audience: "men",
		MaxPrice: &ceiling,
	})
	require.NoError(t, err)

	for _, outfit := range out.Outfits {
		assert.LessOrEqual(t, outfit.Top.Price, ceiling)
		assert.LessOrEqual(t, outfit.Bottom.Price, ceiling)
	}
	require.NotEmpty(t, out.Outfits, "items under the ceiling must still pair up")
}
