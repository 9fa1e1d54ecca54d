package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"fitmixapi/dbhelper"
	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func garmentImageServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(test.TinyPNG(color.RGBA{R: 180, G: 180, B: 180, A: 255}))
	}))
}

func createRecommendationAndRender(t *testing.T, renderer *services.OutfitRenderer, userID uint, imageBaseURL string) *models.OutfitRender {
	t.Helper()

	top := test.FakeItem("top-1", "asos", models.CategoryTop, 900)
	top.ImageURL = imageBaseURL + "/top.png"
	bottom := test.FakeItem("bottom-1", "asos", models.CategoryBottom, 1100)
	bottom.ImageURL = imageBaseURL + "/bottom.png"

	topJSON, err := json.Marshal(top)
	require.NoError(t, err)
	bottomJSON, err := json.Marshal(bottom)
	require.NoError(t, err)

	outfitID := fmt.Sprintf("velvet-hem-%04x", userID)
	recommendation := models.OutfitRecommendation{
		OutfitID:       outfitID,
		UserAccountID:  userID,
		Prompt:         "beach party",
		TopItemJSON:    string(topJSON),
		BottomItemJSON: string(bottomJSON),
		TotalPrice:     2000,
		MatchScore:     0.9,
	}
	require.NoError(t, renderer.DB.Create(&recommendation).Error)

	render := models.OutfitRender{
		OutfitID:      outfitID,
		UserAccountID: userID,
		Status:        models.RenderStatusPending,
		Pass:          models.RenderPassNotStarted,
	}
	require.NoError(t, renderer.DB.Create(&render).Error)
	return &render
}

func TestRenderOutfitDegradedWithoutReference(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	srv := garmentImageServer()
	defer srv.Close()
	os.Unsetenv("MODEL_IMAGE_URL")

	user := test.FakeUserV2(db, "NoReference", "noref@example.com")
	llm := &test.LLMMock{}
	renderer := &services.OutfitRenderer{DB: db, LLM: llm, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}
	render := createRecommendationAndRender(t, renderer, user.ID, srv.URL)

	require.NoError(t, renderer.RenderOutfit(context.Background(), render.ID))

	var updated models.OutfitRender
	require.NoError(t, db.First(&updated, render.ID).Error)
	assert.Equal(t, models.RenderStatusDegraded, updated.Status)
	assert.Equal(t, models.RenderPassComplete, updated.Pass)
	require.NotNil(t, updated.ImageKey)
	assert.Equal(t, services.RenderObjectKey(render.ID), *updated.ImageKey)
	assert.Equal(t, 0, llm.CompositeCalls, "no reference image means no model passes")
}

func TestRenderOutfitRenderedWithReference(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	srv := garmentImageServer()
	defer srv.Close()

	user := test.FakeUserV2(db, "WithReference", "withref@example.com")
	referenceURL := srv.URL + "/reference.png"
	user.UserFullBodyImageURL = &referenceURL
	require.NoError(t, db.Save(user).Error)

	llm := &test.LLMMock{}
	renderer := &services.OutfitRenderer{DB: db, LLM: llm, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}
	render := createRecommendationAndRender(t, renderer, user.ID, srv.URL)

	require.NoError(t, renderer.RenderOutfit(context.Background(), render.ID))

	var updated models.OutfitRender
	require.NoError(t, db.First(&updated, render.ID).Error)
	assert.Equal(t, models.RenderStatusRendered, updated.Status)
	assert.Equal(t, models.RenderPassComplete, updated.Pass)
	require.NotNil(t, updated.ImageKey)
	assert.Equal(t, 2, llm.CompositeCalls)
	assert.Equal(t, int32(20), updated.LLMInputTokenCount, "both passes accumulate token counts")
	assert.Greater(t, updated.Duration, 0.0)
}

func TestRenderOutfitNoPersonDegrades(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	srv := garmentImageServer()
	defer srv.Close()

	user := test.FakeUserV2(db, "NoPerson", "noperson@example.com")
	referenceURL := srv.URL + "/reference.png"
	user.UserFullBodyImageURL = &referenceURL
	require.NoError(t, db.Save(user).Error)

	llm := &test.LLMMock{CompositeResponse: "NO_PERSON"}
	renderer := &services.OutfitRenderer{DB: db, LLM: llm, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}
	render := createRecommendationAndRender(t, renderer, user.ID, srv.URL)

	require.NoError(t, renderer.RenderOutfit(context.Background(), render.ID))

	var updated models.OutfitRender
	require.NoError(t, db.First(&updated, render.ID).Error)
	assert.Equal(t, models.RenderStatusDegraded, updated.Status)
	assert.Equal(t, 1, llm.CompositeCalls, "pass one rejection must not trigger pass two")
	require.NotNil(t, updated.ImageKey)
}

func TestRenderOutfitModelErrorDegrades(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	srv := garmentImageServer()
	defer srv.Close()

	user := test.FakeUserV2(db, "ModelDown", "modeldown@example.com")
	referenceURL := srv.URL + "/reference.png"
	user.UserFullBodyImageURL = &referenceURL
	require.NoError(t, db.Save(user).Error)

	llm := &test.LLMMock{CompositeErr: errors.New("model unavailable")}
	renderer := &services.OutfitRenderer{DB: db, LLM: llm, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}
	render := createRecommendationAndRender(t, renderer, user.ID, srv.URL)

	require.NoError(t, renderer.RenderOutfit(context.Background(), render.ID))

	var updated models.OutfitRender
	require.NoError(t, db.First(&updated, render.ID).Error)
	assert.Equal(t, models.RenderStatusDegraded, updated.Status)
	assert.Equal(t, models.RenderPassComplete, updated.Pass)
}

func TestRenderOutfitSkipsNonPending(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Done", "done@example.com")
	llm := &test.LLMMock{}
	renderer := &services.OutfitRenderer{DB: db, LLM: llm, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}

	render := models.OutfitRender{
		OutfitID:      "velvet-cuff-0001",
		UserAccountID: user.ID,
		Status:        models.RenderStatusRendered,
		Pass:          models.RenderPassComplete,
	}
	require.NoError(t, db.Create(&render).Error)

	require.NoError(t, renderer.RenderOutfit(context.Background(), render.ID))
	assert.Equal(t, 0, llm.CompositeCalls)
}

func TestRenderOutfitFailsAfterRetryBudget(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	user := test.FakeUserV2(db, "Broken", "broken@example.com")
	renderer := &services.OutfitRenderer{DB: db, LLM: &test.LLMMock{}, AWS: test.AWSProviderMock{}, Bucket: "test-bucket"}

	// render without a matching recommendation row
	render := models.OutfitRender{
		OutfitID:      "missing-outfit-0001",
		UserAccountID: user.ID,
		Status:        models.RenderStatusPending,
		Pass:          models.RenderPassNotStarted,
	}
	require.NoError(t, db.Create(&render).Error)

	for i := 0; i < 3; i++ {
		err := renderer.RenderOutfit(context.Background(), render.ID)
		assert.Error(t, err)
	}

	var updated models.OutfitRender
	require.NoError(t, db.First(&updated, render.ID).Error)
	assert.Equal(t, models.RenderStatusFailed, updated.Status)
	assert.Equal(t, 3, updated.RenderRetryTimes)
	require.NotNil(t, updated.FailReason)
	assert.Contains(t, *updated.FailReason, "recommendation missing")
}
