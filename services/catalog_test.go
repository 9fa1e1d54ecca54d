package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const asosSearchBody = `{
	"data": {
		"products": [
			{
				"id": 12345,
				"name": "ASOS DESIGN mens slim oxford shirt",
				"price": {"current": {"value": 10.0}},
				"imageUrl": "images.asos-media.com/products/12345-1",
				"url": "asos-design-mens-slim-oxford-shirt/prd/12345",
				"brandName": "ASOS DESIGN",
				"colour": "White"
			},
			{
				"id": 12346,
				"name": "Broken mens record without price",
				"price": {"current": {"value": 0}},
				"imageUrl": "images.asos-media.com/products/12346-1",
				"url": "prd/12346"
			},
			{
				"id": 12347,
				"name": "Womens wrap blouse",
				"price": {"current": {"value": 15.0}},
				"imageUrl": "images.asos-media.com/products/12347-1",
				"url": "prd/12347"
			}
		]
	}
}`

func TestAsosSearchNormalizesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-RapidAPI-Key"))
		assert.Equal(t, "mens shirt", r.URL.Query().Get("searchTerm"))
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		fmt.Fprint(w, asosSearchBody)
	}))
	defer srv.Close()

	connector := &services.AsosConnector{APIKey: "test-key", BaseURL: srv.URL, Client: srv.Client()}
	items, err := connector.Search(context.Background(), "mens shirt", models.CategoryTop, "men", 10)
	require.NoError(t, err)

	// zero-price record dropped, womens record filtered out for men
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "12345", item.ID)
	assert.Equal(t, "asos", item.Source)
	assert.Equal(t, models.CategoryTop, item.Category)
	assert.Equal(t, "https://images.asos-media.com/products/12345-1", item.ImageURL)
	assert.Equal(t, "https://www.asos.com/in/asos-design-mens-slim-oxford-shirt/prd/12345", item.BuyURL)
	assert.Equal(t, "INR", item.Currency)
	assert.InDelta(t, 830.0, item.Price, 1e-9)
	require.NotNil(t, item.Brand)
	assert.Equal(t, "ASOS DESIGN", *item.Brand)
	assert.Equal(t, []string{"White"}, item.Colors)
}

func TestAsosSearchApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "not subscribed"}`)
	}))
	defer srv.Close()

	connector := &services.AsosConnector{APIKey: "test-key", BaseURL: srv.URL, Client: srv.Client()}
	_, err := connector.Search(context.Background(), "shirt", models.CategoryTop, "men", 10)
	assert.Error(t, err)
}

func TestAsosSearchMissingKey(t *testing.T) {
	connector := &services.AsosConnector{}
	_, err := connector.Search(context.Background(), "shirt", models.CategoryTop, "men", 10)
	assert.Error(t, err)
}

const amazonSearchBody = `{
	"data": {
		"products": [
			{
				"asin": "B0TESTA",
				"product_title": "Mens Cotton Regular Fit Shirt",
				"product_price": "₹1,299",
				"product_photo": "https://m.media-amazon.com/images/I/a.jpg",
				"product_url": "https://www.amazon.in/dp/B0TESTA"
			},
			{
				"asin": "B0TESTB",
				"product_title": "Slim Stretch Shirt for Men",
				"product_price": {"value": "$29.99"},
				"product_photo": "https://m.media-amazon.com/images/I/b.jpg"
			},
			{
				"asin": "B0TESTC",
				"product_title": "Printed Kurti for Women",
				"product_price": "₹599",
				"product_photo": "https://m.media-amazon.com/images/I/c.jpg",
				"product_url": "https://www.amazon.in/dp/B0TESTC"
			}
		]
	}
}`

func TestAmazonSearchNormalizesProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "IN", r.URL.Query().Get("country"))
		assert.Contains(t, r.URL.Query().Get("query"), "men")
		fmt.Fprint(w, amazonSearchBody)
	}))
	defer srv.Close()

	connector := &services.AmazonConnector{APIKey: "test-key", BaseURL: srv.URL, Client: srv.Client(), Country: "IN"}
	items, err := connector.Search(context.Background(), "casual", models.CategoryTop, "men", 10)
	require.NoError(t, err)

	// the womens kurti is excluded for a men-coded request
	require.Len(t, items, 2)

	assert.Equal(t, "B0TESTA", items[0].ID)
	assert.Equal(t, "amazon", items[0].Source)
	assert.InDelta(t, 1299.0, items[0].Price, 1e-9)
	assert.Equal(t, "https://www.amazon.in/dp/B0TESTA", items[0].BuyURL)

	// object-shaped price and missing product_url both normalize
	assert.InDelta(t, 29.99, items[1].Price, 1e-9)
	assert.Equal(t, "https://www.amazon.in/dp/B0TESTB", items[1].BuyURL)
}

func TestAmazonTitleTruncatesOnRuneBoundary(t *testing.T) {
	longTitle := "Mens Kurta " + strings.Repeat("पारंपरिक ", 20)
	body := fmt.Sprintf(`{"data":{"products":[{
		"asin": "B0LONG",
		"product_title": %q,
		"product_price": "₹999",
		"product_photo": "https://m.media-amazon.com/images/I/d.jpg",
		"product_url": "https://www.amazon.in/dp/B0LONG"
	}]}}`, longTitle)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	connector := &services.AmazonConnector{APIKey: "test-key", BaseURL: srv.URL, Client: srv.Client(), Country: "IN"}
	items, err := connector.Search(context.Background(), "casual", models.CategoryTop, "men", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, 100, utf8.RuneCountInString(items[0].Name))
	assert.True(t, utf8.ValidString(items[0].Name), "truncation must not split a rune")
}

func TestFetchCandidatesDegradedSource(t *testing.T) {
	healthy := &test.CatalogConnectorMock{
		SourceName: "asos",
		Items: map[models.ItemCategory][]models.Item{
			models.CategoryTop:    {test.FakeItem("t1", "asos", models.CategoryTop, 100)},
			models.CategoryBottom: {test.FakeItem("b1", "asos", models.CategoryBottom, 120)},
		},
	}
	broken := &test.CatalogConnectorMock{SourceName: "amazon", Err: errors.New("api down")}

	queries := map[models.ItemCategory]string{
		models.CategoryTop:    "mens shirt",
		models.CategoryBottom: "mens pants",
	}
	set := services.FetchCandidates(context.Background(), []services.CatalogConnector{healthy, broken}, queries, "men", 10)

	require.NotNil(t, set)
	assert.Len(t, set.Tops, 1)
	assert.Len(t, set.Bottoms, 1)
	assert.Equal(t, []string{"amazon"}, set.DegradedSources)
	assert.Equal(t, 0, set.Tops[0].Rank)
}

func TestApplyMaxPrice(t *testing.T) {
	items := []models.Item{
		test.FakeItem("a", "asos", models.CategoryTop, 100),
		test.FakeItem("b", "asos", models.CategoryTop, 300),
	}

	assert.Len(t, services.ApplyMaxPrice(items, nil), 2)

	ceiling := 150.0
	kept := services.ApplyMaxPrice(items, &ceiling)
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].ID)
}
