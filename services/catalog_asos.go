package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"fitmixapi/models"
)

// Products come from the US store for availability, purchase links point at
// the India storefront which converts currency at checkout.
const asosDefaultBaseURL = "https://asos10.p.rapidapi.com/api/v1"
const asosProductBaseURL = "https://www.asos.com/in"
const usdToInr = 83.0

type AsosConnector struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewAsosConnector() *AsosConnector {
	return &AsosConnector{
		APIKey:  GetEnv("RAPIDAPI_KEY", ""),
		BaseURL: asosDefaultBaseURL,
		Client:  &http.Client{},
	}
}

func (a *AsosConnector) Name() string {
	return "asos"
}

type asosPrice struct {
	Current struct {
		Value float64 `json:"value"`
	} `json:"current"`
}

type asosProduct struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Price     asosPrice   `json:"price"`
	ImageUrl  string      `json:"imageUrl"`
	URL       string      `json:"url"`
	BrandName string      `json:"brandName"`
	Colour    string      `json:"colour"`
}

type asosSearchPayload struct {
	Data struct {
		Products []asosProduct `json:"products"`
	} `json:"data"`
	Products []asosProduct `json:"products"`
}

func (a *AsosConnector) Search(ctx context.Context, query string, category models.ItemCategory, audience string, limit int) ([]models.Item, error) {
	if a.APIKey == "" {
		return nil, fmt.Errorf("RAPIDAPI_KEY not configured")
	}

	params := url.Values{}
	params.Set("searchTerm", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", "0")
	params.Set("sort", "recommended")
	params.Set("currency", "USD")
	params.Set("country", "US")
	params.Set("store", "US")
	params.Set("languageShort", "en")
	params.Set("sizeSchema", "US")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/getProductListBySearchTerm?%s", a.BaseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", a.APIKey)
	req.Header.Set("X-RapidAPI-Host", "asos10.p.rapidapi.com")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asos request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("asos response read failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asos api error: %d - %.200s", resp.StatusCode, string(body))
	}

	var payload asosSearchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("asos payload unmarshal failed: %v", err)
	}
	products := payload.Data.Products
	if len(products) == 0 {
		products = payload.Products
	}
	fmt.Printf("[Catalog: asos] found %d products for: %s\n", len(products), query)

	items := a.transformProducts(products, category)
	items = keepValidItems(a.Name(), items)
	items = filterAsosByAudience(items, audience)
	fmt.Printf("[Catalog: asos] after audience filter (%s): %d products\n", audience, len(items))
	return items, nil
}

func (a *AsosConnector) transformProducts(products []asosProduct, category models.ItemCategory) []models.Item {
	var items []models.Item
	for _, p := range products {
		imageURL := p.ImageUrl
		// asos image urls come without scheme
		if imageURL != "" && !strings.HasPrefix(imageURL, "http") {
			imageURL = "https://" + imageURL
		}

		buyURL := p.URL
		if buyURL != "" && !strings.HasPrefix(buyURL, "http") {
			if !strings.HasPrefix(buyURL, "/") {
				buyURL = "/" + buyURL
			}
			buyURL = asosProductBaseURL + buyURL
		} else if buyURL == "" {
			buyURL = fmt.Sprintf("%s/prd/%s", asosProductBaseURL, p.ID.String())
		}

		priceInr := math.Round(p.Price.Current.Value*usdToInr*100) / 100

		colors := []string{}
		if p.Colour != "" {
			colors = append(colors, p.Colour)
		}
		brand := p.BrandName
		if brand == "" {
			brand = "ASOS"
		}

		items = append(items, models.Item{
			ID:          p.ID.String(),
			Source:      a.Name(),
			Name:        p.Name,
			Category:    category,
			Price:       priceInr,
			Currency:    "INR",
			ImageURL:    imageURL,
			BuyURL:      buyURL,
			Brand:       StrPointer(brand),
			Description: StrPointer(p.Name),
			Colors:      colors,
		})
	}
	return items
}

// padded patterns, "women" contains "men"
var asosMenExcludeKeywords = []string{
	" women ", " woman ", " womens ", " women's ", "ladies", " girl ", "girls",
	" dress ", "dresses", " skirt ", "skirts", "blouse", " bra ",
	"lingerie", "maternity", " female ", "feminine",
}
var asosMenIncludeKeywords = []string{" men ", " mens ", " men's ", " man ", " male ", "for men", "gentleman"}
var asosWomenExcludeKeywords = []string{" men ", " mens ", " men's ", " man ", " male ", "for men", " boy ", "boys", "gentleman"}

// filterAsosByAudience is a source-level keyword pre-filter; the strict
// model-assisted filter still runs downstream. Men-coded requests must name
// men explicitly, women-coded ones are exclude-only.
func filterAsosByAudience(items []models.Item, audience string) []models.Item {
	filtered := []models.Item{}
	for _, it := range items {
		text := " " + strings.ToLower(it.Name)
		if it.Description != nil {
			text += " " + strings.ToLower(*it.Description)
		}
		text += " "

		if audience == "men" {
			if containsAny(text, asosMenExcludeKeywords) || !containsAny(text, asosMenIncludeKeywords) {
				continue
			}
		} else {
			if containsAny(text, asosWomenExcludeKeywords) {
				continue
			}
		}
		filtered = append(filtered, it)
	}
	return filtered
}
