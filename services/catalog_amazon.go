package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"fitmixapi/models"
)

const amazonDefaultBaseURL = "https://real-time-amazon-data.p.rapidapi.com"

type AmazonConnector struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	// default India store
	Country string
}

func NewAmazonConnector() *AmazonConnector {
	return &AmazonConnector{
		APIKey:  GetEnv("RAPIDAPI_KEY", ""),
		BaseURL: amazonDefaultBaseURL,
		Client:  &http.Client{},
		Country: "IN",
	}
}

func (a *AmazonConnector) Name() string {
	return "amazon"
}

type amazonProduct struct {
	Asin          string          `json:"asin"`
	ProductTitle  string          `json:"product_title"`
	Title         string          `json:"title"`
	ProductPrice  json.RawMessage `json:"product_price"`
	ProductPhoto  string          `json:"product_photo"`
	MainImageURL  string          `json:"product_main_image_url"`
	Image         string          `json:"image"`
	ProductURL    string          `json:"product_url"`
	ProductBrand  string          `json:"product_brand"`
	StarRating    string          `json:"product_star_rating"`
	NumRatings    int             `json:"product_num_ratings"`
}

type amazonSearchPayload struct {
	Data struct {
		Products []amazonProduct `json:"products"`
	} `json:"data"`
}

func (a *AmazonConnector) Search(ctx context.Context, query string, category models.ItemCategory, audience string, limit int) ([]models.Item, error) {
	if a.APIKey == "" {
		return nil, fmt.Errorf("RAPIDAPI_KEY not configured")
	}

	// amazon listings are noisy, fetch double and trim after exclusion
	searchQuery := amazonCategoryQuery(query, category, audience)

	params := url.Values{}
	params.Set("query", searchQuery)
	params.Set("page", "1")
	params.Set("country", a.Country)
	params.Set("sort_by", "BEST_SELLERS")
	params.Set("product_condition", "NEW")

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/search?%s", a.BaseURL, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", a.APIKey)
	req.Header.Set("X-RapidAPI-Host", "real-time-amazon-data.p.rapidapi.com")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amazon request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("amazon response read failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("amazon api error: %d - %.200s", resp.StatusCode, string(body))
	}

	var payload amazonSearchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("amazon payload unmarshal failed: %v", err)
	}
	products := payload.Data.Products
	fmt.Printf("[Catalog: amazon] found %d products for: %s\n", len(products), searchQuery)
	if len(products) > limit*2 {
		products = products[:limit*2]
	}

	items := a.transformProducts(products, category)
	items = keepValidItems(a.Name(), items)
	items = excludeAmazonWrongAudience(items, audience)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func amazonCategoryQuery(query string, category models.ItemCategory, audience string) string {
	if category == models.CategoryTop {
		if audience == "women" {
			return strings.TrimSpace("women top shirt kurta " + query)
		}
		return strings.TrimSpace("men shirt t-shirt polo " + query)
	}
	if audience == "women" {
		return strings.TrimSpace("women jeans pants palazzo " + query)
	}
	return strings.TrimSpace("men jeans pants trousers " + query)
}

func (a *AmazonConnector) transformProducts(products []amazonProduct, category models.ItemCategory) []models.Item {
	var items []models.Item
	for _, p := range products {
		name := p.ProductTitle
		if name == "" {
			name = p.Title
		}
		// localized titles are not ASCII, cut on a rune boundary
		if runes := []rune(name); len(runes) > 100 {
			name = string(runes[:100])
		}

		imageURL := p.ProductPhoto
		if imageURL == "" {
			imageURL = p.MainImageURL
		}
		if imageURL == "" {
			imageURL = p.Image
		}

		buyURL := p.ProductURL
		if buyURL == "" && p.Asin != "" {
			buyURL = fmt.Sprintf("https://www.amazon.in/dp/%s", p.Asin)
		}

		brand := p.ProductBrand
		if brand == "" {
			brand = "Amazon"
		}
		description := p.ProductTitle
		if description == "" {
			description = p.Title
		}

		items = append(items, models.Item{
			ID:          p.Asin,
			Source:      a.Name(),
			Name:        name,
			Category:    category,
			Price:       parseAmazonPrice(p.ProductPrice),
			Currency:    "INR",
			ImageURL:    imageURL,
			BuyURL:      buyURL,
			Brand:       StrPointer(brand),
			Description: StrPointer(description),
			Colors:      []string{},
		})
	}
	return items
}

var priceNumberRegex = regexp.MustCompile(`[\d,]+\.?\d*`)

// parseAmazonPrice handles the formats the api mixes: "₹1,299", "$29.99",
// a bare number, or {"value": "..."}.
func parseAmazonPrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		var asObject struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(raw, &asObject); err == nil {
			asString = asObject.Value
		} else {
			var asNumber float64
			if err := json.Unmarshal(raw, &asNumber); err == nil {
				return asNumber
			}
			return 0
		}
	}

	match := priceNumberRegex.FindString(asString)
	if match == "" {
		return 0
	}
	match = strings.ReplaceAll(match, ",", "")
	var price float64
	if _, err := fmt.Sscanf(match, "%f", &price); err != nil {
		return 0
	}
	return price
}

// "women" contains "men", so padded word-boundary patterns are required.
var amazonWomenRequestExclude = []string{" men ", " mens ", " men's ", "for men", "boys", " boy "}
var amazonMenRequestExclude = []string{" women ", " womens ", " women's ", "for women", "ladies", " girl", "girls"}

func excludeAmazonWrongAudience(items []models.Item, audience string) []models.Item {
	exclude := amazonMenRequestExclude
	if audience == "women" {
		exclude = amazonWomenRequestExclude
	}

	filtered := []models.Item{}
	for _, it := range items {
		nameLower := " " + strings.ToLower(it.Name) + " "
		if containsAny(nameLower, exclude) {
			continue
		}
		filtered = append(filtered, it)
	}
	return filtered
}
