package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
)

const parseSystemPrompt = `You are an AI fashion assistant. Analyze outfit prompts and extract structured information.

Extract the following from the user's prompt:
- mood: emotional tone (relaxed, energetic, confident, etc.)
- location: where they'll wear it (beach, office, party, gym, etc.)
- occasion: the event type (casual, formal, party, business, date, etc.)
- style: fashion style (casual, formal, streetwear, bohemian, etc.)
- colors: color preferences (bright, dark, pastel, specific colors)
- season: time of year (summer, winter, spring, fall, all-season)
- formality: level of formality (casual, semi-formal, formal)
- keywords: key fashion terms mentioned

Respond ONLY with valid JSON. No other text.

Example input: "Beach party, colorful and relaxed"
Example output:
{
  "mood": "relaxed",
  "location": "beach",
  "occasion": "party",
  "style": "casual",
  "colors": ["colorful", "bright"],
  "season": "summer",
  "formality": "casual",
  "keywords": ["beach", "party", "colorful", "relaxed", "summer"]
}`

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)
var jsonArrayRegex = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractJSONObject pulls the first JSON object out of a model response,
// tolerating fenced or chatty output. Second return is false when nothing
// parseable was found.
func ExtractJSONObject(text string, out interface{}) bool {
	cleaned := cleanAIResponseText(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return true
	}
	match := jsonObjectRegex.FindString(cleaned)
	if match == "" {
		return false
	}
	return json.Unmarshal([]byte(match), out) == nil
}

// ExtractJSONArray does the same for a top level JSON array.
func ExtractJSONArray(text string, out interface{}) bool {
	cleaned := cleanAIResponseText(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return true
	}
	match := jsonArrayRegex.FindString(cleaned)
	if match == "" {
		return false
	}
	return json.Unmarshal([]byte(match), out) == nil
}

func cleanAIResponseText(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

type parsedRequestPayload struct {
	Mood      string   `json:"mood"`
	Location  string   `json:"location"`
	Occasion  string   `json:"occasion"`
	Style     string   `json:"style"`
	Colors    []string `json:"colors"`
	Season    string   `json:"season"`
	Formality string   `json:"formality"`
	Keywords  []string `json:"keywords"`
}

// ParseStyleRequest turns free text into facets. It never fails: any model
// problem falls back to the keyword extractor.
func ParseStyleRequest(ctx context.Context, llm LLMProcessor, prompt string) *models.ParsedRequest {
	result, err := llm.GenerateStyleText(ctx, parseSystemPrompt, fmt.Sprintf("Analyze this outfit prompt: %s", prompt), 0.3, 300, Flash20)
	if err != nil {
		fmt.Printf("[Parse] model call failed, using fallback: %v\n", err)
		sentry.CaptureException(err)
		return FallbackParseStyleRequest(prompt)
	}

	var payload parsedRequestPayload
	if !ExtractJSONObject(result.Response, &payload) {
		fmt.Printf("[Parse] unparseable model output, using fallback: %.100s\n", result.Response)
		return FallbackParseStyleRequest(prompt)
	}

	parsed := &models.ParsedRequest{
		OriginalPrompt: prompt,
		Mood:           StrPointer(payload.Mood),
		Location:       StrPointer(payload.Location),
		Occasion:       StrPointer(payload.Occasion),
		Style:          StrPointer(payload.Style),
		Colors:         payload.Colors,
		Season:         StrPointer(payload.Season),
		Formality:      StrPointer(payload.Formality),
		Keywords:       payload.Keywords,
	}
	if parsed.Colors == nil {
		parsed.Colors = []string{}
	}
	if len(parsed.Keywords) == 0 {
		parsed.Keywords = rawKeywords(prompt)
	}
	fmt.Printf("[Parse] facets extracted for prompt %q\n", prompt)
	return parsed
}

var moodVocabulary = map[string][]string{
	"relaxed":   {"relaxed", "chill", "calm", "easy", "comfortable"},
	"energetic": {"energetic", "active", "dynamic", "lively", "sporty"},
	"confident": {"confident", "bold", "powerful", "strong"},
	"romantic":  {"romantic", "soft", "elegant", "date"},
}

var locationVocabulary = []string{"beach", "office", "gym", "party", "home", "outdoor", "indoor", "restaurant", "club"}

var occasionVocabulary = []string{"party", "wedding", "date", "meeting", "casual", "formal", "business", "interview", "dinner"}

var colorVocabulary = []string{
	"blue", "red", "green", "yellow", "black", "white", "gray", "grey", "pink",
	"colorful", "bright", "dark", "pastel", "neutral", "navy", "beige", "brown",
}

var seasonVocabulary = []string{"summer", "winter", "spring", "fall", "autumn"}

var styleVocabulary = map[string][]string{
	"streetwear": {"streetwear", "street", "urban", "hip-hop"},
	"bohemian":   {"boho", "bohemian", "hippie", "flowy"},
	"minimalist": {"minimal", "minimalist", "simple", "clean"},
	"preppy":     {"preppy", "prepster", "ivy"},
	"sporty":     {"sporty", "athletic", "gym", "workout"},
}

var formalWords = []string{"formal", "business", "professional", "suit", "elegant"}
var semiFormalWords = []string{"semi-formal", "smart", "dressy"}

// "beach" alone implies summer; mirrors the facet example output.
var summerHints = []string{"beach", "summer"}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func rawKeywords(prompt string) []string {
	keywords := []string{}
	for _, word := range strings.Fields(strings.ToLower(prompt)) {
		word = strings.Trim(word, ".,!?;:")
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// FallbackParseStyleRequest is the deterministic keyword-bag extractor. Pure
// and total: the keyword list is always populated from the raw tokens.
func FallbackParseStyleRequest(prompt string) *models.ParsedRequest {
	promptLower := strings.ToLower(prompt)

	parsed := &models.ParsedRequest{
		OriginalPrompt: prompt,
		Colors:         []string{},
		Keywords:       rawKeywords(prompt),
		FallbackUsed:   true,
	}

	for mood, words := range moodVocabulary {
		if containsAny(promptLower, words) {
			parsed.Mood = StrPointer(mood)
			break
		}
	}

	for _, loc := range locationVocabulary {
		if strings.Contains(promptLower, loc) {
			parsed.Location = StrPointer(loc)
			break
		}
	}

	for _, occ := range occasionVocabulary {
		if strings.Contains(promptLower, occ) {
			parsed.Occasion = StrPointer(occ)
			break
		}
	}

	for _, c := range colorVocabulary {
		if strings.Contains(promptLower, c) {
			parsed.Colors = append(parsed.Colors, c)
		}
	}

	for _, s := range seasonVocabulary {
		if strings.Contains(promptLower, s) {
			parsed.Season = StrPointer(s)
			break
		}
	}
	if parsed.Season == nil && containsAny(promptLower, summerHints) {
		parsed.Season = StrPointer("summer")
	}

	formality := "casual"
	if containsAny(promptLower, formalWords) {
		formality = "formal"
	} else if containsAny(promptLower, semiFormalWords) {
		formality = "semi-formal"
	}
	parsed.Formality = StrPointer(formality)

	style := formality
	for s, words := range styleVocabulary {
		if containsAny(promptLower, words) {
			style = s
			break
		}
	}
	parsed.Style = StrPointer(style)

	fmt.Printf("[Parse] fallback parse completed for: %s\n", prompt)
	return parsed
}

// BuildSearchQuery flattens facets into one catalog search string.
func BuildSearchQuery(parsed *models.ParsedRequest) string {
	var parts []string
	appendPart := func(p *string) {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	appendPart(parsed.Location)
	appendPart(parsed.Occasion)
	appendPart(parsed.Style)
	if len(parsed.Colors) > 2 {
		parts = append(parts, parsed.Colors[:2]...)
	} else {
		parts = append(parts, parsed.Colors...)
	}
	appendPart(parsed.Season)
	if len(parsed.Keywords) > 3 {
		parts = append(parts, parsed.Keywords[:3]...)
	} else {
		parts = append(parts, parsed.Keywords...)
	}

	seen := map[string]bool{}
	var unique []string
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	query := strings.Join(unique, " ")
	fmt.Printf("[Parse] generated search query: %s\n", query)
	return query
}

const categoryQuerySystemPrompt = `You are a fashion search query optimizer. Analyze the user's query and generate the best search terms for %s products (%s).

Determine if the query is:
1. DIRECT: Specific clothing type (e.g., "blazers", "suits", "jackets", "hoodies", "cardigans")
2. DESCRIPTIVE: Style/occasion/mood (e.g., "casual summer", "beach party", "formal", "workout")

Rules:
- If DIRECT: Use the query as-is, just add gender prefix (e.g., "blazers" -> "mens blazers")
- If DESCRIPTIVE: Generate appropriate clothing terms based on context:
  * For tops: shirt, t-shirt, polo, top, blouse, kurta, etc.
  * For bottoms: pants, jeans, trousers, shorts, etc.
  * Choose terms that match the style/occasion described

Respond with JSON only:
{"is_direct": true/false, "search_query": "final search query with gender prefix"}

Return ONLY the JSON, no other text.`

type categoryQueryPayload struct {
	IsDirect    bool   `json:"is_direct"`
	SearchQuery string `json:"search_query"`
}

// BuildCategoryQuery makes the per-category gendered search term, asking the
// model whether the text names a clothing type directly. Falls back to the
// fixed prefix+suffix rule.
func BuildCategoryQuery(ctx context.Context, llm LLMProcessor, userQuery string, category models.ItemCategory, audience string) string {
	fallback := fallbackCategoryQuery(userQuery, category, audience)

	system := fmt.Sprintf(categoryQuerySystemPrompt, category, audience)
	prompt := fmt.Sprintf("User query: %s\nCategory: %s\nGender: %s\n\nGenerate search query:", userQuery, category, audience)
	result, err := llm.GenerateStyleText(ctx, system, prompt, 0.2, 150, Flash20)
	if err != nil {
		fmt.Printf("[Parse] category query model call failed: %v\n", err)
		return fallback
	}

	var payload categoryQueryPayload
	if !ExtractJSONObject(result.Response, &payload) || payload.SearchQuery == "" {
		fmt.Printf("[Parse] unparseable category query output: %.100s\n", result.Response)
		return fallback
	}
	fmt.Printf("[Parse] generated category query: %s (direct: %v)\n", payload.SearchQuery, payload.IsDirect)
	return payload.SearchQuery
}

func fallbackCategoryQuery(userQuery string, category models.ItemCategory, audience string) string {
	prefix := "womens"
	if audience == "men" {
		prefix = "mens"
	}
	if category == models.CategoryTop {
		return strings.TrimSpace(fmt.Sprintf("%s %s shirt", prefix, userQuery))
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s pants jeans", prefix, userQuery))
}
