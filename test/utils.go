package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"fitmixapi/models"
	"fitmixapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:     "OurName",
		Email:    "email@example.com",
		GoogleID: "12232",
		Platform: models.PlatformIOS,
		LastIp:   "123.122.122.122",
		Status:   "FINISHED_AUTH",
	}
	db.Create(&user)
	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {

	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:     userName,
		Email:    email,
		GoogleID: "12232",
		Platform: models.PlatformIOS,
		LastIp:   "123.122.122.122",
		Status:   "FINISHED_AUTH",
	}
	db.Create(&user)
	return user
}

func NewRefString(data string) *string {
	return &data
}

// TinyPNG returns a small decodable PNG filled with the given color, used
// wherever tests need real image bytes.
func TinyPNG(c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// FakeItem builds a catalog item that passes the normalization rules.
func FakeItem(id string, source string, category models.ItemCategory, price float64) models.Item {
	return models.Item{
		ID:       id,
		Source:   source,
		Name:     fmt.Sprintf("Item %s", id),
		Category: category,
		Price:    price,
		Currency: "USD",
		ImageURL: fmt.Sprintf("https://images.example.com/%s.jpg", id),
		BuyURL:   fmt.Sprintf("https://shop.example.com/%s", id),
	}
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	// Simulate a successful upload
	return url, 204, nil
}

// URLCacheMock hands back one fixed read URL for any non-empty key.
type URLCacheMock struct {
	MockUrl string
}

func (m URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	if objectKey == "" {
		return "", nil
	}
	return m.MockUrl, nil
}

// LLMMock scripts model calls. Text calls consume TextResponses in order
// (the last entry repeats once exhausted) unless TextScript is set, which
// decides per call from the system and prompt text. Composite calls return
// CompositeImages or fail with CompositeErr.
type LLMMock struct {
	mu sync.Mutex

	TextScript    func(system string, prompt string) (string, error)
	TextResponses []string
	TextErr       error
	// prompts seen, in call order
	TextCalls []string
	textIndex int

	CompositeScript   func(baseImagePath string, garmentImagePath string) (*services.LLMResponse, error)
	CompositeImages   [][]byte
	CompositeResponse string
	CompositeErr      error
	CompositeCalls    int
}

func (m *LLMMock) GenerateStyleText(ctx context.Context, system string, prompt string, temperature float32, maxTokens int32, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextCalls = append(m.TextCalls, prompt)

	if m.TextScript != nil {
		text, err := m.TextScript(system, prompt)
		if err != nil {
			return nil, err
		}
		return &services.LLMResponse{
			Response:           text,
			InputTokenCount:    10,
			TotalTokenCount:    11,
			ThoughtsTokenCount: 12,
			OutputTokenCount:   13,
			IsTest:             true,
		}, nil
	}
	if m.TextErr != nil {
		return nil, m.TextErr
	}
	if len(m.TextResponses) == 0 {
		return nil, fmt.Errorf("no scripted text response")
	}
	idx := m.textIndex
	if idx >= len(m.TextResponses) {
		idx = len(m.TextResponses) - 1
	}
	m.textIndex++
	return &services.LLMResponse{
		Response:           m.TextResponses[idx],
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
		IsTest:             true,
	}, nil
}

func (m *LLMMock) GenerateComposite(ctx context.Context, baseImagePath string, garmentImagePath string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompositeCalls++

	if m.CompositeScript != nil {
		return m.CompositeScript(baseImagePath, garmentImagePath)
	}
	if m.CompositeErr != nil {
		return nil, m.CompositeErr
	}
	images := m.CompositeImages
	if len(images) == 0 {
		images = [][]byte{TinyPNG(color.White)}
	}
	return &services.LLMResponse{
		Response:           m.CompositeResponse,
		Images:             images,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
		IsTest:             true,
	}, nil
}

// CatalogConnectorMock serves canned items per category and records the
// queries it saw.
type CatalogConnectorMock struct {
	mu sync.Mutex

	SourceName string
	Items      map[models.ItemCategory][]models.Item
	Err        error
	Queries    []string
}

func (m *CatalogConnectorMock) Name() string {
	return m.SourceName
}

func (m *CatalogConnectorMock) Search(ctx context.Context, query string, category models.ItemCategory, audience string, limit int) ([]models.Item, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	items := m.Items[category]
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
