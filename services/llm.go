package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

// LLMModelName is the GenAI model to use for a call.
type LLMModelName int32

const (
	Pro25 LLMModelName = iota
	Flash25
	FlashLite25
	Flash20
	Flash25Image
)

func (t LLMModelName) String() string {
	switch t {
	case Pro25:
		return "gemini-2.5-pro"
	case Flash25:
		return "gemini-2.5-flash"
	case FlashLite25:
		return "gemini-2.5-flash-lite-preview-06-17"
	case Flash25Image:
		return "gemini-2.5-flash-image-preview"
	case Flash20:
		return "gemini-2.0-flash"
	default:
		return "gemini-2.0-flash"
	}
}

// Every external model call is bounded; callers fall back when exceeded.
const LLMTextCallTimeout = 30 * time.Second
const LLMImageCallTimeout = 120 * time.Second

func floatPointer(f float32) *float32 {
	return &f
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func Int32Pointer(i int32) *int32 {
	return &i
}

type LLMResponse struct {
	Response           string   `json:"response"`
	Images             [][]byte `json:"images,omitempty"`
	InputTokenCount    int32    `json:"input_token_count"`
	Thoughts           string   `json:"thoughts"`
	ThoughtsTokenCount int32    `json:"thoughts_token_count"`
	OutputTokenCount   int32    `json:"output_token_count"`
	TotalTokenCount    int32    `json:"total_token_count"`
	IsTest             bool     `json:"is_test"`
}

// LLMProcessor covers the two model-assisted call shapes of the pipeline:
// low-variance text completions (request parsing, item classification, pair
// scoring) and garment compositing onto a reference image.
type LLMProcessor interface {
	GenerateStyleText(ctx context.Context, system string, prompt string, temperature float32, maxTokens int32, modelName LLMModelName) (*LLMResponse, error)
	GenerateComposite(ctx context.Context, baseImagePath string, garmentImagePath string, modelName LLMModelName) (*LLMResponse, error)
}

type GoogleLLMStyleProcessor struct{}

type ResponseWithThoughts struct {
	Thoughts string `json:"thoughts"`
	Text     string `json:"text"`
}

func tryUploadGoogleStorage(ctx context.Context, client *genai.Client, filePath string, newName *string) (*genai.File, error) {
	var genFile *genai.File
	var err error
	maxUploadTimes := 3
	for i := range maxUploadTimes {
		config := &genai.UploadFileConfig{}
		if newName != nil {
			config = &genai.UploadFileConfig{
				Name: *newName,
			}
		}

		genFile, err = client.Files.UploadFromPath(ctx, filePath, config)
		if err == nil {
			fmt.Println("File uploaded successfully:", filePath, "Attempt:", i+1)
			return genFile, nil
		}
		fmt.Printf("Error uploading file %s, attempt %d: %v\n", filePath, i+1, err)
	}
	return nil, fmt.Errorf("failed to upload file to google storage after %d attempts: %s", maxUploadTimes, filePath)
}

func GetAllInlineImages(result *genai.GenerateContentResponse) ([][]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("empty generation response")
	}

	var allImageData [][]byte

	for _, cand := range result.Candidates {
		for _, rating := range cand.SafetyRatings {
			if rating.Blocked {
				return nil, fmt.Errorf("content blocked by safety setting: %s", rating.Category)
			}
		}
		if cand.Content == nil || len(cand.Content.Parts) == 0 {
			continue
		}

		for _, part := range cand.Content.Parts {
			inlineData := part.InlineData
			if inlineData != nil {
				if strings.HasPrefix(inlineData.MIMEType, "image/") {
					if len(inlineData.Data) > 0 {
						allImageData = append(allImageData, inlineData.Data)
					}
				}
			}
		}
	}

	if len(allImageData) == 0 {
		return nil, nil
	}

	return allImageData, nil
}

func GetFirstCandidateTextWithThoughts(result *genai.GenerateContentResponse) (*ResponseWithThoughts, error) {
	var thinkingContent string
	for _, c := range result.Candidates {
		fmt.Println("Finish reason: ", c.FinishReason, " Finish message: ", c.FinishMessage)

		if len(c.SafetyRatings) > 0 {
			fmt.Println("[Safety] Safety ratings present:", len(c.SafetyRatings))
			for _, rating := range c.SafetyRatings {
				fmt.Println("[Safety] rating:", rating.Category, "Score:", rating.Probability, "Severity score:", rating.SeverityScore, " Blocked:", rating.Blocked)
				if rating.Blocked {
					return nil, fmt.Errorf("content violation: response blocked for %s", rating.Category)
				}
			}
		}
		for _, part := range c.Content.Parts {
			if part.Thought && part.Text != "" {
				if result.UsageMetadata != nil && result.UsageMetadata.ThoughtsTokenCount > 25000 {
					fmt.Println("Warning: Thought content is too long:", result.UsageMetadata.ThoughtsTokenCount, part.Text)
				}
				thinkingContent = part.Text
				continue
			}
		}
	}
	return &ResponseWithThoughts{
		Thoughts: thinkingContent,
		Text:     result.Text(),
	}, nil
}

func tokenCounts(result *genai.GenerateContentResponse) (int32, int32, int32, int32) {
	if result.UsageMetadata == nil {
		fmt.Println("UsageMetadata is nil!")
		return 0, 0, 0, 0
	}
	inputTokenCount := result.UsageMetadata.PromptTokenCount
	thoughtsTokenCount := result.UsageMetadata.ThoughtsTokenCount
	outputTokenCount := result.UsageMetadata.CandidatesTokenCount
	totalTokenCount := result.UsageMetadata.TotalTokenCount
	fmt.Println("Input token count:", inputTokenCount)
	fmt.Println("Output token count:", outputTokenCount)
	fmt.Println("Thoughts token count:", thoughtsTokenCount)
	fmt.Println("Total token count:", totalTokenCount)
	return inputTokenCount, thoughtsTokenCount, outputTokenCount, totalTokenCount
}

// GenerateStyleText runs a bounded, low-variance text completion. The caller
// owns interpretation of the returned text; malformed payloads are the
// caller's fallback condition, not an error here.
func (GoogleLLMStyleProcessor) GenerateStyleText(ctx context.Context, system string, prompt string, temperature float32, maxTokens int32, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, LLMTextCallTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Println("Error creating genai client:", err)
		return nil, err
	}

	parts := []*genai.Part{{Text: prompt}}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: maxTokens,
		Temperature:     floatPointer(temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: system},
			},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	inputTokenCount, thoughtsTokenCount, outputTokenCount, totalTokenCount := tokenCounts(result)

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s", result.PromptFeedback.BlockReasonMessage)
	}

	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		fmt.Println(result.Candidates)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return &LLMResponse{
		Response:           llmResponseText.Text,
		Thoughts:           llmResponseText.Thoughts,
		InputTokenCount:    inputTokenCount,
		ThoughtsTokenCount: thoughtsTokenCount,
		OutputTokenCount:   outputTokenCount,
		TotalTokenCount:    totalTokenCount,
		IsTest:             false,
	}, nil
}

// GenerateComposite renders the garment from the second image onto the person
// in the first image. One call per pass; the renderer chains two of these.
func (GoogleLLMStyleProcessor) GenerateComposite(ctx context.Context, baseImagePath string, garmentImagePath string, modelName LLMModelName) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, LLMImageCallTimeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  os.Getenv("GOOGLE_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Println("Error creating genai client:", err)
		return nil, err
	}

	var genFiles []*genai.File

	baseFile, err := tryUploadGoogleStorage(ctx, client, baseImagePath, nil)
	if err != nil {
		fmt.Println("Error uploading base image file:", baseImagePath, err)
		return nil, fmt.Errorf("error uploading file %s: %v", baseImagePath, err)
	}
	genFiles = append(genFiles, baseFile)

	garmentFile, err := tryUploadGoogleStorage(ctx, client, garmentImagePath, nil)
	if err != nil {
		fmt.Println("Error uploading garment image file:", garmentImagePath, err)
		return nil, fmt.Errorf("error uploading file %s: %v", garmentImagePath, err)
	}
	genFiles = append(genFiles, garmentFile)

	var parts []*genai.Part
	for i, genFile := range genFiles {
		fmt.Println("File path for image parse:", i, " ", genFile.URI, genFile.MIMEType)
		parts = append(parts, &genai.Part{
			FileData: &genai.FileData{
				FileURI:  genFile.URI,
				MIMEType: genFile.MIMEType,
			},
		})
	}

	result, err := client.Models.GenerateContent(ctx, modelName.String(), []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		CandidateCount:  1,
		MaxOutputTokens: 50000,
		Temperature:     floatPointer(1),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: `Edit the first person image into a fashion-style full-body commercial head to toe photographer edited portrait by keeping the person's identity, personality, placement in image in center, facial identity(100% same) and use the same solid, flat, unlit, white first image background including ratio. Take the garment from the second image and let the same exact person from the first image wear it, replacing only the matching clothing piece. For clothing items not present in the second image, keep the ones the person already wears. Keep facial identity exactly same, unchanged. By keeping same personality, identity and exact same body/hand/head/leg sizes - generate the straight facing the camera and relaxed, confident pose. The lighting should be natural, soft and professional, high-resolution. Remove items from hands, position neutrally with slight smile. Clean all background elements, watermarks, other people/objects. If no person detected: return "NO_PERSON", otherwise output only full-body person on a flat, consistent, all white background. Do not apply slight grayish gradients, keep all edges white. Aspect ratio 9:16 portrait size`},
			},
		},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, fmt.Errorf("%v", err)
	}

	inputTokenCount, thoughtsTokenCount, outputTokenCount, totalTokenCount := tokenCounts(result)

	if result.PromptFeedback != nil {
		fmt.Println(result.PromptFeedback.BlockReason)
		fmt.Println(result.PromptFeedback.BlockReasonMessage)
		fmt.Println(result.PromptFeedback.SafetyRatings)
		return nil, fmt.Errorf("content violation: %s %s ", garmentImagePath, result.PromptFeedback.BlockReasonMessage)
	}

	fmt.Println("Number of candidates received:", len(result.Candidates))
	llmResponseImagesBytes, err := GetAllInlineImages(result)
	if err != nil {
		fmt.Println("Error getting candidate images: ", err)
		fmt.Println(result)
		return nil, fmt.Errorf("error getting candidate images: %v", err)
	}
	fmt.Println("Number of images extracted:", len(llmResponseImagesBytes))
	llmResponseText, err := GetFirstCandidateTextWithThoughts(result)
	if err != nil {
		fmt.Println("Error getting first candidate text: ", err)
		fmt.Println(result.Candidates)
		return nil, fmt.Errorf("error getting first candidate text: %v", err)
	}

	return &LLMResponse{
		Response:           llmResponseText.Text,
		Images:             llmResponseImagesBytes,
		Thoughts:           llmResponseText.Thoughts,
		InputTokenCount:    inputTokenCount,
		ThoughtsTokenCount: thoughtsTokenCount,
		OutputTokenCount:   outputTokenCount,
		TotalTokenCount:    totalTokenCount,
		IsTest:             false,
	}, nil
}
