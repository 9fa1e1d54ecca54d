package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"fitmixapi/models"

	"github.com/getsentry/sentry-go"
	"gorm.io/gorm"
)

const maxRenderRetryTimes = 2

// OutfitRenderer drives one render artifact through its lifecycle:
// pending -> rendered via two sequential model passes (top garment first,
// then bottom onto the intermediate), or -> degraded via the deterministic
// compositor when a pass breaks, or -> failed when even that broke.
type OutfitRenderer struct {
	DB     *gorm.DB
	LLM    LLMProcessor
	AWS    AWSServiceProvider
	Bucket string
}

func (r *OutfitRenderer) addTokenCounts(render *models.OutfitRender, resp *LLMResponse) {
	render.LLMInputTokenCount += resp.InputTokenCount
	render.LLMThoughtsTokenCount += resp.ThoughtsTokenCount
	render.LLMOutputTokenCount += resp.OutputTokenCount
	render.LLMTotalTokenCount += resp.TotalTokenCount
}

func (r *OutfitRenderer) savePass(render *models.OutfitRender, pass string) {
	render.Pass = pass
	if result := r.DB.Save(render); result.Error != nil {
		fmt.Printf("[Render: %v] failed to save pass %s: %v\n", render.ID, pass, result.Error)
		sentry.CaptureException(result.Error)
	}
}

// FailRender counts one attempt; only after the retry budget is spent does
// the artifact become terminally failed.
func (r *OutfitRenderer) FailRender(render *models.OutfitRender, reason string) {
	render.RenderRetryTimes++
	if render.RenderRetryTimes > maxRenderRetryTimes {
		render.Status = models.RenderStatusFailed
		render.FailReason = StrPointer(reason)
	}
	if result := r.DB.Save(render); result.Error != nil {
		fmt.Printf("[Render: %v] failed to save failure state: %v\n", render.ID, result.Error)
		sentry.CaptureException(result.Error)
	}
}

func (r *OutfitRenderer) uploadRenderImage(ctx context.Context, render *models.OutfitRender, imageBytes []byte) (string, error) {
	key := RenderObjectKey(render.ID)
	uploadURL, err := r.AWS.PresignLink(ctx, r.Bucket, key)
	if err != nil {
		return "", fmt.Errorf("failed to presign render upload: %w", err)
	}
	_, status, err := r.AWS.UploadToPresignedURL(ctx, r.Bucket, uploadURL, imageBytes)
	if err != nil {
		return "", fmt.Errorf("failed to upload render image: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("render image upload returned status %d", status)
	}
	return key, nil
}

func compositeImageOK(resp *LLMResponse, err error) error {
	if err != nil {
		return err
	}
	if strings.Contains(resp.Response, "NO_PERSON") {
		return fmt.Errorf("model detected no person in reference image")
	}
	if len(resp.Images) == 0 {
		return fmt.Errorf("model returned no image")
	}
	return nil
}

// tryModelPasses runs the two try-on passes and returns the final image
// bytes. The intermediate result of pass one is the base of pass two.
func (r *OutfitRenderer) tryModelPasses(ctx context.Context, render *models.OutfitRender, referencePath string, topPath string, bottomPath string) ([]byte, error) {
	passOne, err := r.LLM.GenerateComposite(ctx, referencePath, topPath, Flash25Image)
	if passOne != nil {
		r.addTokenCounts(render, passOne)
	}
	if err := compositeImageOK(passOne, err); err != nil {
		return nil, fmt.Errorf("pass one failed: %w", err)
	}
	r.savePass(render, models.RenderPassOneDone)

	intermediatePath, err := CreateTempFile(passOne.Images[0], fmt.Sprintf("render-%v-pass1.png", render.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to stage pass one result: %w", err)
	}
	defer os.Remove(intermediatePath)

	passTwo, err := r.LLM.GenerateComposite(ctx, intermediatePath, bottomPath, Flash25Image)
	if passTwo != nil {
		r.addTokenCounts(render, passTwo)
	}
	if err := compositeImageOK(passTwo, err); err != nil {
		return nil, fmt.Errorf("pass two failed: %w", err)
	}
	r.savePass(render, models.RenderPassTwoDone)

	return passTwo.Images[0], nil
}

// RenderOutfit processes one pending render to a terminal state. Returns an
// error only when the attempt should be retried; terminal failure is
// recorded on the row and swallowed.
func (r *OutfitRenderer) RenderOutfit(ctx context.Context, renderID uint) error {
	start := time.Now()

	var render models.OutfitRender
	if result := r.DB.First(&render, renderID); result.Error != nil {
		return fmt.Errorf("render %v not found: %w", renderID, result.Error)
	}
	if render.Status != models.RenderStatusPending {
		fmt.Printf("[Render: %v] already %s, skipping\n", render.ID, render.Status)
		return nil
	}

	var recommendation models.OutfitRecommendation
	if result := r.DB.Where("outfit_id = ?", render.OutfitID).Take(&recommendation); result.Error != nil {
		r.FailRender(&render, "recommendation missing")
		return fmt.Errorf("recommendation %s not found: %w", render.OutfitID, result.Error)
	}

	var top, bottom models.Item
	if err := json.Unmarshal([]byte(recommendation.TopItemJSON), &top); err != nil {
		r.FailRender(&render, "corrupt top item snapshot")
		return fmt.Errorf("failed to decode top item: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendation.BottomItemJSON), &bottom); err != nil {
		r.FailRender(&render, "corrupt bottom item snapshot")
		return fmt.Errorf("failed to decode bottom item: %w", err)
	}

	var user models.UserAccount
	if result := r.DB.First(&user, render.UserAccountID); result.Error != nil {
		r.FailRender(&render, "user missing")
		return fmt.Errorf("user %v not found: %w", render.UserAccountID, result.Error)
	}
	referenceURL := GetEnv("MODEL_IMAGE_URL", "")
	if user.UserFullBodyImageURL != nil && *user.UserFullBodyImageURL != "" {
		referenceURL = *user.UserFullBodyImageURL
	}

	topBytes, err := ReadFileFromUrl(top.ImageURL)
	if err != nil {
		r.FailRender(&render, fmt.Sprintf("top image download failed: %v", err))
		return fmt.Errorf("failed to download top image: %w", err)
	}
	bottomBytes, err := ReadFileFromUrl(bottom.ImageURL)
	if err != nil {
		r.FailRender(&render, fmt.Sprintf("bottom image download failed: %v", err))
		return fmt.Errorf("failed to download bottom image: %w", err)
	}

	var referenceBytes []byte
	if referenceURL != "" {
		referenceBytes, err = ReadFileFromUrl(referenceURL)
		if err != nil {
			fmt.Printf("[Render: %v] reference download failed, degraded path: %v\n", render.ID, err)
			sentry.CaptureException(err)
			referenceBytes = nil
		}
	}

	var finalImage []byte
	status := models.RenderStatusRendered

	if referenceBytes != nil {
		referencePath, refErr := CreateTempFile(referenceBytes, fmt.Sprintf("render-%v-ref.png", render.ID))
		topPath, topErr := CreateTempFile(topBytes, fmt.Sprintf("render-%v-top.png", render.ID))
		bottomPath, bottomErr := CreateTempFile(bottomBytes, fmt.Sprintf("render-%v-bottom.png", render.ID))
		if refErr == nil && topErr == nil && bottomErr == nil {
			defer os.Remove(referencePath)
			defer os.Remove(topPath)
			defer os.Remove(bottomPath)
			finalImage, err = r.tryModelPasses(ctx, &render, referencePath, topPath, bottomPath)
			if err != nil {
				fmt.Printf("[Render: %v] model passes failed, degraded path: %v\n", render.ID, err)
				sentry.CaptureException(err)
			}
		}
	}

	if finalImage == nil {
		status = models.RenderStatusDegraded
		if referenceBytes != nil {
			finalImage, err = ComposeOnReference(referenceBytes, topBytes, bottomBytes)
		} else {
			finalImage, err = CombineGarmentImages(topBytes, bottomBytes)
		}
		if err != nil {
			sentry.CaptureException(err)
			r.FailRender(&render, fmt.Sprintf("degraded compositor failed: %v", err))
			return fmt.Errorf("degraded compositor failed: %w", err)
		}
	}

	key, err := r.uploadRenderImage(ctx, &render, finalImage)
	if err != nil {
		sentry.CaptureException(err)
		r.FailRender(&render, fmt.Sprintf("upload failed: %v", err))
		return err
	}

	render.Status = status
	render.Pass = models.RenderPassComplete
	render.ImageKey = StrPointer(key)
	render.Duration = time.Since(start).Seconds()
	if result := r.DB.Save(&render); result.Error != nil {
		sentry.CaptureException(result.Error)
		return fmt.Errorf("failed to save finished render: %w", result.Error)
	}
	fmt.Printf("[Render: %v] finished as %s in %.1fs\n", render.ID, render.Status, render.Duration)
	return nil
}
