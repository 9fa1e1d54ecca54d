package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/telegram"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const TypeOutfitRender = "generate:outfit_render"
const TypeStaleRenderSweep = "maintenance:stale_render_sweep"

// Renders older than this that never left pending are considered lost.
const staleRenderAge = 30 * time.Minute

type OutfitRenderPayload struct {
	RenderID uint `json:"render_id"`
}

func NewOutfitRenderTask(renderID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(OutfitRenderPayload{RenderID: renderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOutfitRender, payload), nil
}

func NewStaleRenderSweepTask() *asynq.Task {
	return asynq.NewTask(TypeStaleRenderSweep, nil)
}

// HandleOutfitRenderTask drives one render to a terminal state and notifies
// the owner. A returned error means asynq should retry the attempt.
func HandleOutfitRenderTask(ctx context.Context, t *asynq.Task, db *gorm.DB, llm services.LLMProcessor, awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload OutfitRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	fmt.Printf("[Render: %v] Start Processing\n", payload.RenderID)

	renderer := services.OutfitRenderer{
		DB:     db,
		LLM:    llm,
		AWS:    awsService,
		Bucket: services.GetEnv("R2_BUCKET_NAME", ""),
	}
	renderErr := renderer.RenderOutfit(ctx, payload.RenderID)

	var render models.OutfitRender
	if result := db.First(&render, payload.RenderID); result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving render after processing %v", payload.RenderID))
		return result.Error
	}

	switch render.Status {
	case models.RenderStatusRendered, models.RenderStatusDegraded:
		if fbApp != nil {
			services.SendNotification(fbApp, db, render.UserAccountID,
				"Your outfit is ready",
				"The try-on image for your outfit has been generated",
				map[string]string{"render_id": fmt.Sprintf("%d", render.ID), "type": "render_ready"})
		}
		return nil
	case models.RenderStatusFailed:
		reason := "unknown"
		if render.FailReason != nil {
			reason = *render.FailReason
		}
		telegram.Alert(fmt.Sprintf("Render %v failed permanently: %s", render.ID, reason))
		// terminal, retrying cannot help
		return nil
	default:
		if renderErr != nil {
			return renderErr
		}
		return nil
	}
}

// HandleStaleRenderSweepTask fails renders that have been pending for too
// long, so clients stop polling artifacts the worker lost.
func HandleStaleRenderSweepTask(ctx context.Context, t *asynq.Task, db *gorm.DB) error {
	cutoff := time.Now().Add(-staleRenderAge)

	var stale []models.OutfitRender
	result := db.Where("status = ? AND created_at < ?", models.RenderStatusPending, cutoff).Find(&stale)
	if result.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Sweep] Error fetching stale renders: %v", result.Error))
		return result.Error
	}
	if len(stale) == 0 {
		return nil
	}

	fmt.Printf("[Sweep] Found %d stale pending renders\n", len(stale))
	for _, render := range stale {
		render.Status = models.RenderStatusFailed
		render.FailReason = services.StrPointer("render timed out in queue")
		if err := db.Save(&render).Error; err != nil {
			sentry.CaptureException(fmt.Errorf("[Sweep] Error failing stale render %v: %v", render.ID, err))
			continue
		}
		fmt.Printf("[Sweep] Render %v marked failed after %v in queue\n", render.ID, staleRenderAge)
	}
	telegram.Alert(fmt.Sprintf("Stale render sweep failed %d renders stuck in queue", len(stale)))
	return nil
}
