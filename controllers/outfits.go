package controllers

import (
	"fmt"
	"net/http"

	"fitmixapi/models"
	"fitmixapi/services"
	"fitmixapi/tasks"
	"fitmixapi/telegram"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type OutfitController struct {
	Pipeline    *services.SearchPipeline
	Ledger      *services.UsageLedger
	AWSService  services.AWSServiceProvider
	URLCache    services.URLCacheServiceProvider
	FirebaseApp *firebase.App
}

func (m *OutfitController) OutfitRoutes(g *echo.Group) {
	g.POST("/search", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		in := new(models.OutfitSearchIn)
		if err := c.Bind(in); err != nil {
			return err
		}
		if err := c.Validate(in); err != nil {
			return err
		}

		decision, err := m.Ledger.CheckAndIncrement(UIntToStr(user.ID), services.UsageSearch)
		if err != nil {
			sentry.CaptureException(err)
			return ErrorJSON(c, http.StatusInternalServerError, "Our service is not available, please try again a bit later", "internal")
		}
		if !decision.Allowed {
			if decision.Reason == services.ReasonGlobalExhausted {
				telegram.Alert("Global search quota exhausted, a request was rejected")
			}
			return QuotaExceededJSON(c, decision.Reason,
				"You have used your free outfit search",
				"The service has reached its total search capacity, please come back later")
		}

		out, err := m.Pipeline.Run(c.Request().Context(), &user, in)
		if err != nil {
			sentry.CaptureException(err)
			return ErrorJSON(c, http.StatusInternalServerError, "Failed to build outfit recommendations, please try again", "pipeline_failed")
		}
		return c.JSON(http.StatusOK, out)
	})

	g.POST("/render", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		in := new(models.OutfitRenderIn)
		if err := c.Bind(in); err != nil {
			return err
		}
		if err := c.Validate(in); err != nil {
			return err
		}

		var recommendation models.OutfitRecommendation
		result := db.Where("outfit_id = ? and user_account_id = ?", in.OutfitID, user.ID).Take(&recommendation)
		if result.Error != nil {
			return ErrorJSON(c, http.StatusNotFound, "Outfit not found", "not_found")
		}

		// rendering is idempotent per outfit: a second request returns the
		// existing artifact without spending another quota slot. Failed
		// renders never replay, the user gets a fresh attempt instead.
		var existing models.OutfitRender
		found := db.Where("outfit_id = ? and user_account_id = ? and status <> ?",
			in.OutfitID, user.ID, models.RenderStatusFailed).Limit(1).Find(&existing)
		if found.Error == nil && found.RowsAffected > 0 {
			return c.JSON(http.StatusOK, m.renderOut(c, &existing))
		}

		decision, err := m.Ledger.CheckAndIncrement(UIntToStr(user.ID), services.UsageRender)
		if err != nil {
			sentry.CaptureException(err)
			return ErrorJSON(c, http.StatusInternalServerError, "Our service is not available, please try again a bit later", "internal")
		}
		if !decision.Allowed {
			if decision.Reason == services.ReasonGlobalExhausted {
				telegram.Alert("Global render quota exhausted, a request was rejected")
			}
			return QuotaExceededJSON(c, decision.Reason,
				"You have used your free outfit render",
				"The service has reached its total render capacity, please come back later")
		}

		render := models.OutfitRender{
			OutfitID:      in.OutfitID,
			UserAccountID: user.ID,
			Status:        models.RenderStatusPending,
			Pass:          models.RenderPassNotStarted,
		}
		if result := db.Create(&render); result.Error != nil {
			sentry.CaptureException(result.Error)
			return ErrorJSON(c, http.StatusInternalServerError, "Could not start the render, please try again", "internal")
		}

		asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
		if !ok {
			return ErrorJSON(c, http.StatusInternalServerError, "Service is not available, please try again a bit later", "internal")
		}
		task, err := tasks.NewOutfitRenderTask(render.ID)
		if err != nil {
			sentry.CaptureException(err)
			return ErrorJSON(c, http.StatusInternalServerError, "Could not start the render, please try again", "internal")
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
		if err != nil {
			sentry.CaptureException(err)
			return ErrorJSON(c, http.StatusInternalServerError, "Could not start the render, please try again", "internal")
		}
		fmt.Printf("[Queue] Render %v task submitted, User ID: %v Task ID %v\n", render.ID, user.ID, info.ID)

		return c.JSON(http.StatusOK, m.renderOut(c, &render))
	})

	g.GET("/render/:renderId", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)

		var renderId uint
		if err := echo.PathParamsBinder(c).Uint("renderId", &renderId).BindError(); err != nil {
			return echo.ErrBadRequest
		}

		var render models.OutfitRender
		result := db.Where("id = ? and user_account_id = ?", renderId, user.ID).Take(&render)
		if result.Error != nil {
			return ErrorJSON(c, http.StatusNotFound, "Render not found", "not_found")
		}
		return c.JSON(http.StatusOK, m.renderOut(c, &render))
	})
}

func (m *OutfitController) renderOut(c echo.Context, render *models.OutfitRender) *models.OutfitRenderOut {
	out := &models.OutfitRenderOut{
		Success:  true,
		RenderID: render.ID,
		OutfitID: render.OutfitID,
		Status:   render.Status,
	}
	if render.ImageKey != nil && *render.ImageKey != "" {
		url, err := m.URLCache.GetReadURL(c.Request().Context(), *render.ImageKey)
		if err != nil {
			fmt.Printf("[Render: %v] failed to presign image URL: %v\n", render.ID, err)
			sentry.CaptureException(err)
		} else {
			out.ImageURL = url
		}
	}
	return out
}

func (m *OutfitController) UsageRoutes(g *echo.Group) {
	g.GET("/usage", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		snapshot, err := m.Ledger.Snapshot(UIntToStr(user.ID))
		if err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, snapshot)
	})
}

func (m *OutfitController) AdminRoutes(g *echo.Group) {
	g.GET("/stats", func(c echo.Context) error {
		db := c.Get("__db").(*gorm.DB)

		global, err := m.Ledger.GlobalCounters()
		if err != nil {
			sentry.CaptureException(err)
			return echo.ErrInternalServerError
		}

		var totalUsers, totalRecommendations, totalRenders int64
		db.Model(&models.UserAccount{}).Count(&totalUsers)
		db.Model(&models.OutfitRecommendation{}).Count(&totalRecommendations)
		db.Model(&models.OutfitRender{}).Count(&totalRenders)

		return c.JSON(http.StatusOK, models.AdminStatsOut{
			GlobalSearchCount:    global.SearchCount,
			GlobalRenderCount:    global.RenderCount,
			GlobalSearchLimit:    m.Ledger.GlobalSearchLimit,
			GlobalRenderLimit:    m.Ledger.GlobalRenderLimit,
			TotalUsers:           totalUsers,
			TotalRecommendations: totalRecommendations,
			TotalRenders:         totalRenders,
		})
	}, SuperadminMiddleware)
}
