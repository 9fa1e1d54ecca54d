package controllers

import (
	"context"
	"log"
	"net/http"
	"os"

	"fitmixapi/models"
	"fitmixapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/go-playground/validator"
	"github.com/hibiken/asynq"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		// Optionally, you could return the error to give each route more control over the status code
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func configPresence(value string) string {
	if value == "" {
		return "not_configured"
	}
	return "configured"
}

func SetupServer(
	db *gorm.DB,
	googleService services.GoogleServiceProvider,
	llm services.LLMProcessor,
	connectors []services.CatalogConnector,
	awsService services.AWSServiceProvider,
	urlCache services.URLCacheServiceProvider,
	firebaseApp *firebase.App,
	asynqClient *asynq.Client,
) *echo.Echo {

	err := awsService.InitPresignClient(context.Background())
	if err != nil {
		log.Fatal("Failed to initialize AWS provider: S3")
	}

	e := echo.New()
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	e.Validator = &CustomValidator{validator: v}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__db", db)
			c.Set("__asynqclient", asynqClient)
			return next(c)
		}
	})

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	e.GET("/health", func(c echo.Context) error {
		servicesState := map[string]string{
			"database": "up",
			"llm":      configPresence(os.Getenv("GOOGLE_API_KEY")),
			"asos":     configPresence(os.Getenv("RAPIDAPI_KEY")),
			"amazon":   configPresence(os.Getenv("RAPIDAPI_KEY")),
			"storage":  configPresence(os.Getenv("R2_BUCKET_NAME")),
		}
		status := "ok"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			servicesState["database"] = "down"
			status = "degraded"
		}
		return c.JSON(http.StatusOK, models.HealthOut{
			Status:   status,
			Version:  services.GetEnv("APP_VERSION", "dev"),
			Services: servicesState,
		})
	})

	authController := AuthController{Google: googleService, FirebaseApp: firebaseApp, AWSService: awsService}
	authController.AuthRoutes(e.Group("/api/auth"))

	apiGroup := e.Group("/api", echojwt.JWT([]byte(os.Getenv("JWT_SECRET"))))
	apiGroup.Use(UserMiddleware)

	authController.ProfileRoutes(apiGroup.Group("/profile"))

	outfitController := OutfitController{
		Pipeline:    &services.SearchPipeline{DB: db, LLM: llm, Connectors: connectors},
		Ledger:      services.NewUsageLedger(db),
		AWSService:  awsService,
		URLCache:    urlCache,
		FirebaseApp: firebaseApp,
	}
	outfitController.OutfitRoutes(apiGroup.Group("/outfits"))
	outfitController.UsageRoutes(apiGroup)
	outfitController.AdminRoutes(apiGroup.Group("/admin"))

	return e
}
