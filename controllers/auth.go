package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"fitmixapi/models"
	"fitmixapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type SetReferenceUploadFileRequest struct {
	FileName *string `json:"file_name" validate:"required,max=1000"`
}

type AuthController struct {
	Google      services.GoogleServiceProvider
	FirebaseApp *firebase.App
	AWSService  services.AWSServiceProvider
}

// AuthRoutes holds the public endpoints: Google sign-in and token refresh.
func (m *AuthController) AuthRoutes(g *echo.Group) {
	g.POST("/google", func(c echo.Context) (err error) {
		googleCreds := new(models.GoogleAuthSignIn)
		if err := c.Bind(googleCreds); err != nil {
			return err
		}
		if !models.ValidatePlatformRaw(googleCreds.Platform) {
			return ErrorJSON(c, http.StatusForbidden, "Please provide proper platform parameter", "bad_platform")
		}
		if err = c.Validate(googleCreds); err != nil {
			return err
		}

		payload, err := m.Google.ValidateIdToken(context.Background(), googleCreds.IdToken, os.Getenv("GOOGLE_CLIENT_ID"))
		if err != nil {
			fmt.Println(err)
			return ErrorJSON(c, http.StatusForbidden, "Couldn't verify credentials", "bad_credentials")
		}
		sub, ok := payload.Claims["sub"]
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data %s", payload.Claims))
			return ErrorJSON(c, http.StatusForbidden, "Couldn't verify credentials", "bad_credentials")
		}
		var googleId string = sub.(string)

		googleEmail, ok := payload.Claims["email"]
		if !ok {
			sentry.CaptureMessage(fmt.Sprintf("Error when fetching user data email %s", payload.Claims))
			return ErrorJSON(c, http.StatusForbidden, "Couldn't verify credentials", "bad_credentials")
		}
		pictureUrl, _ := payload.Claims["picture"].(string)
		googleName, _ := payload.Claims["name"].(string)

		db := c.Get("__db").(*gorm.DB)
		var user *models.UserAccount
		r := db.Where("google_id = ?", googleId).Limit(1).Find(&user)
		if r.Error != nil {
			return ErrorJSON(c, http.StatusInternalServerError, "Internal server error", "internal")
		}

		isNew := false
		if r.RowsAffected > 0 {
			if user.Banned {
				return echo.ErrForbidden
			}
			user.LastIp = c.RealIP()
			user.Platform = models.ScanPlatform(googleCreds.Platform)
			db.Save(&user)
		} else {
			// same email may exist from an earlier sign-in method
			r := db.Where("email = ?", googleEmail).Limit(1).Find(&user)
			if r.RowsAffected > 0 {
				user.AvatarURL = pictureUrl
				user.GoogleID = googleId
				user.Name = googleName
				user.LastIp = c.RealIP()
				user.Platform = models.ScanPlatform(googleCreds.Platform)
				db.Save(&user)
			} else {
				isNew = true
				user = &models.UserAccount{
					Name:      googleName,
					Email:     googleEmail.(string),
					GoogleID:  googleId,
					Platform:  models.ScanPlatform(googleCreds.Platform),
					LastIp:    c.RealIP(),
					Status:    "FINISHED_AUTH",
					AvatarURL: pictureUrl,
				}
				db.Create(&user)
			}
		}

		refreshToken, err := GenerateRefreshToken(fmt.Sprint(user.ID))
		if err != nil {
			fmt.Println(err)
			return echo.ErrInternalServerError
		}
		fmt.Println("User signed in with google: ", googleEmail, googleId, " new:", isNew)
		return c.JSON(http.StatusOK, models.GoogleSignInOut{
			Email:        user.Email,
			Id:           fmt.Sprint(user.ID),
			Name:         user.Name,
			New:          isNew,
			Avatar:       user.AvatarURL,
			AccessToken:  GenerateUserToken(fmt.Sprint(user.ID), c, 72),
			RefreshToken: refreshToken,
		})
	})

	g.POST("/refresh-token", func(c echo.Context) error {
		type tokenReqBody struct {
			RefreshToken string `json:"refresh_token"`
		}
		tokenReq := new(tokenReqBody)

		if err := c.Bind(&tokenReq); err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}

		if tokenReq.RefreshToken == "" {
			fmt.Println("Refresh token is empty")
			return echo.ErrBadRequest
		}
		token, err := jwt.Parse(tokenReq.RefreshToken, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(os.Getenv("JWT_SECRET")), nil
		})
		if err != nil {
			fmt.Println(err)
			return echo.ErrBadRequest
		}
		if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
			db := c.Get("__db").(*gorm.DB)
			data, okConvert := claims["sub"].(string)
			if !okConvert {
				fmt.Println("Cannot convert sub to string!")
				return echo.ErrInternalServerError
			}
			userId, err := strconv.Atoi(data)
			if err != nil {
				fmt.Println("Error parsing sub of the user!!", err)
				return echo.ErrInternalServerError
			}
			if userId < 1 {
				fmt.Println("Refresh: sub is:", userId)
				return echo.ErrBadRequest
			}
			var user *models.UserAccount
			result := db.First(&user, userId)
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				fmt.Println("Requested user not found!", userId)
				return echo.ErrForbidden
			}
			if result.Error != nil {
				fmt.Println("Error getting user while refreshing token", userId)
				return echo.ErrInternalServerError
			}
			if user.Banned {
				return echo.ErrUnauthorized
			}

			t := GenerateUserToken(fmt.Sprint(userId), c, 72)
			rt, err := GenerateRefreshToken(fmt.Sprint(userId))
			if err != nil {
				fmt.Println("Error refreshing token ", err)
				return echo.ErrInternalServerError
			}

			return c.JSON(http.StatusOK, echo.Map{
				"access_token":  t,
				"refresh_token": rt,
			})
		}

		return err
	})
}

// ProfileRoutes are the authenticated account endpoints.
func (m *AuthController) ProfileRoutes(g *echo.Group) {
	g.GET("/me", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)

		fullbodyImageUrl := user.UserFullBodyImageURL
		if user.UserFullBodyImageURL != nil && *user.UserFullBodyImageURL != "" {
			bucketName := services.GetEnv("R2_BUCKET_NAME", "")
			imageR2URL, err := m.AWSService.GetPresignedR2FileReadURL(context.Background(), bucketName, *user.UserFullBodyImageURL)
			if err != nil {
				log.Printf("CRITICAL: R2 reference image could not fetch for key '%s': %v", *user.UserFullBodyImageURL, err)
				sentry.CaptureException(err)
			} else {
				fullbodyImageUrl = &imageR2URL
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"id":                   user.ID,
			"name":                 user.Name,
			"email":                user.Email,
			"avatar_url":           user.AvatarURL,
			"full_body_avatar_set": user.FullBodyAvatarSet,
			"user_image_url":       fullbodyImageUrl,
		})
	})

	g.POST("/push-token", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest = new(models.UserPushIn)

		if err := c.Bind(tokenRequest); err != nil {
			return err
		}

		if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
			return ErrorJSON(c, http.StatusForbidden, "Please provide proper platform parameter", "bad_platform")
		}
		var pushData models.UserPushToken = models.UserPushToken{
			Platform:      models.ScanPlatform(tokenRequest.Platform),
			Token:         tokenRequest.Token,
			UserAccountID: user.ID,
			Active:        true,
		}

		// same token/device can sign in to diff accs and still receive pushes
		result := db.Where("token = ? and user_account_id = ?", tokenRequest.Token, user.ID).FirstOrCreate(&pushData)
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		if result.RowsAffected >= 1 {
			fmt.Println("Token created for user ", user.ID, "Platform: ", tokenRequest.Platform)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "registered",
			"push_id": pushData.ID,
		})
	})

	g.POST("/delete-push", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		var tokenRequest = new(models.UserPushIn)

		if err := c.Bind(tokenRequest); err != nil {
			return err
		}

		if !models.ValidatePlatformRaw(string(tokenRequest.Platform)) {
			return ErrorJSON(c, http.StatusForbidden, "Please provide proper platform parameter", "bad_platform")
		}

		result := db.Where("token = ? and user_account_id = ? and platform = ?", tokenRequest.Token, user.ID, tokenRequest.Platform).Delete(&models.UserPushToken{})
		if result.Error != nil {
			log.Println(result.Error)
			return echo.ErrInternalServerError
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": "deleted",
			"deleted": result.RowsAffected > 0,
		})
	})

	g.POST("/set-reference-image", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		var req SetReferenceUploadFileRequest
		if err := c.Bind(&req); err != nil {
			fmt.Println(err)
			return ErrorJSON(c, http.StatusBadRequest, "Invalid request body", "bad_request")
		}
		if err := c.Validate(req); err != nil {
			return ErrorJSON(c, http.StatusBadRequest, err.Error(), "bad_request")
		}

		db := c.Get("__db").(*gorm.DB)

		var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
		safeFileName := fmt.Sprintf("references/%v/%s", user.ID, *req.FileName)

		uploadUrl, presignErr := m.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
		if presignErr != nil {
			log.Printf("Unable to presign reference image upload for %s!, %s", user.Name, presignErr)
			return ErrorJSON(c, http.StatusInternalServerError, "Error while uploading your image, please try again", "internal")
		}
		user.UserFullBodyImageURL = &safeFileName
		user.FullBodyAvatarSet = true
		if err := db.Save(&user).Error; err != nil {
			return ErrorJSON(c, http.StatusInternalServerError, "Failed to save your reference image", "internal")
		}
		fmt.Println("Reference image set for user", user.ID, "key", safeFileName)
		return c.JSON(http.StatusOK, echo.Map{
			"message":    "Reference image is updated successfully",
			"upload_url": uploadUrl,
			"file_name":  *req.FileName,
		})
	})

	g.POST("/delete-account", func(c echo.Context) error {
		user := c.Get("currentUser").(models.UserAccount)
		db := c.Get("__db").(*gorm.DB)
		now := time.Now()
		user.ConfirmedDeleteDate = &now
		db.Save(user)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "scheduled for deletion",
		})
	})
}
