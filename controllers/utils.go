package controllers

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"fitmixapi/models"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

func BoolPointer(b bool) *bool {
	return &b
}

func StrPointer(b string) *string {
	return &b
}

func UIntToStr(value uint) string {
	return strconv.FormatUint(uint64(value), 10)
}

func Float64Pointer(u float64) *float64 {
	return &u
}

func IfThenElse(condition bool, a interface{}, b interface{}) interface{} {
	if condition {
		return a
	}
	return b
}

// ErrorJSON is the uniform error body of the API.
func ErrorJSON(c echo.Context, status int, message string, code string) error {
	return c.JSON(status, models.ErrorOut{Success: false, Error: message, ErrorCode: code})
}

func QuotaExceededJSON(c echo.Context, reason string, userMessage string, globalMessage string) error {
	if reason == "global_exhausted" {
		return ErrorJSON(c, http.StatusTooManyRequests, globalMessage, reason)
	}
	return ErrorJSON(c, http.StatusTooManyRequests, userMessage, reason)
}

func GenerateUserToken(userPk string, c echo.Context, hours uint64) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * time.Duration(hours))),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		c.Logger().Errorf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func GenerateRefreshToken(userPk string) (string, error) {
	refreshToken := jwt.New(jwt.SigningMethodHS256)
	rtClaims := refreshToken.Claims.(jwt.MapClaims)
	rtClaims["sub"] = userPk
	rtClaims["exp"] = time.Now().Add(time.Hour * 24 * 30 * 12).Unix()
	rt, err := refreshToken.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		return "", err
	}
	return rt, nil
}
