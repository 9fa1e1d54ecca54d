package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (l *Platform) Scan(value interface{}) error {
	*l = Platform(value.(string))
	return nil
}

func (l Platform) Value() string {
	return string(l)
}

func ScanPlatform(value string) Platform {
	return Platform(value)
}
var platformPattern = regexp.MustCompile("^(ios|android|web)$")

func ValidatePlatform(fl validator.FieldLevel) bool {
	return platformPattern.MatchString(fl.Field().String())
}

func ValidatePlatformRaw(value string) bool {
	return platformPattern.MatchString(value)
}
