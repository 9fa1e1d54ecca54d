package dbhelper

import (
	"log"

	"fitmixapi/models"

	"gorm.io/gorm"
)

func SetupCleaner(db *gorm.DB) func() {

	return func() {

		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitRender{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.OutfitRecommendation{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UsageRecord{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GlobalUsage{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserPushToken{})
		db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.UserAccount{})

	}
}

func Migrate(db *gorm.DB, model interface{}) {
	err := db.AutoMigrate(model)
	if err != nil {
		log.Printf("Error while migrating %s", model)
		log.Fatal(err)
	}
}
