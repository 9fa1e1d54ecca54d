package models

import "time"

type UserAccount struct {
	JsonModel
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Password string `json:"-"`
	Banned   bool   `gorm:"default:false" json:"-"`
	LastIp   string `json:"-"`
	//"STARTED_AUTH", "FINISHED_AUTH"
	Status              string     `json:"-"`
	GoogleID            string     `json:"-"`
	UTMSource           string     `json:"utm_source"`
	Platform            Platform   `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	ConfirmedDeleteDate *time.Time `json:"-"`
	// Notifications settings
	ReceiveNotifications bool `json:"receive_notifications"`
	// full access to admin stats
	IsSuperadmin bool `json:"is_superadmin"`
	// user app image/avatar
	AvatarURL string `json:"avatar_url"`

	FullBodyAvatarSet bool `json:"full_body_avatar_set"`
	// user full body reference image for outfit renders
	UserFullBodyImageURL *string `json:"user_image_url"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint
	UserAccount   UserAccount `json:"user_account"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}
