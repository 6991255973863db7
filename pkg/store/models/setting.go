package models

import "time"

// UserSetting is the per-user (or global, when UserID is nil) preference
// record. There is at most one row per user id.
type UserSetting struct {
	ID     string  `gorm:"primaryKey;size:36" json:"id"`
	UserID *string `gorm:"uniqueIndex;size:64" json:"user_id,omitempty"`

	DefaultModelKey    string `gorm:"size:64;default:small" json:"default_model_key"`
	AutoGenerateOnView bool   `gorm:"default:false" json:"auto_generate_on_view"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for UserSetting.
func (UserSetting) TableName() string {
	return "user_settings"
}
