package models

import (
	"time"

	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// UserSettings holds per-user dashboard preferences.
type UserSettings struct {
	UserID             string         `db:"user_id" json:"user_id"`
	Theme              string         `db:"theme" json:"theme"`
	DefaultCardVariant idcard.Variant `db:"default_card_variant" json:"default_card_variant"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// DefaultUserSettings is returned for users that never saved preferences.
func DefaultUserSettings(userID string) UserSettings {
	return UserSettings{UserID: userID, Theme: ThemeLight, DefaultCardVariant: idcard.Vertical}
}
