package dto

// UpdateSettingsRequest changes dashboard preferences. Omitted fields keep their value.
type UpdateSettingsRequest struct {
	Theme              *string `json:"theme" validate:"omitempty,oneof=light dark"`
	DefaultCardVariant *string `json:"default_card_variant" validate:"omitempty,oneof=vertical horizontal"`
}
