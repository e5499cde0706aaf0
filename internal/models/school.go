package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

// CardPositions persists a school's per-field placement overrides as JSONB.
type CardPositions idcard.PositionSpec

// Value marshals the overrides; an empty set is stored as NULL.
func (p CardPositions) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal card positions: %w", err)
	}
	return data, nil
}

func (p *CardPositions) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CardPositions", value)
	}
	if len(data) == 0 {
		*p = nil
		return nil
	}
	var spec idcard.PositionSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("unmarshal card positions: %w", err)
	}
	*p = CardPositions(spec)
	return nil
}

// Spec returns the overrides as a renderer PositionSpec.
func (p CardPositions) Spec() idcard.PositionSpec {
	return idcard.PositionSpec(p)
}

// School is an institution whose students receive ID cards.
type School struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Code          string         `db:"code" json:"code"`
	Address       string         `db:"address" json:"address"`
	Phone         string         `db:"phone" json:"phone"`
	Email         string         `db:"email" json:"email"`
	LogoKey       *string        `db:"logo_key" json:"logo_key,omitempty"`
	DesignKey     *string        `db:"design_key" json:"design_key,omitempty"`
	CardVariant   idcard.Variant `db:"card_variant" json:"card_variant"`
	CardPositions CardPositions  `db:"card_positions" json:"card_positions,omitempty"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	LogoURL   string `db:"-" json:"logo_url,omitempty"`
	DesignURL string `db:"-" json:"design_url,omitempty"`
}

// SchoolFilter captures list parameters for schools.
type SchoolFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SchoolAssetKind names the two image slots a school owns.
type SchoolAssetKind string

const (
	SchoolAssetLogo   SchoolAssetKind = "logo"
	SchoolAssetDesign SchoolAssetKind = "design"
)
