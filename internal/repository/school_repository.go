package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
)

const schoolColumns = `id, name, code, address, phone, email, logo_key, design_key, card_variant, card_positions, active, created_at, updated_at`

// SchoolRepository manages persistence for schools and their card layout.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the provided filters.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM schools WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", schoolColumns, where, column, order, size, (page-1)*size)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM schools WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}
	return schools, total, nil
}

func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := "SELECT " + schoolColumns + " FROM schools WHERE id = $1"
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return &school, nil
}

// ExistsByCode checks code uniqueness, optionally excluding one school.
func (r *SchoolRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := "SELECT 1 FROM schools WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check school code: %w", err)
	}
	return true, nil
}

func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	if !school.CardVariant.Valid() {
		school.CardVariant = idcard.Vertical
	}
	now := time.Now().UTC()
	if school.CreatedAt.IsZero() {
		school.CreatedAt = now
	}
	school.UpdatedAt = now
	const query = `INSERT INTO schools (id, name, code, address, phone, email, logo_key, design_key, card_variant, card_positions, active, created_at, updated_at)
VALUES (:id, :name, :code, :address, :phone, :email, :logo_key, :design_key, :card_variant, :card_positions, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update modifies the descriptive fields of a school. Assets and layout have
// dedicated setters.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, code = :code, address = :address, phone = :phone, email = :email, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

func (r *SchoolRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE schools SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate school: %w", err)
	}
	return nil
}

// UpdateCardLayout stores the variant and placement overrides used for every card of the school.
func (r *SchoolRepository) UpdateCardLayout(ctx context.Context, id string, variant idcard.Variant, positions models.CardPositions) error {
	const query = `UPDATE schools SET card_variant = $2, card_positions = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, variant, positions, time.Now().UTC()); err != nil {
		return fmt.Errorf("update card layout: %w", err)
	}
	return nil
}

// SetAssetKey points the logo or design slot at a new object key.
func (r *SchoolRepository) SetAssetKey(ctx context.Context, id string, kind models.SchoolAssetKind, key string) error {
	var column string
	switch kind {
	case models.SchoolAssetLogo:
		column = "logo_key"
	case models.SchoolAssetDesign:
		column = "design_key"
	default:
		return fmt.Errorf("unknown school asset kind %q", kind)
	}
	query := fmt.Sprintf("UPDATE schools SET %s = $2, updated_at = $3 WHERE id = $1", column)
	if _, err := r.db.ExecContext(ctx, query, id, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("set school %s: %w", kind, err)
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
