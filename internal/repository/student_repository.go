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
)

const studentColumns = `id, school_id, full_name, roll_number, father_name, photo_key, birth_date, gender, blood_group, class_name, section, guardian_name, guardian_phone, status, verified, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func studentConditions(filter models.StudentFilter) (string, []interface{}) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.ClassName != "" {
		conditions = append(conditions, fmt.Sprintf("class_name = $%d", len(args)+1))
		args = append(args, filter.ClassName)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(roll_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	return strings.Join(conditions, " AND "), args
}

func studentOrder(filter models.StudentFilter) string {
	allowedSorts := map[string]string{
		"full_name":   "full_name",
		"roll_number": "roll_number",
		"class_name":  "class_name",
		"created_at":  "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "roll_number"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return column + " " + order
}

// List returns a page of students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where, args := studentConditions(filter)
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s LIMIT %d OFFSET %d", studentColumns, where, studentOrder(filter), size, (page-1)*size)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student matching the filter without paging. Used by
// exports and card batches.
func (r *StudentRepository) ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	where, args := studentConditions(filter)
	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s", studentColumns, where, studentOrder(filter))
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByRoll checks roll number uniqueness inside a school, optionally excluding a student.
func (r *StudentRepository) ExistsByRoll(ctx context.Context, schoolID, roll, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE school_id = $1 AND roll_number = $2"
	args := []interface{}{schoolID, roll}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check roll number: %w", err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, school_id, full_name, roll_number, father_name, photo_key, birth_date, gender, blood_group, class_name, section, guardian_name, guardian_phone, status, verified, created_at, updated_at)
VALUES (:id, :school_id, :full_name, :roll_number, :father_name, :photo_key, :birth_date, :gender, :blood_group, :class_name, :section, :guardian_name, :guardian_phone, :status, :verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. Photo and verification have dedicated setters.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, roll_number = :roll_number, father_name = :father_name, birth_date = :birth_date, gender = :gender, blood_group = :blood_group, class_name = :class_name, section = :section, guardian_name = :guardian_name, guardian_phone = :guardian_phone, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.StudentStatusInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

func (r *StudentRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	const query = `UPDATE students SET verified = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, verified, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student verified: %w", err)
	}
	return nil
}

func (r *StudentRepository) SetPhotoKey(ctx context.Context, id, key string) error {
	const query = `UPDATE students SET photo_key = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, key, time.Now().UTC()); err != nil {
		return fmt.Errorf("set student photo: %w", err)
	}
	return nil
}
