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

const cardBatchColumns = `id, school_id, status, progress, card_count, theme, result_path, result_url, error_message, created_by, created_at, finished_at`

// CardBatchRepository persists card batch job metadata.
type CardBatchRepository struct {
	db *sqlx.DB
}

// NewCardBatchRepository constructs the repository.
func NewCardBatchRepository(db *sqlx.DB) *CardBatchRepository {
	return &CardBatchRepository{db: db}
}

// Create inserts a new batch row with generated defaults.
func (r *CardBatchRepository) Create(ctx context.Context, batch *models.CardBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.Status == "" {
		batch.Status = models.CardBatchQueued
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO card_batches (id, school_id, status, progress, card_count, theme, result_path, result_url, error_message, created_by, created_at, finished_at)
VALUES (:id, :school_id, :status, :progress, :card_count, :theme, :result_path, :result_url, :error_message, :created_by, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create card batch: %w", err)
	}
	return nil
}

func (r *CardBatchRepository) GetByID(ctx context.Context, id string) (*models.CardBatch, error) {
	query := "SELECT " + cardBatchColumns + " FROM card_batches WHERE id = $1"
	var batch models.CardBatch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get card batch: %w", err)
	}
	return &batch, nil
}

// UpdateCardBatchParams defines the mutable fields.
type UpdateCardBatchParams struct {
	Status       *models.CardBatchStatus
	Progress     *int
	CardCount    *int
	ResultPath   *string
	ResultURL    *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a batch row.
func (r *CardBatchRepository) Update(ctx context.Context, id string, params UpdateCardBatchParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.Progress != nil {
		add("progress", *params.Progress)
	}
	if params.CardCount != nil {
		add("card_count", *params.CardCount)
	}
	if params.ResultPath != nil {
		add("result_path", *params.ResultPath)
	}
	if params.ResultURL != nil {
		add("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE card_batches SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update card batch: %w", err)
	}
	return nil
}

// ListQueued fetches queued batches for cold start recovery.
func (r *CardBatchRepository) ListQueued(ctx context.Context, limit int) ([]models.CardBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + cardBatchColumns + " FROM card_batches WHERE status IN ('QUEUED', 'PROCESSING') ORDER BY created_at ASC LIMIT $1"
	var batches []models.CardBatch
	if err := r.db.SelectContext(ctx, &batches, query, limit); err != nil {
		return nil, fmt.Errorf("list queued card batches: %w", err)
	}
	return batches, nil
}

// ListFinishedBefore retrieves completed batches prior to cutoff for cleanup.
func (r *CardBatchRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CardBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + cardBatchColumns + " FROM card_batches WHERE status = 'FINISHED' AND result_path IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2"
	var batches []models.CardBatch
	if err := r.db.SelectContext(ctx, &batches, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished card batches: %w", err)
	}
	return batches, nil
}

// ClearResult drops the stored file reference once the file has been purged.
func (r *CardBatchRepository) ClearResult(ctx context.Context, id string) error {
	const query = `UPDATE card_batches SET result_path = NULL, result_url = NULL WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("clear card batch result: %w", err)
	}
	return nil
}
