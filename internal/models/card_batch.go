package models

import "time"

// CardBatchStatus captures the lifecycle of a school-wide print job.
type CardBatchStatus string

const (
	CardBatchQueued     CardBatchStatus = "QUEUED"
	CardBatchProcessing CardBatchStatus = "PROCESSING"
	CardBatchFinished   CardBatchStatus = "FINISHED"
	CardBatchFailed     CardBatchStatus = "FAILED"
)

// CardBatch is a persisted request to print every active student's card.
type CardBatch struct {
	ID           string          `db:"id" json:"id"`
	SchoolID     string          `db:"school_id" json:"school_id"`
	Status       CardBatchStatus `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	CardCount    int             `db:"card_count" json:"card_count"`
	Theme        string          `db:"theme" json:"theme"`
	ResultPath   *string         `db:"result_path" json:"-"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    *string         `db:"created_by" json:"created_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}
