package dto

import "github.com/noah-isme/sma-idcard-api/internal/models"

// CardBatchResponse is returned when a batch is queued or polled.
type CardBatchResponse struct {
	ID        string                 `json:"id"`
	SchoolID  string                 `json:"school_id"`
	Status    models.CardBatchStatus `json:"status"`
	Progress  int                    `json:"progress"`
	CardCount int                    `json:"card_count"`
	ResultURL *string                `json:"result_url,omitempty"`
	Error     *string                `json:"error,omitempty"`
}

// NewCardBatchResponse projects a batch row for clients.
func NewCardBatchResponse(b *models.CardBatch) *CardBatchResponse {
	resp := &CardBatchResponse{
		ID:        b.ID,
		SchoolID:  b.SchoolID,
		Status:    b.Status,
		Progress:  b.Progress,
		CardCount: b.CardCount,
		ResultURL: b.ResultURL,
	}
	if b.ErrorMessage != nil && *b.ErrorMessage != "" {
		resp.Error = b.ErrorMessage
	}
	return resp
}
