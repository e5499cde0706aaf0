package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
)

// objectPresigner turns stored object keys into short-lived GET URLs.
type objectPresigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// presignKey resolves key to a URL. Failures are logged and yield "" so the
// card falls back to a placeholder.
func presignKey(ctx context.Context, store objectPresigner, key *string, ttl time.Duration, logger *zap.Logger) string {
	if store == nil || key == nil || *key == "" {
		return ""
	}
	url, err := store.PresignGet(ctx, *key, ttl)
	if err != nil {
		logger.Warn("failed to presign object", zap.String("key", *key), zap.Error(err))
		return ""
	}
	return url
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
