package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"
)

// ErrInfected is returned when the scanner flags an upload.
var ErrInfected = errors.New("malicious file detected")

// Scanner checks uploaded bytes before they are stored.
type Scanner interface {
	Scan(ctx context.Context, r io.Reader) error
}

// ClamdScanner streams uploads to a clamd daemon over INSTREAM.
type ClamdScanner struct {
	client *clamd.Clamd
}

func NewClamdScanner(addr string) *ClamdScanner {
	return &ClamdScanner{client: clamd.NewClamd(addr)}
}

func (s *ClamdScanner) Scan(ctx context.Context, r io.Reader) error {
	abort := make(chan bool)
	defer close(abort)

	results, err := s.client.ScanStream(r, abort)
	if err != nil {
		return fmt.Errorf("scan stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrInfected, result.Description)
			default:
				return fmt.Errorf("scan failed: %s", result.Description)
			}
		}
	}
}

// NopScanner accepts everything; used when no clamd address is configured.
type NopScanner struct{}

func (NopScanner) Scan(context.Context, io.Reader) error { return nil }
