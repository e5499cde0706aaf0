package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-idcard-api/internal/dto"
	"github.com/noah-isme/sma-idcard-api/internal/models"
	"github.com/noah-isme/sma-idcard-api/internal/repository"
	appErrors "github.com/noah-isme/sma-idcard-api/pkg/errors"
	"github.com/noah-isme/sma-idcard-api/pkg/export"
	"github.com/noah-isme/sma-idcard-api/pkg/idcard"
	"github.com/noah-isme/sma-idcard-api/pkg/jobs"
	"github.com/noah-isme/sma-idcard-api/pkg/storage"
)

// CardBatchJobType tags queue jobs produced by CardBatchService.
const CardBatchJobType = "card_batch"

type cardBatchStore interface {
	Create(ctx context.Context, batch *models.CardBatch) error
	GetByID(ctx context.Context, id string) (*models.CardBatch, error)
	Update(ctx context.Context, id string, params repository.UpdateCardBatchParams) error
	ListQueued(ctx context.Context, limit int) ([]models.CardBatch, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CardBatch, error)
	ClearResult(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type batchFileStore interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.DownloadToken, error)
}

// CardBatchConfig governs download links, cleanup and batch limits.
type CardBatchConfig struct {
	DownloadPrefix  string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxBatchSize    int
}

func (c CardBatchConfig) withDefaults() CardBatchConfig {
	if c.DownloadPrefix == "" {
		c.DownloadPrefix = "/api/v1/card-batches/download/"
	}
	if !strings.HasSuffix(c.DownloadPrefix, "/") {
		c.DownloadPrefix += "/"
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = 24 * time.Hour
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 2000
	}
	return c
}

// CardBatchDownload is an opened batch sheet ready to stream.
type CardBatchDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// CardBatchService manages the lifecycle of school-wide card print jobs.
type CardBatchService struct {
	repo    cardBatchStore
	schools schoolLookup
	themes  themeResolver
	queue   jobDispatcher
	files   batchFileStore
	signer  downloadSigner
	logger  *zap.Logger
	cfg     CardBatchConfig
}

// NewCardBatchService constructs the batch service.
func NewCardBatchService(repo cardBatchStore, schools schoolLookup, themes themeResolver, queue jobDispatcher, files batchFileStore, signer downloadSigner, logger *zap.Logger, cfg CardBatchConfig) *CardBatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardBatchService{repo: repo, schools: schools, themes: themes, queue: queue, files: files, signer: signer, logger: logger, cfg: cfg.withDefaults()}
}

// Create persists a queued batch for schoolID and hands it to the worker pool.
// The requesting user's theme is captured now so the sheet matches their preview.
func (s *CardBatchService) Create(ctx context.Context, schoolID, actorID string) (*dto.CardBatchResponse, error) {
	school, err := s.schools.FindByID(ctx, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, internalError(err, "failed to load school")
	}
	if !school.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school is inactive")
	}

	batch := &models.CardBatch{
		SchoolID: schoolID,
		Status:   models.CardBatchQueued,
		Theme:    s.themes.Theme(ctx, actorID).Name,
	}
	if actorID != "" {
		batch.CreatedBy = &actorID
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, internalError(err, "failed to create card batch")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: CardBatchJobType}); err != nil {
		status := models.CardBatchFailed
		msg := "failed to enqueue batch"
		progress := 100
		now := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, batch.ID, repository.UpdateCardBatchParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark batch failed", zap.String("batch_id", batch.ID), zap.Error(updateErr))
		}
		return nil, internalError(err, "failed to enqueue card batch")
	}

	s.logger.Info("card batch queued", zap.String("batch_id", batch.ID), zap.String("school_id", schoolID))
	return dto.NewCardBatchResponse(batch), nil
}

// Get exposes batch progress to clients.
func (s *CardBatchService) Get(ctx context.Context, id string) (*dto.CardBatchResponse, error) {
	batch, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewCardBatchResponse(batch), nil
}

// ResolveDownload validates a signed token and opens the finished sheet.
func (s *CardBatchService) ResolveDownload(ctx context.Context, token string) (*CardBatchDownload, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	batch, err := s.load(ctx, parsed.OwnerID)
	if err != nil {
		return nil, err
	}
	if batch.ResultURL == nil || !strings.HasSuffix(*batch.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if batch.Status != models.CardBatchFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "card batch not ready")
	}

	file, err := s.files.Open(parsed.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "card batch file expired")
		}
		return nil, internalError(err, "failed to open card batch file")
	}
	return &CardBatchDownload{File: file, Filename: path.Base(parsed.Path), ExpiresAt: parsed.ExpiresAt}, nil
}

// RecoverPending replays batches left queued or in flight by a previous process.
func (s *CardBatchService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued card batches", "error", err)
		return
	}
	for _, batch := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: batch.ID, Type: CardBatchJobType}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue card batch", "batch_id", batch.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered card batches", zap.Int("count", len(pending)))
	}
}

// StartCleanup purges expired sheets every CleanupInterval until ctx ends.
func (s *CardBatchService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes sheets older than ResultTTL and forgets their links.
func (s *CardBatchService) CleanupExpired(ctx context.Context) {
	const pageSize = 100
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		batches, err := s.repo.ListFinishedBefore(ctx, cutoff, pageSize)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		for _, batch := range batches {
			if batch.ResultPath != nil {
				if err := s.files.Delete(*batch.ResultPath); err != nil {
					s.logger.Sugar().Warnw("cleanup delete failed", "batch_id", batch.ID, "error", err)
				}
			}
			if err := s.repo.ClearResult(ctx, batch.ID); err != nil {
				s.logger.Sugar().Warnw("cleanup clear failed", "batch_id", batch.ID, "error", err)
				return
			}
		}
		if len(batches) < pageSize {
			break
		}
	}
	if removed, err := s.files.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	} else if len(removed) > 0 {
		s.logger.Info("removed expired card sheets", zap.Int("count", len(removed)))
	}
}

func (s *CardBatchService) load(ctx context.Context, id string) (*models.CardBatch, error) {
	batch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "card batch not found")
		}
		return nil, internalError(err, "failed to load card batch")
	}
	return batch, nil
}

type batchStudentSource interface {
	ListAll(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type batchComposer interface {
	Profile(ctx context.Context, schoolID string) (*SchoolCardProfile, bool, error)
	ComposeStudents(profile *SchoolCardProfile, students []models.Student, theme idcard.Theme) []idcard.Composition
	ImageLoader() export.ImageLoader
}

// errBatchRejected marks failures that retrying cannot fix.
var errBatchRejected = errors.New("card batch rejected")

// CardBatchWorker renders queued batches into a single PDF sheet.
type CardBatchWorker struct {
	repo     cardBatchStore
	students batchStudentSource
	cards    batchComposer
	pdf      cardRenderer
	files    batchFileStore
	signer   downloadSigner
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      CardBatchConfig
}

// NewCardBatchWorker constructs a worker.
func NewCardBatchWorker(repo cardBatchStore, students batchStudentSource, cards batchComposer, pdf cardRenderer, files batchFileStore, signer downloadSigner, metrics *MetricsService, logger *zap.Logger, cfg CardBatchConfig) *CardBatchWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pdf == nil {
		pdf = export.NewCardPDF()
	}
	return &CardBatchWorker{repo: repo, students: students, cards: cards, pdf: pdf, files: files, signer: signer, metrics: metrics, logger: logger, cfg: cfg.withDefaults()}
}

// Handle processes a queue job. Returned errors are retried by the queue;
// rejected batches are failed immediately.
func (w *CardBatchWorker) Handle(ctx context.Context, job jobs.Job) error {
	batch, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("dropping job for unknown batch", zap.String("batch_id", job.ID))
			return nil
		}
		return err
	}
	if batch.Status == models.CardBatchFinished || batch.Status == models.CardBatchFailed {
		return nil
	}

	started := time.Now()
	w.progress(ctx, batch.ID, models.CardBatchProcessing, 10)

	err = w.render(ctx, batch)
	switch {
	case err == nil:
		w.metrics.ObserveBatch(string(models.CardBatchFinished), time.Since(started))
		return nil
	case errors.Is(err, errBatchRejected):
		w.fail(ctx, batch.ID, err)
		return nil
	default:
		msg := err.Error()
		queued := models.CardBatchQueued
		reset := 0
		if updateErr := w.repo.Update(ctx, batch.ID, repository.UpdateCardBatchParams{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to requeue batch", "batch_id", batch.ID, "error", updateErr)
		}
		return err
	}
}

// MarkFailed is the queue failure hook, called once retries are exhausted.
func (w *CardBatchWorker) MarkFailed(ctx context.Context, job jobs.Job, cause error) {
	w.fail(ctx, job.ID, cause)
}

func (w *CardBatchWorker) render(ctx context.Context, batch *models.CardBatch) error {
	profile, _, err := w.cards.Profile(ctx, batch.SchoolID)
	if err != nil {
		if appErrors.FromError(err).Status == appErrors.ErrNotFound.Status {
			return fmt.Errorf("%w: school not found", errBatchRejected)
		}
		return err
	}
	if !profile.Active {
		return fmt.Errorf("%w: school is inactive", errBatchRejected)
	}

	students, err := w.students.ListAll(ctx, models.StudentFilter{
		SchoolID: batch.SchoolID,
		Status:   models.StudentStatusActive,
		SortBy:   "roll_number",
	})
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return fmt.Errorf("%w: school has no active students", errBatchRejected)
	}
	if len(students) > w.cfg.MaxBatchSize {
		return fmt.Errorf("%w: %d students exceed the batch limit of %d", errBatchRejected, len(students), w.cfg.MaxBatchSize)
	}

	cards := w.cards.ComposeStudents(profile, students, idcard.ThemeByName(batch.Theme))
	w.progress(ctx, batch.ID, models.CardBatchProcessing, 40)

	data, err := w.pdf.Render(ctx, cards, w.cards.ImageLoader())
	if err != nil {
		return fmt.Errorf("render card sheet: %w", err)
	}
	w.progress(ctx, batch.ID, models.CardBatchProcessing, 80)

	name := fmt.Sprintf("card-batches/%s/idcards-%s.pdf", batch.ID, time.Now().UTC().Format("20060102-150405"))
	relPath, err := w.files.Save(name, data)
	if err != nil {
		return fmt.Errorf("store card sheet: %w", err)
	}
	token, _, err := w.signer.Generate(batch.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign download: %w", err)
	}

	url := w.cfg.DownloadPrefix + token
	finished := models.CardBatchFinished
	progress := 100
	count := len(cards)
	empty := ""
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, batch.ID, repository.UpdateCardBatchParams{
		Status:       &finished,
		Progress:     &progress,
		CardCount:    &count,
		ResultPath:   &relPath,
		ResultURL:    &url,
		ErrorMessage: &empty,
		FinishedAt:   &now,
	}); err != nil {
		return fmt.Errorf("mark batch finished: %w", err)
	}
	w.metrics.CardsRendered("batch", count)
	w.logger.Info("card batch finished", zap.String("batch_id", batch.ID), zap.Int("cards", count))
	return nil
}

func (w *CardBatchWorker) progress(ctx context.Context, id string, status models.CardBatchStatus, value int) {
	if err := w.repo.Update(ctx, id, repository.UpdateCardBatchParams{Status: &status, Progress: &value}); err != nil {
		w.logger.Sugar().Warnw("failed to record batch progress", "batch_id", id, "error", err)
	}
}

func (w *CardBatchWorker) fail(ctx context.Context, id string, cause error) {
	failed := models.CardBatchFailed
	progress := 100
	msg := cause.Error()
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, id, repository.UpdateCardBatchParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark batch failed", "batch_id", id, "error", err)
	}
	w.metrics.ObserveBatch(string(models.CardBatchFailed), 0)
	w.logger.Warn("card batch failed", zap.String("batch_id", id), zap.Error(cause))
}
