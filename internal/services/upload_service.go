package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"attendx/internal/dataprocessing"
	apierrors "attendx/internal/errors"
	"attendx/internal/infrastructure"
	"attendx/internal/sessions"
	"attendx/internal/validation"
	api "attendx/pkg/contracts/api/v1"
	"attendx/pkg/contracts/domain"
)

// UploadService validates, parses and stores uploaded workbooks
type UploadService struct {
	store     sessions.Store
	validator *validation.FileValidator
	ttl       time.Duration
	metrics   *infrastructure.BusinessMetrics
	tracer    trace.Tracer
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewUploadService creates an upload service. metrics may be nil.
func NewUploadService(store sessions.Store, validator *validation.FileValidator, ttl time.Duration, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		store:     store,
		validator: validator,
		ttl:       ttl,
		metrics:   metrics,
		tracer:    otel.Tracer(infrastructure.MeterName),
		logger:    logger.With(slog.String("component", "upload_service")),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Upload checks the file, parses it and stores the table as a new session.
// size is the declared length of the file, or -1 when unknown.
func (s *UploadService) Upload(ctx context.Context, filename string, size int64, r io.Reader) (*api.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store",
		trace.WithAttributes(attribute.String("upload.filename", filename)))
	defer span.End()

	resp, err := s.upload(ctx, filename, size, r)

	format := "unknown"
	if resp != nil {
		format = resp.Format
	} else if f, ferr := dataprocessing.DetectFormat(filename); ferr == nil {
		format = string(f)
	}
	s.metrics.RecordUpload(ctx, format, size, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		s.logger.WarnContext(ctx, "Upload rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("upload.id", resp.ID),
		attribute.Int("upload.rows", resp.Rows),
	)
	s.logger.InfoContext(ctx, "Upload stored",
		slog.String("upload_id", resp.ID),
		slog.String("filename", filename),
		slog.String("format", resp.Format),
		slog.Int("rows", resp.Rows),
		slog.Int("dropped_rows", resp.DroppedRows),
		slog.Time("expires_at", resp.ExpiresAt))
	return resp, nil
}

func (s *UploadService) upload(ctx context.Context, filename string, size int64, r io.Reader) (*api.UploadResponse, error) {
	br := bufio.NewReaderSize(r, validation.SniffLen)
	head, err := br.Peek(validation.SniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if size < 0 {
		size = int64(len(head))
	}

	format, err := s.validator.ValidateUpload(filename, size, head)
	if err != nil {
		return nil, err
	}

	table, err := dataprocessing.Parse(br, format)
	if err != nil {
		if errors.Is(err, dataprocessing.ErrEmptyTable) {
			return nil, err
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, apierrors.NewParsingError("upload could not be parsed", err).
			WithContext("format", string(format))
	}

	// count rows whose quarter or year will never parse
	_, report := dataprocessing.Coerce(table, domain.ColumnQuarter, domain.ColumnYearOfCourse)
	s.metrics.RecordRowsDropped(ctx, "upload", report.Dropped)

	now := s.now().UTC()
	info := domain.UploadInfo{
		ID:         s.newID(),
		Filename:   filename,
		Rows:       table.Len(),
		Columns:    table.Columns(),
		UploadedAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, &sessions.Session{Info: info, Records: table.Records()}); err != nil {
		return nil, apierrors.NewStorageError("failed to store upload", err)
	}

	return &api.UploadResponse{
		UploadInfo:  info,
		Format:      string(format),
		DroppedRows: report.Dropped,
	}, nil
}

// Session returns a stored upload
func (s *UploadService) Session(ctx context.Context, id string) (*sessions.Session, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return nil, err
		}
		return nil, apierrors.NewStorageError("failed to load upload", err)
	}
	return session, nil
}

// Info returns the metadata of a stored upload
func (s *UploadService) Info(ctx context.Context, id string) (*domain.UploadInfo, error) {
	session, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	return &session.Info, nil
}

// Delete removes an upload before its TTL runs out
func (s *UploadService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			return err
		}
		return apierrors.NewStorageError("failed to delete upload", err)
	}
	s.logger.InfoContext(ctx, "Upload deleted", slog.String("upload_id", id))
	return nil
}
