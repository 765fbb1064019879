package logs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tinylog/tinylog/internal/apperror"
	"github.com/tinylog/tinylog/internal/ident"
)

// Column widths from the schema; inputs longer than these are rejected
// rather than truncated.
const (
	maxNameLen        = 30
	maxTitleLen       = 30
	maxDescriptionLen = 255
)

// LogService defines the business logic contract for logs and entries.
type LogService interface {
	CreateLog(ctx context.Context, input CreateLogInput, ownerID string) (*Log, error)
	GetLog(ctx context.Context, id string) (*Log, []Entry, error)
	ListLogs(ctx context.Context) ([]Log, error)
	DeleteLog(ctx context.Context, id, requesterID string) error
	AddEntry(ctx context.Context, logID string, input CreateEntryInput, authorID string) (*Entry, error)
	GetEntry(ctx context.Context, logID, entryID string) (*Entry, error)
}

// logService implements LogService.
type logService struct {
	repo LogRepository
}

// NewLogService creates a new log service with the given repository.
func NewLogService(repo LogRepository) LogService {
	return &logService{repo: repo}
}

// CreateLog validates the input and creates a log owned by the given user.
func (s *logService) CreateLog(ctx context.Context, input CreateLogInput, ownerID string) (*Log, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.NewBadRequest("log name is required")
	}
	// Rune counts, not bytes: the column limits are in characters.
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, apperror.NewBadRequest(fmt.Sprintf("log name must be at most %d characters", maxNameLen))
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionLen {
		return nil, apperror.NewBadRequest(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}

	log := &Log{
		ID:          ident.New(),
		Name:        name,
		Description: input.Description,
		OwnerID:     ownerID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.CreateLog(ctx, log); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating log: %w", err))
	}

	slog.Info("log created",
		slog.String("log_id", log.ID),
		slog.String("owner_id", ownerID),
	)

	return log, nil
}

// GetLog returns a log and its entries.
func (s *logService) GetLog(ctx context.Context, id string) (*Log, []Entry, error) {
	log, err := s.repo.FindLogByID(ctx, id)
	if err != nil {
		return nil, nil, asAppError(err, "finding log")
	}

	entries, err := s.repo.ListEntriesByLog(ctx, id)
	if err != nil {
		return nil, nil, apperror.NewInternal(fmt.Errorf("listing entries: %w", err))
	}

	return log, entries, nil
}

// ListLogs returns all logs.
func (s *logService) ListLogs(ctx context.Context) ([]Log, error) {
	result, err := s.repo.ListLogs(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing logs: %w", err))
	}
	return result, nil
}

// DeleteLog removes a log. Only the owner may delete; anyone else gets 403
// regardless of authentication.
func (s *logService) DeleteLog(ctx context.Context, id, requesterID string) error {
	log, err := s.repo.FindLogByID(ctx, id)
	if err != nil {
		return asAppError(err, "finding log")
	}

	if log.OwnerID != requesterID {
		return apperror.NewForbidden("only the owner can delete a log")
	}

	if err := s.repo.DeleteLog(ctx, id); err != nil {
		return asAppError(err, "deleting log")
	}

	slog.Info("log deleted",
		slog.String("log_id", id),
		slog.String("owner_id", requesterID),
	)

	return nil
}

// AddEntry validates the input and appends an entry to the log, authored by
// the given user. Returns 404 if the log doesn't exist.
func (s *logService) AddEntry(ctx context.Context, logID string, input CreateEntryInput, authorID string) (*Entry, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperror.NewBadRequest("entry title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, apperror.NewBadRequest(fmt.Sprintf("entry title must be at most %d characters", maxTitleLen))
	}
	if utf8.RuneCountInString(input.Description) > maxDescriptionLen {
		return nil, apperror.NewBadRequest(fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}

	if _, err := s.repo.FindLogByID(ctx, logID); err != nil {
		return nil, asAppError(err, "finding log")
	}

	entry := &Entry{
		ID:          ident.New(),
		LogID:       logID,
		AuthorID:    authorID,
		Title:       title,
		Description: input.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("creating entry: %w", err))
	}

	// Re-read through the repository so the author username is joined in
	// for link rendering.
	created, err := s.repo.FindEntry(ctx, logID, entry.ID)
	if err != nil {
		return nil, asAppError(err, "reading created entry")
	}

	slog.Info("entry added",
		slog.String("entry_id", entry.ID),
		slog.String("log_id", logID),
		slog.String("author_id", authorID),
	)

	return created, nil
}

// GetEntry returns a single entry scoped to its log.
func (s *logService) GetEntry(ctx context.Context, logID, entryID string) (*Entry, error) {
	entry, err := s.repo.FindEntry(ctx, logID, entryID)
	if err != nil {
		return nil, asAppError(err, "finding entry")
	}
	return entry, nil
}

// asAppError passes AppErrors (404s from the repository) through unchanged
// and wraps anything else as internal.
func asAppError(err error, op string) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", op, err))
}
