package logs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tinylog/tinylog/internal/apperror"
)

// LogRepository defines the data access contract for logs and entries.
// All SQL lives in the concrete implementation -- no SQL leaks out.
type LogRepository interface {
	CreateLog(ctx context.Context, log *Log) error
	FindLogByID(ctx context.Context, id string) (*Log, error)
	ListLogs(ctx context.Context) ([]Log, error)
	DeleteLog(ctx context.Context, id string) error

	CreateEntry(ctx context.Context, entry *Entry) error
	FindEntry(ctx context.Context, logID, entryID string) (*Entry, error)
	ListEntriesByLog(ctx context.Context, logID string) ([]Entry, error)
}

// logRepository implements LogRepository with hand-written MariaDB queries.
type logRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new log repository backed by the given DB pool.
func NewLogRepository(db *sql.DB) LogRepository {
	return &logRepository{db: db}
}

// CreateLog inserts a new log row.
func (r *logRepository) CreateLog(ctx context.Context, log *Log) error {
	query := `INSERT INTO logs (id, name, description, owner_id, created_at)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.Name,
		log.Description,
		log.OwnerID,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting log: %w", err)
	}

	return nil
}

// FindLogByID retrieves a log by its ID.
// Returns apperror.NotFound if no log exists with this ID.
func (r *logRepository) FindLogByID(ctx context.Context, id string) (*Log, error) {
	query := `SELECT id, name, description, owner_id, created_at
	          FROM logs WHERE id = ?`

	log := &Log{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&log.ID,
		&log.Name,
		&log.Description,
		&log.OwnerID,
		&log.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("log not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying log by id: %w", err)
	}

	return log, nil
}

// ListLogs returns all logs ordered by creation date.
func (r *logRepository) ListLogs(ctx context.Context) ([]Log, error) {
	query := `SELECT id, name, description, owner_id, created_at
	          FROM logs ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	var result []Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.OwnerID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		result = append(result, l)
	}

	return result, rows.Err()
}

// DeleteLog removes a log. Entries cascade at the schema level.
// Returns apperror.NotFound if no log existed with this ID.
func (r *logRepository) DeleteLog(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting log: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return apperror.NewNotFound("log not found")
	}

	return nil
}

// CreateEntry inserts a new entry row.
func (r *logRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	query := `INSERT INTO entries (id, log_id, author_id, title, description, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.LogID,
		entry.AuthorID,
		entry.Title,
		entry.Description,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	return nil
}

// FindEntry retrieves a single entry scoped to its log, with the author's
// username joined in for link rendering.
func (r *logRepository) FindEntry(ctx context.Context, logID, entryID string) (*Entry, error) {
	query := `SELECT e.id, e.log_id, e.author_id, u.username, e.title, e.description, e.created_at
	          FROM entries e JOIN users u ON u.id = e.author_id
	          WHERE e.id = ? AND e.log_id = ?`

	entry := &Entry{}
	err := r.db.QueryRowContext(ctx, query, entryID, logID).Scan(
		&entry.ID,
		&entry.LogID,
		&entry.AuthorID,
		&entry.AuthorUsername,
		&entry.Title,
		&entry.Description,
		&entry.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}

	return entry, nil
}

// ListEntriesByLog returns all entries of a log in append order, with
// author usernames joined in.
func (r *logRepository) ListEntriesByLog(ctx context.Context, logID string) ([]Entry, error) {
	query := `SELECT e.id, e.log_id, e.author_id, u.username, e.title, e.description, e.created_at
	          FROM entries e JOIN users u ON u.id = e.author_id
	          WHERE e.log_id = ? ORDER BY e.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, logID)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.LogID, &e.AuthorID, &e.AuthorUsername,
			&e.Title, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		result = append(result, e)
	}

	return result, rows.Err()
}
