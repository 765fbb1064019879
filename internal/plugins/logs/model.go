// Package logs implements the personal-log resources: named logs owned by
// a user, and the timestamped entries appended to them. Reads are public;
// creating a log or appending an entry requires a session, and deleting a
// log is owner-only.
package logs

import (
	"time"
)

// Log represents a named log owned by a user.
type Log struct {
	ID          string    `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// Entry represents a single timestamped entry in a log. AuthorUsername is
// populated by the repository (joined from users) so the author link can be
// rendered without a second lookup.
type Entry struct {
	ID             string    `json:"-"`
	LogID          string    `json:"-"`
	AuthorID       string    `json:"-"`
	AuthorUsername string    `json:"-"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"-"`
}

// --- Request DTOs ---

// CreateLogRequest holds the payload for creating a log.
type CreateLogRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateEntryRequest holds the payload for appending an entry.
type CreateEntryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// --- Service input DTOs ---

// CreateLogInput is the validated input for creating a log.
type CreateLogInput struct {
	Name        string
	Description string
}

// CreateEntryInput is the validated input for appending an entry.
type CreateEntryInput struct {
	Title       string
	Description string
}

// --- Resource representations ---

// LogResource is the external representation of a log, including its
// entries. All cross-resource addressing goes through _link URLs.
type LogResource struct {
	Link        string          `json:"_link"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Entries     []EntryResource `json:"entries"`
}

// EntryResource is the external representation of an entry.
type EntryResource struct {
	Link        string `json:"_link"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Log         string `json:"log"`
	Author      string `json:"author"`
}

// Resource renders the log and its entries against the given request root.
func (l *Log) Resource(root string, entries []Entry) LogResource {
	rendered := make([]EntryResource, 0, len(entries))
	for i := range entries {
		rendered = append(rendered, entries[i].Resource(root))
	}
	return LogResource{
		Link:        root + "/logs/" + l.ID,
		Name:        l.Name,
		Description: l.Description,
		Entries:     rendered,
	}
}

// Resource renders the entry against the given request root.
func (e *Entry) Resource(root string) EntryResource {
	return EntryResource{
		Link:        root + "/logs/" + e.LogID + "/entries/" + e.ID,
		Title:       e.Title,
		Description: e.Description,
		Log:         root + "/logs/" + e.LogID,
		Author:      root + "/users/" + e.AuthorUsername,
	}
}
