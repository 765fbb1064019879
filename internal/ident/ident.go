// Package ident generates the short opaque identifiers used for users,
// logs, and entries. IDs are never sequential and carry no meaning; the
// externally visible key for a user is the username, not the ID.
package ident

import "github.com/google/uuid"

// idLength is the number of hex characters kept from a v4 UUID. Eight
// characters (32 bits) is plenty for a single-instance personal service
// while keeping URLs short.
const idLength = 8

// New returns a fresh short random identifier.
func New() string {
	return uuid.NewString()[:idLength]
}
