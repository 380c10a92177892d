// Package pipeline orchestrates per-record execution: isolated sessions,
// severity classification, gated forwarding, cost accounting and the
// incremental response stream.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// StreamUserID tags sessions created for streamed ingest requests.
const StreamUserID = "stream_user"

// Session is the isolated execution context for one record. Sessions are
// never reused; each record gets a fresh one so no conversation state leaks
// between records.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// NewSession creates a session for the given user.
func NewSession(userID string) Session {
	return Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}
