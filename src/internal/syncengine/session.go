package syncengine

import (
	"time"

	"github.com/google/uuid"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// Session is the explicit authentication context: constructed when a
// verified login succeeds, passed to every engine operation, torn down
// synchronously at logout after the final push. Nothing reads identity
// from ambient globals.
type Session struct {
	UserID     string
	Email      string
	InstanceID string // this device's install, for log attribution
	StartedAt  time.Time
}

func NewSession(p *domain.Principal, now time.Time) *Session {
	return &Session{
		UserID:     p.UserID,
		Email:      p.Email,
		InstanceID: uuid.NewString(),
		StartedAt:  now,
	}
}
