package feedback

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessageLength is measured in characters, not bytes.
const MaxMessageLength = 2000

type Feedback struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is feedback joined with its author for the admin listing.
type Entry struct {
	Feedback
	UserName  *string `json:"userName,omitempty"`
	UserEmail *string `json:"userEmail,omitempty"`
	UserRole  *string `json:"userRole,omitempty"`
}

type SubmitRequest struct {
	Message string `json:"message"`
}
