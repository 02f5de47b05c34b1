package feedback

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type Service struct {
	repo   FeedbackRepository
	logger zerolog.Logger
}

func NewService(repo FeedbackRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "feedback").Logger()}
}

// Submit stores a message from userID. The message is expected to be
// sanitized already.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, req SubmitRequest) (*Feedback, error) {
	n := utf8.RuneCountInString(req.Message)
	if n == 0 {
		return nil, apperr.Validation("Please provide a message.")
	}
	if n > MaxMessageLength {
		return nil, apperr.Validation("Message must be at most %d characters.", MaxMessageLength)
	}
	f := &Feedback{UserID: userID, Message: req.Message}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	s.logger.Info().Str("feedback_id", f.ID.String()).Str("user_id", userID.String()).Msg("feedback received")
	return f, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, limit, offset)
}
