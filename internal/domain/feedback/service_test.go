package feedback

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxtrack/vaxtrack/internal/platform/apperr"
)

type mockFeedbackRepo struct {
	mu      sync.Mutex
	entries []*Entry
	now     time.Time
}

func newMockFeedbackRepo() *mockFeedbackRepo {
	return &mockFeedbackRepo{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *mockFeedbackRepo) Create(_ context.Context, f *Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = uuid.New()
	m.now = m.now.Add(time.Minute)
	f.CreatedAt = m.now
	m.entries = append(m.entries, &Entry{Feedback: *f})
	return nil
}

func (m *mockFeedbackRepo) List(_ context.Context, limit, offset int) ([]*Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]*Entry(nil), m.entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	total := len(sorted)
	if offset >= total {
		return []*Entry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}

func newTestService() (*Service, *mockFeedbackRepo) {
	repo := newMockFeedbackRepo()
	return NewService(repo, zerolog.Nop()), repo
}

func TestSubmit_Validation(t *testing.T) {
	svc, repo := newTestService()
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{"empty", "", true},
		{"one char", "k", false},
		{"at limit", strings.Repeat("a", MaxMessageLength), false},
		{"over limit", strings.Repeat("a", MaxMessageLength+1), true},
		{"multibyte at limit", strings.Repeat("é", MaxMessageLength), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), uuid.New(), SubmitRequest{Message: tt.message})
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
	if len(repo.entries) != 3 {
		t.Errorf("expected 3 stored entries, got %d", len(repo.entries))
	}
}

func TestList_NewestFirst(t *testing.T) {
	svc, _ := newTestService()
	user := uuid.New()
	for _, m := range []string{"first", "second", "third"} {
		if _, err := svc.Submit(context.Background(), user, SubmitRequest{Message: m}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	entries, total, err := svc.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(entries) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(entries), total)
	}
	if entries[0].Message != "third" || entries[1].Message != "second" {
		t.Errorf("expected newest first, got %q, %q", entries[0].Message, entries[1].Message)
	}
	if entries[0].UserID != user {
		t.Errorf("expected author to be recorded")
	}
}
