package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func TestNew_OpensAfterThreeFailures(t *testing.T) {
	cb := New("test", zerolog.Nop())
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, boom })
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i+1, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open, got %s", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
}

func TestNew_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := New("test", zerolog.Nop())
	boom := errors.New("boom")

	cb.Execute(func() (interface{}, error) { return nil, boom })
	cb.Execute(func() (interface{}, error) { return nil, boom })
	cb.Execute(func() (interface{}, error) { return "ok", nil })
	cb.Execute(func() (interface{}, error) { return nil, boom })

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", cb.State())
	}
}

func TestSettings_Timeouts(t *testing.T) {
	if got := Settings(Redis, zerolog.Nop()).Timeout; got != 5*time.Second {
		t.Errorf("redis timeout = %s, want 5s", got)
	}
	if got := Settings(RabbitMQ, zerolog.Nop()).Timeout; got != 30*time.Second {
		t.Errorf("rabbitmq timeout = %s, want 30s", got)
	}
}
