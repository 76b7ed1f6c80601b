package provider

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockSender simulates a mail provider for development and tests
type MockSender struct {
	mu          sync.Mutex
	successRate float64 // 0.0 to 1.0 (e.g., 0.95 = 95% success)
	rand        *rand.Rand
}

// NewMockSender creates a mock provider.
// successRate: probability of successful send (0.0 to 1.0)
func NewMockSender(successRate float64) *MockSender {
	if successRate < 0.0 {
		successRate = 0.0
	}
	if successRate > 1.0 {
		successRate = 1.0
	}

	return &MockSender{
		successRate: successRate,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send simulates delivery with network latency and occasional failures
func (s *MockSender) Send(ctx context.Context, email *Email) error {
	s.mu.Lock()
	latency := time.Duration(50+s.rand.Intn(150)) * time.Millisecond
	roll := s.rand.Float64()
	failure := s.rand.Intn(len(mockFailures))
	rate := s.successRate
	s.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return ctx.Err()
	}

	if roll >= rate {
		return fmt.Errorf("failed to send to %s: %s", email.To, mockFailures[failure])
	}

	return nil
}

// SetSuccessRate updates the success rate (for testing)
func (s *MockSender) SetSuccessRate(rate float64) {
	if rate < 0.0 {
		rate = 0.0
	}
	if rate > 1.0 {
		rate = 1.0
	}
	s.mu.Lock()
	s.successRate = rate
	s.mu.Unlock()
}

var mockFailures = []string{
	"network timeout",
	"invalid recipient address",
	"rate limit exceeded",
	"service temporarily unavailable",
	"sending quota exhausted",
}
