package provider

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestBuildFrom_Override(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	from := BuildFrom("Campaign Sender", "example.org", "noreply@corp.example", rng)
	if from != "noreply@corp.example" {
		t.Errorf("expected override to be used verbatim, got %q", from)
	}
}

func TestBuildFrom_SynthesizedMailbox(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pattern := regexp.MustCompile(`^Campaign Sender <[a-z0-9]{5}@example\.org>$`)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		from := BuildFrom("Campaign Sender", "example.org", "", rng)
		if !pattern.MatchString(from) {
			t.Fatalf("unexpected sender format: %q", from)
		}
		seen[from] = true
	}
	if len(seen) < 2 {
		t.Error("expected mailbox localpart to vary between draws")
	}
}

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "single line", body: "hello", want: "<p>hello</p>"},
		{name: "multiline", body: "hello\nworld", want: "<p>hello<br>world</p>"},
		{name: "empty", body: "", want: "<p></p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderHTML(tt.body); got != tt.want {
				t.Errorf("RenderHTML(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestMockSender_AlwaysSucceeds(t *testing.T) {
	sender := NewMockSender(1.0)
	email := &Email{From: "a@example.org", To: "b@example.org", Subject: "hi", HTMLBody: "<p>hi</p>"}

	for i := 0; i < 5; i++ {
		if err := sender.Send(context.Background(), email); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
}

func TestMockSender_AlwaysFails(t *testing.T) {
	sender := NewMockSender(0.0)
	email := &Email{To: "b@example.org"}

	err := sender.Send(context.Background(), email)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "b@example.org") {
		t.Errorf("expected recipient in error, got %v", err)
	}
}

func TestMockSender_HonorsContext(t *testing.T) {
	sender := NewMockSender(1.0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	err := sender.Send(ctx, &Email{To: "b@example.org"})
	if err != context.DeadlineExceeded {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestMockSender_SetSuccessRateClamps(t *testing.T) {
	sender := NewMockSender(0.5)
	sender.SetSuccessRate(2.0)
	if sender.successRate != 1.0 {
		t.Errorf("expected rate clamped to 1.0, got %v", sender.successRate)
	}
	sender.SetSuccessRate(-1.0)
	if sender.successRate != 0.0 {
		t.Errorf("expected rate clamped to 0.0, got %v", sender.successRate)
	}
}
