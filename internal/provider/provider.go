// Package provider is the outbound boundary: everything that turns a
// campaign into a concrete send request and hands it to a mail service.
package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

// Email is a fully-formed send request
type Email struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html"`
}

// Provider sends a single email. Implementations must honor ctx so a slow
// delivery can be cut off by the caller's timeout.
type Provider interface {
	Send(ctx context.Context, email *Email) error
}

// DefaultSubject is used when a campaign carries no subject of its own
const DefaultSubject = "Random Message"

const localpartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// BuildFrom synthesizes the sender address. When override is set it is used
// verbatim; otherwise the display name is combined with a random mailbox on
// the configured sending domain. The mailbox is never taken from user input.
func BuildFrom(displayName, domain, override string, rng *rand.Rand) string {
	if override != "" {
		return override
	}

	local := make([]byte, 5)
	for i := range local {
		local[i] = localpartAlphabet[rng.Intn(len(localpartAlphabet))]
	}

	return fmt.Sprintf("%s <%s@%s>", displayName, local, domain)
}

// RenderHTML converts the plain campaign body into a minimal HTML body
func RenderHTML(body string) string {
	return "<p>" + strings.ReplaceAll(body, "\n", "<br>") + "</p>"
}
