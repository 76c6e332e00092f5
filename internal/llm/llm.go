// Package llm wraps the external text and image generation services.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

// SystemPrompt sets the adviser persona for every text request.
const SystemPrompt = "Du är en futuristisk företagsrådgivare som pratar svenska. Du är hjälpsam, kreativ och ger specifika, relevanta och personliga råd baserat på användarens situation. Använd aktuella affärstrender och exempel på framgångsrika företag när det är relevant."

// UnavailableText is shown when text generation is disabled.
const UnavailableText = "Textgenerering är inte tillgänglig eftersom ingen API-nyckel är konfigurerad."

// Default request parameters.
const (
	DefaultTemperature float32 = 0.7
	DefaultMaxTokens           = 1000
	DefaultTextTimeout         = 60 * time.Second
	DefaultImageTimeout        = 30 * time.Second
)

var (
	ErrMissingCredential = errors.New("missing API credential")
	ErrEmptyResponse     = errors.New("empty response from model")
)

// Request is one text generation call. History is sent before Prompt.
type Request struct {
	Prompt      string
	History     []domain.Message
	Temperature float32
	MaxTokens   int
}

func (r Request) withDefaults() Request {
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

// TextGenerator produces text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
	// Name identifies the backend in logs and health reports.
	Name() string
}

// ImageGenerator produces an image for a prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	Name() string
}

// FailureText converts a generation error into the text shown in place of a result.
func FailureText(err error) string {
	if errors.Is(err, ErrMissingCredential) {
		return UnavailableText
	}
	return "Kunde inte generera svar p.g.a. fel: " + err.Error()
}

// Unavailable is used when a backend has no credential. Every call fails with
// ErrMissingCredential without network I/O.
type Unavailable struct {
	Backend string
}

// Generate implements TextGenerator.
func (u Unavailable) Generate(context.Context, Request) (string, error) {
	return "", ErrMissingCredential
}

// GenerateImage implements ImageGenerator.
func (u Unavailable) GenerateImage(context.Context, string) (string, error) {
	return "", ErrMissingCredential
}

// Name implements TextGenerator and ImageGenerator.
func (u Unavailable) Name() string { return u.Backend + " (unavailable)" }

// IsAvailable reports whether g can reach a real backend.
func IsAvailable(g any) bool {
	switch g.(type) {
	case nil, Unavailable, *Unavailable:
		return false
	}
	return true
}

var (
	_ TextGenerator  = Unavailable{}
	_ ImageGenerator = Unavailable{}
)
