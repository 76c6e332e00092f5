package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/session"
)

var errBoom = errors.New("boom")

type fakeText struct {
	mu       sync.Mutex
	reply    func(req llm.Request) (string, error)
	requests []llm.Request
	delay    time.Duration
}

func (f *fakeText) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.reply == nil {
		return "ok", nil
	}
	return f.reply(req)
}

func (f *fakeText) Name() string { return "fake" }

func (f *fakeText) calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

func replyWith(text string) *fakeText {
	return &fakeText{reply: func(llm.Request) (string, error) { return text, nil }}
}

func failWith(err error) *fakeText {
	return &fakeText{reply: func(llm.Request) (string, error) { return "", err }}
}

type fakeImages struct {
	mu    sync.Mutex
	calls int
	url   string
	err   error
	gate  chan struct{}
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.url, f.err
}

func (f *fakeImages) Name() string { return "fake-images" }

func (f *fakeImages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []domain.GenerationEvent
}

func (f *fakeRecorder) RecordGeneration(_ context.Context, ev *domain.GenerationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *ev)
	return nil
}

func (f *fakeRecorder) statuses() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, ev := range f.events {
		out[ev.Kind] = ev.Status
	}
	return out
}

type published struct {
	kind string
	data any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(_, _ string, kind string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{kind: kind, data: data})
}

type fakeExchanges struct {
	mu    sync.Mutex
	kinds []string
}

func (f *fakeExchanges) LogExchange(_, _, kind, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

type fakePlaces struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakePlaces) Search(_ context.Context, query string, max int) ([]domain.Place, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Place, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, domain.Place{Name: query, ReviewCount: i})
	}
	return out, nil
}

func (f *fakePlaces) Enabled() bool { return true }

func newTestCoordinator(t *testing.T, opts Options) (*Coordinator, Scope) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := New(opts)
	return c, Scope{UserID: "anon_test", SessionID: "sess-1", Store: session.NewStore()}
}

func basicAnswers() map[string]any {
	return map[string]any{
		domain.KeyCity:            "Göteborg",
		domain.KeyTargetAudience:  "Studenter",
		domain.KeyProductOffering: "Kaffe",
		domain.KeyStrategy:        "Nisch",
		domain.KeyCompanyName:     "Bönan AB",
	}
}
