//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/generation"
	"github.com/chgenberg/frejfund-site/internal/identity"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/persistence"
	"github.com/chgenberg/frejfund-site/internal/report"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/go-chi/chi/v5"
)

type fakeRepo struct {
	mu          sync.Mutex
	visitors    map[string]*domain.Visitor
	generations []*domain.GenerationEvent
	pingErr     error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{visitors: make(map[string]*domain.Visitor)}
}

func (f *fakeRepo) GetVisitor(_ context.Context, userID string) (*domain.Visitor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.visitors[userID]
	if v == nil {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (f *fakeRepo) UpsertVisitor(_ context.Context, v *domain.Visitor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.visitors[v.UserID] = &cp
	return nil
}

func (f *fakeRepo) Touch(_ context.Context, _ string, _ time.Time) error { return nil }
func (f *fakeRepo) MarkInactive(_ context.Context, _ string) error       { return nil }

func (f *fakeRepo) GetIdleVisitors(_ context.Context, _ time.Duration) ([]*domain.Visitor, error) {
	return nil, nil
}

func (f *fakeRepo) RecordGeneration(_ context.Context, ev *domain.GenerationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generations = append([]*domain.GenerationEvent{ev}, f.generations...)
	return nil
}

func (f *fakeRepo) ListGenerations(_ context.Context, userID string, limit int) ([]*domain.GenerationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.GenerationEvent
	for _, ev := range f.generations {
		if ev.UserID == userID && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeRepo) CleanupGenerations(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Ping(_ context.Context) error { return f.pingErr }
func (f *fakeRepo) Close() error                 { return nil }

type fakeText struct {
	reply func(req llm.Request) (string, error)
}

func (f fakeText) Generate(_ context.Context, req llm.Request) (string, error) {
	return f.reply(req)
}

func (f fakeText) Name() string { return "fake" }

type fakePublisher struct {
	mu    sync.Mutex
	kinds []string
}

func (p *fakePublisher) Publish(_, _, kind string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
}

type testEnv struct {
	srv      *httptest.Server
	repo     *fakeRepo
	sessions *session.Registry
	events   *fakePublisher
}

const (
	testUser    = "anon_0123456789abcdef0123456789abcdef"
	testSession = "tab-1"
)

func newTestEnv(t *testing.T, text llm.TextGenerator) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newFakeRepo()
	repo.visitors[testUser] = &domain.Visitor{UserID: testUser, DisplayName: "besökare-89abcdef", Active: true, LastSeenAt: time.Now()}
	sessions := session.NewRegistry()
	events := &fakePublisher{}

	gen := generation.New(generation.Options{
		Text:            text,
		Recorder:        repo,
		Logger:          logger,
		PendingInterval: 5 * time.Millisecond,
	})
	h := NewHandler(Deps{
		Repo:       repo,
		Sessions:   sessions,
		Generator:  gen,
		Saves:      persistence.New(t.TempDir(), logger),
		Reports:    report.New(report.Options{OutputDir: t.TempDir(), TempDir: t.TempDir(), Logger: logger}),
		Events:     events,
		SessionTTL: 3600,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := identity.WithIdentity(r.Context(), testUser, r.Header.Get(identity.SessionHeaderName))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	NewHealthHandler(repo, gen).RegisterHealth(r)
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, repo: repo, sessions: sessions, events: events}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(identity.SessionHeaderName, testSession)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("failed to decode %q: %v", data, err)
	}
	return v
}

func echoText(text string) fakeText {
	return fakeText{reply: func(llm.Request) (string, error) { return text, nil }}
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{generation.ErrMissingInput, http.StatusBadRequest},
		{generation.ErrUnknownCategory, http.StatusNotFound},
		{generation.ErrInsufficientData, http.StatusUnprocessableEntity},
		{llm.ErrMissingCredential, http.StatusServiceUnavailable},
		{errors.New("upstream 500"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, body)
	checks := got["checks"].(map[string]any)
	if checks["database"] != "ok" || checks["text"] != "disabled" {
		t.Fatalf("unexpected checks: %v", checks)
	}

	env.repo.pingErr = errors.New("locked")
	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestGetMeAndConfig(t *testing.T) {
	env := newTestEnv(t, echoText("x"))

	resp, body := env.do(t, http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, body)
	if me["user_id"] != testUser || me["session_id"] != testSession {
		t.Fatalf("unexpected me: %v", me)
	}

	_, body = env.do(t, http.MethodGet, "/api/config", nil)
	cfg := decode[map[string]any](t, body)
	if cfg["text_enabled"] != true || cfg["image_enabled"] != false || cfg["places_enabled"] != false {
		t.Fatalf("unexpected config: %v", cfg)
	}
}

func TestSessionAnswersAndStages(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/stage/continue", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 before name is given, got %d", resp.StatusCode)
	}
	if got := decode[map[string]any](t, body)["missing"]; got == nil {
		t.Fatal("expected missing keys in response")
	}

	resp, body = env.do(t, http.MethodPut, "/api/session/answers", map[string]any{domain.KeyName: "Anna"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	view := decode[sessionView](t, body)
	if !view.CanContinue || view.Answers[domain.KeyName] != "Anna" {
		t.Fatalf("unexpected view: %+v", view)
	}

	_, body = env.do(t, http.MethodPost, "/api/stage/continue", nil)
	if view = decode[sessionView](t, body); view.Stage != domain.StageBasicInfo || view.Position != 2 {
		t.Fatalf("expected basic_info at position 2, got %s/%d", view.Stage, view.Position)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/stage/navigate", map[string]string{"stage": "nowhere"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid stage, got %d", resp.StatusCode)
	}
	if st := env.sessions.Get(testUser, testSession).Stage(); st != domain.StageBasicInfo {
		t.Fatalf("expected stage to be retained, got %s", st)
	}

	_, body = env.do(t, http.MethodPost, "/api/stage/navigate", map[string]string{"stage": "business_analysis"})
	if view = decode[sessionView](t, body); view.Stage != domain.StageBusinessAnalysis || view.Position != 0 {
		t.Fatalf("unexpected view after navigate: %s/%d", view.Stage, view.Position)
	}

	_, body = env.do(t, http.MethodPost, "/api/session/reset", nil)
	if view = decode[sessionView](t, body); view.Stage != domain.StageIntro || len(view.Answers) != 0 {
		t.Fatalf("expected empty intro session after reset, got %+v", view)
	}
}

func TestSessionsAreScopedPerTab(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPut, "/api/session/answers", map[string]any{domain.KeyCity: "Umeå"})

	other := env.sessions.Get(testUser, "tab-2")
	if _, ok := other.Answers()[domain.KeyCity]; ok {
		t.Fatal("expected other tab to have its own session")
	}
}

func TestGenerateNarrative(t *testing.T) {
	env := newTestEnv(t, echoText("Sammanfattning:\n\nVi säljer kaffe."))

	resp, body := env.do(t, http.MethodPost, "/api/generate/narrative", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	store := env.sessions.Get(testUser, testSession)
	if got := store.GetString(domain.KeyBusinessPlan, ""); !strings.Contains(got, "kaffe") {
		t.Fatalf("expected plan to be stored, got %q", got)
	}

	_, body = env.do(t, http.MethodGet, "/api/generations", nil)
	gens := decode[map[string][]domain.GenerationEvent](t, body)["generations"]
	if len(gens) != 1 || gens[0].Kind != generation.KindNarrative || gens[0].Status != domain.GenerationOK {
		t.Fatalf("unexpected ledger: %+v", gens)
	}
}

func TestGenerateWithoutCredentialReturnsInlineText(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/generate/swot", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, body); got["text"] != llm.UnavailableText {
		t.Fatalf("expected unavailable text, got %q", got["text"])
	}

	resp, _ = env.do(t, http.MethodGet, "/api/generate/swot/diagram", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected no diagram, got %d", resp.StatusCode)
	}
}

func TestGenerateSwotServesDiagram(t *testing.T) {
	env := newTestEnv(t, echoText("Styrkor:\n- Läge\nSvagheter:\n- Pris\nMöjligheter:\n- Turism\nHot:\n- Kedjor"))

	resp, body := env.do(t, http.MethodPost, "/api/generate/swot", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodGet, "/api/generate/swot/diagram", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("expected png diagram, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatal("expected PNG signature")
	}
}

func TestGenerateManifestStreamsEvents(t *testing.T) {
	env := newTestEnv(t, fakeText{reply: func(llm.Request) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "Vi tror på bättre kaffe.", nil
	}})

	resp, body := env.do(t, http.MethodPost, "/api/generate/manifest", nil)
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	stream := string(body)
	if !strings.Contains(stream, "event: pending") {
		t.Fatalf("expected pending ticks, got %q", stream)
	}
	if !strings.Contains(stream, "event: manifest") || !strings.Contains(stream, "bättre kaffe") {
		t.Fatalf("expected manifest event, got %q", stream)
	}
	if got := env.sessions.Get(testUser, testSession).Artifacts().ManifestText; got == "" {
		t.Fatal("expected manifest to be stored")
	}
}

func TestAskAppendsConversation(t *testing.T) {
	env := newTestEnv(t, echoText("Börja i liten skala."))

	resp, _ := env.do(t, http.MethodPost, "/api/generate/ask", map[string]string{"question": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty question, got %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/api/generate/ask", map[string]string{"question": "Hur börjar jag?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decode[map[string]string](t, body)["text"]; got != "Börja i liten skala." {
		t.Fatalf("unexpected answer %q", got)
	}
	if n := len(env.sessions.Get(testUser, testSession).Conversation()); n != 2 {
		t.Fatalf("expected 2 log entries, got %d", n)
	}
}

func TestAdviceUnknownKind(t *testing.T) {
	env := newTestEnv(t, echoText("x"))
	resp, _ := env.do(t, http.MethodPost, "/api/generate/advice", map[string]string{"kind": "horoscope"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStandardLogo(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/api/generate/logo/standard", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without company name, got %d", resp.StatusCode)
	}

	env.do(t, http.MethodPut, "/api/session/answers", map[string]any{domain.KeyCompanyName: "Bönan"})
	resp, body := env.do(t, http.MethodPost, "/api/generate/logo/standard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	u := decode[map[string]string](t, body)["url"]
	if u == "" || env.sessions.Get(testUser, testSession).Artifacts().LogoReference != u {
		t.Fatalf("expected logo reference to be stored, got %q", u)
	}
}

func TestCompetitorLocationsWithoutPlaces(t *testing.T) {
	env := newTestEnv(t, echoText("Espresso House|40|Kedja\nWayne's|20|Kedja"))
	env.do(t, http.MethodPut, "/api/session/answers", map[string]any{
		domain.KeyProductOffering: "Kaffe",
		domain.KeyCity:            "Göteborg",
	})

	resp, body := env.do(t, http.MethodGet, "/api/competitors/locations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	got := decode[map[string]any](t, body)
	if got["places_enabled"] != false {
		t.Fatal("expected places to be disabled")
	}
	if locs, ok := got["locations"].([]any); !ok || len(locs) != 0 {
		t.Fatalf("expected empty locations, got %v", got["locations"])
	}
	if comps, ok := got["competitors"].([]any); !ok || len(comps) == 0 {
		t.Fatalf("expected competitors, got %v", got["competitors"])
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t, echoText("Betyg: 8/10"))

	_, body := env.do(t, http.MethodGet, "/api/analysis/catalog", nil)
	catalog := decode[map[string][]map[string]any](t, body)
	if len(catalog["categories"]) == 0 {
		t.Fatal("expected catalog categories")
	}
	firstID, _ := catalog["categories"][0]["id"].(string)

	resp, _ := env.do(t, http.MethodPost, "/api/analysis/nope/prefill", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown category, got %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/analysis/"+firstID+"/prefill", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	_, body = env.do(t, http.MethodPost, "/api/analysis/"+firstID+"/prefill", nil)
	if res := decode[generation.PrefillResult](t, body); !res.Skipped {
		t.Fatal("expected second prefill to be skipped")
	}
	env.do(t, http.MethodPost, "/api/analysis/"+firstID+"/reset-prefill", nil)
	_, body = env.do(t, http.MethodPost, "/api/analysis/"+firstID+"/prefill", nil)
	if res := decode[generation.PrefillResult](t, body); res.Skipped {
		t.Fatal("expected prefill to run again after reset")
	}

	_, body = env.do(t, http.MethodPost, "/api/analysis/summary", nil)
	if sum := decode[generation.Summary](t, body); sum.Rating != 8 || !sum.HasRating {
		t.Fatalf("unexpected summary %+v", sum)
	}

	_, body = env.do(t, http.MethodPost, "/api/analysis/radar", nil)
	radar := decode[generation.Radar](t, body)
	if !radar.Fallback || len(radar.Values) != len(generation.RadarCategories) {
		t.Fatalf("expected fallback radar from rating, got %+v", radar)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/analysis/financial", nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without financial answers, got %d", resp.StatusCode)
	}
}

func TestSaveListLoad(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPut, "/api/session/answers", map[string]any{
		domain.KeyName:            "Anna",
		domain.KeyCity:            "Lund",
		domain.KeyProductOffering: "Te",
	})

	resp, body := env.do(t, http.MethodPost, "/api/saves", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	handle := decode[map[string]string](t, body)["handle"]

	_, body = env.do(t, http.MethodGet, "/api/saves", nil)
	if saves := decode[map[string][]string](t, body)["saves"]; len(saves) != 1 || saves[0] != handle {
		t.Fatalf("unexpected saves %v", saves)
	}

	env.do(t, http.MethodPost, "/api/session/reset", nil)

	resp, body = env.do(t, http.MethodPost, "/api/saves/load", map[string]string{"handle": handle})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	view := decode[sessionView](t, body)
	if view.Answers[domain.KeyCity] != "Lund" {
		t.Fatalf("expected restored answers, got %v", view.Answers)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/saves/load", map[string]string{"handle": "../../etc/passwd"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad handle, got %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/saves/load", map[string]string{"handle": "affarsplan_20000101_000000.json"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing save, got %d", resp.StatusCode)
	}
	missing := decode[map[string]any](t, body)
	if data, ok := missing["user_data"].(map[string]any); !ok || len(data) != 0 {
		t.Fatalf("expected empty user_data, got %v", missing["user_data"])
	}

	resp, _ = env.do(t, http.MethodPost, "/api/saves/load-latest", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected latest to load, got %d", resp.StatusCode)
	}
}

func TestReportBuildDownloadLink(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/report/download", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before build, got %d", resp.StatusCode)
	}

	env.do(t, http.MethodPut, "/api/session/answers", map[string]any{domain.KeyCompanyName: "Bönan AB"})
	resp, body := env.do(t, http.MethodPost, "/api/report", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	built := decode[map[string]any](t, body)
	if !strings.HasPrefix(built["file"].(string), "affarsplan_") {
		t.Fatalf("unexpected file %v", built["file"])
	}

	resp, body = env.do(t, http.MethodGet, "/api/report/download", nil)
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("expected PDF download, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatal("expected attachment disposition")
	}

	_, body = env.do(t, http.MethodGet, "/api/report/link", nil)
	if link := decode[map[string]string](t, body)["html"]; !strings.Contains(link, "data:application/pdf;base64,") {
		t.Fatalf("unexpected link %q", link)
	}
}

func TestGenerationsLimitValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodGet, "/api/generations?limit=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventsPublishedOnStageChange(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/stage/navigate", map[string]string{"stage": "financial"})

	env.events.mu.Lock()
	defer env.events.mu.Unlock()
	if len(env.events.kinds) != 1 || env.events.kinds[0] != EventStage {
		t.Fatalf("expected one stage event, got %v", env.events.kinds)
	}
}
