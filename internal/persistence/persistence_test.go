package persistence

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/google/go-cmp/cmp"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC) }
	return m
}

func sampleState() *domain.SessionState {
	s := domain.NewSessionState()
	s.Answers = map[string]any{
		domain.KeyCity:           "Lund",
		domain.KeyMarketSegments: []any{"Företag", "Offentlig sektor"},
		"nested":                 map[string]any{"a": "<b>&</b>", "n": 3.5},
	}
	s.ConversationLog = []domain.Message{
		{Role: domain.RoleUser, Content: "Hej"},
		{Role: domain.RoleAssistant, Content: "Hej själv"},
	}
	s.CurrentStage = domain.StageDeepDive
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	snap := sampleState()

	handle, err := m.Save("anon_abc", snap)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if handle != "affarsplan_20250314_092653.json" {
		t.Fatalf("unexpected handle %q", handle)
	}

	rec, ok := m.Load("anon_abc", handle)
	if !ok {
		t.Fatal("expected record to load")
	}
	if diff := cmp.Diff(snap.Answers, rec.UserData); diff != "" {
		t.Errorf("answers mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(snap.ConversationLog, rec.ConversationHistory); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
	if rec.CurrentStage != domain.StageDeepDive {
		t.Errorf("stage = %q", rec.CurrentStage)
	}
	if rec.Timestamp != "2025-03-14 09:26:53" {
		t.Errorf("timestamp = %q", rec.Timestamp)
	}
}

func TestSaveOverwritesLatest(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	first := sampleState()
	if _, err := m.Save("anon_abc", first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := sampleState()
	second.Answers[domain.KeyCity] = "Kiruna"
	m.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	if _, err := m.Save("anon_abc", second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, ok := m.LoadLatest("anon_abc")
	if !ok {
		t.Fatal("expected latest record")
	}
	if diff := cmp.Diff(second.Answers, rec.UserData); diff != "" {
		t.Errorf("latest mismatch (-want +got):\n%s", diff)
	}

	handles, err := m.ListSaves("anon_abc")
	if err != nil {
		t.Fatalf("ListSaves failed: %v", err)
	}
	want := []string{"affarsplan_20250314_100000.json", "affarsplan_20250314_092653.json"}
	if diff := cmp.Diff(want, handles); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}
}

func TestSavesAreScopedPerUser(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	if _, err := m.Save("anon_a", sampleState()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	handles, err := m.ListSaves("anon_b")
	if err != nil {
		t.Fatalf("ListSaves failed: %v", err)
	}
	if len(handles) != 0 {
		t.Fatalf("expected no saves for other user, got %v", handles)
	}
	if _, ok := m.LoadLatest("anon_b"); ok {
		t.Fatal("expected no latest record for other user")
	}
}

func TestLoadFailSoft(t *testing.T) {
	t.Parallel()

	m := newTestManager(t)
	dir := filepath.Join(m.root, "anon_abc")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "affarsplan_20240101_000000.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"missing":   "affarsplan_20990101_000000.json",
		"malformed": "affarsplan_20240101_000000.json",
		"traversal": "../../etc/passwd",
		"other":     "notes.json",
	}
	for name, handle := range cases {
		rec, ok := m.Load("anon_abc", handle)
		if ok {
			t.Errorf("%s: expected load to fail", name)
		}
		if rec.UserData == nil || len(rec.UserData) != 0 {
			t.Errorf("%s: expected empty answers, got %v", name, rec.UserData)
		}
		if rec.ConversationHistory == nil || len(rec.ConversationHistory) != 0 {
			t.Errorf("%s: expected empty log, got %v", name, rec.ConversationHistory)
		}
	}

	if _, ok := m.Load("../escape", LatestHandle); ok {
		t.Error("expected invalid user to be rejected")
	}
	if _, err := m.Save("../escape", sampleState()); err == nil {
		t.Error("expected Save to reject invalid user")
	}
}

func TestRestoreLandsOnSavedOrInferredStage(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	got, err := Restore(store, Record{
		UserData:     map[string]any{domain.KeyCity: "Lund"},
		CurrentStage: domain.StageFinancial,
	})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got != domain.StageFinancial || store.Stage() != domain.StageFinancial {
		t.Fatalf("expected saved stage, got %q", got)
	}

	got, err = Restore(store, Record{
		UserData:     map[string]any{domain.KeyCompanyName: "Bönan"},
		CurrentStage: "okänt",
	})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if got != domain.StageDeepDive {
		t.Fatalf("expected inferred deep dive, got %q", got)
	}
	if store.GetString(domain.KeyCity, "") != "" {
		t.Fatal("expected previous answers to be replaced")
	}
}
