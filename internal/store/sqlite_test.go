package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestVisitorUpsertAndGet(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetVisitor(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing visitor, got %v, %v", got, err)
	}

	now := time.Now().Truncate(time.Second)
	if err := s.UpsertVisitor(ctx, &domain.Visitor{
		UserID:      "anon_1",
		DisplayName: "anon-1",
		Active:      true,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		t.Fatalf("UpsertVisitor failed: %v", err)
	}

	got, err = s.GetVisitor(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if got == nil || got.DisplayName != "anon-1" || !got.Active {
		t.Fatalf("unexpected visitor: %+v", got)
	}
	if !got.LastSeenAt.Equal(now) {
		t.Fatalf("expected last seen %v, got %v", now, got.LastSeenAt)
	}
}

func TestIdleVisitorsAndMarkInactive(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now()
	for id, seen := range map[string]time.Time{"anon_old": old, "anon_fresh": fresh} {
		if err := s.UpsertVisitor(ctx, &domain.Visitor{
			UserID: id, DisplayName: id, Active: true,
			LastSeenAt: seen, CreatedAt: seen, UpdatedAt: seen,
		}); err != nil {
			t.Fatalf("UpsertVisitor failed: %v", err)
		}
	}

	idle, err := s.GetIdleVisitors(ctx, time.Hour)
	if err != nil {
		t.Fatalf("GetIdleVisitors failed: %v", err)
	}
	if len(idle) != 1 || idle[0].UserID != "anon_old" {
		t.Fatalf("expected only anon_old to be idle, got %+v", idle)
	}

	if err := s.MarkInactive(ctx, "anon_old"); err != nil {
		t.Fatalf("MarkInactive failed: %v", err)
	}
	idle, err = s.GetIdleVisitors(ctx, time.Hour)
	if err != nil {
		t.Fatalf("GetIdleVisitors failed: %v", err)
	}
	if len(idle) != 0 {
		t.Fatalf("expected no idle visitors after MarkInactive, got %d", len(idle))
	}

	if err := s.Touch(ctx, "anon_old", time.Now()); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	v, _ := s.GetVisitor(ctx, "anon_old")
	if v == nil || !v.Active {
		t.Fatalf("expected Touch to reactivate visitor, got %+v", v)
	}
}

func TestGenerationLedger(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	for i, kind := range []string{"narrative", "swot", "manifest"} {
		ev := &domain.GenerationEvent{
			UserID:    "anon_1",
			SessionID: "default",
			Kind:      kind,
			Status:    domain.GenerationOK,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordGeneration(ctx, ev); err != nil {
			t.Fatalf("RecordGeneration failed: %v", err)
		}
		if ev.ID == "" {
			t.Fatal("expected generated ID")
		}
	}

	events, err := s.ListGenerations(ctx, "anon_1", 2)
	if err != nil {
		t.Fatalf("ListGenerations failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "manifest" || events[1].Kind != "swot" {
		t.Fatalf("expected newest first, got %s, %s", events[0].Kind, events[1].Kind)
	}

	if err := s.RecordGeneration(ctx, &domain.GenerationEvent{
		UserID: "anon_1", SessionID: "default", Kind: "logo",
		Status: domain.GenerationFailed, Error: "boom",
		CreatedAt: time.Now().Add(-10 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("RecordGeneration failed: %v", err)
	}
	deleted, err := s.CleanupGenerations(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupGenerations failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted entry, got %d", deleted)
	}
}
