// Package persistence saves and restores plan sessions as JSON records on disk.
package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/chgenberg/frejfund-site/internal/stage"
)

// LatestHandle is the record overwritten by every save.
const LatestHandle = "affarsplan_senaste.json"

const (
	handlePrefix    = "affarsplan_"
	handleLayout    = "20060102_150405"
	timestampLayout = "2006-01-02 15:04:05"
)

var (
	// ErrInvalidHandle is returned for names that are not save records.
	ErrInvalidHandle = errors.New("invalid save handle")
	// ErrInvalidUser is returned for user IDs that cannot name a directory.
	ErrInvalidUser = errors.New("invalid user id")

	handleRe = regexp.MustCompile(`^affarsplan_\d{8}_\d{6}\.json$`)
	userRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// Record is the on-disk form of a saved session.
type Record struct {
	UserData            map[string]any   `json:"user_data"`
	ConversationHistory []domain.Message `json:"conversation_history"`
	CurrentStage        domain.Stage     `json:"current_stage,omitempty"`
	Timestamp           string           `json:"timestamp"`
}

func emptyRecord() Record {
	return Record{UserData: map[string]any{}, ConversationHistory: []domain.Message{}}
}

// Manager reads and writes records under one directory per visitor.
type Manager struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Manager rooted at dir.
func New(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: dir, logger: logger, now: time.Now}
}

func (m *Manager) userDir(userID string) (string, error) {
	if !userRe.MatchString(userID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return filepath.Join(m.root, userID), nil
}

// ValidHandle reports whether handle names a timestamped record or the latest alias.
func ValidHandle(handle string) bool {
	return handle == LatestHandle || handleRe.MatchString(handle)
}

// Save writes snap as a timestamped record and overwrites the latest alias.
// It returns the handle of the timestamped record.
func (m *Manager) Save(userID string, snap *domain.SessionState) (string, error) {
	dir, err := m.userDir(userID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create save directory: %w", err)
	}

	now := m.now()
	rec := Record{
		UserData:            snap.Answers,
		ConversationHistory: snap.ConversationLog,
		CurrentStage:        snap.CurrentStage,
		Timestamp:           now.Format(timestampLayout),
	}
	if rec.UserData == nil {
		rec.UserData = map[string]any{}
	}
	if rec.ConversationHistory == nil {
		rec.ConversationHistory = []domain.Message{}
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return "", err
	}

	handle := handlePrefix + now.Format(handleLayout) + ".json"
	if err := writeFileAtomic(filepath.Join(dir, handle), data); err != nil {
		return "", err
	}
	if err := writeFileAtomic(filepath.Join(dir, LatestHandle), data); err != nil {
		return "", err
	}
	m.logger.Info("Session saved", "user_id", userID, "handle", handle)
	return handle, nil
}

// Load reads a record. Missing, malformed or invalid handles yield an empty
// record and false; the failure is logged, not returned.
func (m *Manager) Load(userID, handle string) (Record, bool) {
	if !ValidHandle(handle) {
		m.logger.Warn("Rejected save handle", "user_id", userID, "handle", handle)
		return emptyRecord(), false
	}
	dir, err := m.userDir(userID)
	if err != nil {
		m.logger.Warn("Rejected save user", "user_id", userID, "error", err)
		return emptyRecord(), false
	}

	data, err := os.ReadFile(filepath.Join(dir, handle))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("Save not found", "user_id", userID, "handle", handle)
		} else {
			m.logger.Error("Failed to read save", "user_id", userID, "handle", handle, "error", err)
		}
		return emptyRecord(), false
	}

	rec := emptyRecord()
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Error("Malformed save", "user_id", userID, "handle", handle, "error", err)
		return emptyRecord(), false
	}
	if rec.UserData == nil {
		rec.UserData = map[string]any{}
	}
	if rec.ConversationHistory == nil {
		rec.ConversationHistory = []domain.Message{}
	}
	return rec, true
}

// LoadLatest reads the latest alias.
func (m *Manager) LoadLatest(userID string) (Record, bool) {
	return m.Load(userID, LatestHandle)
}

// ListSaves returns the timestamped handles, newest first. The latest alias is excluded.
func (m *Manager) ListSaves(userID string) ([]string, error) {
	dir, err := m.userDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list saves: %w", err)
	}
	handles := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !handleRe.MatchString(e.Name()) {
			continue
		}
		handles = append(handles, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(handles)))
	return handles, nil
}

// Restore writes rec into store and returns the stage it landed on: the saved
// stage when valid, otherwise the stage inferred from the answers.
func Restore(store *session.Store, rec Record) (domain.Stage, error) {
	target := rec.CurrentStage
	if !target.IsValid() {
		target = stage.Infer(rec.UserData)
	}
	if err := store.Restore(rec.UserData, rec.ConversationHistory, target); err != nil {
		return store.Stage(), err
	}
	return target, nil
}

func encodeRecord(rec Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode save record: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	defer os.Remove(name)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(name, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
