// Package convlog writes question/answer exchanges to per-session NDJSON files.
package convlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const defaultQueueSize = 256

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\a]*(\a|\x1b\\)`)
	unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._:-]`)
)

// Config controls where exchanges are written.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Event is one logged line.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Kind       string         `json:"kind"`
	Direction  string         `json:"direction"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger queues events and writes them from a single goroutine.
// Log never blocks; events are dropped when the queue is full.
type Logger struct {
	cfg     Config
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped int
}

// New starts the writer. A disabled config yields a logger that discards everything.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	l := &Logger{cfg: cfg, logger: logger, done: make(chan struct{})}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}
	if cfg.Dir == "" {
		return nil, errors.New("conversation log dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}
	l.queue = make(chan Event, cfg.QueueSize)
	go l.run()
	return l, nil
}

// Log enqueues ev, filling in the timestamp and cleaned content.
func (l *Logger) Log(ev Event) {
	if !l.cfg.Enabled {
		return
	}
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.dropped++
		if l.dropped == 1 || l.dropped%100 == 0 {
			l.logger.Warn("Conversation log queue full, dropping events", "dropped", l.dropped)
		}
	}
}

// LogExchange records a question and its answer as two consecutive events.
func (l *Logger) LogExchange(userID, sessionID, kind, question, answer string) {
	l.Log(Event{UserID: userID, SessionID: sessionID, Kind: kind, Direction: "inbound", ContentRaw: question})
	l.Log(Event{UserID: userID, SessionID: sessionID, Kind: kind, Direction: "outbound", ContentRaw: answer})
}

// Close drains the queue and waits for the writer to finish.
func (l *Logger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		if l.queue != nil {
			close(l.queue)
		}
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for ev := range l.queue {
		line, err := json.Marshal(ev)
		if err != nil {
			l.logger.Error("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')
		if err := appendLine(l.sessionPath(ev), line); err != nil {
			l.logger.Error("Failed to write conversation log", "error", err, "user_id", ev.UserID)
		}
		if l.cfg.GlobalEnabled && l.cfg.GlobalPath != "" {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.logger.Error("Failed to write global conversation log", "error", err)
			}
		}
	}
}

func (l *Logger) sessionPath(ev Event) string {
	return filepath.Join(l.cfg.Dir, safeSegment(ev.UserID, "unknown"), safeSegment(ev.SessionID, "default")+".ndjson")
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func safeSegment(s, fallback string) string {
	s = unsafePathChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" || s == "." || s == ".." {
		return fallback
	}
	return s
}

func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(s)
}
