// Package session holds live plan sessions in memory.
package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

// Store guards one SessionState. External calls must never run while its lock is held.
type Store struct {
	mu    sync.RWMutex
	state *domain.SessionState
}

// NewStore creates a store with an empty session.
func NewStore() *Store {
	return &Store{state: domain.NewSessionState()}
}

// Get returns the value for key, or def when absent. Artifact keys are resolved first.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.artifactLocked(key); ok {
		if v == nil {
			return def
		}
		return v
	}
	if v, ok := s.state.Answers[key]; ok {
		return v
	}
	return def
}

// GetString returns the value for key as a string, or def when absent or not a string.
func (s *Store) GetString(key, def string) string {
	switch v := s.Get(key, nil).(type) {
	case string:
		return v
	case nil:
		return def
	default:
		return def
	}
}

// Set stores value under key with overwrite semantics.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setArtifactLocked(key, value) {
		return
	}
	s.state.Answers[key] = Normalize(value)
}

// Delete removes an answer key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Answers, key)
}

// MergeAnswers sets every key of values. Empty strings remove the key.
// Artifact keys are ignored; artifacts are only written through Set.
func (s *Store) MergeAnswers(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		if _, artifact := s.artifactLocked(k); artifact {
			continue
		}
		if str, ok := v.(string); ok && strings.TrimSpace(str) == "" {
			delete(s.state.Answers, k)
			continue
		}
		s.state.Answers[k] = Normalize(v)
	}
}

// Reset restores every field to its initial empty value.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.NewSessionState()
}

// Answers returns a copy of the answer map.
func (s *Store) Answers() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone().Answers
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() *domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state.Clone()
	snap.Artifacts.BusinessPlanText = stringValue(s.state.Answers[domain.KeyBusinessPlan])
	return snap
}

// Restore replaces answers, conversation log and stage. Artifacts and analysis state are cleared.
func (s *Store) Restore(answers map[string]any, log []domain.Message, stage domain.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("restore session: invalid stage %q", stage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := domain.NewSessionState()
	for k, v := range answers {
		next.Answers[k] = Normalize(v)
	}
	next.ConversationLog = append(next.ConversationLog, log...)
	next.CurrentStage = stage
	s.state = next
	return nil
}

// Stage returns the current stage.
func (s *Store) Stage() domain.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CurrentStage
}

// SetStage sets the current stage. Values outside the enumeration are rejected
// and the prior stage is kept.
func (s *Store) SetStage(stage domain.Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("set stage: invalid stage %q", stage)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentStage = stage
	return nil
}

// AppendMessage appends one entry to the conversation log.
func (s *Store) AppendMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConversationLog = append(s.state.ConversationLog, domain.Message{Role: role, Content: content})
}

// AppendExchange appends a user/assistant pair in one step.
func (s *Store) AppendExchange(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConversationLog = append(s.state.ConversationLog,
		domain.Message{Role: domain.RoleUser, Content: question},
		domain.Message{Role: domain.RoleAssistant, Content: answer},
	)
}

// Conversation returns a copy of the full log.
func (s *Store) Conversation() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Message{}, s.state.ConversationLog...)
}

// RecentConversation returns a copy of the last n log entries.
func (s *Store) RecentConversation(n int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.state.ConversationLog
	if n >= 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	return append([]domain.Message{}, log...)
}

// Artifacts returns a copy of the generated artifacts.
func (s *Store) Artifacts() domain.Artifacts {
	return s.Snapshot().Artifacts
}

// UpdateArtifacts applies fn to the artifacts under the store lock.
func (s *Store) UpdateArtifacts(fn func(a *domain.Artifacts)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state.Artifacts)
}

// AnalysisAnswers returns a copy of the analysis answers.
func (s *Store) AnalysisAnswers() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone().AnalysisAnswers
}

// AnalysisAnswer returns the analysis answer for key as a string.
func (s *Store) AnalysisAnswer(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stringValue(s.state.AnalysisAnswers[key])
}

// SetAnalysisAnswers overwrites the given analysis answers.
func (s *Store) SetAnalysisAnswers(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.state.AnalysisAnswers[k] = Normalize(v)
	}
}

// SetAnalysisResult stores an analysis text under name.
func (s *Store) SetAnalysisResult(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AnalysisResults[name] = text
}

// AnalysisResult returns the stored analysis text for name.
func (s *Store) AnalysisResult(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AnalysisResults[name]
}

// MarkPrefilled records that category was prefilled. It returns false if the
// marker was already set.
func (s *Store) MarkPrefilled(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Prefilled[category]; ok {
		return false
	}
	s.state.Prefilled[category] = struct{}{}
	return true
}

// IsPrefilled reports whether category carries the prefill marker.
func (s *Store) IsPrefilled(category string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.state.Prefilled[category]
	return ok
}

// ClearPrefilled clears the prefill marker for category only.
func (s *Store) ClearPrefilled(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.Prefilled, category)
}

// ClearAllPrefilled clears every prefill marker.
func (s *Store) ClearAllPrefilled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prefilled = make(map[string]struct{})
}

func (s *Store) artifactLocked(key string) (any, bool) {
	a := s.state.Artifacts
	switch key {
	case domain.ArtifactSwotText:
		return nilIfEmpty(a.SwotText), true
	case domain.ArtifactSwotImage:
		if len(a.SwotDiagramImage) == 0 {
			return nil, true
		}
		return append([]byte(nil), a.SwotDiagramImage...), true
	case domain.ArtifactManifest:
		return nilIfEmpty(a.ManifestText), true
	case domain.ArtifactLogo:
		return nilIfEmpty(a.LogoReference), true
	case domain.ArtifactPDFPath:
		return nilIfEmpty(a.PDFPath), true
	}
	return nil, false
}

func (s *Store) setArtifactLocked(key string, value any) bool {
	a := &s.state.Artifacts
	switch key {
	case domain.ArtifactSwotText:
		a.SwotText = stringValue(value)
	case domain.ArtifactSwotImage:
		b, _ := value.([]byte)
		a.SwotDiagramImage = append([]byte(nil), b...)
		if len(b) == 0 {
			a.SwotDiagramImage = nil
		}
	case domain.ArtifactManifest:
		a.ManifestText = stringValue(value)
	case domain.ArtifactLogo:
		a.LogoReference = stringValue(value)
	case domain.ArtifactPDFPath:
		a.PDFPath = stringValue(value)
	default:
		return false
	}
	return true
}

// Normalize converts a value to the shape it has after a JSON round-trip so that
// in-memory answers equal their persisted form.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return v
	case []any, map[string]any:
		return roundTrip(v)
	default:
		return roundTrip(t)
	}
}

func roundTrip(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// StringList returns v as a list of strings. Scalars become a one-element list.
func StringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		return []string{t}
	case []string:
		return append([]string{}, t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsPresent reports whether an answer value counts as filled in.
func IsPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
