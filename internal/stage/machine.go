// Package stage implements the guided flow's stage transitions.
package stage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/session"
)

var (
	ErrInvalidStage       = errors.New("invalid stage")
	ErrRequirementsNotMet = errors.New("required fields missing")
	ErrNoNextStage        = errors.New("stage has no successor")
)

var requirements = map[domain.Stage][]string{
	domain.StageIntro: {domain.KeyName},
	domain.StageBasicInfo: {
		domain.KeyCity,
		domain.KeyTargetAudience,
		domain.KeyProductOffering,
		domain.KeyStrategy,
		domain.KeyTimeline,
		domain.KeyBudget,
	},
}

var displayNames = map[domain.Stage]string{
	domain.StageIntro:            "Introduktion",
	domain.StageBasicInfo:        "Grundläggande information",
	domain.StageDeepDive:         "Fördjupad analys",
	domain.StageFinancial:        "Ekonomisk planering",
	domain.StageBusinessPlan:     "Affärsplan",
	domain.StageBusinessAnalysis: "Affärsanalys",
}

// Machine applies transitions to one session store.
type Machine struct {
	store *session.Store
}

// New creates a machine bound to store.
func New(store *session.Store) *Machine {
	return &Machine{store: store}
}

// Current returns the stage the session is on.
func (m *Machine) Current() domain.Stage {
	return m.store.Stage()
}

// Navigate moves to any valid stage without checking requirements.
func (m *Machine) Navigate(target domain.Stage) error {
	if !target.IsValid() {
		slog.Warn("Rejected navigation to unknown stage", "stage", string(target))
		return fmt.Errorf("navigate to %q: %w", target, ErrInvalidStage)
	}
	if err := m.store.SetStage(target); err != nil {
		return fmt.Errorf("navigate to %q: %w", target, ErrInvalidStage)
	}
	return nil
}

// Missing returns the required keys of the current stage that have no value.
func (m *Machine) Missing() []string {
	return MissingFor(m.store.Stage(), m.store.Answers())
}

// MissingFor returns the required keys of stage that are absent from answers.
func MissingFor(stage domain.Stage, answers map[string]any) []string {
	var missing []string
	for _, key := range requirements[stage] {
		if !session.IsPresent(answers[key]) {
			missing = append(missing, key)
		}
	}
	return missing
}

// CanContinue reports whether the current stage has a successor and its requirements are met.
func (m *Machine) CanContinue() bool {
	if _, ok := Next(m.store.Stage()); !ok {
		return false
	}
	return len(m.Missing()) == 0
}

// Continue advances to the next main-flow stage.
func (m *Machine) Continue() (domain.Stage, error) {
	current := m.store.Stage()
	next, ok := Next(current)
	if !ok {
		return current, fmt.Errorf("continue from %s: %w", current, ErrNoNextStage)
	}
	if missing := m.Missing(); len(missing) > 0 {
		return current, fmt.Errorf("continue from %s: %w: %v", current, ErrRequirementsNotMet, missing)
	}
	if err := m.store.SetStage(next); err != nil {
		return current, err
	}
	slog.Info("Stage advanced", "from", string(current), "to", string(next))
	return next, nil
}

// Next returns the main-flow successor of s.
func Next(s domain.Stage) (domain.Stage, bool) {
	for i, st := range domain.MainFlow {
		if st == s && i+1 < len(domain.MainFlow) {
			return domain.MainFlow[i+1], true
		}
	}
	return "", false
}

// Infer picks the stage a restored session should land on.
func Infer(answers map[string]any) domain.Stage {
	if _, ok := answers[domain.KeyBusinessPlan]; ok {
		return domain.StageBusinessPlan
	}
	if session.IsPresent(answers[domain.KeyCompetitors]) || session.IsPresent(answers[domain.KeyCompanyName]) {
		return domain.StageDeepDive
	}
	if session.IsPresent(answers[domain.KeyCity]) && session.IsPresent(answers[domain.KeyProductOffering]) {
		return domain.StageBasicInfo
	}
	return domain.StageIntro
}

// DisplayName returns the Swedish label of s.
func DisplayName(s domain.Stage) string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return string(s)
}

// Progress returns the 1-based main-flow position of s and the flow length.
// The side state reports position 0.
func Progress(s domain.Stage) (int, int) {
	for i, st := range domain.MainFlow {
		if st == s {
			return i + 1, len(domain.MainFlow)
		}
	}
	return 0, len(domain.MainFlow)
}
