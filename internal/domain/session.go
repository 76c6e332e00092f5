package domain

// Message roles in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation log entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SwotSection is one quadrant of a parsed SWOT analysis.
type SwotSection struct {
	Title string   `json:"title"`
	Color string   `json:"color"`
	Items []string `json:"items"`
}

// Artifacts holds generated outputs. Each field is overwritten on regeneration.
type Artifacts struct {
	SwotText         string        `json:"swot_text,omitempty"`
	SwotSections     []SwotSection `json:"swot_sections,omitempty"`
	SwotDiagramImage []byte        `json:"-"`
	ManifestText     string        `json:"manifest_text,omitempty"`
	LogoReference    string        `json:"logo_reference,omitempty"`
	PDFPath          string        `json:"pdf_path,omitempty"`
	BusinessPlanText string        `json:"business_plan_text,omitempty"`
}

// HasSwotDiagram reports whether a rendered diagram is available.
func (a Artifacts) HasSwotDiagram() bool { return len(a.SwotDiagramImage) > 0 }

// SessionState is the root aggregate of one visitor's working session.
type SessionState struct {
	Answers         map[string]any
	ConversationLog []Message
	CurrentStage    Stage
	Artifacts       Artifacts
	AnalysisAnswers map[string]any
	AnalysisResults map[string]string
	Prefilled       map[string]struct{}
}

// NewSessionState returns a state with every field at its initial empty value.
func NewSessionState() *SessionState {
	return &SessionState{
		Answers:         make(map[string]any),
		ConversationLog: []Message{},
		CurrentStage:    StageIntro,
		AnalysisAnswers: make(map[string]any),
		AnalysisResults: make(map[string]string),
		Prefilled:       make(map[string]struct{}),
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *SessionState) Clone() *SessionState {
	out := &SessionState{
		Answers:         cloneValues(s.Answers),
		ConversationLog: append([]Message{}, s.ConversationLog...),
		CurrentStage:    s.CurrentStage,
		Artifacts:       s.Artifacts,
		AnalysisAnswers: cloneValues(s.AnalysisAnswers),
		AnalysisResults: make(map[string]string, len(s.AnalysisResults)),
		Prefilled:       make(map[string]struct{}, len(s.Prefilled)),
	}
	out.Artifacts.SwotSections = cloneSections(s.Artifacts.SwotSections)
	if s.Artifacts.SwotDiagramImage != nil {
		out.Artifacts.SwotDiagramImage = append([]byte(nil), s.Artifacts.SwotDiagramImage...)
	}
	for k, v := range s.AnalysisResults {
		out.AnalysisResults[k] = v
	}
	for k := range s.Prefilled {
		out.Prefilled[k] = struct{}{}
	}
	return out
}

func cloneSections(in []SwotSection) []SwotSection {
	if in == nil {
		return nil
	}
	out := make([]SwotSection, len(in))
	for i, s := range in {
		out[i] = SwotSection{Title: s.Title, Color: s.Color, Items: append([]string{}, s.Items...)}
	}
	return out
}

func cloneValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	case map[string]any:
		return cloneValues(t)
	default:
		return v
	}
}

// Competitor is one entry of the market share breakdown.
type Competitor struct {
	Name        string  `json:"name"`
	Share       float64 `json:"share"`
	Description string  `json:"description"`
	Own         bool    `json:"own,omitempty"`
}

// Place is a place search hit.
type Place struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// CompetitorLocation ties a place search hit to the competitor it was found for.
type CompetitorLocation struct {
	Place
	Competitor  string  `json:"competitor"`
	MarketShare float64 `json:"market_share"`
	Description string  `json:"description"`
}

// FinancialYear is one row of a multi-year projection, amounts in tkr.
type FinancialYear struct {
	Year    string  `json:"year"`
	Revenue float64 `json:"revenue"`
	Costs   float64 `json:"costs"`
	EBITDA  float64 `json:"ebitda"`
}
