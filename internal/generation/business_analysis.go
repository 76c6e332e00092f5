package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/chgenberg/frejfund-site/internal/analysis"
	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/session"
)

// SummaryKey is the analysis result name of the overall summary.
const SummaryKey = "sammanfattning"

// DefaultRating is used when no rating is found in the summary.
const DefaultRating = 5

var (
	ratingRe    = regexp.MustCompile(`(?i)(?:betyg|poäng|score)\D*(\d{1,2})(?:/10)?`)
	jsonBlockRe = regexp.MustCompile("```json([\\s\\S]*?)```")
	numberRe    = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// RadarCategories label the five radar axes.
var RadarCategories = []string{"Produkt/Tjänst", "Marknad", "Team", "Ekonomi", "Risk/Exit"}

// RadarBenchmark is the industry average shown next to the scores.
var RadarBenchmark = []float64{7, 6, 7, 5, 6}

var radarFallbackFactors = []float64{0.8, 0.9, 1.1, 0.7, 1.0}

// PrefillResult describes the outcome of a prefill run.
type PrefillResult struct {
	Category string            `json:"category"`
	Applied  map[string]string `json:"applied"`
	Skipped  bool              `json:"skipped"`
}

// importAnswers copies the mapped plan answers belonging to categoryID into
// the analysis answers. Other categories are left untouched.
func (c *Coordinator) importAnswers(sc Scope, categoryID string) map[string]string {
	a := answerView(sc.Store.Answers())
	mapped := analysis.ImportFromAnswers(
		a.get(domain.KeyProductOffering, ""),
		a.get(domain.KeyStrategy, ""),
		a.get(domain.KeyTargetAudience, ""),
	)
	imported := make(map[string]string)
	values := make(map[string]any)
	for k, v := range mapped {
		if !strings.HasPrefix(k, categoryID+"_") {
			continue
		}
		imported[k] = v
		values[k] = v
	}
	if len(values) > 0 {
		sc.Store.SetAnalysisAnswers(values)
	}
	return imported
}

// PrefillCategory fills a category from the plan answers and model
// suggestions. It runs at most once per category until the marker is cleared.
func (c *Coordinator) PrefillCategory(ctx context.Context, sc Scope, categoryID string) (PrefillResult, error) {
	cat, ok := c.catalog.Category(categoryID)
	if !ok {
		return PrefillResult{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
	}
	if !sc.Store.MarkPrefilled(categoryID) {
		return PrefillResult{Category: categoryID, Applied: map[string]string{}, Skipped: true}, nil
	}

	applied := c.importAnswers(sc, categoryID)
	suggested, err := c.suggest(ctx, sc, cat)
	for k, v := range suggested {
		applied[k] = v
	}
	return PrefillResult{Category: categoryID, Applied: applied}, err
}

// RefillCategory re-runs the model suggestions for a category regardless of its marker.
func (c *Coordinator) RefillCategory(ctx context.Context, sc Scope, categoryID string) (PrefillResult, error) {
	cat, ok := c.catalog.Category(categoryID)
	if !ok {
		return PrefillResult{}, fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
	}
	sc.Store.MarkPrefilled(categoryID)
	applied, err := c.suggest(ctx, sc, cat)
	return PrefillResult{Category: categoryID, Applied: applied}, err
}

func (c *Coordinator) suggest(ctx context.Context, sc Scope, cat *analysis.Category) (map[string]string, error) {
	prompt := prefillPrompt(sc.Store.Answers(), cat)
	raw, err := c.generate(ctx, sc, KindPrefill, llm.Request{Prompt: prompt, Temperature: 0.4})
	if err != nil {
		return map[string]string{}, err
	}
	suggestions := ParseSuggestions(raw)

	applied := make(map[string]string)
	values := make(map[string]any)
	for _, q := range cat.Questions {
		answer, ok := suggestions[q.Text]
		if !ok {
			continue
		}
		v, ok := acceptSuggestion(q, answer)
		if !ok {
			continue
		}
		key := analysis.AnswerKey(cat.ID, q.Key)
		values[key] = v
		applied[key] = formatAnswer(v)
	}
	sc.Store.SetAnalysisAnswers(values)
	return applied, nil
}

// ParseSuggestions extracts a question→answer map from model output: a fenced
// JSON block, the whole text as JSON, or "question: answer" lines.
func ParseSuggestions(raw string) map[string]any {
	body := raw
	if m := jsonBlockRe.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &out); err == nil {
		return out
	}

	out = make(map[string]any)
	for _, line := range strings.Split(raw, "\n") {
		q, a, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		q = strings.Trim(strings.TrimSpace(q), `"`)
		a = strings.Trim(strings.TrimSuffix(strings.TrimSpace(a), ","), `"`)
		out[q] = a
	}
	return out
}

func acceptSuggestion(q analysis.Question, v any) (any, bool) {
	switch q.Type {
	case analysis.TypeSelect:
		s, ok := v.(string)
		if !ok || !slices.Contains(q.Options, s) {
			return nil, false
		}
		return s, true
	case analysis.TypeMultiSelect:
		var picked []any
		for _, s := range session.StringList(v) {
			if slices.Contains(q.Options, s) {
				picked = append(picked, s)
			}
		}
		return picked, len(picked) > 0
	default:
		s := strings.TrimSpace(formatAnswer(v))
		return s, s != ""
	}
}

// AnalyzeCategory asks for feedback on one category's answers and stores it.
func (c *Coordinator) AnalyzeCategory(ctx context.Context, sc Scope, categoryID string) (string, error) {
	cat, ok := c.catalog.Category(categoryID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, categoryID)
	}
	text, err := c.generate(ctx, sc, KindAnalyze, llm.Request{Prompt: analyzePrompt(cat, sc.Store.AnalysisAnswers())})
	if err != nil {
		return llm.FailureText(err), err
	}
	sc.Store.SetAnalysisResult(categoryID, text)
	return text, nil
}

// Summary is the overall analysis with its extracted rating.
type Summary struct {
	Text      string `json:"text"`
	Rating    int    `json:"rating"`
	HasRating bool   `json:"has_rating"`
}

// Summarize produces the overall analysis and extracts a 1..10 rating.
func (c *Coordinator) Summarize(ctx context.Context, sc Scope) (Summary, error) {
	text, err := c.generate(ctx, sc, KindSummary, llm.Request{Prompt: summaryPrompt(sc.Store.AnalysisAnswers())})
	if err != nil {
		return Summary{Text: llm.FailureText(err), Rating: DefaultRating}, err
	}
	sc.Store.SetAnalysisResult(SummaryKey, text)
	rating, ok := ExtractRating(text)
	if !ok {
		rating = DefaultRating
	}
	return Summary{Text: text, Rating: rating, HasRating: ok}, nil
}

// ExtractRating finds a rating keyword followed by a number between 1 and 10.
func ExtractRating(text string) (int, bool) {
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 10 {
		return 0, false
	}
	return n, true
}

// StoredRating returns the rating of the stored summary, or DefaultRating.
func StoredRating(store *session.Store) int {
	if r, ok := ExtractRating(store.AnalysisResult(SummaryKey)); ok {
		return r
	}
	return DefaultRating
}

// Radar holds the five category scores.
type Radar struct {
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
	Benchmark  []float64 `json:"benchmark"`
	Strong     []string  `json:"strong"`
	Weak       []string  `json:"weak"`
	Fallback   bool      `json:"fallback"`
}

// RadarScores asks for five 1..10 scores. When fewer than five numbers come
// back the scores are derived from rating.
func (c *Coordinator) RadarScores(ctx context.Context, sc Scope, rating int) (Radar, error) {
	prompt := radarPrompt(sc.Store.AnalysisAnswer)
	text, err := c.generate(ctx, sc, KindRadar, llm.Request{Prompt: prompt, Temperature: 0.3})
	values, ok := ParseScores(text)
	if err != nil || !ok {
		values = FallbackScores(rating)
	}
	return newRadar(values, err != nil || !ok), nil
}

// ParseScores takes the first five numbers in text, clamped to 1..10.
func ParseScores(text string) ([]float64, bool) {
	found := numberRe.FindAllString(text, -1)
	if len(found) < len(RadarCategories) {
		return nil, false
	}
	values := make([]float64, len(RadarCategories))
	for i := range values {
		v, err := strconv.ParseFloat(found[i], 64)
		if err != nil {
			return nil, false
		}
		values[i] = math.Min(math.Max(v, 1), 10)
	}
	return values, true
}

// FallbackScores derives the five scores from an overall rating.
func FallbackScores(rating int) []float64 {
	values := make([]float64, len(radarFallbackFactors))
	for i, f := range radarFallbackFactors {
		values[i] = float64(rating) * f
	}
	return values
}

func newRadar(values []float64, fallback bool) Radar {
	r := Radar{
		Categories: RadarCategories,
		Values:     values,
		Benchmark:  RadarBenchmark,
		Strong:     []string{},
		Weak:       []string{},
		Fallback:   fallback,
	}
	for i, v := range values {
		switch {
		case v >= 7:
			r.Strong = append(r.Strong, RadarCategories[i])
		case v <= 4:
			r.Weak = append(r.Weak, RadarCategories[i])
		}
	}
	return r
}

// MarketPosition builds a market share breakdown from the analysis answers on
// market trends and competition.
func (c *Coordinator) MarketPosition(ctx context.Context, sc Scope) (CompetitorResult, error) {
	market := sc.Store.AnalysisAnswer(analysis.KeyMarketTrends)
	competition := sc.Store.AnalysisAnswer(analysis.KeyCompetition)
	if len([]rune(market)) <= 10 || len([]rune(competition)) <= 10 {
		return CompetitorResult{}, ErrInsufficientData
	}

	start := c.now()
	text, err := c.text.Generate(ctx, llm.Request{Prompt: marketPositionPrompt(market, competition)})
	if err != nil {
		c.logger.Warn("Market position generation failed, using fallback", "user_id", sc.UserID, "error", err)
		text = ""
	}
	competitors, fallback := buildCompetitors(text, DefaultOwnName, marketOwnDescription)
	c.recordCompetitors(ctx, sc, KindMarket, start, err, fallback)
	return CompetitorResult{Competitors: competitors, Fallback: fallback}, nil
}
