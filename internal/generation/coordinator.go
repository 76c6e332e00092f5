// Package generation coordinates calls to the text, image and place services
// and writes their results into a plan session.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chgenberg/frejfund-site/internal/analysis"
	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
	"github.com/chgenberg/frejfund-site/internal/places"
	"github.com/chgenberg/frejfund-site/internal/session"
)

// Generation kinds recorded in the ledger and published as events.
const (
	KindNarrative   = "narrative"
	KindSwot        = "swot"
	KindManifest    = "manifest"
	KindCompetitors = "competitors"
	KindMarket      = "market_position"
	KindLogo        = "logo"
	KindPlaces      = "places"
	KindAsk         = "ask"
	KindAdvice      = "advice"
	KindPrefill     = "prefill"
	KindAnalyze     = "analyze"
	KindSummary     = "summary"
	KindRadar       = "radar"
	KindFinancial   = "financial"
)

var (
	ErrMissingInput     = errors.New("required answers missing")
	ErrUnknownCategory  = errors.New("unknown analysis category")
	ErrUnknownAdvice    = errors.New("unknown advice kind")
	ErrInsufficientData = errors.New("not enough information to generate")
)

// Recorder persists generation ledger entries.
type Recorder interface {
	RecordGeneration(ctx context.Context, ev *domain.GenerationEvent) error
}

// Publisher pushes live notifications to a visitor's connected clients.
type Publisher interface {
	Publish(userID, sessionID, kind string, data any)
}

// ExchangeLogger records question/answer pairs outside the session.
type ExchangeLogger interface {
	LogExchange(userID, sessionID, kind, question, answer string)
}

// Scope identifies the session a generation runs for.
type Scope struct {
	UserID    string
	SessionID string
	Store     *session.Store
}

// Options configures a Coordinator. Nil collaborators are disabled.
type Options struct {
	Text            llm.TextGenerator
	Images          llm.ImageGenerator
	Places          places.Searcher
	Catalog         *analysis.Catalog
	Recorder        Recorder
	Publisher       Publisher
	Exchanges       ExchangeLogger
	Logger          *slog.Logger
	PendingInterval time.Duration
}

// Coordinator runs generations. It is safe for concurrent use.
type Coordinator struct {
	text      llm.TextGenerator
	images    llm.ImageGenerator
	places    places.Searcher
	catalog   *analysis.Catalog
	recorder  Recorder
	publisher Publisher
	exchanges ExchangeLogger
	logos     *LogoCache
	logger    *slog.Logger
	pending   time.Duration
	now       func() time.Time
}

// New creates a Coordinator.
func New(opts Options) *Coordinator {
	c := &Coordinator{
		text:      opts.Text,
		images:    opts.Images,
		places:    opts.Places,
		catalog:   opts.Catalog,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		exchanges: opts.Exchanges,
		logos:     NewLogoCache(),
		logger:    opts.Logger,
		pending:   opts.PendingInterval,
		now:       time.Now,
	}
	if c.text == nil {
		c.text = llm.Unavailable{Backend: "text"}
	}
	if c.images == nil {
		c.images = llm.Unavailable{Backend: "image"}
	}
	if c.catalog == nil {
		c.catalog = analysis.Default()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pending <= 0 {
		c.pending = time.Second
	}
	return c
}

// Catalog returns the analysis question catalog.
func (c *Coordinator) Catalog() *analysis.Catalog { return c.catalog }

// TextAvailable reports whether a text backend is configured.
func (c *Coordinator) TextAvailable() bool { return llm.IsAvailable(c.text) }

// ImagesAvailable reports whether an image backend is configured.
func (c *Coordinator) ImagesAvailable() bool { return llm.IsAvailable(c.images) }

// PlacesAvailable reports whether place search is configured.
func (c *Coordinator) PlacesAvailable() bool { return c.places != nil && c.places.Enabled() }

// generate runs one text call and records it. The store is never touched here.
func (c *Coordinator) generate(ctx context.Context, sc Scope, kind string, req llm.Request) (string, error) {
	start := c.now()
	text, err := c.text.Generate(ctx, req)
	c.record(ctx, sc, kind, start, err)
	if err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			c.logger.Warn("Text generation unavailable", "kind", kind, "user_id", sc.UserID)
		} else {
			c.logger.Error("Text generation failed", "kind", kind, "user_id", sc.UserID, "error", err)
		}
		return "", err
	}
	return text, nil
}

func (c *Coordinator) record(ctx context.Context, sc Scope, kind string, start time.Time, err error) {
	status := domain.GenerationOK
	var errText string
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		status = domain.GenerationSkipped
	case err != nil:
		status = domain.GenerationFailed
		errText = err.Error()
	}
	c.recordStatus(ctx, sc, kind, status, start, errText)
}

func (c *Coordinator) recordStatus(ctx context.Context, sc Scope, kind, status string, start time.Time, errText string) {
	if c.recorder == nil {
		return
	}
	ev := &domain.GenerationEvent{
		UserID:     sc.UserID,
		SessionID:  sc.SessionID,
		Kind:       kind,
		Status:     status,
		DurationMS: c.now().Sub(start).Milliseconds(),
		Error:      errText,
		CreatedAt:  start,
	}
	if err := c.recorder.RecordGeneration(context.WithoutCancel(ctx), ev); err != nil {
		c.logger.Warn("Failed to record generation", "kind", kind, "user_id", sc.UserID, "error", err)
	}
}

func (c *Coordinator) publish(sc Scope, kind string, data any) {
	if c.publisher == nil || sc.UserID == "" {
		return
	}
	c.publisher.Publish(sc.UserID, sc.SessionID, kind, data)
}

func (c *Coordinator) artifactReady(sc Scope, name string) {
	c.publish(sc, "artifact", map[string]string{"name": name})
}

func (c *Coordinator) logExchange(sc Scope, kind, question, answer string) {
	if c.exchanges == nil {
		return
	}
	c.exchanges.LogExchange(sc.UserID, sc.SessionID, kind, question, answer)
}

// GenerateNarrative produces the full business plan text and stores it verbatim.
func (c *Coordinator) GenerateNarrative(ctx context.Context, sc Scope) (string, error) {
	prompt := narrativePrompt(sc.Store.Answers())
	text, err := c.generate(ctx, sc, KindNarrative, llm.Request{Prompt: prompt, Temperature: 0.7})
	if err != nil {
		return llm.FailureText(err), err
	}
	sc.Store.Set(domain.KeyBusinessPlan, text)
	c.artifactReady(sc, domain.ArtifactBusinessPlan)
	return text, nil
}

// SwotResult is the outcome of a SWOT generation.
type SwotResult struct {
	Text     string               `json:"text"`
	Sections []domain.SwotSection `json:"sections"`
	Diagram  []byte               `json:"-"`
}

// GenerateSwot produces the SWOT text, parses it and renders the diagram.
func (c *Coordinator) GenerateSwot(ctx context.Context, sc Scope) (SwotResult, error) {
	prompt := swotPrompt(sc.Store.Answers())
	text, err := c.generate(ctx, sc, KindSwot, llm.Request{Prompt: prompt})
	if err != nil {
		return SwotResult{Text: llm.FailureText(err)}, err
	}

	sections := ParseSwot(text)
	diagram, derr := RenderSwotDiagram(sections)
	if derr != nil {
		c.logger.Warn("SWOT diagram rendering failed", "user_id", sc.UserID, "error", derr)
	}

	sc.Store.UpdateArtifacts(func(a *domain.Artifacts) {
		a.SwotText = text
		a.SwotSections = sections
		if derr == nil {
			a.SwotDiagramImage = diagram
		}
	})
	sc.Store.AppendExchange("Generera SWOT-analys", text)
	c.artifactReady(sc, domain.ArtifactSwotText)
	return SwotResult{Text: text, Sections: sections, Diagram: diagram}, nil
}

// CompetitorResult carries a market share breakdown.
type CompetitorResult struct {
	Competitors []domain.Competitor `json:"competitors"`
	Fallback    bool                `json:"fallback"`
}

// GenerateCompetitors asks for named competitors in the visitor's industry and city.
func (c *Coordinator) GenerateCompetitors(ctx context.Context, sc Scope) (CompetitorResult, error) {
	answers := answerView(sc.Store.Answers())
	industry := answers.get(domain.KeyProductOffering, "")
	city := answers.get(domain.KeyCity, "")
	if industry == "" || city == "" {
		return CompetitorResult{}, ErrMissingInput
	}

	start := c.now()
	text, err := c.text.Generate(ctx, llm.Request{Prompt: competitorListPrompt(industry, city)})
	if err != nil {
		c.logger.Warn("Competitor generation failed, using fallback", "user_id", sc.UserID, "error", err)
		text = ""
	}
	competitors, fallback := buildCompetitors(text, answers.get(domain.KeyCompanyName, DefaultOwnName), OwnDescription)
	c.recordCompetitors(ctx, sc, KindCompetitors, start, err, fallback)
	return CompetitorResult{Competitors: competitors, Fallback: fallback}, nil
}

func (c *Coordinator) recordCompetitors(ctx context.Context, sc Scope, kind string, start time.Time, err error, fallback bool) {
	switch {
	case err != nil:
		c.record(ctx, sc, kind, start, err)
	case fallback:
		c.recordStatus(ctx, sc, kind, domain.GenerationFallback, start, "")
	default:
		c.record(ctx, sc, kind, start, nil)
	}
}

// GenerateLogo creates a logo image for prompt. An empty prompt uses
// DefaultLogoPrompt. Failures keep the previous logo.
func (c *Coordinator) GenerateLogo(ctx context.Context, sc Scope, prompt string) (string, error) {
	answers := answerView(sc.Store.Answers())
	if prompt == "" {
		prompt = DefaultLogoPrompt(answers.get(domain.KeyCompanyName, DefaultOwnName), answers.get(domain.KeyProductOffering, "produkter"))
	}

	start := c.now()
	u, cached, err := c.logos.Get(ctx, prompt, func(ctx context.Context) (string, error) {
		return c.images.GenerateImage(ctx, prompt)
	})
	if !cached {
		c.record(ctx, sc, KindLogo, start, err)
	}
	if err != nil {
		c.logger.Warn("Logo generation failed", "user_id", sc.UserID, "error", err)
		return "", err
	}
	sc.Store.Set(domain.ArtifactLogo, u)
	c.artifactReady(sc, domain.ArtifactLogo)
	return u, nil
}

// StandardLogo stores a placeholder logo for the company name.
func (c *Coordinator) StandardLogo(sc Scope) (string, error) {
	name := answerView(sc.Store.Answers()).get(domain.KeyCompanyName, "")
	if name == "" {
		return "", ErrMissingInput
	}
	u := StandardLogoURL(name)
	sc.Store.Set(domain.ArtifactLogo, u)
	c.artifactReady(sc, domain.ArtifactLogo)
	return u, nil
}

// Ask answers a free-form question about the plan. The question and answer
// are appended to the conversation log; the last ten entries are sent as history.
func (c *Coordinator) Ask(ctx context.Context, sc Scope, question string) (string, error) {
	if question == "" {
		return "", ErrMissingInput
	}
	sc.Store.AppendMessage(domain.RoleUser, question)
	history := sc.Store.RecentConversation(10)
	prompt := questionPrompt(sc.Store.Answers(), question)

	answer, err := c.generate(ctx, sc, KindAsk, llm.Request{Prompt: prompt, History: history})
	if err != nil {
		answer = llm.FailureText(err)
	}
	sc.Store.AppendMessage(domain.RoleAssistant, answer)
	c.logExchange(sc, KindAsk, question, answer)
	return answer, err
}
