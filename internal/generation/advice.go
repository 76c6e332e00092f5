package generation

import (
	"context"
	"fmt"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
)

// AdviceKind selects one of the topical advice prompts.
type AdviceKind string

// Advice kinds.
const (
	AdviceCityFacts          AdviceKind = "city_facts"
	AdviceProductTrends      AdviceKind = "product_trends"
	AdviceCompetitorAnalysis AdviceKind = "competitor_analysis"
	AdviceSuppliers          AdviceKind = "suppliers"
	AdviceUSP                AdviceKind = "usp"
	AdviceCostEstimate       AdviceKind = "cost_estimate"
	AdviceROI                AdviceKind = "roi"
	AdviceFinancing          AdviceKind = "financing"
)

// AdviceKinds lists every advice kind.
var AdviceKinds = []AdviceKind{
	AdviceCityFacts, AdviceProductTrends, AdviceCompetitorAnalysis, AdviceSuppliers,
	AdviceUSP, AdviceCostEstimate, AdviceROI, AdviceFinancing,
}

type advicePrompt struct {
	prompt string
	// label is the log entry for the request; empty means the exchange is not logged.
	label string
}

func buildAdvice(kind AdviceKind, a answerView, query string) (advicePrompt, error) {
	switch kind {
	case AdviceCityFacts:
		city := firstNonEmpty(query, a.get(domain.KeyCity, ""))
		if city == "" {
			return advicePrompt{}, ErrMissingInput
		}
		return advicePrompt{prompt: fmt.Sprintf("Ge mig relevant affärsinformation om %s som kan vara användbar för någon som vill starta företag där. Inkludera befolkningsmängd, demografisk information, näringsliv och eventuella unika möjligheter.", city)}, nil

	case AdviceProductTrends:
		product := firstNonEmpty(query, a.get(domain.KeyProductOffering, ""))
		if product == "" {
			return advicePrompt{}, ErrMissingInput
		}
		return advicePrompt{prompt: fmt.Sprintf("Ge mig aktuella marknadstrender för försäljning av %s i Sverige. Inkludera information om målgrupper, prissättningsstrategier och eventuella unika säljargument.", product)}, nil

	case AdviceCompetitorAnalysis:
		competitors := firstNonEmpty(query, a.get(domain.KeyCompetitors, ""))
		if competitors == "" {
			return advicePrompt{}, ErrMissingInput
		}
		return advicePrompt{
			prompt: fmt.Sprintf("Gör en konkurrentanalys för försäljning av %s i %s. "+
				"Fokusera specifikt på konkurrenterna %s. "+
				"Inkludera deras styrkor, svagheter och hur man kan differentiera sig från dem.",
				a.get(domain.KeyProductOffering, ""), a.get(domain.KeyCity, ""), competitors),
			label: "Konkurrentanalys för " + competitors,
		}, nil

	case AdviceSuppliers:
		product := a.get(domain.KeyProductOffering, "")
		p := fmt.Sprintf("Ge specifika rekommendationer på leverantörer för %s i %s. "+
			"Inkludera namn på företag, eventuella kontaktuppgifter och vad som gör dem lämpliga som leverantörer.",
			product, "Sverige")
		if query != "" {
			p += " Jag söker särskilt: " + query + "."
		}
		return advicePrompt{prompt: p, label: "Leverantörsanalys för " + product}, nil

	case AdviceUSP:
		return advicePrompt{
			prompt: fmt.Sprintf("Baserat på följande information, föreslå ett starkt unikt säljargument (USP) för verksamheten: "+
				"Stad: %s, Målgrupp: %s, Produkter: %s, Strategi: %s. Ge tre olika alternativ med förklaring.",
				a.get(domain.KeyCity, "N/A"), a.get(domain.KeyTargetAudience, "N/A"),
				a.get(domain.KeyProductOffering, "N/A"), a.get(domain.KeyStrategy, "N/A")),
			label: "Förslag på unikt säljargument",
		}, nil

	case AdviceCostEstimate:
		return advicePrompt{
			prompt: fmt.Sprintf("Gör en detaljerad kostnadsuppskattning för att starta en butik för %s i %s med en %s-strategi. "+
				"Inkludera alla relevanta kostnader som hyra, inredning, personal, lager, marknadsföring, etc. "+
				"Ge kostnadsuppskattningar i svenska kronor baserat på aktuell marknadssituation.",
				a.get(domain.KeyProductOffering, "N/A"), a.get(domain.KeyCity, "N/A"), a.get(domain.KeyStrategy, "N/A")),
			label: "Kostnadsuppskattning för min verksamhet",
		}, nil

	case AdviceROI:
		return advicePrompt{
			prompt: fmt.Sprintf("Gör en ROI-analys (Return on Investment) för en verksamhet som säljer %s i %s med en startbudget på %s. "+
				"Inkludera break-even-analys, förväntad vinst över tid (1, 2 och 3 år), och ge realistiska prognoser.",
				a.get(domain.KeyProductOffering, "N/A"), a.get(domain.KeyCity, "N/A"), a.get(domain.KeyBudget, "N/A")),
			label: "ROI-analys för min verksamhet",
		}, nil

	case AdviceFinancing:
		return advicePrompt{
			prompt: fmt.Sprintf("Ge mig en översikt över olika finansieringsalternativ för att starta en butik för %s i Sverige. "+
				"Inkludera information om banklån, crowdfunding, Almi, riskkapital, etc. "+
				"Vad skulle vara mest lämpligt för ett företag med en budget på %s?",
				a.get(domain.KeyProductOffering, "N/A"), a.get(domain.KeyBudget, "N/A")),
			label: "Finansieringsalternativ för min verksamhet",
		}, nil
	}
	return advicePrompt{}, fmt.Errorf("%w: %q", ErrUnknownAdvice, kind)
}

// Advice runs one topical advice prompt. Kinds with a log label append a
// user/assistant pair to the conversation log on success.
func (c *Coordinator) Advice(ctx context.Context, sc Scope, kind AdviceKind, query string) (string, error) {
	p, err := buildAdvice(kind, sc.Store.Answers(), query)
	if err != nil {
		return "", err
	}
	text, err := c.generate(ctx, sc, KindAdvice+":"+string(kind), llm.Request{Prompt: p.prompt})
	if err != nil {
		return llm.FailureText(err), err
	}
	if p.label != "" {
		sc.Store.AppendExchange(p.label, text)
		c.logExchange(sc, string(kind), p.label, text)
	}
	return text, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
