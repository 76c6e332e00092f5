package generation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/chgenberg/frejfund-site/internal/analysis"
	"github.com/chgenberg/frejfund-site/internal/domain"
)

// answerView reads plan answers with per-call defaults.
type answerView map[string]any

func (a answerView) get(key, def string) string {
	if s, ok := a[key].(string); ok && s != "" {
		return s
	}
	return def
}

func narrativePrompt(a answerView) string {
	return fmt.Sprintf("Jag vill öppna en butik i %s med målgruppen %s. "+
		"Jag ska sälja %s och siktar på en '%s'-strategi. "+
		"Jag vill starta inom %s med en budget på %s. "+
		"Min erfarenhet inom området är: %s. "+
		"Företaget ska heta: %s. "+
		"Ge mig en utförlig och futuristisk affärsplan, med tips på marknadsföring, "+
		"konkurrentanalys, hur jag bäst får tag på leverantörer, och en detaljerad ekonomisk plan. "+
		"Affärsplanen ska ha professionell struktur med rubriker och tydliga avsnitt.",
		a.get(domain.KeyCity, "N/A"),
		a.get(domain.KeyTargetAudience, "N/A"),
		a.get(domain.KeyProductOffering, "N/A"),
		a.get(domain.KeyStrategy, "N/A"),
		a.get(domain.KeyTimeline, "N/A"),
		a.get(domain.KeyBudget, "N/A"),
		a.get(domain.KeyExperience, "Begränsad"),
		a.get(domain.KeyCompanyName, "Ej namngivet ännu"),
	)
}

func swotPrompt(a answerView) string {
	return fmt.Sprintf(`Gör en detaljerad SWOT-analys för ett företag som säljer %s
i %s med målgruppen %s
och en %s-strategi.

Ge minst 5 punkter för varje kategori:
1. Styrkor (Strengths)
2. Svagheter (Weaknesses)
3. Möjligheter (Opportunities)
4. Hot (Threats)

Basera analysen på konkret marknadsinformation och branschinsikter.`,
		a.get(domain.KeyProductOffering, "produkter"),
		a.get(domain.KeyCity, "en stad"),
		a.get(domain.KeyTargetAudience, "konsumenter"),
		a.get(domain.KeyStrategy, "ospecificerad"),
	)
}

func manifestPrompt(a answerView) string {
	return fmt.Sprintf(`Skapa ett inspirerande och kraftfullt företagsmanifest för ett företag som säljer %s
med fokus på %s och en %s-strategi.

Manifestet ska inkludera:
1. En inspirerande vision
2. 3-5 kärnvärderingar med korta förklaringar
3. Ett löfte till kunderna
4. En kort beskrivning av företagets syfte och betydelse

Skriv i en inspirerande, kraftfull ton som förmedlar företagets passion och ambition.
Manifestet ska vara omkring 250-300 ord långt.`,
		a.get(domain.KeyProductOffering, "produkter"),
		a.get(domain.KeyTargetAudience, "kunder"),
		a.get(domain.KeyStrategy, "ospecificerad"),
	)
}

func competitorListPrompt(industry, city string) string {
	return fmt.Sprintf(`Generera en lista med 4-6 namngivna konkurrentföretag inom %s i %s.
För varje konkurrent, ange en uppskattad marknadsandel i procent (totalt 100%%) och en kort beskrivning.
Formatera som: Företag|Marknadsandel|Beskrivning`, industry, city)
}

func marketPositionPrompt(market, competition string) string {
	return fmt.Sprintf(`Baserat på denna beskrivning av marknaden och konkurrenter:
Marknad: %s
Konkurrenter: %s

Generera en lista med 3-6 konkurrentföretag och deras marknadsandelar i procent (totalt 100%%).
Inkludera även företagsnamn och kort beskrivning.
Formatet ska vara: Företag|Marknadsandel|Beskrivning`, market, competition)
}

// DefaultLogoPrompt is the editable starting text for a custom logo.
func DefaultLogoPrompt(company, product string) string {
	if product == "" {
		product = "produkter"
	}
	return "Skapa en modern, professionell logotyp för ett företag som heter " + company +
		" som säljer " + product +
		". Använd en stilren design med rena linjer och en elegant färgpalett."
}

func questionContext(a answerView) string {
	return fmt.Sprintf("Fråga om affärsplan för att sälja %s i %s med en %s-strategi.",
		a.get(domain.KeyProductOffering, "produkter"),
		a.get(domain.KeyCity, "en stad"),
		a.get(domain.KeyStrategy, "ospecificerad"),
	)
}

func questionPrompt(a answerView, question string) string {
	return fmt.Sprintf("Baserat på följande kontext: %s\n\nFråga: %s", questionContext(a), question)
}

func prefillPrompt(answers map[string]any, cat *analysis.Category) string {
	return "Du är en affärscoach som ska hjälpa en entreprenör att fylla i en affärsanalys. " +
		"Entreprenören har tidigare lämnat följande information (user_data):\n" +
		indentJSON(answers) + "\n\n" +
		"Baserat på denna info, gissa korta (1-2 meningar) preliminära svar på frågorna i sektionen. " +
		"Returnera ENDAST giltig JSON med exakt samma nycklar som i mallen nedan.\n\n" +
		"Mall:\n" + questionTemplate(cat)
}

// questionTemplate renders {"<question>": ""} in catalog order.
func questionTemplate(cat *analysis.Category) string {
	var b strings.Builder
	b.WriteString("{\n")
	for i, q := range cat.Questions {
		b.WriteString("  ")
		b.WriteString(jsonString(q.Text))
		b.WriteString(": \"\"")
		if i < len(cat.Questions)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

func analyzePrompt(cat *analysis.Category, answers map[string]any) string {
	var b strings.Builder
	for _, q := range cat.Questions {
		fmt.Fprintf(&b, "%s: %s\n", q.Text, formatAnswer(answers[analysis.AnswerKey(cat.ID, q.Key)]))
	}
	return fmt.Sprintf(`Analysera följande svar om %s för en affärsplan:

%s
Ge konstruktiv feedback på styrkor och svagheter i svaren.
Identifiera vad som är bra och vad som kan förbättras.
Ge konkreta rekommendationer för hur svaren kan stärkas.

Formatera ditt svar som en analys med Styrkor, Svagheter och Rekommendationer.`, cat.ID, b.String())
}

func summaryPrompt(answers map[string]any) string {
	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, formatAnswer(answers[k]))
	}
	return fmt.Sprintf(`Analysera följande svar för en affärsplan:

%s
Ge en sammanfattande analys som utvärderar affärsplanen utifrån följande fem perspektiv:
1. Affärsidé & Lösning – Är idén tydlig och erbjuder lösningen en stark differentiering?
2. Marknad, Kunder & Traktion – Finns en definierad marknad, betalande kunder och bevisad efterfrågan?
3. Team & Organisation – Har teamet kapacitet och struktur att genomföra planen?
4. Affärsmodell & Ekonomi – Är modellen skalbar och leder den till lönsam tillväxt?
5. Risk, Hållbarhet & Exit – Hanteras risker och hållbarhet väl och finns en attraktiv exit-väg?

Sammanfatta med en rekommendation och totalbetyg (1-10) på affärsplanens kvalitet.
Ge också specifika förslag på förbättringsområden.`, b.String())
}

func radarPrompt(get func(string) string) string {
	return fmt.Sprintf(`Baserat på följande information om ett startup-företag,
ge ett poäng mellan 1-10 för var och en av följande kategorier.
Svara ENBART med siffror i formatet x,x,x,x,x där varje x är ett tal mellan 1-10.

Produkt/Tjänst: %s
Marknad: %s
Team: %s
Ekonomi: %s
Risk/Exit: %s

1 = mycket svag, 10 = extremt stark`,
		get(analysis.KeyProductDescription),
		get(analysis.KeyMarketSize),
		get(analysis.KeyTeamMembers),
		get(analysis.KeyRevenueModel),
		get(analysis.KeyExitPlan),
	)
}

func financialPrompt(projections, revenueModel string) string {
	return fmt.Sprintf(`Baserat på denna finansiella information:
Finansiell prognos: %s
Intäktsmodell: %s

Generera en 5-årig prognos för omsättning, kostnader och EBITDA (i tkr).
Formatet ska vara: År,Omsättning,Kostnader,EBITDA`, projections, revenueModel)
}

func formatAnswer(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprint(e))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}

func indentJSON(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(b.String(), "\n")
}

func jsonString(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimRight(b.String(), "\n")
}
