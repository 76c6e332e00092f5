package generation

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSwotLimitsItemsAndLength(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for _, header := range []string{"Styrkor (Strengths):", "Svagheter (Weaknesses):", "Möjligheter (Opportunities):", "Hot (Threats):"} {
		b.WriteString(header + "\n")
		for i := 1; i <= 6; i++ {
			fmt.Fprintf(&b, "%d. Punkt nummer %d med en mycket lång förklarande text som fortsätter och fortsätter\n", i, i)
		}
		b.WriteString("\n")
	}

	sections := ParseSwot(b.String())
	require.Len(t, sections, 4)
	assert.Equal(t, "Styrkor", sections[0].Title)
	assert.Equal(t, "Hot", sections[3].Title)
	for _, s := range sections {
		assert.Len(t, s.Items, SwotMaxItems, s.Title)
		for _, it := range s.Items {
			assert.LessOrEqual(t, utf8.RuneCountInString(it), SwotMaxRunes)
			assert.True(t, strings.HasSuffix(it, "..."))
			assert.True(t, strings.HasPrefix(it, "Punkt nummer"), it)
		}
	}
}

func TestParseSwotPlaceholderForMissingQuadrant(t *testing.T) {
	t.Parallel()

	sections := ParseSwot("Styrkor:\n- Bra läge\n- Kunnig personal\nnågon löptext\n\nSvagheter:\n* Liten budget")
	require.Len(t, sections, 4)
	assert.Equal(t, []string{"Bra läge", "Kunnig personal"}, sections[0].Items)
	assert.Equal(t, []string{"Liten budget"}, sections[1].Items)
	assert.Equal(t, []string{SwotPlaceholder}, sections[2].Items)
	assert.Equal(t, []string{SwotPlaceholder}, sections[3].Items)
}

func TestParseSwotIgnoresBulletsBeforeFirstHeader(t *testing.T) {
	t.Parallel()

	sections := ParseSwot("- inledning\nWeaknesses\n- Få kunder")
	assert.Equal(t, []string{SwotPlaceholder}, sections[0].Items)
	assert.Equal(t, []string{"Få kunder"}, sections[1].Items)
}

func TestTruncateItemKeepsShortText(t *testing.T) {
	t.Parallel()

	short := strings.Repeat("å", SwotMaxRunes)
	assert.Equal(t, short, truncateItem(short))

	long := strings.Repeat("ö", SwotMaxRunes+1)
	got := truncateItem(long)
	assert.Equal(t, strings.Repeat("ö", SwotKeepRunes)+"...", got)
}

func TestParseCompetitors(t *testing.T) {
	t.Parallel()

	text := "Här är listan:\nEspresso House|30%|Rikstäckande kedja\nWaynes Coffee | 20 | Café\nutan andel|många|x\nbara text"
	got := ParseCompetitors(text)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Competitor{Name: "Espresso House", Share: 30, Description: "Rikstäckande kedja"}, got[0])
	assert.Equal(t, "Waynes Coffee", got[1].Name)
	assert.InDelta(t, 20, got[1].Share, 0.001)
}

func TestBuildCompetitorsFallbackSumsToHundred(t *testing.T) {
	t.Parallel()

	comps, fallback := buildCompetitors("inget användbart", "Bönan AB", OwnDescription)
	require.True(t, fallback)
	require.Len(t, comps, 5)

	total := 0.0
	for _, c := range comps {
		total += c.Share
	}
	assert.InDelta(t, 100, total, 0.001)

	own := comps[len(comps)-1]
	assert.True(t, own.Own)
	assert.Equal(t, "Bönan AB", own.Name)
	assert.InDelta(t, 5, own.Share, 0.001)
	assert.InDelta(t, 35*0.95, comps[0].Share, 0.001)
}

func TestBuildCompetitorsParsedSumsToHundred(t *testing.T) {
	t.Parallel()

	comps, fallback := buildCompetitors("A|50|Störst\nB|30|Mellan\nC|20|Minst", "Bönan AB", OwnDescription)
	require.False(t, fallback)
	require.Len(t, comps, 4)

	total := 0.0
	for _, c := range comps {
		total += c.Share
	}
	assert.InDelta(t, 100, total, 0.001)

	own := comps[len(comps)-1]
	assert.True(t, own.Own)
	assert.LessOrEqual(t, own.Share, 5.0)
	assert.InDelta(t, 50*0.95, comps[0].Share, 0.001)
}

func TestWithOwnCompanySmallMarket(t *testing.T) {
	t.Parallel()

	comps := WithOwnCompany([]domain.Competitor{{Name: "A", Share: 20}}, DefaultOwnName, marketOwnDescription)
	require.Len(t, comps, 2)
	assert.InDelta(t, 2, comps[1].Share, 0.001)
	assert.InDelta(t, 19.6, comps[0].Share, 0.001)
	assert.Equal(t, "Din position", comps[1].Description)
}

func TestExtractRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{"Sammantaget betyg: 8/10", 8, true},
		{"POÄNG 10 av 10", 10, true},
		{"Overall score - 3", 3, true},
		{"Betyg: 11", 0, false},
		{"Poäng 0", 0, false},
		{"Inget omdöme", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractRating(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

func TestParseScores(t *testing.T) {
	t.Parallel()

	got, ok := ParseScores("7,8,6,5,9")
	require.True(t, ok)
	assert.Equal(t, []float64{7, 8, 6, 5, 9}, got)

	got, ok = ParseScores("12, 0.5, 3, 4, 5, 6")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 1, 3, 4, 5}, got)

	_, ok = ParseScores("7, 8")
	assert.False(t, ok)
}

func TestFallbackScoresAndRadarBuckets(t *testing.T) {
	t.Parallel()

	values := FallbackScores(5)
	assert.InDeltaSlice(t, []float64{4, 4.5, 5.5, 3.5, 5}, values, 0.0001)

	r := newRadar([]float64{8, 4, 7, 2, 5}, false)
	assert.Equal(t, []string{"Produkt/Tjänst", "Team"}, r.Strong)
	assert.Equal(t, []string{"Marknad", "Ekonomi"}, r.Weak)
	assert.Equal(t, RadarBenchmark, r.Benchmark)
}

func TestParseFinancial(t *testing.T) {
	t.Parallel()

	text := "År,Omsättning,Kostnader,EBITDA\nÅr 1, 500 tkr, 800 tkr, -300 tkr\nÅr 2,1200,1000,200\nÅr 3,x,1,2\nskräp 1,2"
	got := ParseFinancial(text)
	require.Len(t, got, 2)
	assert.Equal(t, domain.FinancialYear{Year: "År 1", Revenue: 500, Costs: 800, EBITDA: -300}, got[0])
	assert.Equal(t, "År 2", BreakEvenYear(got))
}

func TestFallbackProjection(t *testing.T) {
	t.Parallel()

	years := FallbackProjection()
	require.Len(t, years, 5)
	assert.Equal(t, "År 1", years[0].Year)
	assert.InDelta(t, 1000, years[0].Revenue, 0.001)
	assert.InDelta(t, -200, years[0].EBITDA, 0.001)
	assert.InDelta(t, 6250, years[2].Revenue, 0.001)
	assert.InDelta(t, 1875, years[2].EBITDA, 0.001)
	assert.Equal(t, "År 3", BreakEvenYear(years))
}

func TestBreakEvenYearNone(t *testing.T) {
	t.Parallel()

	assert.Empty(t, BreakEvenYear([]domain.FinancialYear{{Year: "1", EBITDA: -1}, {Year: "2", EBITDA: 0}}))
	assert.Equal(t, "1", BreakEvenYear([]domain.FinancialYear{{Year: "1", EBITDA: 5}}))
}

func TestParseSuggestions(t *testing.T) {
	t.Parallel()

	fenced := "Här är förslagen:\n```json\n{\"Vad heter du?\": \"Anna\", \"Välj\": [\"A\", \"B\"]}\n```\nLycka till!"
	got := ParseSuggestions(fenced)
	assert.Equal(t, "Anna", got["Vad heter du?"])
	assert.Equal(t, []any{"A", "B"}, got["Välj"])

	lines := ParseSuggestions("\"Fråga ett\": \"Svar ett\",\n\"Fråga två\": Svar två\nutan kolon")
	assert.Equal(t, "Svar ett", lines["Fråga ett"])
	assert.Equal(t, "Svar två", lines["Fråga två"])
	assert.Len(t, lines, 2)
}
