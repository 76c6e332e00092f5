package generation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/chgenberg/frejfund-site/internal/analysis"
	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/llm"
)

const (
	projectionYears  = 5
	projectionBase   = 1000.0
	projectionGrowth = 2.5
)

// Projection is a five year forecast in tkr.
type Projection struct {
	Years         []domain.FinancialYear `json:"years"`
	BreakEvenYear string                 `json:"break_even_year,omitempty"`
	Fallback      bool                   `json:"fallback"`
}

// FinancialProjection builds a forecast from the revenue model and financial
// projection answers. At least one of them must carry some text.
func (c *Coordinator) FinancialProjection(ctx context.Context, sc Scope) (Projection, error) {
	projections := sc.Store.AnalysisAnswer(analysis.KeyFinancialProjections)
	revenueModel := sc.Store.AnalysisAnswer(analysis.KeyRevenueModel)
	if len([]rune(projections)) <= 10 && len([]rune(revenueModel)) <= 10 {
		return Projection{}, ErrInsufficientData
	}

	text, err := c.generate(ctx, sc, KindFinancial, llm.Request{Prompt: financialPrompt(projections, revenueModel)})
	years := ParseFinancial(text)
	fallback := err != nil || len(years) == 0
	if fallback {
		years = FallbackProjection()
	}
	return Projection{Years: years, BreakEvenYear: BreakEvenYear(years), Fallback: fallback}, nil
}

// ParseFinancial reads "year,revenue,costs,ebitda" rows. Lines that do not
// parse are skipped.
func ParseFinancial(text string) []domain.FinancialYear {
	var out []domain.FinancialYear
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ",") || strings.IndexFunc(line, unicode.IsDigit) < 0 {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		var nums [3]float64
		ok := true
		for i := range nums {
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(parts[i+1], "tkr", "")), 64)
			if err != nil {
				ok = false
				break
			}
			nums[i] = v
		}
		if !ok {
			continue
		}
		out = append(out, domain.FinancialYear{
			Year:    strings.TrimSpace(parts[0]),
			Revenue: nums[0],
			Costs:   nums[1],
			EBITDA:  nums[2],
		})
	}
	return out
}

// FallbackProjection is a generic growth curve: loss-making for two years, then profitable.
func FallbackProjection() []domain.FinancialYear {
	out := make([]domain.FinancialYear, 0, projectionYears)
	for i := 1; i <= projectionYears; i++ {
		revenue := projectionBase * math.Pow(projectionGrowth, float64(i-1))
		costs := revenue * 1.2
		if i > 2 {
			costs = revenue * 0.7
		}
		out = append(out, domain.FinancialYear{
			Year:    fmt.Sprintf("År %d", i),
			Revenue: revenue,
			Costs:   costs,
			EBITDA:  revenue - costs,
		})
	}
	return out
}

// BreakEvenYear returns the first year EBITDA turns positive, or "".
func BreakEvenYear(years []domain.FinancialYear) string {
	for i, y := range years {
		if y.EBITDA > 0 && (i == 0 || years[i-1].EBITDA <= 0) {
			return y.Year
		}
	}
	return ""
}
