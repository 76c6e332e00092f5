package generation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

// Own company defaults.
const (
	DefaultOwnName        = "Ditt företag"
	OwnDescription        = "Din position på marknaden"
	marketOwnDescription  = "Din position"
	othersName            = "Övriga"
	maxOwnShare           = 5.0
	ownShareOfTotalFactor = 0.1
)

var shareRe = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// FallbackCompetitors is used when no competitor line can be parsed.
func FallbackCompetitors() []domain.Competitor {
	return []domain.Competitor{
		{Name: "Konkurrent A", Share: 35, Description: "Marknadsledare med etablerat varumärke"},
		{Name: "Konkurrent B", Share: 25, Description: "Innovativ utmanare med lägre priser"},
		{Name: "Konkurrent C", Share: 15, Description: "Nischad aktör med hög kvalitet"},
		{Name: othersName, Share: 25, Description: "Mindre aktörer på marknaden"},
	}
}

// ParseCompetitors reads "name|share|description" lines. Lines whose second
// field has no number are skipped.
func ParseCompetitors(text string) []domain.Competitor {
	var out []domain.Competitor
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "|") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		m := shareRe.FindStringSubmatch(parts[1])
		if m == nil {
			continue
		}
		share, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		c := domain.Competitor{Name: strings.TrimSpace(parts[0]), Share: share}
		if len(parts) > 2 {
			c.Description = strings.TrimSpace(parts[2])
		}
		out = append(out, c)
	}
	return out
}

// WithOwnCompany scales the competitors down and appends the own company with
// share min(5, 10% of the total).
func WithOwnCompany(competitors []domain.Competitor, name, description string) []domain.Competitor {
	total := 0.0
	for _, c := range competitors {
		total += c.Share
	}
	own := math.Min(maxOwnShare, total*ownShareOfTotalFactor)
	out := make([]domain.Competitor, 0, len(competitors)+1)
	out = append(out, competitors...)
	if own <= 0 {
		return out
	}
	for i := range out {
		out[i].Share = out[i].Share * (100 - own) / 100
	}
	return append(out, domain.Competitor{Name: name, Share: own, Description: description, Own: true})
}

// buildCompetitors parses text, falls back when nothing parses and appends the
// own company. The bool reports whether the fallback set was used.
func buildCompetitors(text, ownName, ownDescription string) ([]domain.Competitor, bool) {
	parsed := ParseCompetitors(text)
	fallback := len(parsed) == 0
	if fallback {
		parsed = FallbackCompetitors()
	}
	return WithOwnCompany(parsed, ownName, ownDescription), fallback
}
