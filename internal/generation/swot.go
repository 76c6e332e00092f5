package generation

import (
	"strings"

	"github.com/chgenberg/frejfund-site/internal/domain"
)

// SWOT layout constants.
const (
	SwotMaxItems    = 5
	SwotMaxRunes    = 55
	SwotKeepRunes   = 52
	SwotPlaceholder = "Ingen information tillgänglig"
)

type swotQuadrant struct {
	title    string
	color    string
	keywords []string
}

// Quadrants in diagram order. Header keywords are checked in this order.
var swotQuadrants = []swotQuadrant{
	{"Styrkor", "#4CAF50", []string{"styrkor", "strength"}},
	{"Svagheter", "#F44336", []string{"svagheter", "weakness"}},
	{"Möjligheter", "#2196F3", []string{"möjligheter", "opportunit"}},
	{"Hot", "#FF9800", []string{"hot", "threat"}},
}

var bulletPrefixes = []string{"•", "-", "*", "1.", "2.", "3.", "4.", "5.", "6.", "7.", "8.", "9."}

const bulletCutset = "•-*123456789. "

// ParseSwot splits model output into the four quadrants. Any line containing a
// header keyword starts that quadrant; bullet lines under a header become items.
// Every quadrant has between one and SwotMaxItems items.
func ParseSwot(text string) []domain.SwotSection {
	items := make([][]string, len(swotQuadrants))
	current := -1

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if idx := swotHeader(line); idx >= 0 {
			current = idx
			continue
		}
		if current < 0 || !isBullet(line) {
			continue
		}
		item := strings.TrimLeft(line, bulletCutset)
		if item == "" {
			continue
		}
		items[current] = append(items[current], item)
	}

	out := make([]domain.SwotSection, len(swotQuadrants))
	for i, q := range swotQuadrants {
		list := items[i]
		if len(list) == 0 {
			list = []string{SwotPlaceholder}
		}
		if len(list) > SwotMaxItems {
			list = list[:SwotMaxItems]
		}
		display := make([]string, len(list))
		for j, it := range list {
			display[j] = truncateItem(it)
		}
		out[i] = domain.SwotSection{Title: q.title, Color: q.color, Items: display}
	}
	return out
}

func swotHeader(line string) int {
	lower := strings.ToLower(line)
	for i, q := range swotQuadrants {
		for _, kw := range q.keywords {
			if strings.Contains(lower, kw) {
				return i
			}
		}
	}
	return -1
}

func isBullet(line string) bool {
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

func truncateItem(s string) string {
	r := []rune(s)
	if len(r) <= SwotMaxRunes {
		return s
	}
	return string(r[:SwotKeepRunes]) + "..."
}
