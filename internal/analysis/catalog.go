// Package analysis holds the business analysis question catalog.
package analysis

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var questionsYAML []byte

// Question input types.
const (
	TypeText        = "text"
	TypeSelect      = "select"
	TypeMultiSelect = "multiselect"
)

// Question is one analysis question.
type Question struct {
	Key     string   `yaml:"key" json:"key"`
	Text    string   `yaml:"text" json:"text"`
	Help    string   `yaml:"help" json:"help"`
	Type    string   `yaml:"type" json:"type"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Category groups questions under one heading.
type Category struct {
	ID          string     `yaml:"-" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Questions   []Question `yaml:"questions" json:"questions"`
}

// Catalog is the ordered list of categories.
type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// CategoryID derives the identifier used in answer keys from a title.
func CategoryID(title string) string {
	id := strings.ToLower(title)
	id = strings.ReplaceAll(id, ", ", "_")
	return strings.ReplaceAll(id, " & ", "_")
}

// AnswerKey returns the analysis answer key of a question.
func AnswerKey(categoryID, questionKey string) string {
	return categoryID + "_" + questionKey
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse question catalog: %w", err)
	}
	seen := make(map[string]struct{})
	for i := range c.Categories {
		cat := &c.Categories[i]
		cat.ID = CategoryID(cat.Title)
		if _, dup := seen[cat.ID]; dup {
			return nil, fmt.Errorf("parse question catalog: duplicate category %q", cat.ID)
		}
		seen[cat.ID] = struct{}{}
		for j := range cat.Questions {
			q := &cat.Questions[j]
			if q.Type == "" {
				q.Type = TypeText
			}
			if q.Type == TypeSelect && len(q.Options) == 0 {
				return nil, fmt.Errorf("parse question catalog: %s has no options", AnswerKey(cat.ID, q.Key))
			}
		}
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the embedded catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(questionsYAML)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCatalog
}

// Category returns the category with the given ID.
func (c *Catalog) Category(id string) (*Category, bool) {
	for i := range c.Categories {
		if c.Categories[i].ID == id {
			return &c.Categories[i], true
		}
	}
	return nil, false
}

// Keys returns every answer key of the category, in question order.
func (cat *Category) Keys() []string {
	keys := make([]string, len(cat.Questions))
	for i, q := range cat.Questions {
		keys[i] = AnswerKey(cat.ID, q.Key)
	}
	return keys
}

// Fixed answer keys read by the dashboard computations.
const (
	KeyBusinessIdea         = "affärsidé_lösning_business_idea"
	KeyVision               = "affärsidé_lösning_vision"
	KeyProductDescription   = "affärsidé_lösning_product_description"
	KeyMarketSize           = "marknad_kunder_traktion_market_size"
	KeyCustomerSegments     = "marknad_kunder_traktion_customer_segments"
	KeyCompetition          = "marknad_kunder_traktion_competition"
	KeyMarketTrends         = "marknad_kunder_traktion_market_trends"
	KeyTeamMembers          = "team_organisation_team_members"
	KeyRevenueModel         = "affärsmodell_ekonomi_revenue_model"
	KeyGoToMarket           = "affärsmodell_ekonomi_go_to_market"
	KeyFinancialProjections = "affärsmodell_ekonomi_financial_projections"
	KeyExitPlan             = "risk_hållbarhet_exit_exit_plan"
)

// ImportFromAnswers maps plan answers onto analysis answer keys. Empty values are left out.
func ImportFromAnswers(product, strategy, audience string) map[string]string {
	out := make(map[string]string)
	put := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			out[key] = value
		}
	}
	put(KeyBusinessIdea, fmt.Sprintf("%s – %s", product, strategy))
	put(KeyProductDescription, product)
	put(KeyCustomerSegments, audience)
	put(KeyGoToMarket, strategy)
	return out
}
