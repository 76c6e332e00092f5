// Package report assembles the business plan PDF from a session snapshot.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/chgenberg/frejfund-site/internal/session"
	"github.com/go-pdf/fpdf"
	"golang.org/x/sync/errgroup"
)

// DefaultDownloadTimeout bounds a logo download.
const DefaultDownloadTimeout = 10 * time.Second

// Section markers reported for each rendered part of the document.
const (
	SectionCover       = "cover"
	SectionLogo        = "logo"
	SectionBasicInfo   = "basic_info"
	SectionPlan        = "plan"
	SectionSwot        = "swot"
	SectionSwotDiagram = "swot_diagram"
	SectionManifest    = "manifest"
	SectionFooter      = "footer"
)

var basicInfoRows = []struct {
	label string
	key   string
}{
	{"Stad", domain.KeyCity},
	{"Målgrupp", domain.KeyTargetAudience},
	{"Produktutbud", domain.KeyProductOffering},
	{"Strategi", domain.KeyStrategy},
	{"Tidsplan", domain.KeyTimeline},
	{"Budget", domain.KeyBudget},
}

// Options configures an Assembler.
type Options struct {
	OutputDir       string
	TempDir         string
	HTTPClient      *http.Client
	DownloadTimeout time.Duration
	Logger          *slog.Logger
}

// Assembler renders plan documents.
type Assembler struct {
	dir             string
	tempDir         string
	client          *http.Client
	downloadTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	a := &Assembler{
		dir:             opts.OutputDir,
		tempDir:         opts.TempDir,
		client:          opts.HTTPClient,
		downloadTimeout: opts.DownloadTimeout,
		logger:          opts.Logger,
		now:             time.Now,
	}
	if a.dir == "" {
		a.dir = os.TempDir()
	}
	if a.client == nil {
		a.client = http.DefaultClient
	}
	if a.downloadTimeout <= 0 {
		a.downloadTimeout = DefaultDownloadTimeout
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Document is a rendered report.
type Document struct {
	PDF      []byte
	Sections []string
}

// Has reports whether the section was rendered.
func (d Document) Has(section string) bool {
	for _, s := range d.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// CompanyName returns the name shown on the cover.
func CompanyName(answers map[string]any) string {
	if name := answerString(answers, domain.KeyCompanyName); name != "" {
		return name
	}
	product := answerString(answers, domain.KeyProductOffering)
	city := answerString(answers, domain.KeyCity)
	if product == "" {
		product = "Företag"
	}
	if city == "" {
		city = "Sverige"
	}
	return product + " i " + city
}

func answerString(answers map[string]any, key string) string {
	s, _ := answers[key].(string)
	return strings.TrimSpace(s)
}

type images struct {
	logo []byte
	swot []byte
}

// prepareImages fetches the logo and checks the SWOT diagram concurrently.
// Failures drop the image and are logged.
func (a *Assembler) prepareImages(ctx context.Context, art domain.Artifacts) images {
	var out images
	var g errgroup.Group
	if art.LogoReference != "" {
		g.Go(func() error {
			data, err := a.fetchLogo(ctx, art.LogoReference)
			if err != nil {
				a.logger.Warn("Skipping logo in report", "error", err)
				return nil
			}
			out.logo = data
			return nil
		})
	}
	if art.SwotText != "" && art.HasSwotDiagram() {
		g.Go(func() error {
			if err := checkPNG(art.SwotDiagramImage); err != nil {
				a.logger.Warn("Skipping SWOT diagram in report", "error", err)
				return nil
			}
			out.swot = art.SwotDiagramImage
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Render builds the document for snap. Optional sections without content are
// omitted. Output is identical for identical input and clock.
func (a *Assembler) Render(ctx context.Context, snap *domain.SessionState) (Document, error) {
	answers := snap.Answers
	art := snap.Artifacts
	imgs := a.prepareImages(ctx, art)

	now := a.now()
	company := CompanyName(answers)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Affärsplan: "+company, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	var sections []string
	add := func(s string) { sections = append(sections, s) }

	footer := fmt.Sprintf("Genererad %s | %s Affärsplan", now.Format("2006-01-02"), company)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, tr(footer), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(190, 20, tr("Affärsplan: "+company), "", 1, "C", false, 0, "")
	add(SectionCover)

	if imgs.logo != nil {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(imgs.logo))
		if pdf.Ok() {
			pdf.ImageOptions("logo", 80, 30, 50, 0, false, opts, 0, "")
			pdf.Ln(60)
			add(SectionLogo)
		} else {
			a.logger.Warn("Skipping logo in report", "error", pdf.Error())
			pdf.ClearError()
		}
	}

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, tr("Grundläggande information"), "", 1, "", false, 0, "")
	pdf.Ln(5)
	for _, row := range basicInfoRows {
		value := answerString(answers, row.key)
		if value == "" {
			value = "N/A"
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(40, 10, tr(row.label+":"), "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(150, 10, tr(value), "", 1, "", false, 0, "")
	}
	pdf.Ln(10)
	add(SectionBasicInfo)

	if plan := answerString(answers, domain.KeyBusinessPlan); plan != "" {
		pdf.AddPage()
		heading(pdf, tr, "Affärsplan")
		pdf.SetFont("Arial", "", 12)
		for _, para := range strings.Split(plan, "\n\n") {
			if isSubheading(para) {
				pdf.SetFont("Arial", "B", 14)
				pdf.CellFormat(190, 10, tr(strings.TrimSpace(para)), "", 1, "", false, 0, "")
				pdf.SetFont("Arial", "", 12)
				continue
			}
			pdf.MultiCell(190, 10, tr(para), "", "", false)
			pdf.Ln(5)
		}
		add(SectionPlan)
	}

	if art.SwotText != "" {
		pdf.AddPage()
		heading(pdf, tr, "SWOT-analys")
		if imgs.swot != nil {
			opts := fpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("swot", opts, bytes.NewReader(imgs.swot))
			if pdf.Ok() {
				pdf.ImageOptions("swot", 10, -1, 190, 0, true, opts, 0, "")
				pdf.Ln(5)
				add(SectionSwotDiagram)
			} else {
				a.logger.Warn("Skipping SWOT diagram in report", "error", pdf.Error())
				pdf.ClearError()
			}
		}
		pdf.SetFont("Arial", "", 12)
		pdf.MultiCell(190, 10, tr(art.SwotText), "", "", false)
		add(SectionSwot)
	}

	if art.ManifestText != "" {
		pdf.AddPage()
		heading(pdf, tr, "Företagsmanifest")
		pdf.SetFont("Arial", "I", 12)
		pdf.MultiCell(190, 10, tr(art.ManifestText), "", "", false)
		add(SectionManifest)
	}
	add(SectionFooter)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("render pdf: %w", err)
	}
	return Document{PDF: buf.Bytes(), Sections: sections}, nil
}

func heading(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, tr(title), "", 1, "", false, 0, "")
	pdf.Ln(5)
}

// isSubheading reports whether a paragraph is a short line ending in a colon.
func isSubheading(para string) bool {
	return len([]rune(para)) < 50 && strings.HasSuffix(strings.TrimSpace(para), ":")
}

// Assemble renders the store's current state to
// <OutputDir>/<userID>/affarsplan_<timestamp>.pdf. The store's pdf path is set
// only after the file is written.
func (a *Assembler) Assemble(ctx context.Context, userID string, store *session.Store) (string, Document, error) {
	doc, err := a.Render(ctx, store.Snapshot())
	if err != nil {
		return "", Document{}, err
	}

	dir := filepath.Join(a.dir, filepath.Base(userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", Document{}, fmt.Errorf("create report directory: %w", err)
	}
	path := filepath.Join(dir, "affarsplan_"+a.now().Format("20060102_150405")+".pdf")
	if err := os.WriteFile(path, doc.PDF, 0o644); err != nil {
		return "", Document{}, fmt.Errorf("write report: %w", err)
	}
	store.Set(domain.ArtifactPDFPath, path)
	a.logger.Info("Report written", "user_id", userID, "path", path, "bytes", len(doc.PDF))
	return path, doc, nil
}

// DownloadLink returns an HTML anchor embedding the file at path as a base64 data URL.
func DownloadLink(path, text string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	if text == "" {
		text = "Ladda ner PDF"
	}
	return fmt.Sprintf(`<a href="data:application/pdf;base64,%s" download="%s">%s</a>`,
		base64.StdEncoding.EncodeToString(data),
		html.EscapeString(filepath.Base(path)),
		html.EscapeString(text),
	), nil
}
