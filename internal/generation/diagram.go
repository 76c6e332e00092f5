package generation

import (
	"bytes"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"github.com/chgenberg/frejfund-site/internal/domain"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Diagram geometry in pixels.
const (
	diagramWidth  = 1200
	diagramHeight = 960
	diagramMargin = 24
	diagramGap    = 16
)

var (
	fontsOnce  sync.Once
	titleFace  font.Face
	bulletFace font.Face
	fontsErr   error
)

func loadFaces() error {
	fontsOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontsErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontsErr = fmt.Errorf("parse regular font: %w", err)
			return
		}
		titleFace, err = opentype.NewFace(bold, &opentype.FaceOptions{Size: 28, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			fontsErr = fmt.Errorf("create title face: %w", err)
			return
		}
		bulletFace, err = opentype.NewFace(regular, &opentype.FaceOptions{Size: 18, DPI: 72, Hinting: font.HintingFull})
		if err != nil {
			fontsErr = fmt.Errorf("create bullet face: %w", err)
		}
	})
	return fontsErr
}

// diagramMu serialises drawing; font faces keep glyph caches that are not safe
// for concurrent use.
var diagramMu sync.Mutex

// RenderSwotDiagram draws the four sections as a 2x2 grid and returns PNG bytes.
// The output depends only on sections.
func RenderSwotDiagram(sections []domain.SwotSection) ([]byte, error) {
	if err := loadFaces(); err != nil {
		return nil, err
	}
	diagramMu.Lock()
	defer diagramMu.Unlock()

	dc := gg.NewContext(diagramWidth, diagramHeight)
	dc.SetHexColor("#f0f0f0")
	dc.Clear()

	cellW := float64(diagramWidth-2*diagramMargin-diagramGap) / 2
	cellH := float64(diagramHeight-2*diagramMargin-diagramGap) / 2

	for i, sec := range sections {
		if i >= 4 {
			break
		}
		x := float64(diagramMargin) + float64(i%2)*(cellW+diagramGap)
		y := float64(diagramMargin) + float64(i/2)*(cellH+diagramGap)

		base := parseHex(sec.Color)
		tint := color.NRGBA{R: base.R, G: base.G, B: base.B, A: 0x22}
		dc.SetColor(color.White)
		dc.DrawRectangle(x, y, cellW, cellH)
		dc.Fill()
		dc.SetColor(tint)
		dc.DrawRectangle(x, y, cellW, cellH)
		dc.Fill()

		dc.SetFontFace(titleFace)
		dc.SetColor(base)
		dc.DrawStringAnchored(sec.Title, x+cellW/2, y+36, 0.5, 0.5)

		dc.SetFontFace(bulletFace)
		dc.SetHexColor("#222222")
		lineY := y + 84
		for _, item := range sec.Items {
			for _, line := range dc.WordWrap("• "+item, cellW-48) {
				dc.DrawString(line, x+24, lineY)
				lineY += 26
			}
			lineY += 10
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode swot diagram: %w", err)
	}
	return buf.Bytes(), nil
}

func parseHex(s string) color.NRGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
