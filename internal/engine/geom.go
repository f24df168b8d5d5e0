package engine

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/color"
)

// PageSize is a page's media box extent in PDF points (1/72 inch).
type PageSize struct {
	Width  float64
	Height float64
}

// ToPDFSpace converts a top-left-origin screen coordinate into PDF's
// bottom-left-origin space. X is shared between the two systems.
func ToPDFSpace(screenX, screenY, pageHeight float64) (float64, float64) {
	return screenX, pageHeight - screenY
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clampToPage forces a screen-space point into the page box. The box is the
// same size in screen and PDF space, so the bounds invariant holds in both.
func clampToPage(x, y float64, size PageSize) (float64, float64) {
	return clamp(x, 0, size.Width), clamp(y, 0, size.Height)
}

const (
	minFontSize = 8
	maxFontSize = 72

	minLineWidth = 1
	maxLineWidth = 20

	// Highlighter strokes are wide by definition.
	minHighlighterWidth = 15
)

func clampFontSize(v float64) float64 { return clamp(v, minFontSize, maxFontSize) }

func clampLineWidth(v float64) float64 { return clamp(v, minLineWidth, maxLineWidth) }

// strokeWidthFor applies the per-tool stroke width rules: highlighters are
// forced to at least 15pt, everything else stays within [1, 20].
func strokeWidthFor(tool string, v float64) float64 {
	if tool == ToolHighlighter {
		if v < minHighlighterWidth {
			return minHighlighterWidth
		}
		return v
	}
	return clampLineWidth(v)
}

// RGBA is a draw color with components in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// Per-type defaults; the alpha carries through parseColor so highlighters
// stay translucent whatever color the client picked.
var (
	defaultTextColor        = RGBA{0, 0, 0, 1}          // black
	defaultPenColor         = RGBA{1, 0, 0, 1}          // red
	defaultHighlighterColor = RGBA{1, 1, 0, 0.5}        // yellow, translucent
	defaultRectColor        = RGBA{0, 0, 1, 1}          // blue
	defaultCircleColor      = RGBA{0, 0.5, 0, 1}        // green
)

// parseColor decodes a "#rrggbb" hex string, falling back to def when the
// value is missing or malformed. The default's alpha is always kept.
func parseColor(hex string, def RGBA) RGBA {
	s := strings.TrimSpace(hex)
	if s == "" {
		return def
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	sc, err := color.NewSimpleColorForHexCode(s)
	if err != nil {
		return def
	}
	return RGBA{R: float64(sc.R), G: float64(sc.G), B: float64(sc.B), A: def.A}
}
