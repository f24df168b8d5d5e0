package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPDFSpace(t *testing.T) {
	x, y := ToPDFSpace(100, 50, 792)
	assert.Equal(t, 100.0, x)
	assert.Equal(t, 742.0, y)

	// Top of the screen maps to the top of the page.
	_, y = ToPDFSpace(0, 0, 792)
	assert.Equal(t, 792.0, y)

	// Bottom of the screen maps to the PDF origin.
	_, y = ToPDFSpace(0, 792, 792)
	assert.Equal(t, 0.0, y)
}

func TestClampToPage(t *testing.T) {
	letter := PageSize{Width: 612, Height: 792}

	x, y := clampToPage(-10, 99999, letter)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 792.0, y)

	x, y = clampToPage(300, 400, letter)
	assert.Equal(t, 300.0, x)
	assert.Equal(t, 400.0, y)

	x, _ = clampToPage(5000, 0, letter)
	assert.Equal(t, 612.0, x)
}

func TestClampFontSize(t *testing.T) {
	assert.Equal(t, 72.0, clampFontSize(200))
	assert.Equal(t, 8.0, clampFontSize(1))
	assert.Equal(t, 12.0, clampFontSize(12))
}

func TestStrokeWidthFor(t *testing.T) {
	assert.Equal(t, 15.0, strokeWidthFor(ToolHighlighter, 3))
	assert.Equal(t, 25.0, strokeWidthFor(ToolHighlighter, 25))
	assert.Equal(t, 20.0, strokeWidthFor(ToolPen, 50))
	assert.Equal(t, 1.0, strokeWidthFor(ToolDraw, 0))
	assert.Equal(t, 5.0, strokeWidthFor(ToolDraw, 5))
}

func TestParseColor(t *testing.T) {
	c := parseColor("#ff0000", defaultTextColor)
	assert.InDelta(t, 1.0, c.R, 0.01)
	assert.InDelta(t, 0.0, c.G, 0.01)
	assert.InDelta(t, 0.0, c.B, 0.01)

	// Missing leading '#' is tolerated.
	c = parseColor("00ff00", defaultTextColor)
	assert.InDelta(t, 1.0, c.G, 0.01)

	// Garbage falls back to the default.
	c = parseColor("not-a-color", defaultRectColor)
	assert.Equal(t, defaultRectColor, c)
	c = parseColor("", defaultCircleColor)
	assert.Equal(t, defaultCircleColor, c)

	// The default's alpha survives an explicit color.
	c = parseColor("#123456", defaultHighlighterColor)
	assert.Equal(t, 0.5, c.A)
}
