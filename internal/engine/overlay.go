package engine

import (
	"math"
	"strings"
	"unsafe"

	"github.com/ungerik/go-cairo"
)

/*
#cgo pkg-config: cairo
#include <cairo.h>
#include <cairo-pdf.h>
*/
import "C"

// overlay accumulates annotation drawing in a standalone PDF, one page per
// annotated output page, each sized to match its target page exactly. The
// finished overlay is stamped onto the collected document page by page.
type overlay struct {
	surface *cairo.Surface
	path    string
	pages   int
}

func newOverlay(path string, first PageSize) *overlay {
	s := cairo.NewPDFSurface(path, first.Width, first.Height, cairo.PDF_VERSION_1_5)
	return &overlay{surface: s, path: path, pages: 1}
}

// nextPage finishes the current overlay page and starts a new one with the
// given size.
func (o *overlay) nextPage(size PageSize) {
	o.surface.ShowPage()
	setPDFPageSize(o.surface, size.Width, size.Height)
	o.pages++
}

func (o *overlay) finish() {
	o.surface.Finish()
}

// setPDFPageSize sets the size of the current page in a PDF surface.
// go-cairo does not wrap cairo_pdf_surface_set_size.
func setPDFPageSize(surface *cairo.Surface, width, height float64) {
	surfacePtr, _ := surface.Native()
	C.cairo_pdf_surface_set_size((*C.cairo_surface_t)(unsafe.Pointer(surfacePtr)), C.double(width), C.double(height))
}

// draw dispatches one annotation to its renderer. The annotation set is
// closed at the payload boundary, so the default arm is unreachable.
func (o *overlay) draw(a Annotation, size PageSize) {
	switch t := a.(type) {
	case TextAnnotation:
		o.drawText(t, size)
	case PathAnnotation:
		o.drawPath(t, size)
	case RectAnnotation:
		o.drawRect(t, size)
	case CircleAnnotation:
		o.drawCircle(t, size)
	}
}

// cairoY flips a PDF-space y back into cairo's top-left-origin space.
func cairoY(pdfY, pageHeight float64) float64 {
	return pageHeight - pdfY
}

func (o *overlay) drawText(a TextAnnotation, size PageSize) {
	text := a.Text
	if r := []rune(text); len(r) > maxTextLen {
		text = string(r[:maxTextLen])
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	x, y := clampToPage(a.X, a.Y, size)
	px, py := ToPDFSpace(x, y, size.Height)

	s := o.surface
	s.Save()
	defer s.Restore()
	s.SelectFontFace("sans-serif", cairo.FONT_SLANT_NORMAL, cairo.FONT_WEIGHT_NORMAL)
	s.SetFontSize(clampFontSize(a.FontSize))
	s.SetSourceRGB(a.Color.R, a.Color.G, a.Color.B)
	s.MoveTo(px, cairoY(py, size.Height))
	s.ShowText(text)
}

func (o *overlay) drawPath(a PathAnnotation, size PageSize) {
	if len(a.Points) < minPathPoints {
		return
	}

	s := o.surface
	s.Save()
	defer s.Restore()
	s.SetSourceRGBA(a.Color.R, a.Color.G, a.Color.B, a.Color.A)
	s.SetLineWidth(strokeWidthFor(a.Tool, a.StrokeWidth))
	s.SetLineCap(cairo.LINE_CAP_ROUND)
	s.SetLineJoin(cairo.LINE_JOIN_ROUND)

	// Each point is clamped independently; a stroke that leaves the page
	// gets flattened against the edge rather than translated or scaled.
	for i, pt := range a.Points {
		x, y := clampToPage(pt.X, pt.Y, size)
		px, py := ToPDFSpace(x, y, size.Height)
		if i == 0 {
			s.MoveTo(px, cairoY(py, size.Height))
		} else {
			s.LineTo(px, cairoY(py, size.Height))
		}
	}
	s.Stroke()
}

func (o *overlay) drawRect(a RectAnnotation, size PageSize) {
	x, y := clampToPage(a.X, a.Y, size)
	// Shrink the extent so the rectangle never leaves the page.
	w := clamp(a.Width, 0, size.Width-x)
	h := clamp(a.Height, 0, size.Height-y)
	if w <= 0 || h <= 0 {
		return
	}

	s := o.surface
	s.Save()
	defer s.Restore()
	s.SetSourceRGBA(a.Color.R, a.Color.G, a.Color.B, a.Color.A)
	s.SetLineWidth(clampLineWidth(a.LineWidth))
	// (x, y) is the top-left corner in screen space, which is cairo's
	// native origin; the box equals [x, H-y-h, w, h] in PDF space.
	s.Rectangle(x, y, w, h)
	s.Stroke()
}

func (o *overlay) drawCircle(a CircleAnnotation, size PageSize) {
	cx, cy := clampToPage(a.CenterX, a.CenterY, size)
	maxRadius := math.Min(size.Width, size.Height) / 2
	radius := clamp(a.Radius, 5, maxRadius)
	px, py := ToPDFSpace(cx, cy, size.Height)

	s := o.surface
	s.Save()
	defer s.Restore()
	s.SetSourceRGBA(a.Color.R, a.Color.G, a.Color.B, a.Color.A)
	s.SetLineWidth(clampLineWidth(a.LineWidth))
	s.Arc(px, cairoY(py, size.Height), radius, 0, 2*math.Pi)
	s.Stroke()
}
