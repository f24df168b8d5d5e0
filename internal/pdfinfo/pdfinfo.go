package pdfinfo

import (
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfeditor/internal/engine"
)

// Inspect opens the PDF at path read-only and returns its page count and
// per-page media box sizes in points. go-fitz reports page bounds at 72 dpi,
// which is the PDF point unit, so no conversion is needed.
func Inspect(path string) (engine.Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return engine.Source{}, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return engine.Source{}, fmt.Errorf("pdf has no pages")
	}

	pages := make([]engine.PageSize, 0, n)
	for i := 0; i < n; i++ {
		b, err := doc.Bound(i)
		if err != nil {
			return engine.Source{}, fmt.Errorf("page %d bounds: %w", i+1, err)
		}
		pages = append(pages, engine.PageSize{Width: float64(b.Dx()), Height: float64(b.Dy())})
	}

	log.Debug().Str("file", path).Int("pages", n).Msg("inspected source pdf")
	return engine.Source{Path: path, Pages: pages}, nil
}

// PageCount returns just the page count, without reading page geometry.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}
