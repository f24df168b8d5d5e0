package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var letter = PageSize{Width: 612, Height: 792}

// blankPDF writes an n-page blank document using the overlay writer and
// returns its Source description.
func blankPDF(t *testing.T, n int) Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.pdf")
	ov := newOverlay(path, letter)
	for i := 1; i < n; i++ {
		ov.nextPage(letter)
	}
	ov.finish()

	got, err := api.PageCountFile(path)
	require.NoError(t, err)
	require.Equal(t, n, got, "fixture page count")

	pages := make([]PageSize, n)
	for i := range pages {
		pages[i] = letter
	}
	return Source{Path: path, Pages: pages}
}

func outPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out.pdf")
}

func TestApplyRoundTrip(t *testing.T) {
	src := blankPDF(t, 4)
	out := outPath(t)

	res, err := Apply(src, &EditPayload{}, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.PageCount)
	assert.Zero(t, res.PagesDeleted)
	assert.Zero(t, res.AnnotationsApplied)

	got, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestApplyDeletesAndRemaps(t *testing.T) {
	src := blankPDF(t, 5)
	out := outPath(t)

	payload := &EditPayload{
		PageOps: del(1, 3),
		Annotations: map[int][]Annotation{
			// 1-based page 2 is 0-based index 1: deleted, annotation dropped.
			2: {TextAnnotation{Text: "gone", X: 10, Y: 10, FontSize: 12, Color: defaultTextColor}},
			// 1-based page 5 survives as output index 2.
			5: {TextAnnotation{Text: "kept", X: 10, Y: 10, FontSize: 12, Color: defaultTextColor}},
		},
	}

	res, err := Apply(src, payload, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, 2, res.PagesDeleted)
	assert.Equal(t, 1, res.AnnotationsApplied)
	assert.Equal(t, 1, res.AnnotationsSkipped)

	got, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestApplyAllPagesDeleted(t *testing.T) {
	src := blankPDF(t, 3)
	out := outPath(t)

	_, err := Apply(src, &EditPayload{PageOps: del(0, 1, 2)}, out, Options{})
	var all *AllPagesDeletedError
	require.True(t, errors.As(err, &all))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output artifact may exist")
}

func TestApplyAnnotationBudget(t *testing.T) {
	src := blankPDF(t, 2)
	out := outPath(t)

	payload := &EditPayload{
		Annotations: map[int][]Annotation{
			1: {
				RectAnnotation{X: 10, Y: 10, Width: 50, Height: 50, LineWidth: 2, Color: defaultRectColor},
				CircleAnnotation{CenterX: 100, CenterY: 100, Radius: 20, LineWidth: 2, Color: defaultCircleColor},
			},
			2: {
				PathAnnotation{Tool: ToolPen, Points: []Point{{X: 0, Y: 0}, {X: 50, Y: 50}}, StrokeWidth: 2, Color: defaultPenColor},
			},
		},
	}

	res, err := Apply(src, payload, out, Options{MaxAnnotations: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AnnotationsApplied)
	assert.Equal(t, 2, res.AnnotationsSkipped)
	assert.Equal(t, 2, res.PageCount)
}

func TestApplyAllAnnotationTypes(t *testing.T) {
	src := blankPDF(t, 1)
	out := outPath(t)

	payload := &EditPayload{
		Annotations: map[int][]Annotation{
			1: {
				TextAnnotation{Text: "hello", X: -50, Y: 99999, FontSize: 200, Color: defaultTextColor},
				PathAnnotation{Tool: ToolHighlighter, Points: []Point{{X: 0, Y: 400}, {X: 700, Y: 400}}, StrokeWidth: 3, Color: defaultHighlighterColor},
				RectAnnotation{X: 600, Y: 780, Width: 500, Height: 500, LineWidth: 40, Color: defaultRectColor},
				CircleAnnotation{CenterX: 300, CenterY: 300, Radius: 9999, LineWidth: 2, Color: defaultCircleColor},
			},
		},
	}

	res, err := Apply(src, payload, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.AnnotationsApplied)

	got, err := api.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestApplySourceUntouched(t *testing.T) {
	src := blankPDF(t, 3)
	before, err := os.ReadFile(src.Path)
	require.NoError(t, err)

	_, err = Apply(src, &EditPayload{PageOps: del(0)}, outPath(t), Options{})
	require.NoError(t, err)

	after, err := os.ReadFile(src.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source document must never be written")
}
