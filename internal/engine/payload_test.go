package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEditPayloadFull(t *testing.T) {
	data := []byte(`{
		"page_operations": [
			{"type": "delete", "pageIndex": 1},
			{"type": "delete", "pageIndex": 3}
		],
		"annotations": {
			"1": [
				{"type": "text", "text": "Hello", "x": 10, "y": 20, "fontSize": 14, "color": "#336699"},
				{"type": "pen", "path": [{"x": 0, "y": 0}, {"x": 5, "y": 5}], "strokeWidth": 3}
			],
			"5": [
				{"type": "rectangle", "x": 1, "y": 2, "width": 30, "height": 40},
				{"type": "circle", "centerX": 50, "centerY": 60, "radius": 10},
				{"type": "highlighter", "path": [{"x": 0, "y": 10}, {"x": 100, "y": 10}]}
			]
		}
	}`)

	p, err := ParseEditPayload(data)
	require.NoError(t, err)
	assert.Zero(t, p.Skipped)

	require.Len(t, p.PageOps, 2)
	assert.Equal(t, PageOperation{Type: "delete", PageIndex: 1}, p.PageOps[0])

	require.Len(t, p.Annotations[1], 2)
	text, ok := p.Annotations[1][0].(TextAnnotation)
	require.True(t, ok)
	assert.Equal(t, "Hello", text.Text)
	assert.Equal(t, 14.0, text.FontSize)

	pen, ok := p.Annotations[1][1].(PathAnnotation)
	require.True(t, ok)
	assert.Equal(t, ToolPen, pen.Tool)
	require.Len(t, pen.Points, 2)
	assert.Equal(t, 3.0, pen.StrokeWidth)

	require.Len(t, p.Annotations[5], 3)
	_, ok = p.Annotations[5][0].(RectAnnotation)
	assert.True(t, ok)
	circle, ok := p.Annotations[5][1].(CircleAnnotation)
	require.True(t, ok)
	assert.Equal(t, 50.0, circle.CenterX)
	hl, ok := p.Annotations[5][2].(PathAnnotation)
	require.True(t, ok)
	assert.Equal(t, ToolHighlighter, hl.Tool)
	assert.Equal(t, float64(minHighlighterWidth), hl.StrokeWidth)

	assert.Equal(t, 5, p.TotalAnnotations())
}

func TestParseEditPayloadEmpty(t *testing.T) {
	p, err := ParseEditPayload(nil)
	require.NoError(t, err)
	assert.Empty(t, p.PageOps)
	assert.Empty(t, p.Annotations)

	p, err = ParseEditPayload([]byte(`{}`))
	require.NoError(t, err)
	assert.Zero(t, p.TotalAnnotations())
}

func TestParseEditPayloadMalformedRecordsDropped(t *testing.T) {
	data := []byte(`{
		"annotations": {
			"1": [
				{"type": "text", "text": "ok", "x": 1, "y": 2},
				{"type": "laser", "x": 1, "y": 2},
				{"x": 1, "y": 2},
				{"type": "text", "text": "no coords"},
				{"type": "pen", "path": [{"x": 1, "y": 2}]},
				{"type": "circle", "centerX": 5, "centerY": 5}
			],
			"abc": [
				{"type": "text", "text": "bad page key", "x": 1, "y": 2}
			]
		}
	}`)

	p, err := ParseEditPayload(data)
	require.NoError(t, err)
	// unknown type, missing type, missing coords, one-point path, missing
	// radius, and the whole "abc" key.
	assert.Equal(t, 6, p.Skipped)
	require.Len(t, p.Annotations[1], 1)
}

func TestParseEditPayloadStringNumbers(t *testing.T) {
	data := []byte(`{
		"page_operations": [{"type": "delete", "pageIndex": "2"}],
		"annotations": {
			"1": [{"type": "text", "text": "x", "x": "10.5", "y": "20"}]
		}
	}`)

	p, err := ParseEditPayload(data)
	require.NoError(t, err)
	require.Len(t, p.PageOps, 1)
	assert.Equal(t, 2, p.PageOps[0].PageIndex)
	text := p.Annotations[1][0].(TextAnnotation)
	assert.Equal(t, 10.5, text.X)
}

func TestParseEditPayloadCircleFallbackCenter(t *testing.T) {
	data := []byte(`{
		"annotations": {
			"2": [{"type": "circle", "x": 30, "y": 40, "radius": 12}]
		}
	}`)

	p, err := ParseEditPayload(data)
	require.NoError(t, err)
	circle := p.Annotations[2][0].(CircleAnnotation)
	assert.Equal(t, 30.0, circle.CenterX)
	assert.Equal(t, 40.0, circle.CenterY)
}

func TestParseEditPayloadBadJSON(t *testing.T) {
	_, err := ParseEditPayload([]byte(`{"annotations": `))
	require.Error(t, err)
}

func TestParseEditPayloadBadOpDropped(t *testing.T) {
	data := []byte(`{"page_operations": [{"type": "delete"}, {"type": "delete", "pageIndex": 0}]}`)
	p, err := ParseEditPayload(data)
	require.NoError(t, err)
	require.Len(t, p.PageOps, 1)
	assert.Equal(t, 1, p.Skipped)
}
