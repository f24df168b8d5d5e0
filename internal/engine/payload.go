package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Path tool variants. Draw and pen render identically; the highlighter gets
// a wider, translucent stroke.
const (
	ToolDraw        = "draw"
	ToolPen         = "pen"
	ToolHighlighter = "highlighter"
)

const maxTextLen = 500

const (
	minPathPoints = 2
	maxPathPoints = 10000
)

// Annotation is the closed set of drawable records. The payload decoder is
// the only place that inspects type tags; everything downstream switches
// over these concrete types.
type Annotation interface {
	kind() string
}

// TextAnnotation draws a single line of text at a screen-space point.
type TextAnnotation struct {
	Text     string
	X, Y     float64
	FontSize float64
	Color    RGBA
}

func (TextAnnotation) kind() string { return "text" }

// Point is one vertex of a freehand path, in screen space.
type Point struct {
	X, Y float64
}

// PathAnnotation draws a polyline through its points.
type PathAnnotation struct {
	Tool        string
	Points      []Point
	StrokeWidth float64
	Color       RGBA
}

func (a PathAnnotation) kind() string { return a.Tool }

// RectAnnotation draws an unfilled rectangle outline.
type RectAnnotation struct {
	X, Y          float64
	Width, Height float64
	LineWidth     float64
	Color         RGBA
}

func (RectAnnotation) kind() string { return "rectangle" }

// CircleAnnotation draws an unfilled circle outline.
type CircleAnnotation struct {
	CenterX, CenterY float64
	Radius           float64
	LineWidth        float64
	Color            RGBA
}

func (CircleAnnotation) kind() string { return "circle" }

// EditPayload is the decoded mutation request: page operations plus
// annotations keyed by 1-based source page number.
type EditPayload struct {
	PageOps     []PageOperation
	Annotations map[int][]Annotation

	// Skipped counts records dropped at decode time (malformed, unknown
	// type, bad page key). Diagnostic only; a dirty payload never fails.
	Skipped int
}

// TotalAnnotations returns the number of decoded annotation records.
func (p *EditPayload) TotalAnnotations() int {
	n := 0
	for _, recs := range p.Annotations {
		n += len(recs)
	}
	return n
}

type rawPayload struct {
	PageOperations []map[string]any            `json:"page_operations"`
	Annotations    map[string][]map[string]any `json:"annotations"`
}

// ParseEditPayload decodes the client payload into the typed form. Single
// malformed records are dropped with a warning; only an undecodable
// top-level document is an error.
func ParseEditPayload(data []byte) (*EditPayload, error) {
	var raw rawPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode edit payload: %w", err)
		}
	}

	p := &EditPayload{Annotations: make(map[int][]Annotation)}

	for _, m := range raw.PageOperations {
		typ, _ := m["type"].(string)
		idx, err := toFloat(m["pageIndex"])
		if err != nil {
			log.Warn().Str("type", typ).Msg("page operation without usable pageIndex, dropped")
			p.Skipped++
			continue
		}
		p.PageOps = append(p.PageOps, PageOperation{Type: strings.ToLower(typ), PageIndex: int(idx)})
	}

	for key, recs := range raw.Annotations {
		pageNum, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || pageNum < 1 {
			log.Warn().Str("page_key", key).Msg("annotation page key is not a page number, dropped")
			p.Skipped += len(recs)
			continue
		}
		for _, m := range recs {
			a, err := decodeAnnotation(m)
			if err != nil {
				log.Warn().Err(err).Int("page", pageNum).Msg("malformed annotation dropped")
				p.Skipped++
				continue
			}
			p.Annotations[pageNum] = append(p.Annotations[pageNum], a)
		}
	}

	return p, nil
}

func decodeAnnotation(m map[string]any) (Annotation, error) {
	typ, _ := m["type"].(string)
	switch strings.ToLower(typ) {
	case "text":
		return decodeText(m)
	case ToolDraw, ToolPen, ToolHighlighter:
		return decodePath(strings.ToLower(typ), m)
	case "rectangle":
		return decodeRect(m)
	case "circle":
		return decodeCircle(m)
	case "":
		return nil, errors.New("missing annotation type")
	default:
		return nil, fmt.Errorf("unknown annotation type %q", typ)
	}
}

func decodeText(m map[string]any) (Annotation, error) {
	text, ok := m["text"].(string)
	if !ok {
		return nil, errors.New("text annotation without text")
	}
	x, err := toFloat(m["x"])
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := toFloat(m["y"])
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	fontSize := 12.0
	if _, present := m["fontSize"]; present {
		if fontSize, err = toFloat(m["fontSize"]); err != nil {
			return nil, fmt.Errorf("fontSize: %w", err)
		}
	}
	return TextAnnotation{
		Text:     text,
		X:        x,
		Y:        y,
		FontSize: fontSize,
		Color:    parseColor(stringField(m, "color"), defaultTextColor),
	}, nil
}

func decodePath(tool string, m map[string]any) (Annotation, error) {
	rawPts, ok := m["path"].([]any)
	if !ok {
		return nil, errors.New("path annotation without path")
	}
	if len(rawPts) < minPathPoints || len(rawPts) > maxPathPoints {
		return nil, fmt.Errorf("path has %d points, want %d..%d", len(rawPts), minPathPoints, maxPathPoints)
	}
	pts := make([]Point, 0, len(rawPts))
	for i, rp := range rawPts {
		pm, ok := rp.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("path point %d is not an object", i)
		}
		x, err := toFloat(pm["x"])
		if err != nil {
			return nil, fmt.Errorf("path point %d x: %w", i, err)
		}
		y, err := toFloat(pm["y"])
		if err != nil {
			return nil, fmt.Errorf("path point %d y: %w", i, err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}

	width := 2.0
	if tool == ToolHighlighter {
		width = minHighlighterWidth
	}
	if _, present := m["strokeWidth"]; present {
		var err error
		if width, err = toFloat(m["strokeWidth"]); err != nil {
			return nil, fmt.Errorf("strokeWidth: %w", err)
		}
	}

	def := defaultPenColor
	if tool == ToolHighlighter {
		def = defaultHighlighterColor
	}
	return PathAnnotation{
		Tool:        tool,
		Points:      pts,
		StrokeWidth: width,
		Color:       parseColor(stringField(m, "color"), def),
	}, nil
}

func decodeRect(m map[string]any) (Annotation, error) {
	x, err := toFloat(m["x"])
	if err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	y, err := toFloat(m["y"])
	if err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}
	w, err := toFloat(m["width"])
	if err != nil {
		return nil, fmt.Errorf("width: %w", err)
	}
	h, err := toFloat(m["height"])
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}
	lw := 2.0
	if _, present := m["lineWidth"]; present {
		if lw, err = toFloat(m["lineWidth"]); err != nil {
			return nil, fmt.Errorf("lineWidth: %w", err)
		}
	}
	return RectAnnotation{
		X: x, Y: y, Width: w, Height: h,
		LineWidth: lw,
		Color:     parseColor(stringField(m, "color"), defaultRectColor),
	}, nil
}

func decodeCircle(m map[string]any) (Annotation, error) {
	// centerX/centerY preferred, x/y accepted as a fallback.
	cx, err := toFloat(m["centerX"])
	if err != nil {
		if cx, err = toFloat(m["x"]); err != nil {
			return nil, fmt.Errorf("centerX: %w", err)
		}
	}
	cy, err := toFloat(m["centerY"])
	if err != nil {
		if cy, err = toFloat(m["y"]); err != nil {
			return nil, fmt.Errorf("centerY: %w", err)
		}
	}
	r, err := toFloat(m["radius"])
	if err != nil {
		return nil, fmt.Errorf("radius: %w", err)
	}
	lw := 2.0
	if _, present := m["lineWidth"]; present {
		if lw, err = toFloat(m["lineWidth"]); err != nil {
			return nil, fmt.Errorf("lineWidth: %w", err)
		}
	}
	return CircleAnnotation{
		CenterX: cx, CenterY: cy, Radius: r,
		LineWidth: lw,
		Color:     parseColor(stringField(m, "color"), defaultCircleColor),
	}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// toFloat coerces the loosely typed values JSON decoding produces. Numeric
// strings are accepted since some clients serialize coordinates that way.
func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
