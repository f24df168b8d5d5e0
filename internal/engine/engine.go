package engine

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

// Source describes the read-only input document: its location plus the
// media box of every page, in points. The file at Path is never written.
type Source struct {
	Path  string
	Pages []PageSize
}

// PageCount returns the number of pages in the source.
func (s Source) PageCount() int { return len(s.Pages) }

// Result reports a completed apply call.
type Result struct {
	PageCount          int
	PagesDeleted       int
	AnnotationsApplied int
	AnnotationsSkipped int
}

// DefaultMaxAnnotations caps annotation draws per apply call unless
// overridden via Options.
const DefaultMaxAnnotations = 1000

// Options tunes one apply call.
type Options struct {
	MaxAnnotations int
}

// target pairs an annotated output page with its geometry and records.
type target struct {
	newIndex int
	size     PageSize
	records  []Annotation
}

// Apply builds a fresh PDF at outPath containing the pages of src that
// survive payload.PageOps, in their original relative order, with each
// surviving page's annotations drawn on it. The source document is only
// read. On any error no partial artifact is left at outPath.
func Apply(src Source, payload *EditPayload, outPath string, opts Options) (Result, error) {
	if payload == nil {
		payload = &EditPayload{}
	}
	maxAnnotations := opts.MaxAnnotations
	if maxAnnotations <= 0 {
		maxAnnotations = DefaultMaxAnnotations
	}

	pm, err := ComputePageMap(src.PageCount(), payload.PageOps)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		PageCount:    pm.Len(),
		PagesDeleted: src.PageCount() - pm.Len(),
	}

	// Copy the survivors, in output order, into a fresh document. Collect
	// rebuilds the page tree from scratch, so the output never inherits
	// stale objects from the source and the page count is exactly what we
	// asked for.
	collected, err := os.CreateTemp("", "pdfedit-collect-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp output: %w", err)
	}
	collectedPath := collected.Name()
	collected.Close()
	defer os.Remove(collectedPath)

	selected := make([]string, 0, pm.Len())
	for _, old := range pm.Survivors() {
		selected = append(selected, strconv.Itoa(old+1))
	}
	conf := model.NewDefaultConfiguration()
	if err := api.CollectFile(src.Path, collectedPath, selected, conf); err != nil {
		return Result{}, fmt.Errorf("copy surviving pages: %w", err)
	}

	targets, skipped := resolveTargets(src, pm, payload.Annotations)
	res.AnnotationsSkipped += skipped

	if len(targets) == 0 {
		if err := copyFile(collectedPath, outPath); err != nil {
			return Result{}, fmt.Errorf("write output: %w", err)
		}
	} else {
		applied, dropped, err := stampAnnotations(collectedPath, outPath, targets, NewBudget(maxAnnotations))
		if err != nil {
			os.Remove(outPath)
			return Result{}, err
		}
		res.AnnotationsApplied = applied
		res.AnnotationsSkipped += dropped
	}

	// The artifact is only valid if it holds exactly the survivor pages.
	got, err := api.PageCountFile(outPath)
	if err != nil || got != pm.Len() {
		os.Remove(outPath)
		if err != nil {
			log.Error().Err(err).Str("out", outPath).Msg("output page count unreadable")
			got = 0
		}
		return Result{}, &SaveVerificationError{Want: pm.Len(), Got: got}
	}

	return res, nil
}

// resolveTargets maps annotation page keys onto surviving output pages.
// Annotations for deleted pages are dropped, never reassigned to a
// neighboring page.
func resolveTargets(src Source, pm *PageMap, byPage map[int][]Annotation) ([]target, int) {
	skipped := 0
	targets := make([]target, 0, len(byPage))
	for pageNum, recs := range byPage {
		oldIndex := pageNum - 1
		if oldIndex < 0 || oldIndex >= src.PageCount() {
			log.Debug().Int("page", pageNum).Int("count", len(recs)).Msg("annotations target a page beyond the document, dropped")
			skipped += len(recs)
			continue
		}
		newIndex, ok := pm.Lookup(oldIndex)
		if !ok {
			log.Debug().Int("page", pageNum).Int("count", len(recs)).Msg("annotations target a deleted page, dropped")
			skipped += len(recs)
			continue
		}
		if len(recs) == 0 {
			continue
		}
		targets = append(targets, target{newIndex: newIndex, size: src.Pages[oldIndex], records: recs})
	}
	// Ascending output order keeps the annotation budget cutoff
	// deterministic across calls.
	sort.Slice(targets, func(i, j int) bool { return targets[i].newIndex < targets[j].newIndex })
	return targets, skipped
}

// stampAnnotations draws all annotation records into a cairo overlay PDF and
// stamps its pages onto the collected document at absolute scale. Overlay
// page i is the same size as its target page, so centered placement lines
// the two up exactly.
func stampAnnotations(collectedPath, outPath string, targets []target, budget *Budget) (applied, dropped int, err error) {
	overlayFile, err := os.CreateTemp("", "pdfedit-overlay-*.pdf")
	if err != nil {
		return 0, 0, fmt.Errorf("create overlay temp: %w", err)
	}
	overlayPath := overlayFile.Name()
	overlayFile.Close()
	defer os.Remove(overlayPath)

	ov := newOverlay(overlayPath, targets[0].size)
	for i, t := range targets {
		if i > 0 {
			ov.nextPage(t.size)
		}
		for _, rec := range t.records {
			if !budget.Take() {
				dropped++
				continue
			}
			ov.draw(rec, t.size)
			applied++
		}
	}
	ov.finish()

	conf := model.NewDefaultConfiguration()
	stamps := make(map[int]*model.Watermark, len(targets))
	for i, t := range targets {
		wm, err := pdfcpu.ParsePDFWatermarkDetails(
			fmt.Sprintf("%s:%d", overlayPath, i+1),
			"pos:c, scale:1 abs, rot:0",
			true,
			types.POINTS,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("overlay stamp for page %d: %w", t.newIndex+1, err)
		}
		stamps[t.newIndex+1] = wm
	}
	if err := api.AddWatermarksMapFile(collectedPath, outPath, stamps, conf); err != nil {
		return 0, 0, fmt.Errorf("stamp annotations: %w", err)
	}
	return applied, dropped, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
