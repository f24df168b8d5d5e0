package engine

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// OpDelete removes a single page from the source document.
const OpDelete = "delete"

// PageOperation is one page-level mutation from the client payload.
// PageIndex references the source document, 0-based.
type PageOperation struct {
	Type      string
	PageIndex int
}

// PageMap maps surviving source page indices to their output indices.
// Survivors keep their relative order, so the mapping is strictly
// monotonic: oldA < oldB implies newA < newB.
type PageMap struct {
	newByOld map[int]int
	old      []int // surviving source indices, ascending
}

// ComputePageMap collects the distinct in-range delete indices from ops and
// builds the old-to-new index map over the surviving pages. Indices outside
// [0, pageCount) are ignored: operations come from UI state that may be
// stale, so out-of-range deletes are best-effort no-ops, not errors.
func ComputePageMap(pageCount int, ops []PageOperation) (*PageMap, error) {
	deleted := make(map[int]struct{})
	for _, op := range ops {
		if strings.ToLower(op.Type) != OpDelete {
			log.Debug().Str("type", op.Type).Msg("ignoring unknown page operation")
			continue
		}
		if op.PageIndex < 0 || op.PageIndex >= pageCount {
			continue
		}
		deleted[op.PageIndex] = struct{}{}
	}

	m := &PageMap{newByOld: make(map[int]int, pageCount-len(deleted))}
	for i := 0; i < pageCount; i++ {
		if _, gone := deleted[i]; gone {
			continue
		}
		m.newByOld[i] = len(m.old)
		m.old = append(m.old, i)
	}
	if len(m.old) == 0 {
		return nil, &AllPagesDeletedError{PageCount: pageCount}
	}
	return m, nil
}

// Len returns the number of surviving pages.
func (m *PageMap) Len() int { return len(m.old) }

// Lookup resolves a source page index to its output index.
func (m *PageMap) Lookup(old int) (int, bool) {
	n, ok := m.newByOld[old]
	return n, ok
}

// Survivors returns the surviving source indices in output order.
func (m *PageMap) Survivors() []int {
	out := make([]int, len(m.old))
	copy(out, m.old)
	return out
}
