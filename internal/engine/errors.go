package engine

import "fmt"

// AllPagesDeletedError is returned by ComputePageMap when the delete set
// covers every page of the source document. The caller must reject the
// request before any output document is created.
type AllPagesDeletedError struct {
	PageCount int
}

func (e *AllPagesDeletedError) Error() string {
	return fmt.Sprintf("all %d pages deleted; at least one page must remain", e.PageCount)
}

// SaveVerificationError reports a saved output whose page count does not
// match the survivor map. The artifact has already been discarded.
type SaveVerificationError struct {
	Want int
	Got  int
}

func (e *SaveVerificationError) Error() string {
	return fmt.Sprintf("output verification failed: want %d pages, got %d", e.Want, e.Got)
}
