package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/local/pdfeditor/internal/engine"
)

func TestTransientErrors(t *testing.T) {
	assert.True(t, isTransientError(context.DeadlineExceeded))
	assert.True(t, isTransientError(&StorageError{Op: "upload", Err: errors.New("503")}))
	assert.True(t, isTransientError(errors.New("dial tcp: connection refused")))
	assert.True(t, isTransientError(errors.New("unexpected EOF")))

	assert.False(t, isTransientError(nil))
	assert.False(t, isTransientError(&ValidationError{Message: "nope"}))
}

func TestFatalErrors(t *testing.T) {
	assert.True(t, isFatalError(&ValidationError{Message: "too many pages"}))
	assert.True(t, isFatalError(&engine.AllPagesDeletedError{PageCount: 3}))
	assert.True(t, isFatalError(&engine.SaveVerificationError{Want: 3, Got: 2}))
	assert.True(t, isFatalError(errors.New("malformed payload")))

	// Wrapped engine errors still classify.
	wrapped := fmt.Errorf("apply: %w", &engine.AllPagesDeletedError{PageCount: 1})
	assert.True(t, isFatalError(wrapped))

	assert.False(t, isFatalError(nil))
	assert.False(t, isFatalError(errors.New("connection reset")))
}

func TestTimeoutErrors(t *testing.T) {
	assert.True(t, isTimeoutError(context.DeadlineExceeded))
	assert.True(t, isTimeoutError(fmt.Errorf("edit timeout after 2m0s: %w", context.DeadlineExceeded)))
	assert.False(t, isTimeoutError(errors.New("bad request")))
}
