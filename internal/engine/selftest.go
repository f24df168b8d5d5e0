package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// RenderSelfTest writes a one-page blank document through the cairo overlay
// writer and verifies pdfcpu can parse it. It returns the file path; the
// caller removes it when done.
func RenderSelfTest(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("pdfedit-selftest-%d.pdf", time.Now().UnixNano()))
	ov := newOverlay(path, PageSize{Width: 72, Height: 72})
	ov.finish()

	n, err := api.PageCountFile(path)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("render self-test unparseable: %w", err)
	}
	if n != 1 {
		_ = os.Remove(path)
		return "", fmt.Errorf("render self-test produced %d pages", n)
	}
	return path, nil
}
