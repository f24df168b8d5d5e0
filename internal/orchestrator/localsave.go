package orchestrator

import (
    "fmt"
    "io"
    "os"
    "path/filepath"
)

// SaveResultLocal moves the edited document into the local results directory
// and returns the final path. Directory defaults to ./uploads/results unless
// RESULT_DIR is set.
func SaveResultLocal(jobID, srcPath string) (string, error) {
    dir := os.Getenv("RESULT_DIR")
    if dir == "" { dir = filepath.Join("uploads", "results") }
    if err := os.MkdirAll(dir, 0o755); err != nil { return "", err }
    p := filepath.Join(dir, fmt.Sprintf("%s_edited.pdf", jobID))

    // Rename first; fall back to copy when temp dir is on another filesystem.
    if err := os.Rename(srcPath, p); err == nil {
        return p, nil
    }
    in, err := os.Open(srcPath)
    if err != nil { return "", err }
    defer in.Close()
    out, err := os.Create(p)
    if err != nil { return "", err }
    if _, err := io.Copy(out, in); err != nil {
        out.Close()
        return "", err
    }
    if err := out.Close(); err != nil { return "", err }
    _ = os.Remove(srcPath)
    return p, nil
}
