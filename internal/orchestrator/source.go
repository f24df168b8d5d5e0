package orchestrator

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"

    "github.com/pdfcpu/pdfcpu/pkg/api"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfeditor/internal/storage"
)

// FetchSource materializes the referenced document as a local file and
// returns its path plus a cleanup func. Supports:
// - file://path or plain filesystem paths (no copy, cleanup is a no-op)
// - http(s):// URLs (downloads to temp)
// - s3://bucket/key (encrypted download via the file store client)
func FetchSource(ctx context.Context, ref, password string) (string, func(), error) {
    // Strip optional #page fragment if present
    if i := strings.Index(ref, "#"); i >= 0 {
        ref = ref[:i]
    }

    noop := func() {}
    switch {
    case strings.HasPrefix(ref, "s3://"):
        p, err := downloadS3ToTemp(ctx, ref, password)
        if err != nil { return "", noop, err }
        return p, func() { _ = os.Remove(p) }, nil
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        p, err := downloadHTTPToTemp(ctx, ref)
        if err != nil { return "", noop, err }
        return p, func() { _ = os.Remove(p) }, nil
    case strings.HasPrefix(ref, "file://"):
        return strings.TrimPrefix(ref, "file://"), noop, nil
    default:
        return ref, noop, nil
    }
}

// DetermineTotalPages returns the number of pages for a PDF referenced by ref.
func DetermineTotalPages(ctx context.Context, ref, password string) (int, error) {
    localPath, cleanup, err := FetchSource(ctx, ref, password)
    if err != nil {
        return 0, err
    }
    defer cleanup()

    n, err := api.PageCountFile(localPath)
    if err != nil {
        return 0, fmt.Errorf("pdf page count failed: %w", err)
    }
    return n, nil
}

func downloadHTTPToTemp(ctx context.Context, url string) (string, error) {
    req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    resp, err := http.DefaultClient.Do(req)
    if err != nil { return "", err }
    defer resp.Body.Close()
    if resp.StatusCode != 200 { return "", fmt.Errorf("http %d", resp.StatusCode) }
    f, err := os.CreateTemp("", "pdfdl-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := io.Copy(f, resp.Body); err != nil { return "", err }
    return f.Name(), nil
}

// downloadS3ToTemp fetches and decrypts an object from the file store.
func downloadS3ToTemp(ctx context.Context, s3url, password string) (string, error) {
    // s3://bucket/key
    path := strings.TrimPrefix(s3url, "s3://")
    slash := strings.Index(path, "/")
    if slash <= 0 { return "", fmt.Errorf("invalid s3 url: %s", s3url) }
    bucket := path[:slash]
    key := path[slash+1:]

    cli, err := storage.NewS3Client(ctx, storage.Options{
        Bucket:          bucket,
        AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
        SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
    })
    if err != nil { return "", err }

    data, _, err := cli.DownloadFile(ctx, key, password)
    if err != nil { return "", err }

    // Keep the .pdf extension for pdfcpu expectations.
    f, err := os.CreateTemp("", "pdfsrc-*.pdf")
    if err != nil { return "", err }
    defer f.Close()
    if _, err := f.Write(data); err != nil {
        _ = os.Remove(f.Name())
        return "", err
    }
    log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(f.Name())).Msg("downloaded source pdf to temp")
    return f.Name(), nil
}
