package orchestrator

import (
    "context"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/pdfeditor/internal/storage"
)

// QueueChecker interface for checking if a job is cancelled
type QueueChecker interface {
    IsCancelled(ctx context.Context, jobID string) (bool, error)
}

// SaveResultToS3 encrypts and uploads the edited PDF next to its source and
// returns the s3:// URL. The object is written to a versioned key
// (base_v{N}) and then promoted to the base key so the file store always
// serves the newest edit, with older versions kept for recovery.
// The same password that unlocked the source encrypts the result.
func SaveResultToS3(ctx context.Context, queue QueueChecker, originalRef, jobID, outputPath, password string) (string, error) {
    // A cancelled job must not publish its artifact.
    if queue != nil {
        if cancelled, err := queue.IsCancelled(ctx, jobID); err == nil && cancelled {
            log.Warn().Str("job_id", jobID).Msg("job is cancelled; aborting S3 upload")
            return "", fmt.Errorf("job %s was cancelled; S3 upload aborted", jobID)
        }
    }

    bucket := os.Getenv("AWS_S3_BUCKET")
    if bucket == "" {
        bucket = "pdfeditor-files-dev"
    }

    // Extract bucket and original key from originalRef
    var originalKey string
    if strings.HasPrefix(originalRef, "s3://") {
        path := strings.TrimPrefix(originalRef, "s3://")
        parts := strings.SplitN(path, "/", 2)
        if len(parts) == 2 && parts[0] != "" {
            bucket = parts[0]
            originalKey = parts[1]
        }
    }

    // The file store keeps sources under key_original; edits land on the
    // bare key so readers pick them up transparently.
    key := strings.TrimSuffix(originalKey, "_original")
    if key == "" || key == originalKey {
        key = fmt.Sprintf("results/%s/edited.pdf", jobID)
        log.Warn().Str("original_key", originalKey).Str("fallback_key", key).Msg("original key missing _original suffix, using fallback")
    }

    s3Client, err := storage.NewS3Client(ctx, storage.Options{
        Bucket:          bucket,
        AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
        SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
    })
    if err != nil {
        return "", fmt.Errorf("failed to create S3 client: %w", err)
    }

    data, err := os.ReadFile(outputPath)
    if err != nil {
        return "", fmt.Errorf("failed to read output document: %w", err)
    }

    // Carry the source object's metadata over so file-store fields survive.
    var originalMetadata *storage.FileMetadata
    if originalKey != "" {
        _, origMeta, err := s3Client.DownloadFile(ctx, originalKey, password)
        if err != nil {
            log.Warn().Err(err).Str("original_key", originalKey).Msg("failed to get original metadata, using defaults")
        } else {
            originalMetadata = origMeta
        }
    }

    originalName := fmt.Sprintf("edited_%s.pdf", jobID)
    if originalMetadata != nil && originalMetadata.OriginalName != "" {
        originalName = originalMetadata.OriginalName
    }

    metadata := &storage.FileMetadata{
        OriginalName: originalName,
        ContentType:  "application/pdf",
        Size:         int64(len(data)),
        Metadata:     make(map[string]string),
    }
    if originalMetadata != nil {
        for k, v := range originalMetadata.Metadata {
            metadata.Metadata[k] = v
        }
    }
    metadata.Metadata["job_id"] = jobID
    metadata.Metadata["source"] = "pdf_edit"
    metadata.Metadata["format"] = "pdf"
    metadata.Metadata["created"] = time.Now().UTC().Format(time.RFC3339)

    // Next free version slot for this key.
    n, err := s3Client.ListNextVersion(ctx, key)
    if err != nil {
        log.Warn().Err(err).Str("base_key", key).Msg("failed to list next version; defaulting to v1")
    }
    if n <= 0 { n = 1 }
    versionedKey := fmt.Sprintf("%s_v%d", key, n)

    if err := s3Client.UploadFile(ctx, versionedKey, data, password, metadata); err != nil {
        return "", fmt.Errorf("failed to upload versioned object to S3: %w", err)
    }

    baseMeta := map[string]string{
        "name":              metadata.OriginalName,
        "content-type":      metadata.ContentType,
        "encrypted":         "true",
        "encryption-format": "3NCR0PTD",
        "source_version":    versionedKey,
    }
    for k, v := range metadata.Metadata { baseMeta[k] = v }

    if err := s3Client.CopyObjectWithMetadata(ctx, versionedKey, key, baseMeta); err != nil {
        log.Warn().Err(err).Str("src", versionedKey).Str("dst", key).Msg("promotion to base failed; keeping versioned object only")
        return fmt.Sprintf("s3://%s/%s", bucket, versionedKey), nil
    }

    log.Info().
        Str("job_id", jobID).
        Str("versioned_key", versionedKey).
        Str("base_key", key).
        Int("size", len(data)).
        Msg("uploaded edited document and promoted to base key")

    return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
