package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
    Concurrency          int
    ApplyTimeout         time.Duration
    JobMaxAttempts       int
    RetryBaseDelay       time.Duration
    RetryJitter          time.Duration
    RetryBackoffFactor   float64
    MaxParallelEdits     int
    StorageBaseBackoff   time.Duration
    StorageMaxBackoff    time.Duration
}

// EditorConfig carries the document mutation caps. The engine enforces the
// annotation cap again on its own; the rest gate requests before enqueue.
type EditorConfig struct {
    MaxSourcePages     int
    MaxPageOps         int
    MaxAnnotationPages int
    MaxAnnotations     int
    MaxUploadMB        int
}

// StorageConfig defines the S3 bucket and optional static credentials.
type StorageConfig struct {
    Bucket          string
    AccessKeyID     string
    SecretAccessKey string
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
    RedisURL     string
    Stream       string
    Group        string
    PollInterval time.Duration
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Worker  WorkerConfig
    Editor  EditorConfig
    Storage StorageConfig
    Queue   QueueConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/pdfeditor.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdfeditor",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Worker defaults
    cfg.Worker = WorkerConfig{
        Concurrency:        parseInt(getEnv("WORKER_CONCURRENCY", "4"), 4),
        ApplyTimeout:       parseDuration(getEnv("APPLY_TIMEOUT", "120s"), 120*time.Second),
        JobMaxAttempts:     parseInt(getEnv("JOB_MAX_ATTEMPTS", "3"), 3),
        RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "2s"), 2*time.Second),
        RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "200ms"), 200*time.Millisecond),
        RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
        MaxParallelEdits:   parseInt(getEnv("MAX_PARALLEL_EDITS", "4"), 4),
        StorageBaseBackoff: parseDuration(getEnv("STORAGE_BASE_BACKOFF", "30s"), 30*time.Second),
        StorageMaxBackoff:  parseDuration(getEnv("STORAGE_MAX_BACKOFF", "5m"), 5*time.Minute),
    }

    // Editor caps
    cfg.Editor = EditorConfig{
        MaxSourcePages:     parseInt(getEnv("EDIT_MAX_SOURCE_PAGES", "500"), 500),
        MaxPageOps:         parseInt(getEnv("EDIT_MAX_PAGE_OPS", "1000"), 1000),
        MaxAnnotationPages: parseInt(getEnv("EDIT_MAX_ANNOTATION_PAGES", "500"), 500),
        MaxAnnotations:     parseInt(getEnv("EDIT_MAX_ANNOTATIONS", "1000"), 1000),
        MaxUploadMB:        parseInt(getEnv("EDIT_MAX_UPLOAD_MB", "64"), 64),
    }

    // Storage defaults
    cfg.Storage = StorageConfig{
        Bucket:          getEnv("AWS_S3_BUCKET", "pdfeditor-files-dev"),
        AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
        SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
    }

    // Queue defaults
    cfg.Queue = QueueConfig{
        RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
        Stream:       getEnv("QUEUE_STREAM", "jobs:pdf:edits"),
        Group:        getEnv("QUEUE_GROUP", "workers:edit"),
        PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
