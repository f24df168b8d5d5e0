package statuscheck

import (
    "context"
    "errors"
    "os"
    "time"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"

    "github.com/local/pdfeditor/internal/engine"
    "github.com/local/pdfeditor/internal/pdfinfo"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// Checker aggregates health checks for the dependencies the dashboard shows.
type Checker struct {
    redis    RedisPinger
    s3Bucket string
}

// Options configures the Checker.
type Options struct {
    Redis    RedisPinger
    S3Bucket string
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses for the dashboard.
type Summary struct {
    Redis Status `json:"redis"`
    S3    Status `json:"s3"`
    Cairo Status `json:"cairo"`
    MuPDF Status `json:"mupdf"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:    opts.Redis,
        s3Bucket: opts.S3Bucket,
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    s := Summary{
        Redis: c.checkRedis(ctx),
        S3:    c.checkS3(ctx),
    }
    s.Cairo, s.MuPDF = c.checkRenderStack()
    return s
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "client unavailable"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.s3Bucket == "" {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil {
        return Status{OK: false, Message: err.Error()}
    }
    cli := s3.NewFromConfig(cfg)
    _, err = cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket})
    if err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

// checkRenderStack exercises the real drawing path: cairo writes a one-page
// document, MuPDF opens it back.
func (c *Checker) checkRenderStack() (Status, Status) {
    path, err := engine.RenderSelfTest("")
    if err != nil {
        msg := trimError(err)
        return Status{OK: false, Message: msg}, Status{OK: false, Message: "skipped: render failed"}
    }
    defer os.Remove(path)
    cairo := Status{OK: true, Message: "Available"}

    if _, err := pdfinfo.PageCount(path); err != nil {
        return cairo, Status{OK: false, Message: trimError(err)}
    }
    return cairo, Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
