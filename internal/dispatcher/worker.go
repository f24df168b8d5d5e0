package dispatcher

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "math/rand"
    "net/http"
    "os"
    "path/filepath"
    "time"

    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfeditor/internal/config"
    "github.com/local/pdfeditor/internal/engine"
    "github.com/local/pdfeditor/internal/filetype"
    "github.com/local/pdfeditor/internal/limiter"
    "github.com/local/pdfeditor/internal/metrics"
    "github.com/local/pdfeditor/internal/orchestrator"
    "github.com/local/pdfeditor/internal/pdfinfo"
)

type Queue interface {
    Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, []byte, error)
    Ack(ctx context.Context, msgID string) error
    EnqueueDelayed(ctx context.Context, payload []byte, executeAt time.Time) error
    AddDLQ(ctx context.Context, payload []byte, reason string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
    IsIdemDone(ctx context.Context, key string) (bool, error)
    MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
}

type Config struct {
    Concurrency int
}

type Worker struct {
    cfg      Config
    q        Queue
    lim      *limiter.Adaptive
    stop     chan struct{}
    conf     cfgpkg.Config
    detector *filetype.Detector
}

// job is the queue envelope produced by the orchestrator.
type job struct {
    JobID          string          `json:"job_id"`
    FilePath       string          `json:"file_path"`
    User           string          `json:"user"`
    Password       string          `json:"password,omitempty"`
    Operations     json.RawMessage `json:"operations"`
    Source         string          `json:"source"`
    IdempotencyKey string          `json:"idempotency_key"`
    Attempt        int             `json:"attempt"`
}

// outcome carries what the worker reports back on success.
type outcome struct {
    result    engine.Result
    localPath string
    s3URL     string
}

func New(cfg Config, q Queue, lim *limiter.Adaptive) *Worker {
    if cfg.Concurrency <= 0 { cfg.Concurrency = 2 }
    return &Worker{cfg: cfg, q: q, lim: lim, stop: make(chan struct{}), conf: cfgpkg.FromEnv(), detector: filetype.New()}
}

func (w *Worker) Start() {
    for i := 0; i < w.cfg.Concurrency; i++ {
        go w.loop(i)
    }
}

func (w *Worker) Stop(ctx context.Context) error {
    close(w.stop)
    return nil
}

func (w *Worker) loop(id int) {
    log.Info().Int("worker", id).Msg("edit worker started")
    consumer := fmt.Sprintf("worker-%d", id)
    for {
        select {
        case <-w.stop:
            log.Info().Int("worker", id).Msg("edit worker stopped")
            return
        default:
        }

        msgID, data, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
        if err != nil {
            log.Error().Err(err).Msg("queue dequeue error")
            time.Sleep(500 * time.Millisecond)
            continue
        }
        if data == nil { continue }

        w.handleMessage(id, msgID, data)
    }
}

func (w *Worker) handleMessage(id int, msgID string, data []byte) {
    defer func() { _ = w.q.Ack(context.Background(), msgID) }()

    var j job
    if err := json.Unmarshal(data, &j); err != nil {
        log.Error().Err(err).Msg("unreadable job payload; dropping to DLQ")
        _ = w.q.AddDLQ(context.Background(), data, "unreadable payload")
        metrics.IncEdit("dlq")
        return
    }
    if j.Attempt < 1 { j.Attempt = 1 }

    ctx := context.Background()
    if j.JobID != "" {
        if cancelled, _ := w.q.IsCancelled(ctx, j.JobID); cancelled {
            log.Warn().Int("worker", id).Str("job_id", j.JobID).Msg("job cancelled before processing; skipping")
            metrics.IncEdit("cancelled")
            return
        }
    }
    if done, _ := w.q.IsIdemDone(ctx, j.IdempotencyKey); done {
        log.Info().Str("job_id", j.JobID).Msg("job already completed (idempotency); skipping")
        return
    }

    // Cap concurrent engine runs. A full house is not a failure: push the
    // job back a little and let another instance take it.
    release, ok := w.lim.Allow("edit")
    if !ok {
        log.Debug().Str("job_id", j.JobID).Msg("no edit slots; requeueing")
        _ = w.q.EnqueueDelayed(ctx, data, time.Now().Add(2*time.Second))
        return
    }
    defer release()

    start := time.Now()
    out, err := w.process(ctx, &j)
    if err != nil {
        w.handleFailure(ctx, &j, data, err)
        return
    }

    metrics.IncEdit("success")
    metrics.ObserveEdit(j.Source, time.Since(start))
    metrics.AddPagesDeleted(out.result.PagesDeleted)
    metrics.AddAnnotationsSkipped("dropped", out.result.AnnotationsSkipped)

    _ = w.q.MarkIdemDone(ctx, j.IdempotencyKey, 24*time.Hour)
    w.postJobDone(&j, out)

    log.Info().Str("job_id", j.JobID).
        Int("pages", out.result.PageCount).
        Int("pages_deleted", out.result.PagesDeleted).
        Int("annotations_applied", out.result.AnnotationsApplied).
        Dur("took", time.Since(start)).
        Msg("edit job completed")
}

// process runs the full edit pipeline for one job.
func (w *Worker) process(ctx context.Context, j *job) (outcome, error) {
    var out outcome

    localPath, cleanup, err := orchestrator.FetchSource(ctx, j.FilePath, j.Password)
    if err != nil {
        return out, &StorageError{Op: "fetch", Err: err}
    }
    defer cleanup()

    if err := w.detector.EnsurePDF(localPath); err != nil {
        return out, &ValidationError{Message: err.Error()}
    }

    src, err := pdfinfo.Inspect(localPath)
    if err != nil {
        return out, &ValidationError{Message: fmt.Sprintf("cannot open document: %v", err)}
    }
    if max := w.conf.Editor.MaxSourcePages; max > 0 && src.PageCount() > max {
        return out, &ValidationError{Message: fmt.Sprintf("document has %d pages (max %d)", src.PageCount(), max)}
    }

    payload, err := engine.ParseEditPayload(j.Operations)
    if err != nil {
        return out, &ValidationError{Message: fmt.Sprintf("invalid operations document: %v", err)}
    }
    metrics.AddAnnotationsSkipped("malformed", payload.Skipped)

    outPath := filepath.Join(os.TempDir(), fmt.Sprintf("pdfedit-out-%s.pdf", j.JobID))
    res, err := w.applyWithTimeout(src, payload, outPath)
    if err != nil {
        _ = os.Remove(outPath)
        return out, err
    }
    out.result = res
    out.result.AnnotationsSkipped += payload.Skipped

    // Persist the artifact where the job came from.
    if j.Source == "upload" {
        p, err := orchestrator.SaveResultLocal(j.JobID, outPath)
        if err != nil {
            _ = os.Remove(outPath)
            return out, &StorageError{Op: "local save", Err: err}
        }
        out.localPath = p
        return out, nil
    }

    defer os.Remove(outPath)
    if w.lim.IsOpen(ctx, "storage") {
        return out, &StorageError{Op: "upload", Err: fmt.Errorf("storage cooldown active")}
    }
    url, err := orchestrator.SaveResultToS3(ctx, w.q, j.FilePath, j.JobID, outPath, j.Password)
    if err != nil {
        w.lim.Open(ctx, "storage")
        metrics.StorageCooldownOpened()
        return out, &StorageError{Op: "upload", Err: err}
    }
    w.lim.Close(ctx, "storage")
    out.s3URL = url
    return out, nil
}

// applyWithTimeout bounds the mutation step; the engine itself does not take
// a context because cairo and pdfcpu run to completion once started.
func (w *Worker) applyWithTimeout(src engine.Source, payload *engine.EditPayload, outPath string) (engine.Result, error) {
    timeout := w.conf.Worker.ApplyTimeout
    if timeout <= 0 { timeout = 120 * time.Second }

    type applyOut struct {
        res engine.Result
        err error
    }
    ch := make(chan applyOut, 1)
    go func() {
        res, err := engine.Apply(src, payload, outPath, engine.Options{MaxAnnotations: w.conf.Editor.MaxAnnotations})
        ch <- applyOut{res, err}
    }()

    select {
    case o := <-ch:
        return o.res, o.err
    case <-time.After(timeout):
        return engine.Result{}, fmt.Errorf("edit timeout after %s: %w", timeout, context.DeadlineExceeded)
    }
}

func (w *Worker) handleFailure(ctx context.Context, j *job, raw []byte, err error) {
    if isFatalError(err) {
        log.Error().Err(err).Str("job_id", j.JobID).Int("attempt", j.Attempt).Msg("edit job failed permanently")
        metrics.IncEdit("failed")
        w.postJobFailed(j, err)
        return
    }

    if isTransientError(err) && j.Attempt < w.conf.Worker.JobMaxAttempts {
        delay := w.retryDelay(j.Attempt)
        j.Attempt++
        data, _ := json.Marshal(j)
        if qerr := w.q.EnqueueDelayed(ctx, data, time.Now().Add(delay)); qerr == nil {
            metrics.IncRetry()
            log.Warn().Err(err).Str("job_id", j.JobID).Int("attempt", j.Attempt).
                Dur("delay", delay).Bool("timeout", isTimeoutError(err)).
                Msg("edit job requeued")
            return
        }
    }

    // Retries exhausted (or requeue itself failed): park it in the DLQ.
    log.Error().Err(err).Str("job_id", j.JobID).Int("attempt", j.Attempt).Msg("edit job moved to DLQ")
    _ = w.q.AddDLQ(ctx, raw, err.Error())
    metrics.IncEdit("dlq")
    w.postJobFailed(j, err)
}

// retryDelay computes exponential backoff with jitter for the given attempt.
func (w *Worker) retryDelay(attempt int) time.Duration {
    base := w.conf.Worker.RetryBaseDelay
    if base <= 0 { base = 2 * time.Second }
    factor := w.conf.Worker.RetryBackoffFactor
    if factor < 1 { factor = 2 }
    d := base
    for i := 1; i < attempt; i++ {
        d = time.Duration(float64(d) * factor)
    }
    if jitter := w.conf.Worker.RetryJitter; jitter > 0 {
        d += time.Duration(rand.Int63n(int64(jitter)))
    }
    return d
}

func (w *Worker) postJobDone(j *job, out outcome) {
    port := getenv("PORT", "8080")
    url := fmt.Sprintf("http://127.0.0.1:%s/internal/job_done?job_id=%s", port, j.JobID)
    body := map[string]any{
        "page_count":          out.result.PageCount,
        "pages_deleted":       out.result.PagesDeleted,
        "annotations_applied": out.result.AnnotationsApplied,
        "annotations_skipped": out.result.AnnotationsSkipped,
    }
    if out.localPath != "" { body["result_local_path"] = out.localPath }
    if out.s3URL != "" { body["result_s3_url"] = out.s3URL }
    b, _ := json.Marshal(body)
    _, _ = http.Post(url, "application/json", bytes.NewReader(b))
}

func (w *Worker) postJobFailed(j *job, err error) {
    port := getenv("PORT", "8080")
    url := fmt.Sprintf("http://127.0.0.1:%s/internal/job_failed?job_id=%s", port, j.JobID)
    b, _ := json.Marshal(map[string]any{"error": err.Error()})
    _, _ = http.Post(url, "application/json", bytes.NewReader(b))
}

func getenv(k, d string) string { if v := os.Getenv(k); v != "" { return v }; return d }
