package orchestrator

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "os"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/rs/zerolog/log"

    "github.com/local/pdfeditor/internal/config"
    "github.com/local/pdfeditor/internal/engine"
    "github.com/local/pdfeditor/internal/store"
)

type Queue interface {
    Enqueue(ctx context.Context, payload []byte) error
    CancelJob(ctx context.Context, jobID string) error
    IsCancelled(ctx context.Context, jobID string) (bool, error)
}

type Status struct {
    Status   string
    Progress int
    Message  string
    Start    *time.Time
    End      *time.Time
    Metadata map[string]any
}

type StatusStore interface {
    Set(ctx context.Context, jobID string, st Status) error
    Get(ctx context.Context, jobID string) (Status, bool, error)
}

type ResultStore interface {
    Save(ctx context.Context, jobID string, r store.Result) error
    Get(ctx context.Context, jobID string) (store.Result, bool, error)
}

type Dependencies struct {
    Queue   Queue
    Status  StatusStore
    Results ResultStore
    Caps    config.EditorConfig
    Bucket  string
    // JobTimeout bounds the watch on a single job before it is cancelled.
    JobTimeout time.Duration
}

type Orchestrator struct {
    deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
    if deps.JobTimeout <= 0 { deps.JobTimeout = 10 * time.Minute }
    return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request){ w.WriteHeader(http.StatusOK); _,_ = w.Write([]byte("ok")) })
    mux.HandleFunc("/edit_file_call", o.handleEdit)
    mux.HandleFunc("/edit_file_upload", o.handleEditUpload)
    mux.HandleFunc("/progress/", o.handleProgress)
    mux.HandleFunc("/download_result/", o.handleDownloadResult)
    mux.HandleFunc("/webhook/cancel_job", o.handleCancelJob)
    mux.HandleFunc("/internal/job_done", o.handleJobDone)
    mux.HandleFunc("/internal/job_failed", o.handleJobFailed)
}

type editReq struct {
    FilePath   string          `json:"file_path"`
    FileURL    string          `json:"file_url"`
    UserName   string          `json:"user_name"`
    UserID     string          `json:"user_id"`
    Password   string          `json:"password"`
    Operations json.RawMessage `json:"operations"`
    Source     string          `json:"source"`
}

type editResp struct {
    Status   string         `json:"status"`
    JobID    string         `json:"job_id"`
    Message  string         `json:"message"`
    Metadata map[string]any `json:"metadata,omitempty"`
}

// jobPayload is the envelope pushed onto the queue. Operations stay raw so
// the worker decodes them exactly once at its own boundary.
type jobPayload struct {
    JobID          string          `json:"job_id"`
    FilePath       string          `json:"file_path"`
    User           string          `json:"user"`
    Password       string          `json:"password,omitempty"`
    Operations     json.RawMessage `json:"operations"`
    Source         string          `json:"source"`
    IdempotencyKey string          `json:"idempotency_key"`
    Attempt        int             `json:"attempt"`
}

// validateOperations decodes the operations document and applies the
// request-level caps. The decoded payload is discarded; the worker re-parses.
func (o *Orchestrator) validateOperations(raw json.RawMessage) (*engine.EditPayload, error) {
    p, err := engine.ParseEditPayload(raw)
    if err != nil {
        return nil, fmt.Errorf("invalid operations document: %w", err)
    }
    if n := len(p.PageOps); o.deps.Caps.MaxPageOps > 0 && n > o.deps.Caps.MaxPageOps {
        return nil, fmt.Errorf("too many page operations: %d (max %d)", n, o.deps.Caps.MaxPageOps)
    }
    if n := len(p.Annotations); o.deps.Caps.MaxAnnotationPages > 0 && n > o.deps.Caps.MaxAnnotationPages {
        return nil, fmt.Errorf("annotations target too many pages: %d (max %d)", n, o.deps.Caps.MaxAnnotationPages)
    }
    return p, nil
}

func (o *Orchestrator) handleEdit(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed); return
    }
    defer r.Body.Close()
    var req editReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        http.Error(w, "invalid json", http.StatusBadRequest); return
    }

    // sanitize + normalize
    filePath := req.FilePath
    if filePath == "" { filePath = req.FileURL }
    user := req.UserName
    if user == "" { user = req.UserID }
    if filePath == "" || user == "" {
        http.Error(w, "missing file_path/file_url or user_name/user_id", http.StatusBadRequest); return
    }
    if !strings.HasPrefix(filePath, "s3://") && !strings.HasPrefix(filePath, "http://") && !strings.HasPrefix(filePath, "https://") && !strings.HasPrefix(filePath, "file://") {
        bucket := o.deps.Bucket
        if bucket == "" { bucket = os.Getenv("AWS_S3_BUCKET") }
        filePath = fmt.Sprintf("s3://%s/%s", bucket, filePath)
    }

    payload, err := o.validateOperations(req.Operations)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest); return
    }

    jobID := uuid.NewString()
    log.Info().Str("job_id", jobID).Str("file", filePath).Str("user", user).
        Int("page_ops", len(payload.PageOps)).Int("annotations", payload.TotalAnnotations()).
        Msg("edit job created")

    start := time.Now()
    _ = o.deps.Status.Set(r.Context(), jobID, Status{Status: "queued", Progress: 0, Message: "queued", Start: &start,
        Metadata: map[string]any{"file_path": filePath, "user": user, "source": sourceOrDefault(req.Source, "api")}})

    jp := jobPayload{
        JobID:          jobID,
        FilePath:       filePath,
        User:           user,
        Password:       req.Password,
        Operations:     req.Operations,
        Source:         sourceOrDefault(req.Source, "api"),
        IdempotencyKey: "edit:" + jobID,
        Attempt:        1,
    }
    data, _ := json.Marshal(jp)
    if err := o.deps.Queue.Enqueue(r.Context(), data); err != nil {
        log.Error().Err(err).Msg("enqueue failed")
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
        return
    }

    _ = o.deps.Status.Set(r.Context(), jobID, Status{Status: "processing", Progress: 10, Message: "queued for editing",
        Metadata: map[string]any{"file_path": filePath, "user": user, "source": sourceOrDefault(req.Source, "api"),
            "page_ops": len(payload.PageOps), "annotations": payload.TotalAnnotations()}})

    go o.monitorJob(jobID)

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    _ = json.NewEncoder(w).Encode(editResp{Status: "ok", JobID: jobID, Message: "Edit job created successfully",
        Metadata: map[string]any{"timestamp": time.Now().Format(time.RFC3339)}})
}

// handleEditUpload accepts multipart/form-data uploads from the dashboard and
// enqueues work. It mirrors the /edit_file_call flow but skips S3 entirely.
func (o *Orchestrator) handleEditUpload(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    maxBytes := int64(o.deps.Caps.MaxUploadMB) << 20
    if maxBytes <= 0 { maxBytes = 64 << 20 }
    r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
    // Expect multipart with fields: file (required), user_name, operations (JSON)
    if err := r.ParseMultipartForm(maxBytes); err != nil {
        http.Error(w, "invalid multipart form", http.StatusBadRequest); return
    }
    file, hdr, err := r.FormFile("file")
    if err != nil { http.Error(w, "missing file", http.StatusBadRequest); return }
    defer file.Close()
    user := r.FormValue("user_name")
    if user == "" { http.Error(w, "missing user_name", http.StatusBadRequest); return }
    opsField := r.FormValue("operations")
    if opsField == "" { opsField = "{}" }

    payload, err := o.validateOperations(json.RawMessage(opsField))
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest); return
    }

    // Persist upload to local storage
    uploadDir := os.Getenv("UPLOAD_DIR")
    if uploadDir == "" { uploadDir = "uploads" }
    if err := os.MkdirAll(uploadDir, 0o755); err != nil { http.Error(w, "cannot create upload dir", 500); return }
    jobID := uuid.NewString()
    // derive filename with job prefix to avoid collisions
    name := hdr.Filename
    if name == "" { name = "upload.pdf" }
    localPath := fmt.Sprintf("%s/%s_%s", strings.TrimRight(uploadDir, "/"), jobID, name)
    out, err := os.Create(localPath)
    if err != nil { http.Error(w, "cannot save upload", 500); return }
    if _, err := io.Copy(out, file); err != nil { out.Close(); http.Error(w, "write failed", 500); return }
    _ = out.Close()

    start := time.Now()
    fileRef := "file://" + localPath
    _ = o.deps.Status.Set(r.Context(), jobID, Status{Status: "queued", Progress: 0, Message: "queued",
        Start: &start, Metadata: map[string]any{"file_local": localPath, "user": user, "source": "upload",
            "page_ops": len(payload.PageOps), "annotations": payload.TotalAnnotations()}})

    jp := jobPayload{
        JobID:          jobID,
        FilePath:       fileRef,
        User:           user,
        Operations:     json.RawMessage(opsField),
        Source:         "upload",
        IdempotencyKey: "edit:" + jobID,
        Attempt:        1,
    }
    data, _ := json.Marshal(jp)
    if err := o.deps.Queue.Enqueue(r.Context(), data); err != nil {
        http.Error(w, "queue unavailable", http.StatusServiceUnavailable); return
    }

    _ = o.deps.Status.Set(r.Context(), jobID, Status{Status: "processing", Progress: 10,
        Message: "queued for editing", Metadata: map[string]any{"file_local": localPath, "user": user, "source": "upload",
            "page_ops": len(payload.PageOps), "annotations": payload.TotalAnnotations()}})

    go o.monitorJob(jobID)

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    _ = json.NewEncoder(w).Encode(editResp{Status: "ok", JobID: jobID, Message: "Upload edit job created"})
}

// handleDownloadResult serves the edited PDF for upload-origin jobs; for S3
// jobs it reports the destination URL instead.
func (o *Orchestrator) handleDownloadResult(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/download_result/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil || !ok { http.Error(w, "not found", http.StatusNotFound); return }
    if st.Status != "success" { http.Error(w, "not ready", http.StatusAccepted); return }
    res, ok, err := o.deps.Results.Get(r.Context(), id)
    if err != nil || !ok { http.Error(w, "result not available", http.StatusNotFound); return }

    if res.LocalPath != "" {
        b, err := os.ReadFile(res.LocalPath)
        if err != nil { http.Error(w, "failed to read", 500); return }
        w.Header().Set("Content-Type", "application/pdf")
        w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=edited_%s.pdf", id))
        _, _ = w.Write(b)
        return
    }
    if res.S3URL != "" {
        w.Header().Set("Content-Type", "application/json")
        _ = json.NewEncoder(w).Encode(map[string]any{"job_id": id, "s3_url": res.S3URL})
        return
    }
    http.Error(w, "result not available", http.StatusNotFound)
}

func (o *Orchestrator) handleProgress(w http.ResponseWriter, r *http.Request) {
    id := strings.TrimPrefix(r.URL.Path, "/progress/")
    st, ok, err := o.deps.Status.Get(r.Context(), id)
    if err != nil { http.Error(w, "error", 500); return }
    if !ok {
        http.Error(w, "not found", http.StatusNotFound); return
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(map[string]any{
        "success":    st.Status == "success",
        "job_id":     id,
        "status":     st.Status,
        "progress":   st.Progress,
        "message":    st.Message,
        "start_time": st.Start,
        "end_time":   st.End,
        "metadata":   st.Metadata,
    })
}

type jobDoneReq struct {
    PageCount          int    `json:"page_count"`
    PagesDeleted       int    `json:"pages_deleted"`
    AnnotationsApplied int    `json:"annotations_applied"`
    AnnotationsSkipped int    `json:"annotations_skipped"`
    ResultLocalPath    string `json:"result_local_path,omitempty"`
    ResultS3URL        string `json:"result_s3_url,omitempty"`
}

func (o *Orchestrator) handleJobDone(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    jobID := r.URL.Query().Get("job_id")
    if jobID == "" { http.Error(w, "missing job_id", http.StatusBadRequest); return }
    var body jobDoneReq
    _ = json.NewDecoder(r.Body).Decode(&body)

    _ = o.deps.Results.Save(r.Context(), jobID, store.Result{
        LocalPath:          body.ResultLocalPath,
        S3URL:              body.ResultS3URL,
        PageCount:          body.PageCount,
        PagesDeleted:       body.PagesDeleted,
        AnnotationsApplied: body.AnnotationsApplied,
        AnnotationsSkipped: body.AnnotationsSkipped,
    })

    st, ok, err := o.deps.Status.Get(r.Context(), jobID)
    if err != nil { http.Error(w, "error", 500); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    now := time.Now()
    st.Status = "success"
    st.Progress = 100
    st.Message = "completed"
    st.End = &now
    if st.Metadata == nil { st.Metadata = map[string]any{} }
    st.Metadata["page_count"] = body.PageCount
    st.Metadata["pages_deleted"] = body.PagesDeleted
    st.Metadata["annotations_applied"] = body.AnnotationsApplied
    st.Metadata["annotations_skipped"] = body.AnnotationsSkipped
    if body.ResultLocalPath != "" { st.Metadata["result_local_path"] = body.ResultLocalPath }
    if body.ResultS3URL != "" { st.Metadata["result_s3_url"] = body.ResultS3URL }
    _ = o.deps.Status.Set(r.Context(), jobID, st)

    // Completion hygiene: drop temp files older than 1h.
    CleanupTemps(1 * time.Hour)
    w.WriteHeader(http.StatusNoContent)
}

func (o *Orchestrator) handleJobFailed(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    jobID := r.URL.Query().Get("job_id")
    if jobID == "" { http.Error(w, "missing job_id", http.StatusBadRequest); return }
    var body struct{ Error string `json:"error"` }
    _ = json.NewDecoder(r.Body).Decode(&body)

    st, ok, err := o.deps.Status.Get(r.Context(), jobID)
    if err != nil { http.Error(w, "error", 500); return }
    if !ok { http.Error(w, "not found", http.StatusNotFound); return }
    now := time.Now()
    st.Status = "failed"
    if body.Error != "" { st.Message = body.Error } else { st.Message = "failed" }
    st.End = &now
    _ = o.deps.Status.Set(r.Context(), jobID, st)
    w.WriteHeader(http.StatusNoContent)
}

func intFromMeta(m map[string]any, key string) int {
    if m == nil { return 0 }
    if v, ok := m[key]; ok {
        switch t := v.(type) {
        case float64: return int(t)
        case int: return t
        }
    }
    return 0
}

func sourceOrDefault(s, def string) string {
    if s == "" { return def }
    return s
}

type cancelReq struct {
    JobID  string `json:"job_id"`
    Reason string `json:"reason,omitempty"`
}

func (o *Orchestrator) handleCancelJob(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    var req cancelReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, "invalid json", 400); return }
    if req.JobID == "" { http.Error(w, "missing job_id", 400); return }
    // mark cancelled in queue store
    if err := o.deps.Queue.CancelJob(r.Context(), req.JobID); err != nil {
        http.Error(w, "cancel failed", 500); return
    }
    st, ok, _ := o.deps.Status.Get(r.Context(), req.JobID)
    if !ok { st = Status{} }
    st.Status = "cancelled"
    st.Progress = 0
    if req.Reason != "" { st.Message = fmt.Sprintf("Cancelled: %s", req.Reason) } else { st.Message = "Cancelled" }
    now := time.Now(); st.End = &now
    _ = o.deps.Status.Set(r.Context(), req.JobID, st)
    _ = json.NewEncoder(w).Encode(map[string]any{"success": true, "job_id": req.JobID, "status": "cancelled"})
}
