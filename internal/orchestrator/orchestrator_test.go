package orchestrator

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/local/pdfeditor/internal/config"
    "github.com/local/pdfeditor/internal/store"
)

type fakeQueue struct {
    mu        sync.Mutex
    enqueued  [][]byte
    cancelled map[string]bool
}

func newFakeQueue() *fakeQueue { return &fakeQueue{cancelled: map[string]bool{}} }

func (f *fakeQueue) Enqueue(_ context.Context, payload []byte) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.enqueued = append(f.enqueued, payload)
    return nil
}

func (f *fakeQueue) CancelJob(_ context.Context, jobID string) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.cancelled[jobID] = true
    return nil
}

func (f *fakeQueue) IsCancelled(_ context.Context, jobID string) (bool, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    return f.cancelled[jobID], nil
}

type fakeStatus struct {
    mu sync.Mutex
    m  map[string]Status
}

func newFakeStatus() *fakeStatus { return &fakeStatus{m: map[string]Status{}} }

func (f *fakeStatus) Set(_ context.Context, jobID string, st Status) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.m[jobID] = st
    return nil
}

func (f *fakeStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    st, ok := f.m[jobID]
    return st, ok, nil
}

type fakeResults struct {
    mu sync.Mutex
    m  map[string]store.Result
}

func newFakeResults() *fakeResults { return &fakeResults{m: map[string]store.Result{}} }

func (f *fakeResults) Save(_ context.Context, jobID string, r store.Result) error {
    f.mu.Lock(); defer f.mu.Unlock()
    f.m[jobID] = r
    return nil
}

func (f *fakeResults) Get(_ context.Context, jobID string) (store.Result, bool, error) {
    f.mu.Lock(); defer f.mu.Unlock()
    r, ok := f.m[jobID]
    return r, ok, nil
}

func newTestOrchestrator() (*Orchestrator, *fakeQueue, *fakeStatus, *fakeResults) {
    q := newFakeQueue()
    st := newFakeStatus()
    res := newFakeResults()
    o := New(Dependencies{
        Queue:   q,
        Status:  st,
        Results: res,
        Caps:    config.EditorConfig{MaxPageOps: 5, MaxAnnotationPages: 5, MaxAnnotations: 100, MaxUploadMB: 4},
        Bucket:  "test-bucket",
        JobTimeout: time.Minute,
    })
    return o, q, st, res
}

const validOps = `{"page_operations":[{"type":"delete","pageIndex":0}],"annotations":{"1":[{"type":"text","text":"hi","x":10,"y":20}]}}`

func TestEditCallEnqueuesJob(t *testing.T) {
    o, q, st, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    body := `{"file_path":"docs/report.pdf","user_name":"alice","operations":` + validOps + `}`
    req := httptest.NewRequest(http.MethodPost, "/edit_file_call", strings.NewReader(body))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)

    require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
    var resp editResp
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, "ok", resp.Status)
    assert.NotEmpty(t, resp.JobID)

    q.mu.Lock()
    require.Len(t, q.enqueued, 1)
    var jp jobPayload
    require.NoError(t, json.Unmarshal(q.enqueued[0], &jp))
    q.mu.Unlock()

    // Bare keys are normalized into the configured bucket.
    assert.Equal(t, "s3://test-bucket/docs/report.pdf", jp.FilePath)
    assert.Equal(t, resp.JobID, jp.JobID)
    assert.Equal(t, "edit:"+resp.JobID, jp.IdempotencyKey)
    assert.Equal(t, 1, jp.Attempt)

    status, ok, _ := st.Get(context.Background(), resp.JobID)
    require.True(t, ok)
    assert.Equal(t, "processing", status.Status)
}

func TestEditCallRejectsOversizedOperations(t *testing.T) {
    o, q, _, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    ops := `{"page_operations":[` + strings.TrimSuffix(strings.Repeat(`{"type":"delete","pageIndex":0},`, 6), ",") + `]}`
    body := `{"file_path":"a.pdf","user_name":"alice","operations":` + ops + `}`
    req := httptest.NewRequest(http.MethodPost, "/edit_file_call", strings.NewReader(body))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)

    assert.Equal(t, http.StatusBadRequest, rec.Code)
    q.mu.Lock()
    assert.Empty(t, q.enqueued)
    q.mu.Unlock()
}

func TestEditCallRejectsMissingFields(t *testing.T) {
    o, _, _, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    req := httptest.NewRequest(http.MethodPost, "/edit_file_call", strings.NewReader(`{"user_name":"alice"}`))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobDoneUpdatesStatusAndResult(t *testing.T) {
    o, _, st, res := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    start := time.Now()
    _ = st.Set(context.Background(), "job-1", Status{Status: "processing", Progress: 10, Start: &start})

    done := jobDoneReq{PageCount: 3, PagesDeleted: 1, AnnotationsApplied: 4, AnnotationsSkipped: 2, ResultS3URL: "s3://test-bucket/docs/report.pdf"}
    b, _ := json.Marshal(done)
    req := httptest.NewRequest(http.MethodPost, "/internal/job_done?job_id=job-1", bytes.NewReader(b))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    require.Equal(t, http.StatusNoContent, rec.Code)

    status, ok, _ := st.Get(context.Background(), "job-1")
    require.True(t, ok)
    assert.Equal(t, "success", status.Status)
    assert.Equal(t, 100, status.Progress)
    assert.Equal(t, 1, intFromMeta(status.Metadata, "pages_deleted"))

    r, ok, _ := res.Get(context.Background(), "job-1")
    require.True(t, ok)
    assert.Equal(t, "s3://test-bucket/docs/report.pdf", r.S3URL)

    // Progress endpoint reflects the terminal state.
    preq := httptest.NewRequest(http.MethodGet, "/progress/job-1", nil)
    prec := httptest.NewRecorder()
    mux.ServeHTTP(prec, preq)
    require.Equal(t, http.StatusOK, prec.Code)
    var prog map[string]any
    require.NoError(t, json.Unmarshal(prec.Body.Bytes(), &prog))
    assert.Equal(t, true, prog["success"])
    assert.Equal(t, "success", prog["status"])
}

func TestJobFailedMarksStatus(t *testing.T) {
    o, _, st, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    _ = st.Set(context.Background(), "job-2", Status{Status: "processing", Progress: 10})

    req := httptest.NewRequest(http.MethodPost, "/internal/job_failed?job_id=job-2", strings.NewReader(`{"error":"document has 600 pages (max 500)"}`))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    require.Equal(t, http.StatusNoContent, rec.Code)

    status, _, _ := st.Get(context.Background(), "job-2")
    assert.Equal(t, "failed", status.Status)
    assert.Contains(t, status.Message, "600 pages")
}

func TestCancelJobMarksQueueAndStatus(t *testing.T) {
    o, q, st, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    _ = st.Set(context.Background(), "job-3", Status{Status: "processing", Progress: 10})

    req := httptest.NewRequest(http.MethodPost, "/webhook/cancel_job", strings.NewReader(`{"job_id":"job-3","reason":"user request"}`))
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    require.Equal(t, http.StatusOK, rec.Code)

    cancelled, _ := q.IsCancelled(context.Background(), "job-3")
    assert.True(t, cancelled)
    status, _, _ := st.Get(context.Background(), "job-3")
    assert.Equal(t, "cancelled", status.Status)
}

func TestDownloadResultNotReady(t *testing.T) {
    o, _, st, _ := newTestOrchestrator()
    mux := http.NewServeMux()
    o.RegisterRoutes(mux)

    _ = st.Set(context.Background(), "job-4", Status{Status: "processing", Progress: 10})

    req := httptest.NewRequest(http.MethodGet, "/download_result/job-4", nil)
    rec := httptest.NewRecorder()
    mux.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusAccepted, rec.Code)
}
