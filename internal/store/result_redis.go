package store

import (
    "context"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Result describes where a finished edit landed and what it contains.
type Result struct {
    LocalPath          string `json:"local_path,omitempty"`
    S3URL              string `json:"s3_url,omitempty"`
    PageCount          int    `json:"page_count"`
    PagesDeleted       int    `json:"pages_deleted"`
    AnnotationsApplied int    `json:"annotations_applied"`
    AnnotationsSkipped int    `json:"annotations_skipped"`
}

// ResultStore keeps per-job result pointers in Redis with a TTL so stale
// artifacts do not pin keys forever.
type ResultStore struct {
    client *redis.Client
    ttl    time.Duration
}

func NewResultStore(redisURL string) (*ResultStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &ResultStore{client: c, ttl: 7 * 24 * time.Hour}, nil
}

func (s *ResultStore) Close() error { return s.client.Close() }

func (s *ResultStore) key(jobID string) string { return fmt.Sprintf("job:%s:result", jobID) }

func (s *ResultStore) Save(ctx context.Context, jobID string, r Result) error {
    m := map[string]interface{}{
        "page_count":          r.PageCount,
        "pages_deleted":       r.PagesDeleted,
        "annotations_applied": r.AnnotationsApplied,
        "annotations_skipped": r.AnnotationsSkipped,
    }
    if r.LocalPath != "" { m["local_path"] = r.LocalPath }
    if r.S3URL != "" { m["s3_url"] = r.S3URL }
    key := s.key(jobID)
    if err := s.client.HSet(ctx, key, m).Err(); err != nil { return err }
    return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *ResultStore) Get(ctx context.Context, jobID string) (Result, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
    if err != nil { return Result{}, false, err }
    if len(res) == 0 { return Result{}, false, nil }
    r := Result{
        LocalPath: res["local_path"],
        S3URL:     res["s3_url"],
    }
    r.PageCount = atoiDefault(res["page_count"], 0)
    r.PagesDeleted = atoiDefault(res["pages_deleted"], 0)
    r.AnnotationsApplied = atoiDefault(res["annotations_applied"], 0)
    r.AnnotationsSkipped = atoiDefault(res["annotations_skipped"], 0)
    return r, true, nil
}

func atoiDefault(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}
