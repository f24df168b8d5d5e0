package limiter

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Adaptive combines a local in-process slot semaphore (caps concurrent engine
// runs per scope) with a Redis-backed cooldown shared across instances, used
// when the storage backend starts failing.
type Adaptive struct {
    rdb        *redis.Client
    maxInflight int
    baseBackoff time.Duration
    maxBackoff  time.Duration
    mu         sync.Mutex
    sem        map[string]chan struct{}
}

type Options struct {
    RedisURL    string
    MaxInflight int
    BaseBackoff time.Duration
    MaxBackoff  time.Duration
}

func New(opts Options) (*Adaptive, error) {
    if opts.MaxInflight <= 0 { opts.MaxInflight = 2 }
    if opts.BaseBackoff <= 0 { opts.BaseBackoff = 30 * time.Second }
    if opts.MaxBackoff <= 0 { opts.MaxBackoff = 5 * time.Minute }
    ro, err := redis.ParseURL(opts.RedisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(ro)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &Adaptive{rdb: c, maxInflight: opts.MaxInflight, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff, sem: map[string]chan struct{}{}}, nil
}

func (a *Adaptive) key(scope string) string {
    return fmt.Sprintf("cooldown:%s", strings.ToLower(scope))
}

// IsOpen returns true if the cooldown for scope is active.
func (a *Adaptive) IsOpen(ctx context.Context, scope string) bool {
    k := a.key(scope)
    ts, err := a.rdb.Get(ctx, k).Int64()
    if err != nil { return false }
    return time.Now().Unix() < ts
}

// Open sets/extends the cooldown with exponential backoff per attempt.
func (a *Adaptive) Open(ctx context.Context, scope string) {
    k := a.key(scope)
    cntKey := k + ":attempts"
    // increment attempts and compute backoff
    attempts, _ := a.rdb.Incr(ctx, cntKey).Result()
    if attempts < 1 { attempts = 1 }
    // backoff doubles up to maxBackoff
    d := a.baseBackoff * (1 << (attempts - 1))
    if d > a.maxBackoff { d = a.maxBackoff }
    until := time.Now().Add(d).Unix()
    _ = a.rdb.Set(ctx, k, until, d).Err()
}

// Close resets the cooldown for scope.
func (a *Adaptive) Close(ctx context.Context, scope string) {
    k := a.key(scope)
    _ = a.rdb.Del(ctx, k, k+":attempts").Err()
}

// Allow tries to reserve a local in-process slot for scope.
// Returns a release function and true if allowed; otherwise nil,false.
func (a *Adaptive) Allow(scope string) (func(), bool) {
    key := strings.ToLower(scope)
    a.mu.Lock()
    ch, ok := a.sem[key]
    if !ok {
        ch = make(chan struct{}, a.maxInflight)
        a.sem[key] = ch
    }
    a.mu.Unlock()
    select {
    case ch <- struct{}{}:
        return func() { <-ch }, true
    default:
        return func(){}, false
    }
}

func (a *Adaptive) CloseClient() error { return a.rdb.Close() }
