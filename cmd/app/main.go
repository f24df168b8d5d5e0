package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    cfgpkg "github.com/local/pdfeditor/internal/config"
    "github.com/local/pdfeditor/internal/dispatcher"
    "github.com/local/pdfeditor/internal/limiter"
    logpkg "github.com/local/pdfeditor/internal/logger"
    "github.com/local/pdfeditor/internal/metrics"
    "github.com/local/pdfeditor/internal/orchestrator"
    "github.com/local/pdfeditor/internal/queue"
    "github.com/local/pdfeditor/internal/statuscheck"
    "github.com/local/pdfeditor/internal/store"
    web "github.com/local/pdfeditor/internal/web"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level: cfg.Logging.Level,
        Pretty: cfg.Logging.Pretty,
        File: cfg.Logging.File,
        MaxSizeMB: cfg.Logging.MaxSizeMB,
        MaxBackups: cfg.Logging.MaxBackups,
        MaxAgeDays: cfg.Logging.MaxAgeDays,
        Compress: cfg.Logging.Compress,
        SendToAxiom: cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey: cfg.Axiom.APIKey,
        AxiomOrgID: cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush: cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Queue
    rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer rq.Close()

    // Status store
    rs, err := store.NewRedisStatus(cfg.Queue.RedisURL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init redis status store")
    }
    defer rs.Close()

    // Result store
    results, err := store.NewResultStore(cfg.Queue.RedisURL)
    if err != nil { log.Fatal().Err(err).Msg("failed to init result store") }
    defer results.Close()

    // Edit slot limiter + storage cooldown
    lim, err := limiter.New(limiter.Options{
        RedisURL:    cfg.Queue.RedisURL,
        MaxInflight: cfg.Worker.MaxParallelEdits,
        BaseBackoff: cfg.Worker.StorageBaseBackoff,
        MaxBackoff:  cfg.Worker.StorageMaxBackoff,
    })
    if err != nil { log.Fatal().Err(err).Msg("failed to init limiter") }
    defer lim.CloseClient()

    // Orchestrator HTTP server
    orch := orchestrator.New(orchestrator.Dependencies{
        Queue:      rq,
        Status:     orchestrator.NewStatusAdapter(rs),
        Results:    results,
        Caps:       cfg.Editor,
        Bucket:     cfg.Storage.Bucket,
        JobTimeout: cfg.Worker.ApplyTimeout * time.Duration(cfg.Worker.JobMaxAttempts+2),
    })
    mux := http.NewServeMux()
    orch.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    // Dashboard
    checker := statuscheck.New(statuscheck.Options{Redis: rq, S3Bucket: cfg.Storage.Bucket})
    web := web.New(checker)
    web.RegisterRoutes(mux)

    // Dispatcher worker (optional)
    runDispatcher := os.Getenv("RUN_DISPATCHER")
    if runDispatcher == "" || runDispatcher == "1" || runDispatcher == "true" {
        disp := dispatcher.New(dispatcher.Config{Concurrency: cfg.Worker.Concurrency}, rq, lim)
        disp.Start()
        defer disp.Stop(context.Background())
    }

    // Queue depth gauges
    go func() {
        ticker := time.NewTicker(15 * time.Second)
        defer ticker.Stop()
        for range ticker.C {
            ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
            if stream, delayed, dlq, err := rq.Depths(ctx); err == nil {
                metrics.SetQueueDepth("stream", stream)
                metrics.SetQueueDepth("delayed", delayed)
                metrics.SetQueueDepth("dlq", dlq)
            }
            cancel()
        }
    }()

    port := os.Getenv("PORT")
    if port == "" { port = "8080" }
    srv := &http.Server{Addr: ":"+port, Handler: mux}

    go func(){
        log.Info().Msgf("HTTP server listening on :%s", port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}
