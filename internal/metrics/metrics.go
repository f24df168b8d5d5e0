package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    editsTotal = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "edits_total",
            Help:      "Total edit jobs by result (success, failed, dlq, cancelled)",
        },
        []string{"result"},
    )

    editDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfeditor",
            Name:      "edit_duration_seconds",
            Help:      "Duration of the document mutation step by source",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"source"},
    )

    annotationsApplied = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "annotations_applied_total",
            Help:      "Annotations drawn into output documents, by type",
        },
        []string{"type"},
    )

    annotationsSkipped = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "annotations_skipped_total",
            Help:      "Annotations dropped, by reason (malformed, dropped)",
        },
        []string{"reason"},
    )

    pagesDeleted = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "pages_deleted_total",
            Help:      "Total pages removed from output documents",
        },
    )

    retriesTotal = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "retries_total",
            Help:      "Total number of job retries",
        },
    )

    storageEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfeditor",
            Name:      "storage_cooldown_events_total",
            Help:      "Storage cooldown events by action (opened, closed)",
        },
        []string{"action"},
    )

    queueDepth = prometheus.NewGaugeVec(
        prometheus.GaugeOpts{
            Namespace: "pdfeditor",
            Name:      "queue_depth",
            Help:      "Queue depth gauges for stream, delayed and dlq",
        },
        []string{"type"},
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(editsTotal, editDuration, annotationsApplied, annotationsSkipped, pagesDeleted, retriesTotal, storageEvents, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncEdit(result string)   { editsTotal.WithLabelValues(result).Inc() }
func IncRetry()               { retriesTotal.Inc() }
func AddPagesDeleted(n int)   { pagesDeleted.Add(float64(n)) }

func ObserveEdit(source string, dur time.Duration) {
    editDuration.WithLabelValues(source).Observe(dur.Seconds())
}

func IncAnnotationApplied(kind string)   { annotationsApplied.WithLabelValues(kind).Inc() }
func AddAnnotationsSkipped(reason string, n int) {
    if n > 0 { annotationsSkipped.WithLabelValues(reason).Add(float64(n)) }
}

func StorageCooldownOpened() { storageEvents.WithLabelValues("opened").Inc() }
func StorageCooldownClosed() { storageEvents.WithLabelValues("closed").Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
