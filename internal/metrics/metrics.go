package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    blockHalves = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdf2a5",
            Name:      "block_halves_total",
            Help:      "Block halves processed by result (success, failed, skipped)",
        },
        []string{"result"},
    )

    blockHalfLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdf2a5",
            Name:      "block_half_duration_seconds",
            Help:      "Time to rasterize, compose and assemble one block half",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"half"},
    )

    pagesRasterized = prometheus.NewCounter(
        prometheus.CounterOpts{
            Namespace: "pdf2a5",
            Name:      "pages_rasterized_total",
            Help:      "Total source pages rasterized",
        },
    )

    rasterizeLatency = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdf2a5",
            Name:      "rasterize_duration_seconds",
            Help:      "Duration of single page rasterization",
            Buckets:   prometheus.DefBuckets,
        },
    )

    conversions = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdf2a5",
            Name:      "conversions_total",
            Help:      "Conversion runs by result",
        },
        []string{"result"},
    )

    registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
    registerOnce.Do(func() {
        prometheus.MustRegister(blockHalves, blockHalfLatency, pagesRasterized, rasterizeLatency, conversions)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveBlockHalf(half, result string, dur time.Duration) {
    blockHalves.WithLabelValues(result).Inc()
    if result == "success" {
        blockHalfLatency.WithLabelValues(half).Observe(dur.Seconds())
    }
}

func IncSkipped() { blockHalves.WithLabelValues("skipped").Inc() }

func ObserveRasterize(dur time.Duration) {
    pagesRasterized.Inc()
    rasterizeLatency.Observe(dur.Seconds())
}

func IncConversion(ok bool) {
    if ok { conversions.WithLabelValues("success").Inc(); return }
    conversions.WithLabelValues("failed").Inc()
}
