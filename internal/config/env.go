// Package config loads defaults for a conversion from the environment.
package config

import (
    "os"
    "runtime"
    "strconv"
    "strings"
    "time"

    "github.com/local/pdf2a5/internal/faults"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level      string
    Pretty     bool
    File       string
    MaxSizeMB  int
    MaxBackups int
    MaxAgeDays int
    Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// RenderConfig holds the imposition and raster defaults.
type RenderConfig struct {
    DPI            int
    SheetsPerBlock int
    ShiftMM        float64
    ShiftPolicy    string // "constant"|"taper"
    FoldMarginMM   float64
    Workers        int
    Trim           bool
    Gray           bool
    JPEGQuality    int
    SwapHalves     bool
}

// StorageConfig holds S3 overrides used for s3:// sources and destinations.
type StorageConfig struct {
    Region    string
    Endpoint  string
    AccessKey string
    SecretKey string
    PathStyle bool
}

// Config is the top-level configuration.
type Config struct {
    Logging     LoggingConfig
    Axiom       AxiomConfig
    Render      RenderConfig
    Storage     StorageConfig
    RedisURL    string // empty disables run status
    MetricsAddr string
    ScratchDir  string
    ScratchTTL  time.Duration
}

// Limits enforced by Validate.
const (
    MinDPI           = 72
    MaxSheetsWarning = 10
)

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    cfg.Logging = LoggingConfig{
        Level:      getEnv("PDF2A5_LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("PDF2A5_LOG_PRETTY", "true")),
        File:       getEnv("PDF2A5_LOG_FILE", ""),
        MaxSizeMB:  parseInt(getEnv("PDF2A5_LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("PDF2A5_LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("PDF2A5_LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("PDF2A5_LOG_COMPRESS", "true")),
    }

    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_pdf2a5",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    cfg.Render = RenderConfig{
        DPI:            parseInt(getEnv("PDF2A5_DPI", "120"), 120),
        SheetsPerBlock: parseInt(getEnv("PDF2A5_BATCH", "5"), 5),
        ShiftMM:        parseFloat(getEnv("PDF2A5_SHIFT_MM", "0"), 0),
        ShiftPolicy:    strings.ToLower(getEnv("PDF2A5_SHIFT_POLICY", "constant")),
        FoldMarginMM:   parseFloat(getEnv("PDF2A5_FOLD_MARGIN_MM", "0"), 0),
        Workers:        parseInt(getEnv("PDF2A5_WORKERS", ""), runtime.GOMAXPROCS(0)),
        Trim:           parseBool(getEnv("PDF2A5_TRIM", "false")),
        Gray:           parseBool(getEnv("PDF2A5_GRAY", "false")),
        JPEGQuality:    parseInt(getEnv("PDF2A5_JPEG_QUALITY", "90"), 90),
        SwapHalves:     parseBool(getEnv("PDF2A5_SWAP_HALVES", "false")),
    }

    cfg.Storage = StorageConfig{
        Region:    getEnv("PDF2A5_S3_REGION", ""),
        Endpoint:  getEnv("PDF2A5_S3_ENDPOINT", ""),
        AccessKey: getEnv("PDF2A5_S3_ACCESS_KEY", ""),
        SecretKey: getEnv("PDF2A5_S3_SECRET_KEY", ""),
        PathStyle: parseBool(getEnv("PDF2A5_S3_PATH_STYLE", "false")),
    }

    cfg.RedisURL = getEnv("REDIS_URL", "")
    cfg.MetricsAddr = getEnv("PDF2A5_METRICS_ADDR", "")
    cfg.ScratchDir = getEnv("PDF2A5_SCRATCH_DIR", os.TempDir())
    cfg.ScratchTTL = parseDuration(getEnv("PDF2A5_SCRATCH_TTL", "24h"), 24*time.Hour)

    return cfg
}

// Validate rejects render settings no conversion can run with.
func (c Config) Validate() error {
    r := c.Render
    if r.DPI < MinDPI {
        return faults.Configf("dpi", "must be at least %d, got %d", MinDPI, r.DPI)
    }
    if r.SheetsPerBlock < 1 {
        return faults.Configf("batch", "must be at least 1, got %d", r.SheetsPerBlock)
    }
    if r.ShiftMM < 0 {
        return faults.Configf("shift", "must not be negative, got %g", r.ShiftMM)
    }
    if r.FoldMarginMM < 0 {
        return faults.Configf("fold-margin", "must not be negative, got %g", r.FoldMarginMM)
    }
    if r.Workers < 1 {
        return faults.Configf("workers", "must be at least 1, got %d", r.Workers)
    }
    if r.JPEGQuality < 1 || r.JPEGQuality > 100 {
        return faults.Configf("quality", "must be within 1..100, got %d", r.JPEGQuality)
    }
    if r.ShiftPolicy != "constant" && r.ShiftPolicy != "taper" {
        return faults.Configf("shift-policy", "unknown policy %q", r.ShiftPolicy)
    }
    return nil
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
