package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/local/pdf2a5/internal/config"
	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imposition"
	"github.com/local/pdf2a5/internal/orchestrator"
	"github.com/local/pdf2a5/internal/store"
)

func baseConfig() config.Config {
	return config.Config{
		Logging: config.LoggingConfig{Level: "info"},
		Render: config.RenderConfig{
			DPI: 120, SheetsPerBlock: 5, ShiftPolicy: "constant", Workers: 4, JPEGQuality: 90,
		},
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		check      func(t *testing.T, cfg config.Config, f *cliFlags)
		positional []string
		wantErr    bool
	}{
		{
			name:       "defaults come from config",
			args:       []string{"book.pdf"},
			positional: []string{"book.pdf"},
			check: func(t *testing.T, cfg config.Config, f *cliFlags) {
				if cfg.Render.DPI != 120 || cfg.Render.SheetsPerBlock != 5 || f.dest != "" {
					t.Errorf("render = %+v dest = %q", cfg.Render, f.dest)
				}
			},
		},
		{
			name:       "render flags",
			args:       []string{"--dpi", "300", "-b", "8", "--shift", "1.5", "--shift-policy", "taper", "--fold-margin", "3", "-w", "2", "--gray", "--trim", "-q", "75", "--swap-halves", "in.pdf"},
			positional: []string{"in.pdf"},
			check: func(t *testing.T, cfg config.Config, _ *cliFlags) {
				want := config.RenderConfig{
					DPI: 300, SheetsPerBlock: 8, ShiftMM: 1.5, ShiftPolicy: "taper", FoldMarginMM: 3,
					Workers: 2, Trim: true, Gray: true, JPEGQuality: 75, SwapHalves: true,
				}
				if cfg.Render != want {
					t.Errorf("render = %+v, want %+v", cfg.Render, want)
				}
			},
		},
		{
			name:       "destination and exemptions",
			args:       []string{"-d", "s3://books/out", "--trim-exempt", "1,2,40", "s3://books/in.pdf"},
			positional: []string{"s3://books/in.pdf"},
			check: func(t *testing.T, _ config.Config, f *cliFlags) {
				if f.dest != "s3://books/out" || !reflect.DeepEqual(f.trimExempt, []int{1, 2, 40}) {
					t.Errorf("flags = %+v", f)
				}
			},
		},
		{
			name:       "ambient flags",
			args:       []string{"--metrics-addr", ":9102", "--log-level", "debug", "x.pdf"},
			positional: []string{"x.pdf"},
			check: func(t *testing.T, cfg config.Config, _ *cliFlags) {
				if cfg.MetricsAddr != ":9102" || cfg.Logging.Level != "debug" {
					t.Errorf("metrics %q level %q", cfg.MetricsAddr, cfg.Logging.Level)
				}
			},
		},
		{
			name:       "run status lookup",
			args:       []string{"--status", "7f3c"},
			check: func(t *testing.T, _ config.Config, f *cliFlags) {
				if f.runStatus != "7f3c" {
					t.Errorf("runStatus = %q", f.runStatus)
				}
			},
		},
		{name: "unknown flag", args: []string{"--nope"}, wantErr: true},
		{name: "bad number", args: []string{"--dpi", "high"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			f, pos, err := parseFlags(tt.args, &cfg, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if strings.Join(pos, " ") != strings.Join(tt.positional, " ") {
				t.Errorf("positional = %v, want %v", pos, tt.positional)
			}
			tt.check(t, cfg, f)
		})
	}
}

func TestBuildOptions(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Render.SwapHalves = true
	cfg.Render.ShiftPolicy = "taper"
	opts, err := buildOptions(cfg, &cliFlags{dest: "/out", trimExempt: []int{1, 3}}, "/in/book.pdf")
	if err != nil {
		t.Fatalf("buildOptions() error = %v", err)
	}
	if !reflect.DeepEqual(opts.TrimExempt, []int{0, 2}) {
		t.Errorf("TrimExempt = %v, want zero-based [0 2]", opts.TrimExempt)
	}
	if opts.Labels != (imposition.HalfLabels{Outer: "b", Inner: "a"}) {
		t.Errorf("Labels = %+v", opts.Labels)
	}
	if opts.ShiftPolicy != orchestrator.ShiftTaper || opts.Destination != "/out" || opts.Workers != 4 {
		t.Errorf("opts = %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("built options do not validate: %v", err)
	}

	_, err = buildOptions(cfg, &cliFlags{trimExempt: []int{0}}, "/in/book.pdf")
	var ce *faults.ConfigurationError
	if !errors.As(err, &ce) || ce.Field != "trim-exempt" {
		t.Errorf("buildOptions(page 0) error = %v", err)
	}
}

// run configures the global logger, so these cases stay sequential.
func TestRun_ExitCodes(t *testing.T) {

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "help", args: []string{"--help"}, want: faults.ExitSuccess},
		{name: "version", args: []string{"--version"}, want: faults.ExitSuccess},
		{name: "no source", args: nil, want: faults.ExitUsage},
		{name: "two sources", args: []string{"a.pdf", "b.pdf"}, want: faults.ExitUsage},
		{name: "unknown flag", args: []string{"--frobnicate", "a.pdf"}, want: faults.ExitUsage},
		{name: "low dpi", args: []string{"--dpi", "50", "a.pdf"}, want: faults.ExitUsage},
		{name: "zero batch", args: []string{"--batch", "0", "a.pdf"}, want: faults.ExitUsage},
		{name: "zero workers", args: []string{"--workers", "0", "a.pdf"}, want: faults.ExitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tt.args, &stdout, &stderr); got != tt.want {
				t.Errorf("run(%v) = %d, want %d; stderr: %s", tt.args, got, tt.want, stderr.String())
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	run(context.Background(), []string{"-v"}, &stdout, io.Discard)
	if !strings.HasPrefix(stdout.String(), "pdf2a5 ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

func TestS3Buckets(t *testing.T) {
	t.Parallel()

	got := s3Buckets("s3://in/a.pdf", "s3://out/prefix", "s3://in/b.pdf", "/local/dir", "")
	if !reflect.DeepEqual(got, []string{"in", "out"}) {
		t.Errorf("s3Buckets() = %v", got)
	}
}

func TestRun_Check(t *testing.T) {
	dest := t.TempDir()
	var stdout bytes.Buffer
	run(context.Background(), []string{"--check", "--dest", dest, "book.pdf"}, &stdout, io.Discard)
	if !strings.Contains(stdout.String(), "destination") || !strings.Contains(stdout.String(), "Writable") {
		t.Errorf("check output = %q", stdout.String())
	}
}

func TestRun_ConfigurationHint(t *testing.T) {
	var stderr bytes.Buffer
	if got := run(context.Background(), []string{"--dpi", "50", "a.pdf"}, io.Discard, &stderr); got != faults.ExitUsage {
		t.Fatalf("run() = %d, want %d", got, faults.ExitUsage)
	}
	if !strings.Contains(stderr.String(), "invalid dpi") || !strings.Contains(stderr.String(), "(see --help)") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_StatusNeedsRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	var stderr bytes.Buffer
	if got := run(context.Background(), []string{"--status", "7f3c"}, io.Discard, &stderr); got != faults.ExitUsage {
		t.Errorf("run(--status) = %d, want %d", got, faults.ExitUsage)
	}
	if !strings.Contains(stderr.String(), "REDIS_URL") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

type fakeReader struct {
	st  store.RunStatus
	ok  bool
	err error
}

func (f fakeReader) Get(context.Context, string) (store.RunStatus, bool, error) {
	return f.st, f.ok, f.err
}

func TestPrintRunStatus(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	tests := []struct {
		name       string
		reader     fakeReader
		want       int
		wantStdout []string
		wantStderr string
	}{
		{
			name: "completed run",
			reader: fakeReader{ok: true, st: store.RunStatus{
				Status: store.StateCompleted, Progress: 100, Message: "6 block halves written", Start: &start, End: &end,
			}},
			want:       faults.ExitSuccess,
			wantStdout: []string{"run 7f3c: completed 100%", "6 block halves written", "started  2024-03-01T10:00:00Z", "took     1m30s"},
		},
		{
			name:       "running run",
			reader:     fakeReader{ok: true, st: store.RunStatus{Status: store.StateRunning, Progress: 40, Start: &start}},
			want:       faults.ExitSuccess,
			wantStdout: []string{"run 7f3c: running 40%"},
		},
		{name: "unknown run", reader: fakeReader{}, want: faults.ExitGeneral, wantStderr: "no status recorded for run 7f3c"},
		{name: "redis error", reader: fakeReader{err: errors.New("connection refused")}, want: faults.ExitGeneral, wantStderr: "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			if got := printRunStatus(context.Background(), &stdout, &stderr, tt.reader, "7f3c"); got != tt.want {
				t.Errorf("printRunStatus() = %d, want %d", got, tt.want)
			}
			for _, line := range tt.wantStdout {
				if !strings.Contains(stdout.String(), line) {
					t.Errorf("stdout %q lacks %q", stdout.String(), line)
				}
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
