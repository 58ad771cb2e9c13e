// Package statuscheck probes the external services a conversion may need
// before any work is started.
package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// BucketHeader is the part of the S3 client used to probe a bucket.
type BucketHeader interface {
    HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker aggregates health checks for the dependencies of one run.
type Checker struct {
    redis       RedisPinger
    s3          BucketHeader
    buckets     []string
    destination string
}

// Options configures the Checker. Nil or empty fields skip their check.
type Options struct {
    Redis       RedisPinger
    S3          BucketHeader
    Buckets     []string
    Destination string // local output directory
}

// Status represents the readiness of a subsystem.
type Status struct {
    Name    string `json:"name"`
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary lists every performed check in a stable order.
type Summary []Status

// OK reports whether every check passed.
func (s Summary) OK() bool {
    for _, st := range s {
        if !st.OK { return false }
    }
    return true
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{
        redis:       opts.Redis,
        s3:          opts.S3,
        buckets:     opts.Buckets,
        destination: strings.TrimSpace(opts.Destination),
    }
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    var out Summary
    if c.redis != nil {
        out = append(out, c.checkRedis(ctx))
    }
    if c.s3 != nil {
        for _, b := range c.buckets {
            out = append(out, c.checkBucket(ctx, b))
        }
    }
    if c.destination != "" {
        out = append(out, c.checkDestination())
    }
    return out
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{Name: "redis", OK: false, Message: trimError(err)}
    }
    return Status{Name: "redis", OK: true, Message: "Connected"}
}

func (c *Checker) checkBucket(ctx context.Context, bucket string) Status {
    name := "s3:" + bucket
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &bucket}); err != nil {
        return Status{Name: name, OK: false, Message: trimError(err)}
    }
    return Status{Name: name, OK: true, Message: "Reachable"}
}

// checkDestination passes for a writable directory or for a missing one,
// which the run creates.
func (c *Checker) checkDestination() Status {
    name := "destination"
    info, err := os.Stat(c.destination)
    if errors.Is(err, os.ErrNotExist) {
        return Status{Name: name, OK: true, Message: "Will be created"}
    }
    if err != nil {
        return Status{Name: name, OK: false, Message: trimError(err)}
    }
    if !info.IsDir() {
        return Status{Name: name, OK: false, Message: "Not a directory"}
    }
    f, err := os.CreateTemp(c.destination, ".pdf2a5-check-*")
    if err != nil {
        return Status{Name: name, OK: false, Message: trimError(err)}
    }
    f.Close()
    os.Remove(f.Name())
    return Status{Name: name, OK: true, Message: "Writable"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}

// String renders one line per check.
func (s Summary) String() string {
    var b strings.Builder
    for _, st := range s {
        mark := "ok"
        if !st.OK { mark = "FAIL" }
        fmt.Fprintf(&b, "%-12s %-4s %s\n", st.Name, mark, st.Message)
    }
    return b.String()
}
