// Package source resolves a document reference to a local, validated PDF.
package source

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "os"
    "path/filepath"
    "strings"

    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"

    "github.com/local/pdf2a5/internal/faults"
    "github.com/local/pdf2a5/internal/storage"
)

// Fetcher downloads remote references into a caller-owned directory.
type Fetcher struct {
    HTTP *http.Client
    // S3 is created lazily from the default AWS config when nil.
    S3 storage.S3API
}

// IsRemote reports whether ref must be downloaded before use.
func IsRemote(ref string) bool {
    return strings.HasPrefix(ref, "s3://") || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Fetch returns a local path for ref. Supports:
// - file://path or absolute/relative filesystem paths, taken verbatim
// - http(s):// URLs (downloaded into dir)
// - s3://bucket/key (downloaded into dir via AWS SDK v2)
// A #fragment is dropped from remote references only; '#' is a legal
// character in local file names.
func (f *Fetcher) Fetch(ctx context.Context, ref, dir string) (string, error) {
    switch {
    case strings.HasPrefix(ref, "s3://"):
        return f.fetchS3(ctx, stripFragment(ref), dir)
    case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
        return f.fetchHTTP(ctx, stripFragment(ref), dir)
    case strings.HasPrefix(ref, "file://"):
        ref = strings.TrimPrefix(ref, "file://")
    }
    if _, err := os.Stat(ref); err != nil {
        return "", faults.SourceRead(ref, err)
    }
    return ref, nil
}

func stripFragment(ref string) string {
    if i := strings.Index(ref, "#"); i >= 0 {
        return ref[:i]
    }
    return ref
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url, dir string) (string, error) {
    client := f.HTTP
    if client == nil { client = http.DefaultClient }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return "", faults.SourceRead(url, err) }
    resp, err := client.Do(req)
    if err != nil { return "", faults.SourceRead(url, err) }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK {
        return "", faults.SourceRead(url, fmt.Errorf("http %d", resp.StatusCode))
    }
    return save(url, dir, "httpdl-*.pdf", resp.Body)
}

func (f *Fetcher) fetchS3(ctx context.Context, s3url, dir string) (string, error) {
    bucket, key, err := storage.ParseS3URL(s3url)
    if err != nil { return "", faults.SourceRead(s3url, err) }
    if key == "" { return "", faults.SourceRead(s3url, fmt.Errorf("missing object key")) }

    cli := f.S3
    if cli == nil {
        c, err := storage.NewS3Client(ctx, storage.S3Options{})
        if err != nil { return "", faults.SourceRead(s3url, err) }
        cli = c
    }
    out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
    if err != nil { return "", faults.SourceRead(s3url, err) }
    defer out.Body.Close()

    path, err := save(s3url, dir, "s3pdf-*.pdf", out.Body)
    if err != nil { return "", err }
    log.Info().Str("bucket", bucket).Str("key", key).Str("file", filepath.Base(path)).Msg("downloaded s3 pdf to scratch")
    return path, nil
}

// save copies body to a new file in dir. The .pdf extension keeps pdfcpu happy.
func save(ref, dir, pattern string, body io.Reader) (string, error) {
    f, err := os.CreateTemp(dir, pattern)
    if err != nil { return "", faults.SourceRead(ref, err) }
    defer f.Close()
    if _, err := io.Copy(f, body); err != nil { return "", faults.SourceRead(ref, err) }
    return f.Name(), nil
}
