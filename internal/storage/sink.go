// Package storage publishes finished block documents.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// File permission constants.
const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Sink stores named output documents. Each name is written exactly once,
// so concurrent Puts with distinct names never race.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Location(name string) string
}

// LocalSink writes documents into a directory.
type LocalSink struct {
	Dir string
}

// NewLocalSink creates dir if it is missing.
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", dir, err)
	}
	return &LocalSink{Dir: dir}, nil
}

func (s *LocalSink) Location(name string) string { return filepath.Join(s.Dir, name) }

// Put writes through a temporary file and renames it, so a reader never
// sees a half-written document.
func (s *LocalSink) Put(_ context.Context, name string, data []byte) error {
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), filePermissions); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Location(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Uploader is the part of manager.Uploader the S3 sink needs.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Sink uploads documents under s3://Bucket/Prefix.
type S3Sink struct {
	Bucket   string
	Prefix   string
	Uploader Uploader
}

// NewS3Sink builds a sink for an s3://bucket/prefix destination.
func NewS3Sink(ctx context.Context, dest string, opts S3Options) (*S3Sink, error) {
	bucket, prefix, err := ParseS3URL(dest)
	if err != nil {
		return nil, err
	}
	cli, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &S3Sink{Bucket: bucket, Prefix: strings.Trim(prefix, "/"), Uploader: manager.NewUploader(cli)}, nil
}

func (s *S3Sink) key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

func (s *S3Sink) Location(name string) string {
	return "s3://" + s.Bucket + "/" + s.key(name)
}

func (s *S3Sink) Put(ctx context.Context, name string, data []byte) error {
	out, err := s.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", name, err)
	}
	log.Debug().Str("key", s.key(name)).Str("location", out.Location).Int("bytes", len(data)).Msg("uploaded block document")
	return nil
}

// ForDestination picks a sink for dest: s3://bucket/prefix or a local
// directory.
func ForDestination(ctx context.Context, dest string, opts S3Options) (Sink, error) {
	if strings.HasPrefix(dest, "s3://") {
		return NewS3Sink(ctx, dest, opts)
	}
	return NewLocalSink(dest)
}
