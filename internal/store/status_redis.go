// Package store records run progress in Redis so other processes can
// follow a long conversion.
package store

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Run states.
const (
    StateRunning   = "running"
    StateCompleted = "completed"
    StateFailed    = "failed"
)

// RunStatus is the progress snapshot of one conversion run.
type RunStatus struct {
    Status   string                 `json:"status"`
    Progress int                    `json:"progress"`
    Message  string                 `json:"message"`
    Start    *time.Time             `json:"start_time,omitempty"`
    End      *time.Time             `json:"end_time,omitempty"`
    Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// BlockRecord describes the outcome of one block half.
type BlockRecord struct {
    Result   string // success, failed or skipped
    Location string
    Pages    int
    Error    string
}

// StatusStore is what the orchestrator reports to.
type StatusStore interface {
    Set(ctx context.Context, runID string, st RunStatus) error
    SetBlock(ctx context.Context, runID, blockID string, rec BlockRecord) error
    Close() error
}

// StatusReader looks up the last snapshot of a run.
type StatusReader interface {
    Get(ctx context.Context, runID string) (RunStatus, bool, error)
}

// ttl bounds how long finished runs stay visible.
const ttl = 7 * 24 * time.Hour

type RedisStatus struct {
    client *redis.Client
    keyNS  string
}

func NewRedisStatus(redisURL string) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil {
        c.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return &RedisStatus{client: c, keyNS: "pdf2a5:run"}, nil
}

func (s *RedisStatus) key(runID string) string { return statusKey(s.keyNS, runID) }

func statusKey(ns, runID string) string { return fmt.Sprintf("%s:%s:status", ns, runID) }

func blockKey(ns, runID, blockID string) string {
    return fmt.Sprintf("%s:%s:block:%s", ns, runID, blockID)
}

func (s *RedisStatus) Set(ctx context.Context, runID string, st RunStatus) error {
    k := s.key(runID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, encodeStatus(st))
    pipe.Expire(ctx, k, ttl)
    _, err := pipe.Exec(ctx)
    return err
}

// Get returns the snapshot of runID; the bool is false when Redis holds
// none, either because the ID is wrong or the record expired.
func (s *RedisStatus) Get(ctx context.Context, runID string) (RunStatus, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(runID)).Result()
    if err != nil { return RunStatus{}, false, err }
    if len(res) == 0 { return RunStatus{}, false, nil }
    return decodeStatus(res), true, nil
}

func (s *RedisStatus) SetBlock(ctx context.Context, runID, blockID string, rec BlockRecord) error {
    k := blockKey(s.keyNS, runID, blockID)
    m := map[string]interface{}{"result": rec.Result, "pages": rec.Pages}
    if rec.Location != "" { m["location"] = rec.Location }
    if rec.Error != "" { m["error"] = rec.Error }
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, m)
    pipe.Expire(ctx, k, ttl)
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Close() error { return s.client.Close() }

// Ping checks the connection.
func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func encodeStatus(st RunStatus) map[string]interface{} {
    m := map[string]interface{}{
        "status":   st.Status,
        "progress": st.Progress,
        "message":  st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return m
}

func decodeStatus(res map[string]string) RunStatus {
    st := RunStatus{Status: res["status"], Message: res["message"]}
    // progress defaults to 0 when missing or malformed
    if p, err := strconv.Atoi(res["progress"]); err == nil { st.Progress = p }
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st
}

// NopStatus discards everything. Used when no Redis is configured.
type NopStatus struct{}

func (NopStatus) Set(context.Context, string, RunStatus) error { return nil }
func (NopStatus) SetBlock(context.Context, string, string, BlockRecord) error { return nil }
func (NopStatus) Close() error { return nil }
