package store

import (
	"fmt"
	"testing"
	"time"
)

var (
	_ StatusStore  = (*RedisStatus)(nil)
	_ StatusStore  = NopStatus{}
	_ StatusReader = (*RedisStatus)(nil)
)

func TestKeys(t *testing.T) {
	t.Parallel()

	if got := statusKey("pdf2a5:run", "abc"); got != "pdf2a5:run:abc:status" {
		t.Errorf("statusKey = %q", got)
	}
	if got := blockKey("pdf2a5:run", "abc", "003_b"); got != "pdf2a5:run:abc:block:003_b" {
		t.Errorf("blockKey = %q", got)
	}
}

func TestStatusEncoding(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	in := RunStatus{
		Status:   StateCompleted,
		Progress: 100,
		Message:  "6 block halves written",
		Start:    &start,
		End:      &end,
		Metadata: map[string]interface{}{"pages": float64(40)},
	}

	// Redis hands every field back as a string.
	raw := map[string]string{}
	for k, v := range encodeStatus(in) {
		raw[k] = fmt.Sprint(v)
	}
	got := decodeStatus(raw)

	if got.Status != in.Status || got.Progress != in.Progress || got.Message != in.Message {
		t.Errorf("decoded %+v, want %+v", got, in)
	}
	if got.Start == nil || !got.Start.Equal(start) || got.End == nil || !got.End.Equal(end) {
		t.Errorf("times = %v, %v", got.Start, got.End)
	}
	if got.Metadata["pages"] != float64(40) {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestDecodeStatus_Tolerant(t *testing.T) {
	t.Parallel()

	got := decodeStatus(map[string]string{"status": StateRunning, "progress": "x", "start": "yesterday"})
	if got.Status != StateRunning || got.Progress != 0 || got.Start != nil {
		t.Errorf("decodeStatus = %+v", got)
	}
}
