package logger

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

const (
	shipQueue    = 1000
	shipBatch    = 200
	shipTimeout  = 15 * time.Second
	defaultFlush = 10 * time.Second
)

type ingestFunc func(ctx context.Context, dataset string, events []axiom.Event) error

// shipper forwards log events to an Axiom dataset in batches from a single
// goroutine. Events below minLevel are skipped; events arriving while the
// queue is full are dropped and counted.
type shipper struct {
	ingest   ingestFunc
	dataset  string
	minLevel zerolog.Level
	every    time.Duration

	queue   chan axiom.Event
	dropped atomic.Int64
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newAxiomShipper(opts Options) (*shipper, error) {
	copts := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		copts = append(copts, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	client, err := axiom.NewClient(copts...)
	if err != nil {
		return nil, err
	}
	dataset := opts.AxiomDataset
	if dataset == "" {
		dataset = "dev_" + Service
	}
	send := func(ctx context.Context, dataset string, events []axiom.Event) error {
		_, err := client.IngestEvents(ctx, dataset, events)
		return err
	}
	return startShipper(send, dataset, zerolog.InfoLevel, opts.AxiomFlush), nil
}

func startShipper(send ingestFunc, dataset string, minLevel zerolog.Level, every time.Duration) *shipper {
	if every <= 0 {
		every = defaultFlush
	}
	s := &shipper{
		ingest:   send,
		dataset:  dataset,
		minLevel: minLevel,
		every:    every,
		queue:    make(chan axiom.Event, shipQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// Write ships events whose level cannot be told, as info.
func (s *shipper) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.InfoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (s *shipper) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < s.minLevel || level == zerolog.NoLevel {
		return len(p), nil
	}
	select {
	case s.queue <- toEvent(p):
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped reports how many events were lost to a full queue.
func (s *shipper) Dropped() int64 { return s.dropped.Load() }

// Close ships what is queued and stops the goroutine.
func (s *shipper) Close() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

func (s *shipper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, shipBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
		// ingest errors are dropped
		_ = s.ingest(ctx, s.dataset, batch)
		cancel()
		batch = make([]axiom.Event, 0, shipBatch)
	}

	for {
		select {
		case ev := <-s.queue:
			if batch = append(batch, ev); len(batch) >= shipBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			for {
				select {
				case ev := <-s.queue:
					if batch = append(batch, ev); len(batch) >= shipBatch {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// toEvent decodes one zerolog JSON line; anything else becomes an info
// message. The service name and an ingest timestamp are always present.
func toEvent(p []byte) axiom.Event {
	var ev axiom.Event
	if err := json.Unmarshal(p, &ev); err != nil || ev == nil {
		ev = axiom.Event{"message": string(p), "level": "info"}
	}
	ev["service"] = Service
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return ev
}
