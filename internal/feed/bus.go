// Package feed fans out router output (detections, admitted signals,
// phase transitions, counter snapshots) to external subscribers such
// as the diagnostics WebSocket hub. It implements the router's
// SignalSink and DetectionSink interfaces directly.
package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlas-desktop/trading-backend/internal/diagnostics"
	"github.com/atlas-desktop/trading-backend/pkg/flowtypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names the category of a fed-out Event.
type Kind string

const (
	KindDetection Kind = "detection"
	KindSignal    Kind = "signal"
	KindPhase     Kind = "phase"
	KindCounters  Kind = "counters"
)

// Event is one published notification. Exactly one payload field is
// populated, matching Kind.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	Detection *flowtypes.DetectionEvent `json:"detection,omitempty"`
	Score     int                       `json:"score,omitempty"`
	Breakdown flowtypes.ScoreBreakdown  `json:"breakdown,omitempty"`

	Signal *flowtypes.Signal `json:"signal,omitempty"`

	Phase flowtypes.Phase `json:"phase,omitempty"`

	Counters *diagnostics.Snapshot `json:"counters,omitempty"`
}

type subscription struct {
	ch chan Event
}

// Bus is a best-effort, non-blocking pub/sub fan-out. A slow subscriber
// never stalls the publisher: a full subscriber channel drops the
// event and increments the drop counter instead.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]*subscription

	published atomic.Int64
	dropped   atomic.Int64
}

// New constructs an empty Bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{logger: logger.Named("feed"), subs: make(map[string]*subscription)}
}

// Subscribe registers a new subscriber with a buffered channel of
// bufSize (64 if bufSize <= 0) and returns its ID and receive channel.
// Unsubscribe must be called to release it.
func (b *Bus) Subscribe(bufSize int) (string, <-chan Event) {
	if bufSize <= 0 {
		bufSize = 64
	}
	id := uuid.New().String()
	sub := &subscription{ch: make(chan Event, bufSize)}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	return id, sub.ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Stats returns the lifetime published and dropped event counts.
func (b *Bus) Stats() (published, dropped int64) {
	return b.published.Load(), b.dropped.Load()
}

func (b *Bus) publish(ev Event) {
	b.published.Add(1)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// OnDetection implements router.DetectionSink.
func (b *Bus) OnDetection(det flowtypes.DetectionEvent, score int, breakdown flowtypes.ScoreBreakdown) {
	b.publish(Event{Kind: KindDetection, Timestamp: det.Timestamp, Detection: &det, Score: score, Breakdown: breakdown})
}

// OnSignal implements router.SignalSink.
func (b *Bus) OnSignal(sig flowtypes.Signal) {
	b.publish(Event{Kind: KindSignal, Timestamp: sig.AdmittedAt, Signal: &sig})
}

// PublishPhase notifies subscribers of a session phase transition.
func (b *Bus) PublishPhase(phase flowtypes.Phase, ts time.Time) {
	b.publish(Event{Kind: KindPhase, Timestamp: ts, Phase: phase})
}

// PublishCounters notifies subscribers of a diagnostics counter snapshot.
func (b *Bus) PublishCounters(snap diagnostics.Snapshot, ts time.Time) {
	b.publish(Event{Kind: KindCounters, Timestamp: ts, Counters: &snap})
}
