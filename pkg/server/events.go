package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"

	"liaptui/pkg/server/internal/db"
	"liaptui/pkg/statemachine"
)

// RoomEvent is an immutable snapshot of one broadcast, queued for
// persistence. The live game never waits on the event pipeline.
type RoomEvent struct {
	RoomID    string
	Type      string
	Payload   map[string]any
	Timestamp time.Time
}

// EventProcessor persists room events through a bounded queue and a small
// worker pool. Overflow drops the event with a log line; the event log is
// an audit trail, not a source of truth for live play.
type EventProcessor struct {
	database Database
	log      slog.Logger
	queue    chan *RoomEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	workers  int
	started  bool
	mu       sync.Mutex
}

// NewEventProcessor creates a processor with the given queue size and
// worker count.
func NewEventProcessor(database Database, log slog.Logger, queueSize, workerCount int) *EventProcessor {
	if log == nil {
		log = slog.Disabled
	}
	return &EventProcessor{
		database: database,
		log:      log,
		queue:    make(chan *RoomEvent, queueSize),
		stopChan: make(chan struct{}),
		workers:  workerCount,
	}
}

// Start begins processing events.
func (ep *EventProcessor) Start() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.started {
		return
	}
	ep.started = true
	ep.log.Infof("starting event processor with %d workers", ep.workers)
	for i := 0; i < ep.workers; i++ {
		ep.wg.Add(1)
		go ep.run(i)
	}
}

// Stop drains nothing: queued events at shutdown are dropped, consistent
// with the drop-on-overflow policy.
func (ep *EventProcessor) Stop() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.started {
		return
	}
	close(ep.stopChan)
	ep.wg.Wait()
	ep.started = false
	ep.log.Infof("event processor stopped")
}

// Publish enqueues an event without blocking.
func (ep *EventProcessor) Publish(ev *RoomEvent) {
	ep.mu.Lock()
	started := ep.started
	ep.mu.Unlock()
	if !started {
		return
	}

	select {
	case ep.queue <- ev:
	default:
		ep.log.Errorf("event queue full, dropping %s for room %s", ev.Type, ev.RoomID)
	}
}

func (ep *EventProcessor) run(id int) {
	defer ep.wg.Done()
	ep.log.Debugf("event worker %d started", id)
	for {
		select {
		case <-ep.stopChan:
			ep.log.Debugf("event worker %d stopping", id)
			return
		case ev := <-ep.queue:
			if ev != nil {
				ep.processEvent(id, ev)
			}
		}
	}
}

func (ep *EventProcessor) processEvent(worker int, ev *RoomEvent) {
	ep.log.Debugf("worker %d persisting %s for room %s", worker, ev.Type, ev.RoomID)
	ep.persistEvent(ev)
	if ev.Type == statemachine.EventScoringCompleted {
		ep.persistScores(ev)
	}
}

func (ep *EventProcessor) persistEvent(ev *RoomEvent) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		ep.log.Errorf("failed to marshal %s payload for room %s: %v", ev.Type, ev.RoomID, err)
		return
	}
	seq, _ := ev.Payload["sequence"].(uint64)
	row := &db.RoomEvent{
		RoomID:  ev.RoomID,
		Seq:     seq,
		Type:    ev.Type,
		Payload: string(payload),
	}
	if err := ep.database.AppendRoomEvent(row); err != nil {
		ep.log.Errorf("failed to append %s for room %s: %v", ev.Type, ev.RoomID, err)
	}
}

// persistScores mirrors the per-player totals of a finished round into the
// player_scores table. The payload may carry live Go values or shapes that
// went through a JSON decode, so entries and totals are coerced rather than
// type-asserted; anything unrecognized is logged, never silently skipped.
func (ep *EventProcessor) persistScores(ev *RoomEvent) {
	entries, err := scoreEntries(ev.Payload["scores"])
	if err != nil {
		ep.log.Warnf("room %s: scoring payload not persistable: %v", ev.RoomID, err)
		return
	}
	for _, e := range entries {
		name, _ := e["player"].(string)
		total, ok := intValue(e["total"])
		if name == "" || !ok {
			ep.log.Warnf("room %s: skipping malformed score entry %v", ev.RoomID, e)
			continue
		}
		if err := ep.database.SavePlayerScore(ev.RoomID, name, total); err != nil {
			ep.log.Errorf("failed to save score for %s in room %s: %v", name, ev.RoomID, err)
		}
	}
}

func scoreEntries(v any) ([]map[string]any, error) {
	switch entries := v.(type) {
	case []map[string]any:
		return entries, nil
	case []any:
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("score entry has type %T", e)
			}
			out = append(out, m)
		}
		return out, nil
	}
	return nil, fmt.Errorf("scores field has type %T", v)
}

// intValue coerces the numeric types a payload total can arrive as.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
