package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is a structured log line captured by a StreamHub.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	PassID    string            `json:"pass_id,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	EntryKey  string            `json:"entry_key,omitempty"`
	EventType string            `json:"event_type,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the most recent log events in a bounded buffer.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	buffer   []LogEvent
	nextSeq  uint64
}

// NewStreamHub constructs a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{capacity: capacity}
}

// Publish appends evt, evicting the oldest event when full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
}

// Since returns buffered events with a sequence greater than seq.
func (h *StreamHub) Since(seq uint64) []LogEvent {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []LogEvent
	for _, evt := range h.buffer {
		if evt.Sequence > seq {
			out = append(out, evt)
		}
	}
	return out
}

// Tail returns the most recent limit events and the latest sequence number.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.buffer) {
		limit = len(h.buffer)
	}
	out := make([]LogEvent, limit)
	copy(out, h.buffer[len(h.buffer)-limit:])
	return out, h.nextSeq
}

// Handler returns a slog handler that publishes records at or above level
// into the hub. Combine it with TeeLogger to capture events alongside normal
// output.
func (h *StreamHub) Handler(level slog.Leveler) slog.Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &streamHandler{hub: h, level: level}
}

type streamHandler struct {
	hub   *StreamHub
	level slog.Leveler
	attrs []slog.Attr
}

func (h *streamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *streamHandler) Handle(_ context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.attrs))
	return nil
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &streamHandler{hub: h.hub, level: h.level, attrs: next}
}

func (h *streamHandler) WithGroup(string) slog.Handler {
	return h
}

func eventFromRecord(record slog.Record, preAttrs []slog.Attr) LogEvent {
	event := LogEvent{
		Timestamp: record.Time,
		Level:     strings.ToLower(record.Level.String()),
		Message:   strings.TrimSpace(record.Message),
	}
	apply := func(attr slog.Attr) {
		var flat []kv
		flattenAttr(&flat, nil, attr)
		for _, item := range flat {
			value := attrString(item.value)
			switch item.key {
			case "":
			case FieldComponent:
				event.Component = value
			case FieldPassID:
				event.PassID = value
			case FieldKind:
				event.Kind = value
			case FieldEntryKey:
				event.EntryKey = value
			case FieldEventType:
				event.EventType = value
			default:
				if event.Fields == nil {
					event.Fields = make(map[string]string)
				}
				event.Fields[item.key] = value
			}
		}
	}
	for _, attr := range preAttrs {
		apply(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		apply(attr)
		return true
	})
	return event
}
