package battle

import (
	"fmt"
	"strings"
	"sync"
)

// LogLine is one already-formatted event-log entry plus its sequence
// number (spec.md §5 "the event log is strictly ordered and each entry
// has an implicit sequence number = its index").
type LogLine struct {
	Sequence uint64
	Text     string
	// Split marks a line that is preceded by a `split|side:<n>` marker:
	// the following entry is the side-specific view and must be filtered
	// before forwarding to spectators (spec.md §6).
	Split     bool
	SplitSide int
}

// LogSink is the structured event-log accumulator, adapted from the
// teacher's bounded circular-buffer EventLog (internal/game/event_log.go)
// but simplified to the engine's synchronous, single-threaded-per-battle
// model: no async writer goroutine or rate limiter is needed here since
// emission only ever happens on the turn-loop's own goroutine, but the
// bounded-capacity discipline (MaxEventLogEntries) is kept so a runaway
// effect loop cannot grow the log without limit.
type LogSink struct {
	mu      sync.Mutex
	lines   []LogLine
	maxLen  int
	nextSeq uint64

	// EmitHook, if set, is notified on every Emit/EmitSplit call with
	// whether the line was dropped — the host's observability layer uses
	// this to count dropped/total log lines without battle depending on
	// any metrics library.
	EmitHook func(dropped bool)
}

// NewLogSink creates a log bounded to maxEntries (0 means unbounded).
func NewLogSink(maxEntries int) *LogSink {
	return &LogSink{maxLen: maxEntries}
}

// Emit appends a formatted event. Returns false if the bounded log is
// full: the battle keeps running, but further lines are dropped.
func (s *LogSink) Emit(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxLen > 0 && len(s.lines) >= s.maxLen {
		if s.EmitHook != nil {
			s.EmitHook(true)
		}
		return false
	}
	s.lines = append(s.lines, LogLine{Sequence: s.nextSeq, Text: text})
	s.nextSeq++
	if s.EmitHook != nil {
		s.EmitHook(false)
	}
	return true
}

// EmitSplit appends a `split|side:<n>` marker followed immediately by the
// side-specific line; spectators filtering the log see only the marker
// and must request the side view separately.
func (s *LogSink) EmitSplit(side int, text string) bool {
	if !s.Emit(fmt.Sprintf("split|side:%d", side)) {
		return false
	}
	if !s.Emit(text) {
		return false
	}
	s.mu.Lock()
	s.lines[len(s.lines)-1].Split = true
	s.lines[len(s.lines)-1].SplitSide = side
	s.mu.Unlock()
	return true
}

// Lines returns a snapshot of all lines emitted so far.
func (s *LogSink) Lines() []LogLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// formatEvent joins pipe-delimited key:value pairs onto an event name, per
// spec.md §6's wire format: `eventname|key:value|key:value|...`.
func formatEvent(name string, pairs ...string) string {
	var sb strings.Builder
	sb.WriteString(name)
	for _, p := range pairs {
		sb.WriteByte('|')
		sb.WriteString(p)
	}
	return sb.String()
}

func kv(key, value string) string { return key + ":" + value }

// creatureRef formats the `<name>,<player_id>,<side_position>` reference
// format (spec.md §6), side position 1-based for display.
func creatureRef(name, playerID string, sidePos0 int) string {
	return fmt.Sprintf("%s,%s,%d", name, playerID, sidePos0+1)
}
