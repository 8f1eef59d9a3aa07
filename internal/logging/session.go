package logging

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	sessionBegin = "B#########################################################"
	sessionEnd   = "E#########################################################"
)

// Session buffers the messages of one operation and flushes them as a
// single block on Close, so concurrent operations do not interleave in the
// output.
//
//	s := logging.NewSession("load people.csv", logging.SlogOutput(logger))
//	defer s.Close()
//	opts.Log = s.Sink()
type Session struct {
	Name string

	mu        sync.Mutex
	enabled   bool
	output    func([]string)
	start     time.Time
	partStart time.Time
	lines     []string
	now       func() time.Time
}

// NewSession starts a session. A nil output disables flushing.
func NewSession(name string, output func([]string)) *Session {
	now := time.Now()
	return &Session{
		Name:      name,
		enabled:   output != nil,
		output:    output,
		start:     now,
		partStart: now,
		now:       time.Now,
	}
}

// SetEnabled turns flushing on or off. Messages are buffered either way.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled && s.output != nil
	s.mu.Unlock()
}

// Add buffers a message.
func (s *Session) Add(msg string) {
	s.mu.Lock()
	s.lines = append(s.lines, s.now().Format("15:04:05.000")+" "+msg)
	s.mu.Unlock()
}

// Addf buffers a formatted message.
func (s *Session) Addf(format string, args ...any) {
	s.Add(fmt.Sprintf(format, args...))
}

// AddError buffers err, prefixed with where it was caught.
func (s *Session) AddError(err error, where string) {
	if err == nil {
		return
	}
	if where == "" {
		s.Add("error: " + err.Error())
		return
	}
	s.Add(where + " :: " + err.Error())
}

// Sink returns Add as a progress callback.
func (s *Session) Sink() func(string) {
	return s.Add
}

// TotalElapsed is the time since the session started.
func (s *Session) TotalElapsed() time.Duration {
	return s.now().Sub(s.start)
}

// PartElapsed is the time since the session started or since the last
// LogElapsed call.
func (s *Session) PartElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.partStart)
}

// LogElapsed records the part time and starts a new part.
func (s *Session) LogElapsed() {
	s.Addf("### part elapsed: %d ms", s.PartElapsed().Milliseconds())
	s.mu.Lock()
	s.partStart = s.now()
	s.mu.Unlock()
}

// Lines returns a copy of the buffered messages.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Close flushes the buffered block to the output, framed by begin and end
// markers with the session name and total time. An empty session writes
// nothing. Close may be called more than once.
func (s *Session) Close() error {
	total := s.TotalElapsed()

	s.mu.Lock()
	if !s.enabled || len(s.lines) == 0 {
		s.lines = nil
		s.mu.Unlock()
		return nil
	}
	block := make([]string, 0, len(s.lines)+4)
	block = append(block, sessionBegin)
	if strings.TrimSpace(s.Name) != "" {
		block = append(block, "### "+s.Name)
	}
	block = append(block, s.lines...)
	block = append(block, fmt.Sprintf("### total elapsed: %d ms", total.Milliseconds()))
	block = append(block, sessionEnd)
	s.lines = nil
	output := s.output
	s.mu.Unlock()

	output(block)
	return nil
}

// SlogOutput writes a flushed session block as one debug record.
func SlogOutput(logger *slog.Logger) func([]string) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(lines []string) {
		logger.Debug("session log", "lines", strings.Join(lines, "\n"))
	}
}
