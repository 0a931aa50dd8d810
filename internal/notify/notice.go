package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level is the severity a consumer should render a notice with.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one side-channel message about an operation outcome. It never
// carries the operation result itself.
type Notice struct {
	ID         string            `json:"id"`
	At         time.Time         `json:"at"`
	Kind       string            `json:"kind"`
	Level      Level             `json:"level"`
	Operation  string            `json:"operation,omitempty"`
	IdentityID string            `json:"identity_id,omitempty"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Sink receives notices.
type Sink interface {
	Notify(ctx context.Context, n Notice)
}

// NoOpSink drops notices.
type NoOpSink struct{}

func (NoOpSink) Notify(context.Context, Notice) {}

// ChannelSink writes notices into a buffered channel.
type ChannelSink struct {
	notices chan Notice
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{notices: make(chan Notice, buffer)}
}

func (s *ChannelSink) Notify(ctx context.Context, n Notice) {
	select {
	case s.notices <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Notices() <-chan Notice {
	return s.notices
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Notify(_ context.Context, n Notice) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogSink writes notices to a structured logger. Error notices log at
// warn, everything else at info.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, n Notice) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("notice_id", n.ID),
		slog.String("kind", n.Kind),
		slog.String("level", string(n.Level)),
	}
	if n.Operation != "" {
		attrs = append(attrs, slog.String("operation", n.Operation))
	}
	if n.IdentityID != "" {
		attrs = append(attrs, slog.String("identity_id", n.IdentityID))
	}
	s.logger.LogAttrs(ctx, level, n.Message, attrs...)
}

// FanOut delivers every notice to each sink in order.
type FanOut []Sink

func (f FanOut) Notify(ctx context.Context, n Notice) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
