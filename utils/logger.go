package utils

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logSink is the destination behind every logger handed out by GetLogger.
// zerolog loggers snapshot their writer when created, so the sink is a
// stable indirection whose target can change later (when the transcript is
// attached) without orphaning already-created loggers.
type logSink struct {
	mu sync.RWMutex
	w  io.Writer
}

func (s *logSink) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.w == nil {
		return len(p), nil
	}
	return s.w.Write(p)
}

var sink = &logSink{}

func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	sink.set(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	})
	log.Logger = zerolog.New(sink).With().Timestamp().Logger()
}

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// AttachTranscript tees all log output to w in addition to the console,
// including output from loggers created before the call. The caller owns
// closing w.
func AttachTranscript(w io.Writer) {
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
	}
	transcript := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	sink.set(zerolog.MultiLevelWriter(console, transcript))
}
