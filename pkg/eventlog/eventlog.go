package eventlog

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bsecurity/rosterwatch/internal/utils"
)

// Kind is the closed set of audit event kinds.
type Kind string

const (
	KindSMSSent           Kind = "SMS_SENT"
	KindShiftNotFinalised Kind = "SHIFT_NOT_FINALISED"
	KindProcessingError   Kind = "SHIFT_PROCESSING_ERROR"
	KindRetryLimitReached Kind = "RETRY_LIMIT_REACHED"
	KindUnexpectedError   Kind = "UNEXPECTED_ERROR"
)

// Level returns the severity an event of this kind is recorded at.
func (k Kind) Level() string {
	switch k {
	case KindSMSSent:
		return "INFO"
	case KindShiftNotFinalised:
		return "WARNING"
	default:
		return "ERROR"
	}
}

// Event is one audit record. Every state transition and classification
// outcome produces exactly one of these.
type Event struct {
	Time          time.Time
	Level         string
	Kind          Kind
	Content       string
	Day           string
	Date          string
	ShiftStart    int
	ShiftEnd      int
	Hours         int
	RetryAttempts int
}

// Sink persists events; the scraper works fine without one.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Emitter is the single choke point for the audit trail: one JSON log line
// per event, plus persistence when a sink is configured. Sink failures are
// logged and swallowed so auditing can never crash a run.
type Emitter struct {
	log  *logrus.Logger
	sink Sink
}

func NewEmitter(sink Sink) *Emitter {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return &Emitter{log: l, sink: sink}
}

func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	ev.Time = ev.Time.UTC()
	if ev.Level == "" {
		ev.Level = ev.Kind.Level()
	}

	entry := e.log.WithTime(ev.Time).WithFields(logrus.Fields{
		"event":          string(ev.Kind),
		"sms_content":    ev.Content,
		"day":            ev.Day,
		"date":           ev.Date,
		"shift_start":    ev.ShiftStart,
		"shift_end":      ev.ShiftEnd,
		"hours":          ev.Hours,
		"retry_attempts": ev.RetryAttempts,
	})

	switch ev.Level {
	case "WARNING":
		entry.Warn(ev.Content)
	case "ERROR":
		entry.Error(ev.Content)
	default:
		entry.Info(ev.Content)
	}

	if e.sink != nil {
		if err := e.sink.Record(ctx, ev); err != nil {
			utils.Log.Warnf("Could not persist audit event: %v", err)
		}
	}
}
