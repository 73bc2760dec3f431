package cnc

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/edgegate-io/edgegate/internal/logging"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-loglater"
)

// ReplySink receives the envelopes a request produces. The cloud connector
// that delivered the command satisfies this.
type ReplySink interface {
	AddData(payload map[string]any, requestID string) error
	AddLogData(payload map[string]any) error
}

// Request binds one command to its issuer. Its lifecycle starts when the
// command arrives and ends at the first CompleteOK or CompleteError; later
// completions are ignored. All request logs are mirrored upstream as log
// envelopes and collected for local playback.
type Request struct {
	// ID is the client-visible requestId, DefaultRequestID when absent.
	ID string

	// TxID is the internal correlation id.
	TxID uuid.UUID

	Command   Command
	CreatedAt time.Time

	sink         ReplySink
	logger       *slog.Logger
	logCollector *loglater.LogCollector
	completed    atomic.Bool
}

// NewRequest wraps a command received from sink.
func NewRequest(cmd Command, sink ReplySink, handler slog.Handler) *Request {
	if cmd.RequestID == "" {
		cmd.RequestID = DefaultRequestID
	}
	if handler == nil {
		handler = slog.DiscardHandler
	}
	txID := uuid.Must(uuid.NewV6())

	logCollector := loglater.NewLogCollector(handler)
	logger := slog.New(logCollector).With(
		"txID", txID,
		"requestID", cmd.RequestID,
		"action", cmd.Action)

	return &Request{
		ID:           cmd.RequestID,
		TxID:         txID,
		Command:      cmd,
		CreatedAt:    time.Now(),
		sink:         sink,
		logger:       logger,
		logCollector: logCollector,
	}
}

// Log records a request-scoped message locally and mirrors it upstream as a
// log envelope.
func (r *Request) Log(level slog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Log(context.Background(), level, msg)

	r.send(r.sink.AddLogData, map[string]any{
		"requestId": r.ID,
		"qos":       logging.QoS(level),
		"data": map[string]any{
			"type":    "log",
			"message": fmt.Sprintf("[%s] [%s] %s", logging.LevelName(level), r.ID, msg),
		},
	})
}

// Ack reports receipt of the command to the issuer.
func (r *Request) Ack() {
	r.logger.Info("Command acknowledged")
	r.send(func(p map[string]any) error { return r.sink.AddData(p, r.ID) }, map[string]any{
		"requestId": r.ID,
		"qos":       1,
		"data": map[string]any{
			"type":   "ack",
			"action": r.Command.Action,
		},
	})
}

// CompleteOK finishes the request successfully. A nil response becomes an
// empty mapping.
func (r *Request) CompleteOK(response map[string]any) {
	if !r.completed.CompareAndSwap(false, true) {
		r.logger.Warn("Request already completed, dropping completion")
		return
	}
	if response == nil {
		response = map[string]any{}
	}
	r.logger.Info("Command completed")

	r.send(func(p map[string]any) error { return r.sink.AddData(p, r.ID) }, map[string]any{
		"requestId": r.ID,
		"qos":       1,
		"data": map[string]any{
			"type":      "complete",
			"hasErrors": false,
			"response":  response,
		},
	})
}

// CompleteError finishes the request with the formatted message, logging it
// at error level.
func (r *Request) CompleteError(format string, args ...any) {
	if !r.completed.CompareAndSwap(false, true) {
		r.logger.Warn("Request already completed, dropping error completion")
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.Log(slog.LevelError, "%s", msg)

	r.send(func(p map[string]any) error { return r.sink.AddData(p, r.ID) }, map[string]any{
		"requestId": r.ID,
		"qos":       1,
		"data": map[string]any{
			"type":      "complete",
			"hasErrors": true,
			"message":   msg,
		},
	})
}

// Completed reports whether a completion has been recorded.
func (r *Request) Completed() bool {
	return r.completed.Load()
}

// PlaybackLogs replays the request's collected logs to the given handler.
func (r *Request) PlaybackLogs(handler slog.Handler) error {
	return r.logCollector.PlayLogs(handler)
}

// send delivers an envelope best-effort; a dead or stopped issuer must not
// fail the command handler.
func (r *Request) send(deliver func(map[string]any) error, envelope map[string]any) {
	if r.sink == nil {
		return
	}
	if err := deliver(envelope); err != nil {
		r.logger.Warn("Failed to deliver reply envelope", "error", err)
	}
}
