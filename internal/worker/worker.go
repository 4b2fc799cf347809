// Package worker provides async match processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/procureos/harrier/internal/domain"
	"github.com/procureos/harrier/internal/match"
)

// Worker consumes match requests from the EventBus and runs them through
// the matching engine. The engine publishes the completed/failed outcome
// events itself; the worker only drives execution.
type Worker struct {
	bus    domain.EventBus
	engine *match.Engine

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, engine *match.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the match request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicMatchRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("match worker started",
		"topic", domain.TopicMatchRequested,
	)

	return nil
}

// MatchRequestMessage is the message payload requesting a matching run.
type MatchRequestMessage struct {
	RequestID string `json:"requestId"`
	TraceID   string `json:"traceId,omitempty"`
}

// handleMessage runs one matching request end to end.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var reqMsg MatchRequestMessage
	if err := json.Unmarshal(msg.Payload, &reqMsg); err != nil {
		slog.Error("failed to parse match request message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if reqMsg.RequestID == "" {
		slog.Error("match request message missing request ID",
			"message_id", msg.ID,
		)
		return nil
	}

	traceID := reqMsg.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing match request",
		"request_id", reqMsg.RequestID,
		"trace_id", traceID,
	)

	results, err := w.engine.Match(ctx, reqMsg.RequestID)
	if err != nil {
		slog.Error("match run failed",
			"request_id", reqMsg.RequestID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	slog.Info("match request processed",
		"request_id", reqMsg.RequestID,
		"trace_id", traceID,
		"matches", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("match worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          w.engine.InFlight(),
	}
}
