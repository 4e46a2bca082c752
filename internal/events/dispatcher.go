package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one event as one outbound message.
type Sender interface {
	Send(ctx context.Context, event Event) error
}

// Failure describes a delivery that was attempted once and lost.
type Failure struct {
	EventID  string    `json:"event_id"`
	Kind     Kind      `json:"kind"`
	CardID   string    `json:"card_id"`
	To       string    `json:"to"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// FailureSink records failed deliveries for later inspection.
type FailureSink interface {
	Record(ctx context.Context, failure Failure) error
}

// Recorder counts delivery outcomes per kind.
type Recorder interface {
	RecordNotification(kind string, delivered bool)
}

// Dispatcher fans events out to independent background tasks. A task's
// failure or panic is logged and recorded but never reaches the caller or a
// sibling task.
type Dispatcher struct {
	sender   Sender
	sink     FailureSink
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithFailureSink stores failed deliveries.
func WithFailureSink(sink FailureSink) Option {
	return func(d *Dispatcher) { d.sink = sink }
}

// WithRecorder counts delivery outcomes.
func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) { d.recorder = recorder }
}

// NewDispatcher builds a dispatcher around sender.
func NewDispatcher(sender Sender, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch starts one task per event and returns immediately. Cancellation
// of ctx does not stop tasks already started.
func (d *Dispatcher) Dispatch(ctx context.Context, events ...Event) {
	if d == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, event := range events {
		if event == nil {
			continue
		}
		d.wg.Add(1)
		go d.deliver(detached, event)
	}
}

// Wait blocks until every started task has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	defer d.wg.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification panic: %v", r)
		}
		d.finish(ctx, event, err)
	}()

	err = d.sender.Send(ctx, event)
}

func (d *Dispatcher) finish(ctx context.Context, event Event, err error) {
	meta := event.Meta()
	if d.recorder != nil {
		d.recorder.RecordNotification(string(event.Kind()), err == nil)
	}
	if err == nil {
		d.logger.Debug("notification delivered",
			zap.String("kind", string(event.Kind())),
			zap.String("card_id", meta.CardID),
			zap.String("to", meta.To))
		return
	}

	d.logger.Warn("notification failed",
		zap.String("kind", string(event.Kind())),
		zap.String("card_id", meta.CardID),
		zap.String("to", meta.To),
		zap.Error(err))

	if d.sink == nil {
		return
	}
	failure := Failure{
		EventID:  meta.ID,
		Kind:     event.Kind(),
		CardID:   meta.CardID,
		To:       meta.To,
		Error:    err.Error(),
		FailedAt: d.now().UTC(),
	}
	if sinkErr := d.sink.Record(ctx, failure); sinkErr != nil {
		d.logger.Warn("record failed notification", zap.String("event_id", meta.ID), zap.Error(sinkErr))
	}
}
