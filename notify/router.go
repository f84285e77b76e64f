package notify

import (
	"context"
	"errors"
	"fmt"

	"gigmatch/outbox"

	"go.uber.org/zap"
)

// Handler processes one outbox message.
type Handler interface {
	Handle(ctx context.Context, msg outbox.Message) error
}

type HandlerFunc func(ctx context.Context, msg outbox.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg outbox.Message) error {
	return f(ctx, msg)
}

// Router dispatches outbox messages by topic. Errors from topic handlers are
// returned so the relay retries the message; observers see every message and
// their errors are only logged.
type Router struct {
	handlers  map[string][]Handler
	observers []Handler
	logger    *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{handlers: make(map[string][]Handler), logger: logger.Named("notify")}
}

// Route registers h for the given topics.
func (r *Router) Route(h Handler, topics ...string) *Router {
	for _, t := range topics {
		r.handlers[t] = append(r.handlers[t], h)
	}
	return r
}

func (r *Router) Observe(h Handler) *Router {
	r.observers = append(r.observers, h)
	return r
}

// Dispatch satisfies outbox.Dispatcher.
func (r *Router) Dispatch(ctx context.Context, msg outbox.Message) error {
	var errs []error
	for _, h := range r.handlers[msg.Topic] {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	observers := r.observers
	// retries are for handlers; observers saw the first pass
	if msg.Attempts > 0 {
		observers = nil
	}
	for _, o := range observers {
		if err := o.Handle(ctx, msg); err != nil {
			r.logger.Warn("observer failed",
				zap.String("topic", msg.Topic),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: dispatch %s: %w", msg.Topic, errors.Join(errs...))
	}
	return nil
}

// Sender delivers one SMS.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// SMSNotifier renders and sends the texts for a message. Recipients already
// served are remembered per message so a relay retry only sends what failed.
type SMSNotifier struct {
	sender    Sender
	logger    *zap.Logger
	delivered *deliveryLedger
}

func NewSMSNotifier(sender Sender, logger *zap.Logger) *SMSNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMSNotifier{
		sender:    sender,
		logger:    logger.Named("sms"),
		delivered: newDeliveryLedger(DefaultLedgerSize),
	}
}

// Topics lists every topic with an SMS template.
func (n *SMSNotifier) Topics() []string {
	return []string{
		outbox.TopicWorkerRegistered,
		outbox.TopicEmployerRegistered,
		outbox.TopicApplicationSubmitted,
		outbox.TopicApplicationStatusChanged,
		outbox.TopicApplicationReminder,
		outbox.TopicApplicationPaid,
	}
}

// Handle sends every pending text of msg and returns the joined failures.
func (n *SMSNotifier) Handle(ctx context.Context, msg outbox.Message) error {
	texts := Render(msg)
	if len(texts) == 0 {
		n.logger.Debug("nothing to send", zap.String("topic", msg.Topic), zap.String("message_id", msg.ID))
		return nil
	}

	var errs []error
	sent := 0
	for _, t := range texts {
		key := deliveryKey(msg.ID, t)
		if n.delivered.has(key) {
			sent++
			continue
		}
		if err := n.sender.Send(ctx, t.To, t.Body); err != nil {
			errs = append(errs, fmt.Errorf("notify: sms to %s: %w", t.To, err))
			continue
		}
		n.delivered.add(key)
		sent++
	}
	if sent == len(texts) {
		n.delivered.forget(msg.ID)
	}
	return errors.Join(errs...)
}
