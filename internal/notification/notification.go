package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// KindSMS routes a message to the SMS gateway.
	KindSMS = "sms"
	// KindEmail routes a message to the mail relay.
	KindEmail = "email"
)

// ErrGateway wraps every delivery failure reported by an upstream gateway.
var ErrGateway = errors.New("gateway error")

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
// It stands in for a gateway whose delivery flag is off.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification delivery disabled",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body))
	return nil
}

// Dispatcher routes each message to the notifier registered for its kind.
type Dispatcher struct {
	routes map[string]Notifier
}

// NewDispatcher builds a dispatcher with SMS and email channels.
func NewDispatcher(sms, email Notifier) *Dispatcher {
	return &Dispatcher{routes: map[string]Notifier{KindSMS: sms, KindEmail: email}}
}

// Send delivers message through the channel matching message.Kind.
func (d *Dispatcher) Send(ctx context.Context, message Message) error {
	n, ok := d.routes[message.Kind]
	if !ok || n == nil {
		return fmt.Errorf("%w: no channel for %q", ErrGateway, message.Kind)
	}
	return n.Send(ctx, message)
}
