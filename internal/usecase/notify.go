package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// ErrMailNotConfigured is returned when a send is requested but the
// outbound transport has no credentials.
var ErrMailNotConfigured = errors.New("mail transport is not configured")

// Notifier delivers the daily report to active subscribers. Delivery is
// best-effort: every outcome is recorded as a delivery log entry and no
// failure ever escalates into the run pipeline.
type Notifier struct {
	mailer      ports.Mailer
	subscribers ports.SubscriberStore
	deliveries  ports.DeliveryLogStore
	logger      *slog.Logger
}

// NewNotifier wires the outbound mailer with subscriber and log stores.
func NewNotifier(mailer ports.Mailer, subscribers ports.SubscriberStore, deliveries ports.DeliveryLogStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		mailer:      mailer,
		subscribers: subscribers,
		deliveries:  deliveries,
		logger:      logger,
	}
}

// DispatchSummary renders the report and attempts one batch delivery to
// all active subscribers. Nothing is sent (and no log row written) when
// the transport is unconfigured or nobody is subscribed.
func (n *Notifier) DispatchSummary(ctx context.Context, summary domain.DailySummary) {
	if n.mailer == nil || !n.mailer.IsConfigured() {
		n.debug("mail transport not configured, skipping dispatch")
		return
	}

	subscribers, err := n.subscribers.ActiveSubscribers(ctx)
	if err != nil {
		n.record(ctx, domain.DeliveryLog{
			ID:           domain.NewID(),
			SentAt:       time.Now().UTC(),
			Outcome:      domain.DeliveryFailed,
			ErrorDetails: []string{err.Error()},
		})
		return
	}
	if len(subscribers) == 0 {
		n.debug("no active subscribers, skipping dispatch")
		return
	}

	recipients := make([]string, 0, len(subscribers))
	for _, subscriber := range subscribers {
		recipients = append(recipients, subscriber.Address)
	}

	entry := domain.DeliveryLog{
		ID:     domain.NewID(),
		SentAt: time.Now().UTC(),
	}
	if err := n.mailer.SendReport(ctx, recipients, summary); err != nil {
		// No recipients are credited on a transport fault.
		entry.Outcome = domain.DeliveryFailed
		entry.ErrorDetails = []string{err.Error()}
	} else {
		entry.Outcome = domain.DeliverySent
		entry.RecipientCount = len(recipients)
	}

	n.record(ctx, entry)
}

// SendTest delivers a probe message to one address.
func (n *Notifier) SendTest(ctx context.Context, address string) error {
	if n.mailer == nil || !n.mailer.IsConfigured() {
		return ErrMailNotConfigured
	}
	return n.mailer.SendTest(ctx, address)
}

// Deliveries lists recent delivery attempts, newest first.
func (n *Notifier) Deliveries(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	return n.deliveries.Deliveries(ctx, limit)
}

func (n *Notifier) record(ctx context.Context, entry domain.DeliveryLog) {
	if err := n.deliveries.AppendDelivery(ctx, entry); err != nil && n.logger != nil {
		n.logger.Error("append delivery log", "error", err)
	}
	if entry.Outcome == domain.DeliveryFailed && n.logger != nil {
		n.logger.Warn("report delivery failed", "errors", entry.ErrorDetails)
	}
}

func (n *Notifier) debug(msg string, args ...interface{}) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}
