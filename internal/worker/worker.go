package worker

import (
	"context"
	"time"

	"kanzey-backend/internal/broker"
	"kanzey-backend/internal/models"
	"kanzey-backend/internal/service"
	"kanzey-backend/internal/util"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// NotificationWorker consumes ticket lifecycle events and sends ticket
// emails for confirmed purchases.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, mailer *service.Mailer) *NotificationWorker {
	logger := util.GetLogger()
	eventHandler := broker.NewEventHandler()

	eventHandler.OnTicketConfirmed(func(ctx context.Context, event *models.TicketConfirmedEvent) error {
		if err := mailer.SendTicketEmail(ctx, event); err != nil {
			// Log and move on; the ticket itself is already confirmed and
			// the buyer can still retrieve it from their account.
			logger.Error("Failed to deliver ticket email",
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
		return nil
	})

	eventHandler.OnTicketFailed(func(ctx context.Context, event *models.TicketFailedEvent) error {
		logger.Info("Ticket failed event observed",
			zap.String("ticket_id", event.TicketID),
			zap.String("reason", event.Reason))
		return nil
	})

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       logger,
	}
}

// Start starts consuming until the context is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// ExpiryStore is what the sweeper needs from the database.
type ExpiryStore interface {
	ExpirePendingTickets(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpirySweeper periodically fails pending tickets whose payment window
// has elapsed, so abandoned checkouts cannot linger forever. Expiry is a
// normal failure transition: a webhook that already landed wins, and a
// late webhook after expiry is ignored by the same conditional update.
type ExpirySweeper struct {
	store     ExpiryStore
	ttl       time.Duration
	interval  time.Duration
	scheduler gocron.Scheduler
	logger    *zap.Logger
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(store ExpiryStore, ttl, interval time.Duration) (*ExpirySweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &ExpirySweeper{
		store:     store,
		ttl:       ttl,
		interval:  interval,
		scheduler: scheduler,
		logger:    util.GetLogger(),
	}, nil
}

// Start registers the sweep job and starts the scheduler
func (s *ExpirySweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.logger.Info("Expiry sweeper started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop shuts the scheduler down
func (s *ExpirySweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.ttl)
	expired, err := s.store.ExpirePendingTickets(ctx, cutoff)
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		util.PendingTicketsExpiredTotal.Add(float64(expired))
		s.logger.Info("Expired dangling pending tickets", zap.Int64("count", expired))
	}
}
