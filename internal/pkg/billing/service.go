package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mensajeropro/mensajero/app/models"
	"github.com/mensajeropro/mensajero/internal/pkg/entitlements"
	"gorm.io/gorm"
)

const notificationTimeout = 30 * time.Second

// Service reconciles PayPal payment events into payment, subscription and
// user entitlement state.
type Service struct {
	repo     Repository
	catalog  *entitlements.Catalog
	notifier Notifier
	locker   OrderLocker
	orders   OrderCreator
	metrics  *Metrics
	now      func() time.Time

	wg sync.WaitGroup
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithLocker(l OrderLocker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithCatalog(c *entitlements.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

func WithOrderCreator(o OrderCreator) Option {
	return func(s *Service) { s.orders = o }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		catalog:  entitlements.DefaultCatalog(),
		notifier: noopNotifier{},
		locker:   noopLocker{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, opts ...Option) *Service {
	return NewService(NewRepository(db), opts...)
}

// Catalog exposes the plan catalog the service prices and grants against.
func (s *Service) Catalog() *entitlements.Catalog {
	return s.catalog
}

// Wait blocks until every confirmation notification started so far has
// returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// InitiateOrder opens a PayPal order for planType and records the PENDING
// payment that later webhook events will be matched against.
func (s *Service) InitiateOrder(ctx context.Context, userID uint, planType string) (*models.Payment, *Order, error) {
	plan, ok := s.catalog.Lookup(planType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planType)
	}
	if s.orders == nil {
		return nil, nil, errors.New("billing: no order creator configured")
	}
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.orders.CreateOrder(ctx, plan.Price, fmt.Sprintf("MensajeroPRO %s plan (30 days)", plan.ID))
	if err != nil {
		return nil, nil, err
	}

	payment := models.NewPendingPayment(user.ID, order.ID, plan.Price, string(plan.ID))
	if err := payment.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, nil, err
	}
	log.Infof("[Billing] Order %s opened for user %d (plan=%s amount=%s)", order.ID, user.ID, plan.ID, plan.Price.StringFixed(2))
	return payment, order, nil
}

// ProcessWebhook runs an authenticated webhook body through the delivery log
// and the reconciler. A redelivery of an event that was already handled
// successfully is acknowledged without touching any state.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte) (*WebhookResult, error) {
	evt, err := ParseEvent(rawBody)
	if err != nil {
		return nil, err
	}
	orderID, _ := evt.OrderID()

	created, stored, err := s.RecordWebhookEvent(ctx, WebhookEventInput{
		Provider:        models.BillingProviderPayPal,
		ProviderEventID: evt.ID,
		EventType:       string(evt.Type),
		OrderID:         orderID,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("record webhook event: %w", err)
	}
	if !created && stored.Succeeded() {
		log.Infof("[Billing] Duplicate delivery of event %s (%s) acknowledged", stored.ProviderEventID, evt.Type)
		s.metrics.observeWebhook(evt.Type, "duplicate")
		return &WebhookResult{Duplicate: true}, nil
	}

	res, handleErr := s.Handle(ctx, evt)
	if handleErr != nil {
		if err := s.MarkWebhookProcessed(ctx, stored.ID, models.WebhookOutcomeFailed, handleErr); err != nil {
			log.Errorf("[Billing] Failed to mark webhook event %d: %v", stored.ID, err)
		}
		s.metrics.observeWebhook(evt.Type, models.WebhookOutcomeFailed)
		return nil, handleErr
	}

	if err := s.MarkWebhookProcessed(ctx, stored.ID, string(res.Outcome), nil); err != nil {
		// State is committed; a redelivery re-derives the same result.
		log.Errorf("[Billing] Failed to mark webhook event %d: %v", stored.ID, err)
	}
	s.metrics.observeWebhook(evt.Type, string(res.Outcome))
	return &WebhookResult{Result: res}, nil
}

// RecordWebhookEvent persists webhook payloads idempotently. Events without
// an id are keyed by a hash of their payload.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		OrderID:         strings.TrimSpace(in.OrderID),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed stamps a delivery with its outcome and optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, outcome string, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, outcome, errMsg)
}

// ListWebhookEvents returns the most recent deliveries, newest first,
// optionally filtered by outcome. Limit is clamped to [1, 200].
func (s *Service) ListWebhookEvents(ctx context.Context, outcome string, limit int) ([]models.BillingWebhookEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.repo.ListWebhookEvents(ctx, strings.TrimSpace(outcome), limit)
}

// Handle applies one event. Unknown event types, events without an order id
// and events for orders that were never recorded are reported through the
// result outcome and a nil error. A non-nil error means storage failed and
// nothing was changed.
func (s *Service) Handle(ctx context.Context, evt *Event) (*Result, error) {
	if evt == nil {
		return nil, ErrEmptyPayload
	}
	res := &Result{EventType: evt.Type}

	var target string
	switch evt.Type {
	case EventOrderApproved:
		target = models.PaymentStatusApproved
	case EventPaymentCompleted:
		target = models.PaymentStatusCompleted
	case EventPaymentDenied:
		target = models.PaymentStatusDenied
	case EventPaymentRefunded:
		target = models.PaymentStatusRefunded
	default:
		log.Infof("[Billing] Ignoring event type %q (id=%s)", evt.Type, evt.ID)
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	orderID, ok := evt.OrderID()
	if !ok {
		log.Warnf("[Billing] %s event %s: %v", evt.Type, evt.ID, ErrOrderIDMissing)
		res.Outcome = OutcomeMalformed
		return res, nil
	}
	res.OrderID = orderID

	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", orderID, err)
	}
	defer unlock()

	var confirm *confirmation
	err = s.repo.Transaction(ctx, func(tx Repository) error {
		var txErr error
		confirm, txErr = s.apply(ctx, tx, target, res)
		return txErr
	})
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		if evt.Type == EventOrderApproved {
			// Order creation and webhook delivery race; the payment may
			// simply not be committed yet.
			log.Infof("[Billing] %s for unknown order %s, nothing to do", evt.Type, orderID)
		} else {
			log.Warnf("[Billing] %s for unknown order %s, nothing to do", evt.Type, orderID)
		}
		return &Result{EventType: evt.Type, OrderID: orderID, Outcome: OutcomeNotFound}, nil
	case errors.Is(err, ErrUserNotFound):
		log.Warnf("[Billing] %s for order %s references a missing user, nothing applied", evt.Type, orderID)
		return &Result{EventType: evt.Type, OrderID: orderID, Outcome: OutcomeNotFound, PaymentID: res.PaymentID}, nil
	case err != nil:
		log.Errorf("[Billing] %s for order %s failed: %v", evt.Type, orderID, err)
		return nil, err
	}

	if res.Outcome == OutcomeApplied {
		s.metrics.observeTransition(res.ToStatus)
		log.Infof("[Billing] Payment %d (order %s) %s -> %s", res.PaymentID, orderID, res.FromStatus, res.ToStatus)
	}
	if confirm != nil {
		s.notify(ctx, confirm)
	}
	return res, nil
}

type confirmation struct {
	user    models.User
	payment models.Payment
	plan    entitlements.Plan
}

// apply runs inside the per-event transaction. The payment row is locked
// first, then the user row, then the subscription row.
func (s *Service) apply(ctx context.Context, tx Repository, target string, res *Result) (*confirmation, error) {
	payment, err := tx.FindPaymentByOrderIDForUpdate(ctx, res.OrderID)
	if err != nil {
		return nil, err
	}
	res.PaymentID = payment.ID
	res.FromStatus = normalizeStatus(payment.Status)

	if !canTransition(payment.Status, target) {
		log.Infof("[Billing] Payment %d is %s, %s ignored: %v", payment.ID, res.FromStatus, target, ErrIllegalTransition)
		res.Outcome = OutcomeNoop
		return nil, nil
	}

	now := s.now()
	var completedAt *time.Time
	if target == models.PaymentStatusCompleted {
		completedAt = &now
	}
	moved, err := tx.TransitionPayment(ctx, payment.ID, target, predecessorsOf(target), completedAt)
	if err != nil {
		return nil, err
	}
	if !moved {
		res.Outcome = OutcomeNoop
		return nil, nil
	}
	payment.Status = target
	if completedAt != nil {
		payment.CompletedAt = completedAt
	}
	res.ToStatus = target
	res.Outcome = OutcomeApplied

	switch target {
	case models.PaymentStatusCompleted:
		return s.grant(ctx, tx, payment, now)
	case models.PaymentStatusRefunded:
		return nil, s.revoke(ctx, tx, payment)
	}
	return nil, nil
}

// grant extends the user's subscription by one period and raises the
// business quota to the paid plan's.
func (s *Service) grant(ctx context.Context, tx Repository, payment *models.Payment, now time.Time) (*confirmation, error) {
	plan := s.catalog.Resolve(payment.PlanType)

	user, err := tx.GetUserForUpdate(ctx, payment.UserID)
	if err != nil {
		return nil, err
	}

	sub, err := tx.FindSubscriptionByUserForUpdate(ctx, user.ID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		sub = newSubscription(user.ID, plan, now)
	case err != nil:
		return nil, err
	default:
		renewSubscription(sub, plan, now)
	}
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}

	if err := tx.SetUserPlanEntitlements(ctx, user.ID, models.ROLE_ADMIN, plan.MaxBusinesses); err != nil {
		return nil, err
	}
	user.Role = models.ROLE_ADMIN
	user.MaxBusinesses = plan.MaxBusinesses

	log.Infof("[Billing] User %d on plan %s until %s (max_businesses=%d)", user.ID, plan.ID, sub.EndDate.Format(time.RFC3339), plan.MaxBusinesses)
	return &confirmation{user: *user, payment: *payment, plan: plan}, nil
}

// revoke takes away paid entitlement. The role is left as it is.
func (s *Service) revoke(ctx context.Context, tx Repository, payment *models.Payment) error {
	user, err := tx.GetUserForUpdate(ctx, payment.UserID)
	if err != nil {
		return err
	}
	n, err := tx.DeactivateSubscriptions(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := tx.ResetUserBusinessQuota(ctx, user.ID); err != nil {
		return err
	}
	log.Infof("[Billing] Refund for user %d: %d subscription(s) deactivated, business quota reset", user.ID, n)
	return nil
}

// notify sends the payment confirmation in the background. The state it
// reports is already committed, so failures are only logged.
func (s *Service) notify(ctx context.Context, c *confirmation) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notificationTimeout)
		defer cancel()
		if err := s.notifier.SendPaymentConfirmation(nctx, &c.user, &c.payment, c.plan); err != nil {
			s.metrics.observeNotificationFailure()
			log.Errorf("[Billing] Confirmation for payment %d (user %d) not sent: %v", c.payment.ID, c.user.ID, err)
		}
	}()
}
