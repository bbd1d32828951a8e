// Package service stores farmer notifications, sends the SMS copy for the
// categories that have one and serves the inbox.
package service

import (
	"context"
	"errors"
	"log/slog"

	identitymodels "farmshield/internal/identity/models"
	"farmshield/internal/notification/metrics"
	"farmshield/internal/notification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByFarmer(ctx context.Context, farmerID id.FarmerID, limit int) ([]*models.Notification, error)
	CountUnread(ctx context.Context, farmerID id.FarmerID) (int, error)
	MarkRead(ctx context.Context, farmerID id.FarmerID, notificationID id.NotificationID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, farmerID id.FarmerID) (int, error)
}

type FarmerLookup interface {
	GetProfile(ctx context.Context, farmerID id.FarmerID) (*identitymodels.Farmer, error)
}

// SMSSender delivers free-text messages.
type SMSSender interface {
	SendMessage(ctx context.Context, phone id.Phone, message string) error
}

type Service struct {
	store   Store
	farmers FarmerLookup
	sms     SMSSender
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSMS enables the text message copy for claim and payment notifications.
func WithSMS(sender SMSSender, farmers FarmerLookup) Option {
	return func(s *Service) {
		s.sms = sender
		s.farmers = farmers
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver stores the notification and sends its SMS copy. A gateway failure
// is logged; the inbox entry stands.
func (s *Service) Deliver(ctx context.Context, n *models.Notification) error {
	if err := s.store.Create(ctx, n); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementFailed(string(n.Category))
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store notification")
	}
	if s.metrics != nil {
		s.metrics.IncrementDelivered(string(n.Category))
	}
	if n.Category.SendsSMS() && s.sms != nil && s.farmers != nil {
		s.sendSMS(ctx, n)
	}
	return nil
}

func (s *Service) sendSMS(ctx context.Context, n *models.Notification) {
	farmer, err := s.farmers.GetProfile(ctx, n.FarmerID)
	if err == nil {
		err = s.sms.SendMessage(ctx, farmer.Phone, n.SMSText())
	}
	if err == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementSMSFailed()
	}
	if s.logger != nil {
		s.logger.WarnContext(ctx, "notification sms failed",
			"error", err,
			"farmer_id", n.FarmerID.String(),
			"notification_id", n.ID.String(),
			"category", string(n.Category),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// List returns the farmer's inbox newest first together with the unread count.
func (s *Service) List(ctx context.Context, farmerID id.FarmerID, limit int) (*models.ListResponse, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	items, err := s.store.ListByFarmer(ctx, farmerID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notifications")
	}
	unread, err := s.UnreadCount(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	return &models.ListResponse{Notifications: models.ToResponses(items), Unread: unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context, farmerID id.FarmerID) (int, error) {
	n, err := s.store.CountUnread(ctx, farmerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count notifications")
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, farmerID id.FarmerID, notificationID id.NotificationID) (*models.Response, error) {
	n, err := s.store.MarkRead(ctx, farmerID, notificationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notification read")
	}
	resp := models.ToResponse(n)
	return &resp, nil
}

func (s *Service) MarkAllRead(ctx context.Context, farmerID id.FarmerID) (int, error) {
	n, err := s.store.MarkAllRead(ctx, farmerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark notifications read")
	}
	return n, nil
}
