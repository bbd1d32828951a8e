// Package service manages field sensors: registration, reading ingestion and
// the one-time assignment of a sensor to a verified land.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"farmshield/internal/sensor/metrics"
	"farmshield/internal/sensor/models"
	"farmshield/pkg/attrs"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	audit "farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

const (
	DefaultReadingLimit = 10
	MaxReadingLimit     = 500
)

type Store interface {
	Create(ctx context.Context, sensor *models.Sensor) error
	FindByCode(ctx context.Context, code string) (*models.Sensor, error)
	FindByID(ctx context.Context, sensorID id.SensorID) (*models.Sensor, error)
	List(ctx context.Context, availableOnly bool) ([]*models.Sensor, error)
	Bind(ctx context.Context, code string, landID id.LandID) (*models.Sensor, error)
	RecordReading(ctx context.Context, reading *models.Reading) error
	LatestReadings(ctx context.Context, sensorID id.SensorID, limit int) ([]models.Reading, error)
	Stats(ctx context.Context) (models.Stats, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store          Store
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a new, unbound sensor to the fleet.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Sensor, error) {
	sensor, err := models.NewSensor(id.SensorID(uuid.New()), req.Code, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, sensor); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "sensor code already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register sensor")
	}
	s.logAudit(ctx, string(audit.EventSensorRegistered), "sensor_code", sensor.Code)
	return sensor, nil
}

// RecordReading stores one sample and stamps the sensor's last-reading time.
func (s *Service) RecordReading(ctx context.Context, req *models.ReadingRequest) (*models.Reading, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sensor, err := s.find(ctx, req.SensorCode)
	if err != nil {
		return nil, err
	}
	reading := &models.Reading{
		SensorID:     sensor.ID,
		SoilMoisture: *req.SoilMoisture,
		Humidity:     *req.Humidity,
		Temperature:  *req.Temperature,
		Rainfall:     req.Rainfall,
		RecordedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.RecordReading(ctx, reading); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "sensor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record reading")
	}
	if s.metrics != nil {
		s.metrics.IncrementReadings()
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "sensor reading recorded",
			"sensor_code", sensor.Code,
			"soil_moisture", reading.SoilMoisture.String(),
			"humidity", reading.Humidity.String(),
			"temperature", reading.Temperature.String(),
		)
	}
	return reading, nil
}

// LatestReadings returns the newest readings for a sensor. limit <= 0 uses
// the default; larger values are capped.
func (s *Service) LatestReadings(ctx context.Context, code string, limit int) ([]models.Reading, error) {
	sensor, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultReadingLimit
	}
	limit = min(limit, MaxReadingLimit)
	readings, err := s.store.LatestReadings(ctx, sensor.ID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load readings")
	}
	return readings, nil
}

func (s *Service) Get(ctx context.Context, code string) (*models.Sensor, error) {
	return s.find(ctx, code)
}

func (s *Service) GetByID(ctx context.Context, sensorID id.SensorID) (*models.Sensor, error) {
	sensor, err := s.store.FindByID(ctx, sensorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "sensor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sensor")
	}
	return sensor, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Sensor, error) {
	sensors, err := s.store.List(ctx, false)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sensors")
	}
	return sensors, nil
}

// ListAvailable returns active sensors not yet assigned to a land.
func (s *Service) ListAvailable(ctx context.Context) ([]*models.Sensor, error) {
	sensors, err := s.store.List(ctx, true)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sensors")
	}
	return sensors, nil
}

// Bind assigns the sensor to a land. It is the only path that sets a
// sensor's land and it succeeds at most once per sensor; a sensor that is
// bound, inactive, or a land that already has one, yields Conflict.
func (s *Service) Bind(ctx context.Context, rawCode string, landID id.LandID) (*models.Sensor, error) {
	code, err := models.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	sensor, err := s.store.Bind(ctx, code, landID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "sensor not found")
		case errors.Is(err, sentinel.ErrConflict):
			if s.metrics != nil {
				s.metrics.IncrementBindConflict()
			}
			return nil, dErrors.New(dErrors.CodeConflict, "sensor is already assigned to another land")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to assign sensor")
	}
	if s.metrics != nil {
		s.metrics.IncrementBound()
	}
	s.logAudit(ctx, string(audit.EventSensorBound),
		"sensor_code", sensor.Code,
		"land_id", landID.String(),
	)
	return sensor, nil
}

func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return models.Stats{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count sensors")
	}
	return stats, nil
}

func (s *Service) find(ctx context.Context, rawCode string) (*models.Sensor, error) {
	code, err := models.NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}
	sensor, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "sensor not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sensor")
	}
	return sensor, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if s.logger != nil {
		s.logger.InfoContext(ctx, event, args...)
	}
	if s.auditPublisher == nil {
		return
	}
	actorID := ""
	if officialID, ok := requestcontext.Principal(ctx).OfficialID(); ok {
		actorID = officialID.String()
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		ActorID:   actorID,
		Subject:   attrs.ExtractString(attributes, "sensor_code"),
		Action:    event,
		RequestID: attrs.ExtractString(attributes, "request_id"),
	})
}
