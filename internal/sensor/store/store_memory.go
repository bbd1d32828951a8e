// Package store persists sensors and their readings.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"farmshield/internal/sensor/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[id.SensorID]*models.Sensor
	byCode   map[string]id.SensorID
	byLand   map[id.LandID]id.SensorID
	readings map[id.SensorID][]models.Reading
	nextRead int64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:     make(map[id.SensorID]*models.Sensor),
		byCode:   make(map[string]id.SensorID),
		byLand:   make(map[id.LandID]id.SensorID),
		readings: make(map[id.SensorID][]models.Reading),
	}
}

func (s *InMemoryStore) Create(_ context.Context, sensor *models.Sensor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCode[sensor.Code]; taken {
		return fmt.Errorf("sensor code %s: %w", sensor.Code, sentinel.ErrConflict)
	}
	s.byID[sensor.ID] = cloneSensor(sensor)
	s.byCode[sensor.Code] = sensor.ID
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*models.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensorID, ok := s.byCode[code]
	if !ok {
		return nil, fmt.Errorf("sensor %s: %w", code, sentinel.ErrNotFound)
	}
	return cloneSensor(s.byID[sensorID]), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sensorID id.SensorID) (*models.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sensor, ok := s.byID[sensorID]
	if !ok {
		return nil, fmt.Errorf("sensor %s: %w", sensorID, sentinel.ErrNotFound)
	}
	return cloneSensor(sensor), nil
}

// List returns every sensor ordered by code. availableOnly filters to active,
// unbound sensors.
func (s *InMemoryStore) List(_ context.Context, availableOnly bool) ([]*models.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Sensor, 0, len(s.byID))
	for _, sensor := range s.byID {
		if availableOnly && !sensor.Available() {
			continue
		}
		out = append(out, cloneSensor(sensor))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Bind assigns the sensor to the land when it is active and unbound. The
// check and the write happen under one lock.
func (s *InMemoryStore) Bind(_ context.Context, code string, landID id.LandID) (*models.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensorID, ok := s.byCode[code]
	if !ok {
		return nil, fmt.Errorf("sensor %s: %w", code, sentinel.ErrNotFound)
	}
	sensor := s.byID[sensorID]
	if !sensor.Available() {
		return nil, fmt.Errorf("sensor %s not available: %w", code, sentinel.ErrConflict)
	}
	if _, taken := s.byLand[landID]; taken {
		return nil, fmt.Errorf("land %s already has a sensor: %w", landID, sentinel.ErrConflict)
	}
	bound := landID
	sensor.LandID = &bound
	s.byLand[landID] = sensorID
	return cloneSensor(sensor), nil
}

// RecordReading appends the reading and stamps the sensor's last-reading time.
func (s *InMemoryStore) RecordReading(_ context.Context, reading *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sensor, ok := s.byID[reading.SensorID]
	if !ok {
		return fmt.Errorf("sensor %s: %w", reading.SensorID, sentinel.ErrNotFound)
	}
	s.nextRead++
	reading.ID = s.nextRead
	s.readings[reading.SensorID] = append(s.readings[reading.SensorID], *reading)
	at := reading.RecordedAt
	sensor.LastReadingAt = &at
	return nil
}

// LatestReadings returns up to limit readings, newest first.
func (s *InMemoryStore) LatestReadings(_ context.Context, sensorID id.SensorID, limit int) ([]models.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.readings[sensorID]
	out := make([]models.Reading, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *InMemoryStore) Stats(_ context.Context) (models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := models.Stats{Total: len(s.byID)}
	for _, sensor := range s.byID {
		if sensor.Available() {
			stats.Available++
		}
	}
	return stats, nil
}

func cloneSensor(s *models.Sensor) *models.Sensor {
	cp := *s
	if s.LandID != nil {
		landID := *s.LandID
		cp.LandID = &landID
	}
	if s.LastReadingAt != nil {
		at := *s.LastReadingAt
		cp.LastReadingAt = &at
	}
	return &cp
}
