package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sensor ingestion and assignment.
type Metrics struct {
	ReadingsRecorded prometheus.Counter
	SensorsBound     prometheus.Counter
	BindConflicts    prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ReadingsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_sensor_readings_total",
			Help: "Sensor readings accepted",
		}),
		SensorsBound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_sensor_bindings_total",
			Help: "Sensors assigned to a land",
		}),
		BindConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_sensor_bind_conflicts_total",
			Help: "Assignments rejected because the sensor or land was already bound",
		}),
	}
}

func (m *Metrics) IncrementReadings() {
	m.ReadingsRecorded.Inc()
}

func (m *Metrics) IncrementBound() {
	m.SensorsBound.Inc()
}

func (m *Metrics) IncrementBindConflict() {
	m.BindConflicts.Inc()
}
