package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics exposes configuration loading to Prometheus.
//
//	<component>_config_load_timestamp      gauge, unix time of the last load
//	<component>_config_fallbacks_total     counter by field
//	<component>_config_fallback_active     gauge, 1 while any field uses its default
type ConfigMetrics struct {
	LoadTimestamp  prometheus.Gauge
	FallbacksTotal *prometheus.CounterVec
	FallbackActive prometheus.Gauge
}

// NewConfigMetrics registers the metrics for componentName with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewConfigMetrics(componentName string, reg prometheus.Registerer) *ConfigMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &ConfigMetrics{
		LoadTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", componentName),
		}),
		FallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration fallback operations", componentName),
		}, []string{"field"}),
		FallbackActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", componentName),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", componentName),
		}),
	}
}

// RecordLoad marks a completed load and the fields that fell back to defaults.
func (m *ConfigMetrics) RecordLoad(fallbackFields []string) {
	if m == nil {
		return
	}
	m.LoadTimestamp.SetToCurrentTime()
	for _, field := range fallbackFields {
		m.FallbacksTotal.WithLabelValues(field).Inc()
	}
	if len(fallbackFields) > 0 {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
