package boost

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

type clientMetrics struct {
	registry metrics.Registry

	Peers         metrics.Counter
	Uptime        metrics.Gauge
	MessagesIn    metrics.Meter
	SpeedDownload metrics.Meter
	SpeedUpload   metrics.Meter
}

func newClientMetrics(createdAt time.Time) *clientMetrics {
	r := metrics.NewRegistry()
	return &clientMetrics{
		registry: r,

		Peers:         metrics.NewRegisteredCounter("peers", r),
		Uptime:        metrics.NewRegisteredFunctionalGauge("uptime", r, func() int64 { return int64(time.Since(createdAt) / time.Second) }),
		MessagesIn:    metrics.NewRegisteredMeter("messages_in", r),
		SpeedDownload: metrics.NewRegisteredMeter("speed_download", r),
		SpeedUpload:   metrics.NewRegisteredMeter("speed_upload", r),
	}
}

func (m *clientMetrics) Close() {
	m.MessagesIn.Stop()
	m.SpeedDownload.Stop()
	m.SpeedUpload.Stop()
}
