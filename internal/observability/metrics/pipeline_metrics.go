package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config identifies the emitting service on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// PipelineMetrics covers the donation ingestion and sync pipeline.
type PipelineMetrics struct {
	donationsIngested *prometheus.CounterVec
	syncPushes        *prometheus.CounterVec
	syncQueueDepth    prometheus.Gauge
	backfillPages     prometheus.Counter
	backfillPushes    *prometheus.CounterVec
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

func Pipeline() *PipelineMetrics {
	return PipelineWithConfig(Config{})
}

func PipelineWithConfig(cfg Config) *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return pipelineMetrics
}

func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer, cfg Config) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "donorsync"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	donationsIngested := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "donorsync_donations_ingested_total",
			Help:        "Donation webhook events processed, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // accepted | duplicate | rejected | fault
	)

	syncPushes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "donorsync_crm_pushes_total",
			Help:        "MailWizz subscriber upserts attempted by the sync queue.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failure
	)

	syncQueueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "donorsync_sync_queue_depth",
			Help:        "Donor sync jobs currently waiting in the queue.",
			ConstLabels: constLabels,
		},
	)

	backfillPages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "donorsync_backfill_pages_total",
			Help:        "PayPal reporting pages consumed by the backfill job.",
			ConstLabels: constLabels,
		},
	)

	backfillPushes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "donorsync_backfill_pushes_total",
			Help:        "Donor totals pushed to MailWizz during backfill, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failure
	)

	registerer.MustRegister(
		donationsIngested,
		syncPushes,
		syncQueueDepth,
		backfillPages,
		backfillPushes,
	)

	return &PipelineMetrics{
		donationsIngested: donationsIngested,
		syncPushes:        syncPushes,
		syncQueueDepth:    syncQueueDepth,
		backfillPages:     backfillPages,
		backfillPushes:    backfillPushes,
	}
}

func (m *PipelineMetrics) IncDonationIngested(result string) {
	if m == nil {
		return
	}
	m.donationsIngested.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) IncSyncPush(result string) {
	if m == nil {
		return
	}
	m.syncPushes.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) SetSyncQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.syncQueueDepth.Set(float64(depth))
}

func (m *PipelineMetrics) IncBackfillPage() {
	if m == nil {
		return
	}
	m.backfillPages.Inc()
}

func (m *PipelineMetrics) IncBackfillPush(result string) {
	if m == nil {
		return
	}
	m.backfillPushes.WithLabelValues(result).Inc()
}
