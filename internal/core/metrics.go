package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "stockroom"

// PrometheusMetricsRecorder exports service operation latency and outcomes.
type PrometheusMetricsRecorder struct {
	duration *prometheus.HistogramVec
	results  *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder builds a recorder and registers its collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of inventory service operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Inventory service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	for _, c := range []prometheus.Collector{r.duration, r.results} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// InventoryCollector exposes current inventory levels as gauges.
type InventoryCollector struct {
	store      PersistentStore
	items      *prometheus.Desc
	units      *prometheus.Desc
	lowStock   *prometheus.Desc
	categories *prometheus.Desc
	history    *prometheus.Desc
}

// NewInventoryCollector returns a collector reading from store on every scrape.
func NewInventoryCollector(store PersistentStore) *InventoryCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &InventoryCollector{
		store:      store,
		items:      desc("stock_items", "Number of product/size variants."),
		units:      desc("stock_units", "Units on hand across all variants."),
		lowStock:   desc("low_stock_items", "Variants below the low stock threshold."),
		categories: desc("categories", "Number of categories."),
		history:    desc("history_entries", "Number of history log entries."),
	}
}

// Describe implements prometheus.Collector.
func (c *InventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.items
	ch <- c.units
	ch <- c.lowStock
	ch <- c.categories
	ch <- c.history
}

// Collect implements prometheus.Collector.
func (c *InventoryCollector) Collect(ch chan<- prometheus.Metric) {
	summary := Summarize(c.store.ListItems())
	ch <- prometheus.MustNewConstMetric(c.items, prometheus.GaugeValue, float64(summary.Variants))
	ch <- prometheus.MustNewConstMetric(c.units, prometheus.GaugeValue, float64(summary.TotalUnits))
	ch <- prometheus.MustNewConstMetric(c.lowStock, prometheus.GaugeValue, float64(summary.LowStock))
	ch <- prometheus.MustNewConstMetric(c.categories, prometheus.GaugeValue, float64(len(c.store.ListCategories())))
	ch <- prometheus.MustNewConstMetric(c.history, prometheus.GaugeValue, float64(len(c.store.ListHistory())))
}
