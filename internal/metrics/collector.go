package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// StoreProbe gives the collector read access to the document store.
type StoreProbe interface {
	HealthCheck(ctx context.Context) error
}

// MQTTProbe reports publisher connectivity.
type MQTTProbe interface {
	IsConnected() bool
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	store   StoreProbe
	backend string
	pool    *pgxpool.Pool
	mqtt    MQTTProbe

	storeUp         *prometheus.Desc
	mqttConnected   *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// pool is only set for the postgres backend; mqtt may be nil when event
// publishing is disabled.
func NewCollector(store StoreProbe, backend string, pool *pgxpool.Pool, mqtt MQTTProbe) *Collector {
	return &Collector{
		store:   store,
		backend: backend,
		pool:    pool,
		mqtt:    mqtt,
		storeUp: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "up"),
			"Whether the document store answered its health check.",
			[]string{"backend"}, nil,
		),
		mqttConnected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "mqtt", "connected"),
			"Whether the MQTT publisher is connected.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.storeUp
	ch <- c.mqttConnected
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	up := 0.0
	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if c.store.HealthCheck(ctx) == nil {
			up = 1
		}
		cancel()
	}
	ch <- prometheus.MustNewConstMetric(c.storeUp, prometheus.GaugeValue, up, c.backend)

	connected := 0.0
	if c.mqtt != nil && c.mqtt.IsConnected() {
		connected = 1
	}
	ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, connected)

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
