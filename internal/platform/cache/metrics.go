package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// PoolCollector exports the connection pool statistics of the session
// store.
type PoolCollector struct {
	client *redis.Client

	hits     *prometheus.Desc
	misses   *prometheus.Desc
	timeouts *prometheus.Desc
	total    *prometheus.Desc
	idle     *prometheus.Desc
}

// NewPoolCollector describes the pool of client.
func NewPoolCollector(client *redis.Client) *PoolCollector {
	return &PoolCollector{
		client:   client,
		hits:     prometheus.NewDesc("crmdesk_redis_pool_hits_total", "Connections reused from the pool.", nil, nil),
		misses:   prometheus.NewDesc("crmdesk_redis_pool_misses_total", "Connections not found in the pool.", nil, nil),
		timeouts: prometheus.NewDesc("crmdesk_redis_pool_timeouts_total", "Waits for a free connection that timed out.", nil, nil),
		total:    prometheus.NewDesc("crmdesk_redis_pool_connections", "Connections currently open.", nil, nil),
		idle:     prometheus.NewDesc("crmdesk_redis_pool_idle_connections", "Idle connections in the pool.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.timeouts
	ch <- c.total
	ch <- c.idle
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.client.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stats.TotalConns))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.IdleConns))
}
