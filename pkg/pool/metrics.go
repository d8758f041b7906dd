package pool

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
)

var invalidLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Convert an attribute key like "node.os" into a label name like "node_os".
func labelName(key string) string {
	name := invalidLabelChars.ReplaceAllString(key, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

// A prometheus collector exporting pool capacity and statistics.
// Values are computed on every scrape.
type CapacityCollector struct {
	pool    *Pool
	groupBy []string

	used          *prometheus.Desc
	capacity      *prometheus.Desc
	selections    *prometheus.Desc
	timeouts      *prometheus.Desc
	cancellations *prometheus.Desc
}

// NewCapacityCollector creates a collector reporting capacity grouped by
// the given attribute keys.
func NewCapacityCollector(pool *Pool, groupBy ...string) *CapacityCollector {
	labels := make([]string, len(groupBy))
	for i, key := range groupBy {
		labels[i] = labelName(key)
	}

	return &CapacityCollector{
		pool:    pool,
		groupBy: groupBy,
		used: prometheus.NewDesc(
			"grid_pool_tokens_used",
			"The number of leased tokens in the group.",
			labels, nil),
		capacity: prometheus.NewDesc(
			"grid_pool_tokens_capacity",
			"The total number of tokens in the group.",
			labels, nil),
		selections: prometheus.NewDesc(
			"grid_pool_selections_total",
			"The total number of successful token selections.",
			nil, nil),
		timeouts: prometheus.NewDesc(
			"grid_pool_selection_timeouts_total",
			"The total number of token selections that timed out.",
			nil, nil),
		cancellations: prometheus.NewDesc(
			"grid_pool_selection_cancellations_total",
			"The total number of token selections that were cancelled.",
			nil, nil),
	}
}

func (c *CapacityCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.used
	ch <- c.capacity
	ch <- c.selections
	ch <- c.timeouts
	ch <- c.cancellations
}

func (c *CapacityCollector) Collect(ch chan<- prometheus.Metric) {
	for _, group := range c.pool.Capacity(c.groupBy...) {
		values := make([]string, len(c.groupBy))
		for i, key := range c.groupBy {
			values[i] = group.Key[key]
		}
		ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(group.Usage), values...)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(group.Capacity), values...)
	}

	stats := c.pool.Statistics()
	ch <- prometheus.MustNewConstMetric(c.selections, prometheus.CounterValue, float64(stats.Selections))
	ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(stats.Timeouts))
	ch <- prometheus.MustNewConstMetric(c.cancellations, prometheus.CounterValue, float64(stats.Cancellations))
}
