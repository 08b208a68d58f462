// Copyright (c) 2026 ytinirt
// SPDX-License-Identifier: MIT

package lpm

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes the table statistics for a prometheus registry.
// The gauges are sampled from the live counters, registering the
// collector does not change the single-writer discipline.
func (t *Table[V]) Collector() prometheus.Collector {
	labels := prometheus.Labels{"table": t.name}

	return &statsCollector[V]{
		table: t,
		btrieNodes: prometheus.NewDesc(
			"lpm_btrie_nodes",
			"Allocated binary trie nodes.",
			nil, labels),
		btrieFailures: prometheus.NewDesc(
			"lpm_btrie_alloc_failures_total",
			"Refused binary trie node allocations.",
			nil, labels),
		mtrieBlocks: prometheus.NewDesc(
			"lpm_mtrie_blocks",
			"Allocated multibit trie blocks.",
			nil, labels),
		mtrieFailures: prometheus.NewDesc(
			"lpm_mtrie_alloc_failures_total",
			"Refused multibit trie block allocations.",
			nil, labels),
		dataTotal: prometheus.NewDesc(
			"lpm_bindings",
			"Prefix bindings currently stored.",
			nil, labels),
	}
}

type statsCollector[V comparable] struct {
	table *Table[V]

	btrieNodes    *prometheus.Desc
	btrieFailures *prometheus.Desc
	mtrieBlocks   *prometheus.Desc
	mtrieFailures *prometheus.Desc
	dataTotal     *prometheus.Desc
}

func (c *statsCollector[V]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.btrieNodes
	ch <- c.btrieFailures
	ch <- c.mtrieBlocks
	ch <- c.mtrieFailures
	ch <- c.dataTotal
}

func (c *statsCollector[V]) Collect(ch chan<- prometheus.Metric) {
	stat := c.table.Stats()

	ch <- prometheus.MustNewConstMetric(c.btrieNodes, prometheus.GaugeValue, float64(stat.BtrieNodes))
	ch <- prometheus.MustNewConstMetric(c.btrieFailures, prometheus.CounterValue, float64(stat.BtrieNodeFailures))
	ch <- prometheus.MustNewConstMetric(c.mtrieBlocks, prometheus.GaugeValue, float64(stat.MtrieBlocks))
	ch <- prometheus.MustNewConstMetric(c.mtrieFailures, prometheus.CounterValue, float64(stat.MtrieBlockFailures))
	ch <- prometheus.MustNewConstMetric(c.dataTotal, prometheus.GaugeValue, float64(stat.DataTotal))
}
