/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package admin

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
)

// Metrics is the set of Prometheus collectors the Gateway registers at
// startup. Scraping is the caller's responsibility (wiring promhttp.Handler
// into the outer HTTP listener); this package only owns what the numbers
// mean and how they are updated.
type Metrics struct {
	DocumentsLive  prometheus.Gauge
	SessionsLive   prometheus.Gauge
	KitsSpawned    prometheus.Counter
	KitsSegfaulted prometheus.Counter
	SaveFailures   prometheus.Counter
	WorkerRSSBytes *prometheus.GaugeVec
	PingRTTSeconds prometheus.Histogram
}

// NewMetrics builds and registers every collector against reg. Passing a
// fresh *prometheus.Registry (rather than the global default) keeps admin
// metrics isolated from whatever else shares the process.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		DocumentsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cool", Subsystem: "broker", Name: "documents_live",
			Help: "Number of DocumentBrokers currently in the Loading, Live or Saving states.",
		}),
		SessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cool", Subsystem: "broker", Name: "sessions_live",
			Help: "Number of client sessions currently attached to any document.",
		}),
		KitsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cool", Subsystem: "spawner", Name: "kits_spawned_total",
			Help: "Total number of Worker processes forked since startup.",
		}),
		KitsSegfaulted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cool", Subsystem: "spawner", Name: "kits_segfaulted_total",
			Help: "Total number of Worker processes that exited via SIGSEGV or SIGBUS.",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cool", Subsystem: "broker", Name: "save_failures_total",
			Help: "Total number of document saves that ended in a non-retryable storage error.",
		}),
		WorkerRSSBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cool", Subsystem: "worker", Name: "rss_bytes",
			Help: "Resident set size of a Worker process, sampled from /proc/<pid>/smaps.",
		}, []string{"jail_id"}),
		PingRTTSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cool", Subsystem: "websocket", Name: "ping_rtt_seconds",
			Help:    "Round-trip time between a PING frame and its matching PONG.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.DocumentsLive,
		m.SessionsLive,
		m.KitsSpawned,
		m.KitsSegfaulted,
		m.SaveFailures,
		m.WorkerRSSBytes,
		m.PingRTTSeconds,
	)
	return m
}

// WorkerStats is a point-in-time resource snapshot for one Worker process,
// the data behind the admin console's per-document memory column.
type WorkerStats struct {
	Pid        int32
	RSSBytes   uint64
	CPUPercent float64
}

// SampleWorker reads the current RSS and CPU usage of a Worker process by
// pid, the Go equivalent of parsing /proc/<pid>/smaps by hand.
func SampleWorker(pid int32) (WorkerStats, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return WorkerStats{}, err
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return WorkerStats{}, err
	}
	cpu, err := proc.CPUPercent()
	if err != nil {
		return WorkerStats{}, err
	}
	return WorkerStats{Pid: pid, RSSBytes: mem.RSS, CPUPercent: cpu}, nil
}
