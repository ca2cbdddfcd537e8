// Package metrics contains support for reporting metrics to an external server,
// currently a Prometheus pushgateway. Because flaker runs as a transient process
// we can't wait around for Prometheus to call us, we've got to push to them.
package metrics

import (
	"fmt"
	"os/exec"
	"os/user"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
)

var log = logging.Log

// This is the maximum number of errors after which we will stop attempting to send metrics.
const maxErrors = 3

// Outcomes of diffing a single file.
const (
	Equal     = "equal"
	Divergent = "divergent"
	Failed    = "failed"
)

type metrics struct {
	url               string
	newMetrics        bool
	ticker            *time.Ticker
	cancelled         bool
	errors            int
	pushes            int
	timeout           time.Duration
	registry          *prometheus.Registry
	fileCounter       *prometheus.CounterVec
	durationHistogram *prometheus.HistogramVec
	mutex             sync.Mutex
}

// m is the singleton metrics instance.
var m *metrics

// InitFromConfig sets up the initial metrics from the configuration.
func InitFromConfig(config *core.Configuration) {
	if config.Metrics.PushGatewayURL != "" {
		defer func() {
			if r := recover(); r != nil {
				log.Fatalf("%s", r)
			}
		}()
		m = initMetrics(config.Metrics.PushGatewayURL, time.Duration(config.Metrics.PushFrequency),
			time.Duration(config.Metrics.PushTimeout), config.MetricLabels())
	}
}

// initMetrics initialises a new metrics instance.
// This is deliberately not exposed but is useful for testing.
func initMetrics(url string, frequency, timeout time.Duration, customLabels map[string]string) *metrics {
	u, err := user.Current()
	if err != nil {
		log.Warning("Can't determine current user name for metrics")
		u = &user.User{Username: "unknown"}
	}
	constLabels := prometheus.Labels{
		"user": u.Username,
		"arch": runtime.GOOS + "_" + runtime.GOARCH,
	}
	for k, v := range customLabels {
		constLabels[k] = deriveLabelValue(v)
	}

	m := &metrics{
		url:      url,
		timeout:  timeout,
		ticker:   time.NewTicker(frequency),
		registry: prometheus.NewRegistry(),
	}

	// Count of files diffed, by how it went.
	m.fileCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "flaker_files_total",
		Help:        "Count of files both parsers have been run on",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	// Time taken to run both parsers on each file.
	m.durationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "flaker_file_duration_seconds",
		Help:        "Durations of running both parsers on a single file",
		Buckets:     prometheus.ExponentialBuckets(0.005, 2, 14),
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.registry.MustRegister(m.fileCounter, m.durationHistogram)
	go m.keepPushing()
	return m
}

// Stop shuts down the metrics and ensures the final ones are sent before returning.
func Stop() {
	if m != nil {
		m.stop()
	}
}

func (m *metrics) stop() {
	m.ticker.Stop()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.cancelled {
		m.errors = m.pushMetrics()
	}
}

// Record records metrics for a single file.
func Record(outcome string, duration time.Duration) {
	if m != nil {
		m.record(outcome, duration)
	}
}

func (m *metrics) record(outcome string, duration time.Duration) {
	m.fileCounter.WithLabelValues(outcome).Inc()
	m.durationHistogram.WithLabelValues(outcome).Observe(duration.Seconds())
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.newMetrics = true
}

func (m *metrics) keepPushing() {
	for range m.ticker.C {
		m.mutex.Lock()
		m.errors = m.pushMetrics()
		if m.errors >= maxErrors {
			log.Warning("Metrics don't seem to be working, giving up")
			m.cancelled = true
			m.mutex.Unlock()
			return
		}
		m.mutex.Unlock()
	}
}

// deadline applies a deadline to an arbitrary function and returns when either the function
// completes or the deadline expires.
func deadline(f func() error, timeout time.Duration) error {
	c := make(chan error, 1)
	go func() {
		c <- f()
	}()
	select {
	case err := <-c:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("Metrics push timed out")
	}
}

// pushMetrics attempts to send some new metrics to the server. It returns the new number of errors.
// The mutex must be held when calling it.
func (m *metrics) pushMetrics() int {
	if !m.newMetrics {
		return m.errors
	}
	start := time.Now()
	m.newMetrics = false
	if err := deadline(func() error {
		return push.New(m.url, "flaker").Gatherer(m.registry).Grouping("instance", hostname()).Add()
	}, m.timeout); err != nil {
		log.Warning("Could not push metrics to the repository: %s", err)
		m.newMetrics = true
		return m.errors + 1
	}
	m.pushes++
	log.Debug("Push #%d of metrics in %0.3fs", m.pushes, time.Since(start).Seconds())
	return 0
}

// deriveLabelValue runs a command and returns its output.
func deriveLabelValue(cmd string) string {
	parts, err := shlex.Split(cmd)
	if err != nil {
		panic(fmt.Sprintf("Invalid custom metric command [%s]: %s", cmd, err))
	} else if len(parts) == 0 {
		panic(fmt.Sprintf("Empty custom metric command [%s]", cmd))
	}
	log.Debug("Running custom label command: %s", cmd)
	b, err := exec.Command(parts[0], parts[1:]...).Output()
	log.Debug("Got output: %s", b)
	if err != nil {
		panic(fmt.Sprintf("Custom metric command [%s] failed: %s", cmd, err))
	}
	value := strings.TrimSpace(string(b))
	if strings.Contains(value, "\n") {
		panic(fmt.Sprintf("Return value of custom metric command [%s] contains newlines: %s", cmd, value))
	}
	return value
}
