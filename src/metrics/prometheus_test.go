package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/flaker/flaker/src/cli"
	"github.com/flaker/flaker/src/core"
)

const url = "http://localhost:9999"
const verySlow = 10000000 * time.Second // Long duration so it never actually reports anything.
const timeout = 500 * time.Millisecond

func TestNoMetrics(t *testing.T) {
	m := initMetrics(url, verySlow, timeout, nil)
	assert.Equal(t, 0, m.errors)
	assert.Equal(t, 0, m.pushes)
	m.stop()
	assert.Equal(t, 0, m.errors, "Stop should not push when there aren't metrics")
}

func TestSomeMetrics(t *testing.T) {
	m := initMetrics(url, verySlow, timeout, nil)
	m.record(Divergent, time.Millisecond)
	m.stop()
	assert.Equal(t, 1, m.errors, "Stop should push once more when there are metrics")
}

func TestOutcomes(t *testing.T) {
	m := initMetrics(url, verySlow, timeout, nil)
	m.record(Equal, time.Millisecond)
	m.record(Equal, time.Millisecond)
	m.record(Divergent, 2*time.Millisecond)
	m.record(Failed, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fileCounter.WithLabelValues(Equal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fileCounter.WithLabelValues(Divergent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fileCounter.WithLabelValues(Failed)))
	m.stop()
}

func TestPushAttempts(t *testing.T) {
	m := initMetrics(url, time.Millisecond, timeout, nil) // Fast push attempts
	m.record(Equal, time.Millisecond)
	assert.Eventually(t, func() bool {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.cancelled
	}, 10*time.Second, 10*time.Millisecond)
	m.stop()
	assert.Equal(t, maxErrors, m.errors, "Should not push again if it's hit the max errors")
}

func TestCustomLabels(t *testing.T) {
	m := initMetrics(url, verySlow, timeout, map[string]string{
		"mylabel": "echo hello",
	})
	// It's a little bit fiddly to observe that the const label has been set as expected.
	c := m.fileCounter.WithLabelValues(Equal)
	assert.Contains(t, c.Desc().String(), `mylabel="hello"`)
}

func TestCustomLabelsShlex(t *testing.T) {
	// Naive splitting will not produce good results here.
	m := initMetrics(url, verySlow, timeout, map[string]string{
		"mylabel": "sh -c 'echo hello'",
	})
	c := m.fileCounter.WithLabelValues(Equal)
	assert.Contains(t, c.Desc().String(), `mylabel="hello"`)
}

func TestCustomLabelsShlexInvalid(t *testing.T) {
	assert.Panics(t, func() {
		initMetrics(url, verySlow, timeout, map[string]string{
			"mylabel": "sh -c 'echo hello", // missing trailing quote
		})
	})
}

func TestCustomLabelsCommandFails(t *testing.T) {
	assert.Panics(t, func() {
		initMetrics(url, verySlow, timeout, map[string]string{
			"mylabel": "wibble",
		})
	})
}

func TestCustomLabelsCommandNewlines(t *testing.T) {
	assert.Panics(t, func() {
		initMetrics(url, verySlow, timeout, map[string]string{
			"mylabel": "echo 'hello\nworld\n'",
		})
	})
}

func TestExportedFunctions(t *testing.T) {
	// For various reasons it's important that this is the only test that uses the global singleton.
	config := core.DefaultConfiguration()
	config.Metrics.PushGatewayURL = url
	config.Metrics.PushFrequency = cli.Duration(verySlow)
	InitFromConfig(config)
	Record(Failed, time.Millisecond)
	Stop()
	assert.Equal(t, 1, m.errors)
}
