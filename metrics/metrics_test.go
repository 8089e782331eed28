// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/warthog618/gpioplex/events"
)

func TestRecords(t *testing.T) {
	m := New()
	m.Records(StreamJoystick, 3)
	m.Records(StreamJoystick, 0)
	m.Records(StreamGPIO, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues(StreamJoystick)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.records.WithLabelValues(StreamGPIO)))
}

func TestPass(t *testing.T) {
	m := New()
	m.Pass(4)
	m.Pass(0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.passes))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.pulses))
}

func TestEdge(t *testing.T) {
	m := New()
	m.Edge(true)
	m.Edge(true)
	m.Edge(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.edges.WithLabelValues("rising")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.edges.WithLabelValues("falling")))
}

func TestNil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Records(StreamGPIO, 1)
		m.Pass(1)
		m.Edge(true)
	})
}

func TestAttach(t *testing.T) {
	m := New()
	bus := events.New()
	defer bus.Close()
	m.Attach(bus)
	defer m.Detach()

	events.Publish(bus, events.DeviceConnected{Key: "a"})
	events.Publish(bus, events.DeviceConnected{Key: "b"})
	events.Publish(bus, events.DeviceDisconnected{Key: "a"})
	events.Publish(bus, events.Resynced{Dir: "/dev/input"})

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.connects) == 2 &&
			testutil.ToFloat64(m.disconnects) == 1 &&
			testutil.ToFloat64(m.resyncs) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Pass(1)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "gpioplex_scheduler_passes_total 1"))
}
