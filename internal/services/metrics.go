package services

import (
	"sync/atomic"
	"time"
)

// Metrics counts what the server has done since start. Everything is
// atomic; one instance is shared by the registry and every handler.
type Metrics struct {
	startTime time.Time

	totalFrames   atomic.Int64
	totalAlerts   atomic.Int64
	totalClears   atomic.Int64
	lastFrameTime atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64

	roomsCreated atomic.Int64
	roomsClosed  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementAlerts() {
	m.totalAlerts.Add(1)
}

func (m *Metrics) IncrementClears() {
	m.totalClears.Add(1)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

func (m *Metrics) IncrementRoomsCreated() {
	m.roomsCreated.Add(1)
}

func (m *Metrics) IncrementRoomsClosed() {
	m.roomsClosed.Add(1)
}

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetTotalAlerts() int64 {
	return m.totalAlerts.Load()
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// GetWebSocketMetrics returns the websocket counters for /stats.
func (m *Metrics) GetWebSocketMetrics() map[string]interface{} {
	return map[string]interface{}{
		"connections": m.wsConnections.Load(),
		"messages":    m.wsMessages.Load(),
		"errors":      m.wsErrors.Load(),
	}
}

// Snapshot returns every counter for /stats.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_frames":  m.totalFrames.Load(),
		"total_alerts":  m.totalAlerts.Load(),
		"total_clears":  m.totalClears.Load(),
		"rooms_created": m.roomsCreated.Load(),
		"rooms_closed":  m.roomsClosed.Load(),
		"websocket":     m.GetWebSocketMetrics(),
		"uptime_sec":    int64(m.GetUptime().Seconds()),
	}
}
