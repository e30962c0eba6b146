package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/wfunc/beatroom/models"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("beatroom", prometheus.NewRegistry())

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncMessagesReceived("joinRoom")
	m.IncMessagesReceived("joinRoom")
	m.IncErrors("room_not_found")
	m.CountdownStarted("AAAA")
	m.RoundStarted(models.RoundRecord{RoomCode: "AAAA", Mode: "classic"})
	m.ObserveMessageLatency(time.Millisecond)

	metrics := m.Metrics()
	if got := testutil.ToFloat64(metrics.OnlinePlayers); got != 1 {
		t.Errorf("Expected 1 online player, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ActiveRooms); got != 3 {
		t.Errorf("Expected 3 rooms, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.MessagesReceived.WithLabelValues("joinRoom")); got != 2 {
		t.Errorf("Expected 2 joinRoom messages, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.Errors.WithLabelValues("room_not_found")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.CountdownsStarted); got != 1 {
		t.Errorf("Expected 1 countdown, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RoundsStarted.WithLabelValues("classic")); got != 1 {
		t.Errorf("Expected 1 classic round, got %v", got)
	}
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("beatroom", prometheus.NewRegistry())
	m.SetActiveRooms(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "beatroom_active_rooms 2") {
		t.Errorf("Expected active rooms in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "beatroom_uptime_seconds") {
		t.Error("Expected uptime gauge in exposition")
	}
}
