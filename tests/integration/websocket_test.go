package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIVE_FEEDBACK/backend/internal/config"
	"LIVE_FEEDBACK/backend/internal/handlers"
	"LIVE_FEEDBACK/backend/internal/rooms"
	"LIVE_FEEDBACK/backend/internal/services"
)

// message is the decoded wire envelope; error rejections carry message at
// the top level instead of a data object.
type message struct {
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPPort:              "0",
		CORSOrigins:           "*",
		Environment:           "dev",
		WSReadLimit:           1 << 20,
		LookingAwayThreshold:  0.3,
		HeadRotationThreshold: 30,
		DrowsyEARThreshold:    0.2,
		// Zero window: the first closed-eyes frame classifies drowsy, so
		// the test does not sleep through a real timer.
		DrowsyDuration: 0,
		NoFaceFrames:   3,
		AlertCooldown:  10 * time.Second,
		PoseJitter:     2.0,
		EARJitter:      0.04,
	}
}

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	metrics := services.NewMetrics()
	registry := rooms.NewRegistry(metrics)
	handler := handlers.New(testConfig(), registry, metrics)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, path), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func expectMessage(t *testing.T, conn *websocket.Conn, msgType string) message {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, msgType, msg.Type)
	return msg
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	assert.Equal(t, code, ce.Code)
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": msgType, "data": data}))
}

func TestSupervisorParticipantRoundTrip(t *testing.T) {
	srv := startServer(t)

	sup := dial(t, srv, "/ws/supervisor")
	created := expectMessage(t, sup, "room_created")
	code, _ := created.Data["room_id"].(string)
	require.Len(t, code, 6)

	resp, err := http.Get(srv.URL + "/room/" + code + "/exists")
	require.NoError(t, err)
	var exists struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exists))
	resp.Body.Close()
	require.True(t, exists.Exists)

	part := dial(t, srv, fmt.Sprintf("/ws/participant/%s/s1?name=%s", code, "Student+One"))
	expectMessage(t, part, "participant_list")

	join := expectMessage(t, sup, "participant_join")
	assert.Equal(t, "s1", join.Data["participant_id"])

	// Closed eyes: the supervisor sees the status change, then exactly one
	// alert.
	send(t, part, "attention_update", map[string]interface{}{
		"gaze_direction":   map[string]float64{"x": 0, "y": 0},
		"head_pose":        map[string]float64{"pitch": 0, "yaw": 0},
		"eye_aspect_ratio": 0.10,
	})
	update := expectMessage(t, sup, "attention_update")
	assert.Equal(t, "drowsy", update.Data["status"])
	assert.InDelta(t, 0.5, update.Data["confidence"].(float64), 1e-9)

	alert := expectMessage(t, sup, "alert")
	assert.Equal(t, "drowsy", alert.Data["alert_type"])
	assert.Equal(t, "high", alert.Data["severity"])
	assert.Equal(t, "s1", alert.Data["participant_id"])

	// Recovery: one attentive update, one clear.
	send(t, part, "attention_update", map[string]interface{}{
		"gaze_direction":   map[string]float64{"x": 0, "y": 0},
		"head_pose":        map[string]float64{"pitch": 0, "yaw": 0},
		"eye_aspect_ratio": 0.9,
	})
	update = expectMessage(t, sup, "attention_update")
	assert.Equal(t, "attentive", update.Data["status"])
	clear := expectMessage(t, sup, "clear_alert")
	assert.Equal(t, "s1", clear.Data["participant_id"])

	send(t, part, "heartbeat", nil)
	expectMessage(t, part, "heartbeat_ack")

	send(t, part, "chat_message", map[string]string{"text": "hello"})
	chat := expectMessage(t, sup, "chat_message")
	assert.Equal(t, "s1", chat.Data["from_id"])

	send(t, sup, "request_update", nil)
	state := expectMessage(t, sup, "state_update")
	roster := state.Data["participants"].([]interface{})
	require.Len(t, roster, 1)
	entry := roster[0].(map[string]interface{})
	assert.Equal(t, "attentive", entry["status"])
	assert.Equal(t, float64(1), entry["alerts_count"])

	// Participant drops; the supervisor hears about it.
	part.Close()
	leave := expectMessage(t, sup, "participant_leave")
	assert.Equal(t, "s1", leave.Data["participant_id"])
}

func TestSecondSupervisorJoinsExistingRoom(t *testing.T) {
	srv := startServer(t)

	sup1 := dial(t, srv, "/ws/supervisor")
	code := expectMessage(t, sup1, "room_created").Data["room_id"].(string)

	part := dial(t, srv, "/ws/participant/"+code+"/s1?name=Jane")
	expectMessage(t, part, "participant_list")
	expectMessage(t, sup1, "participant_join")

	sup2 := dial(t, srv, "/ws/supervisor?room_id="+code)
	created := expectMessage(t, sup2, "room_created")
	assert.Equal(t, code, created.Data["room_id"])
	roster := created.Data["participants"].([]interface{})
	require.Len(t, roster, 1)
}

func TestJoinUnknownRoomRejected(t *testing.T) {
	srv := startServer(t)

	resp, err := http.Get(srv.URL + "/room/ZZZZZZ/exists")
	require.NoError(t, err)
	var exists struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exists))
	resp.Body.Close()
	require.False(t, exists.Exists)

	conn := dial(t, srv, "/ws/participant/ZZZZZZ/p1?name=Jane")
	rejection := readMessage(t, conn)
	assert.Equal(t, "error", rejection.Type)
	assert.Contains(t, rejection.Message, "ZZZZZZ")
	expectClose(t, conn, 4004)
}

func TestMissingNameRejected(t *testing.T) {
	srv := startServer(t)

	sup := dial(t, srv, "/ws/supervisor")
	code := expectMessage(t, sup, "room_created").Data["room_id"].(string)

	conn := dial(t, srv, "/ws/participant/"+code+"/p1")
	rejection := readMessage(t, conn)
	assert.Equal(t, "error", rejection.Type)
	expectClose(t, conn, websocket.ClosePolicyViolation)
}

func TestSupervisorLeavingClosesRoom(t *testing.T) {
	srv := startServer(t)

	sup := dial(t, srv, "/ws/supervisor")
	code := expectMessage(t, sup, "room_created").Data["room_id"].(string)

	part := dial(t, srv, "/ws/participant/"+code+"/s1?name=Jane")
	expectMessage(t, part, "participant_list")
	expectMessage(t, sup, "participant_join")

	sup.Close()

	closed := expectMessage(t, part, "room_closed")
	assert.NotEmpty(t, closed.Data["message"])
	expectClose(t, part, 4003)

	// The code is gone; a fresh join against it is rejected.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/room/" + code + "/exists")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var exists struct {
			Exists bool `json:"exists"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&exists); err != nil {
			return false
		}
		return !exists.Exists
	}, 2*time.Second, 50*time.Millisecond)
}

func TestHealthAndStats(t *testing.T) {
	srv := startServer(t)

	sup := dial(t, srv, "/ws/supervisor")
	expectMessage(t, sup, "room_created")

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(1), health["total_rooms"])

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, float64(1), stats["total_supervisors"])
	assert.Equal(t, float64(0), stats["total_participants"])
}
