// Command test-client drives the backend end to end: it connects a
// supervisor, joins a scripted participant to the created room, streams
// frames that fake a drowsiness episode, and prints everything the
// supervisor sees.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BackendURL = "http://localhost:8000"
	WSBase     = "ws://localhost:8000"
)

type envelope struct {
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	Message string                 `json:"message"`
}

func testHealth() error {
	fmt.Println("\n[TEST] Testing /health...")
	resp, err := http.Get(BackendURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("health response not JSON: %v", err)
	}
	fmt.Printf("✓ Health check: %v\n", body)
	return nil
}

func connectSupervisor() (*websocket.Conn, string, error) {
	fmt.Println("\n[TEST] Connecting supervisor...")
	conn, _, err := websocket.DefaultDialer.Dial(WSBase+"/ws/supervisor", nil)
	if err != nil {
		return nil, "", fmt.Errorf("supervisor dial failed: %v", err)
	}

	var msg envelope
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, "", fmt.Errorf("reading room_created failed: %v", err)
	}
	if msg.Type != "room_created" {
		return nil, "", fmt.Errorf("expected room_created, got %s", msg.Type)
	}
	code, _ := msg.Data["room_id"].(string)
	fmt.Printf("✓ Supervisor connected, room code: %s\n", code)
	return conn, code, nil
}

func connectParticipant(code string) (*websocket.Conn, error) {
	fmt.Println("\n[TEST] Connecting participant...")
	url := fmt.Sprintf("%s/ws/participant/%s/s1?name=Test+Student", WSBase, code)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("participant dial failed: %v", err)
	}

	var msg envelope
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, fmt.Errorf("reading participant_list failed: %v", err)
	}
	fmt.Printf("✓ Participant connected, roster: %v\n", msg.Data)
	return conn, nil
}

func sendFrame(conn *websocket.Conn, ear, yaw float64) error {
	return conn.WriteJSON(map[string]interface{}{
		"type": "attention_update",
		"data": map[string]interface{}{
			"gaze_direction":   map[string]float64{"x": 0, "y": 0},
			"head_pose":        map[string]float64{"pitch": 0, "yaw": yaw},
			"eye_aspect_ratio": ear,
		},
	})
}

// streamDrowsyEpisode plays an attentive spell, 2.5s of closed eyes, then
// a recovery, at 10 fps.
func streamDrowsyEpisode(part *websocket.Conn) error {
	fmt.Println("\n[TEST] Streaming frames (attentive -> drowsy -> recovered)...")

	for i := 0; i < 10; i++ {
		if err := sendFrame(part, 0.32, 0); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	for i := 0; i < 25; i++ {
		if err := sendFrame(part, 0.10, 0); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := sendFrame(part, 0.32, 0); err != nil {
		return err
	}
	fmt.Println("✓ Frames sent")
	return nil
}

// watchSupervisor prints everything the supervisor receives until the
// timeout passes, and reports whether an alert and a clear both arrived.
func watchSupervisor(sup *websocket.Conn, window time.Duration) (bool, bool) {
	sawAlert := false
	sawClear := false
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		sup.SetReadDeadline(deadline)
		var msg envelope
		if err := sup.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "alert":
			sawAlert = true
			fmt.Printf("  🔔 alert: %v (%v)\n", msg.Data["message"], msg.Data["severity"])
		case "clear_alert":
			sawClear = true
			fmt.Printf("  ✅ clear: %v\n", msg.Data["participant_id"])
		case "attention_update":
			fmt.Printf("  status: %v (%.2f)\n", msg.Data["status"], msg.Data["confidence"])
		default:
			fmt.Printf("  %s: %v\n", msg.Type, msg.Data)
		}
	}
	return sawAlert, sawClear
}

func main() {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("LIVE FEEDBACK - Backend Testing Client")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Println("\n[INFO] Make sure the backend is running on", BackendURL)
	fmt.Println("\nPress Enter to start tests...")
	fmt.Scanln()

	if err := testHealth(); err != nil {
		log.Printf("❌ Health check failed: %v", err)
		os.Exit(1)
	}

	sup, code, err := connectSupervisor()
	if err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
	defer sup.Close()

	part, err := connectParticipant(code)
	if err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
	defer part.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := streamDrowsyEpisode(part); err != nil {
			log.Printf("❌ Frame streaming failed: %v", err)
		}
	}()

	sawAlert, sawClear := watchSupervisor(sup, 6*time.Second)
	<-done

	fmt.Println("\n" + strings.Repeat("=", 60))
	if sawAlert && sawClear {
		fmt.Println("✅ All tests completed successfully!")
	} else {
		fmt.Printf("❌ Missing events: alert=%v clear=%v\n", sawAlert, sawClear)
		os.Exit(1)
	}
	fmt.Println(strings.Repeat("=", 60))
}
