package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"LIVE_FEEDBACK/backend/internal/attention"
	"LIVE_FEEDBACK/backend/internal/models"
)

// ParticipantWS handles /ws/participant/{roomID}/{participantID}?name=...
//
// The read loop below is the single owner of this participant's engine and
// alert policy, so frames are always processed in arrival order and the
// per-participant state needs no locking.
func (h *Handler) ParticipantWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	code := vars["roomID"]
	participantID := vars["participantID"]
	name := r.URL.Query().Get("name")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	h.metrics.IncrementWebSocketConnections()
	defer h.metrics.DecrementWebSocketConnections()

	client := newWSClient(participantID, conn)
	go client.writePump()

	if name == "" {
		client.Send(models.ErrorMessage{Type: models.MsgError, Message: "Display name is required"})
		client.Kick(websocket.ClosePolicyViolation, "Name required")
		drain(conn)
		return
	}

	if err := h.registry.JoinParticipant(code, participantID, name, client); err != nil {
		// Structured rejection before the close frame; the client is
		// never added to any room map.
		client.Send(models.ErrorMessage{
			Type:    models.MsgError,
			Message: fmt.Sprintf("Room %s not found. Please check the room code.", code),
		})
		client.Kick(models.CloseRoomNotFound, "Room not found")
		log.Printf("Participant %s rejected: room %s not found", participantID, code)
		drain(conn)
		return
	}

	// Cleanup must run exactly once no matter what ends the connection: a
	// client close, a transport error, or an eviction by the registry.
	// Leave is identity-checked, so a redundant call is a no-op.
	defer func() {
		h.registry.LeaveParticipant(code, participantID, client)
		client.Kick(websocket.CloseNormalClosure, "")
	}()

	// Engine and alert state are created lazily on the first feature frame
	// and die with this handler.
	var engine *attention.Engine
	var policy *attention.Policy

	conn.SetReadLimit(h.cfg.WSReadLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Participant %s read error: %v", participantID, err)
			}
			return
		}
		h.metrics.IncrementWebSocketMessages()

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Participant %s sent malformed message: %v", participantID, err)
			h.metrics.IncrementWebSocketErrors()
			continue
		}

		switch env.Type {
		case models.MsgAttentionUpdate:
			if engine == nil {
				engine = attention.NewEngine(h.cfg.EngineConfig())
				policy = attention.NewPolicy(h.cfg.AlertCooldown)
			}
			h.handleAttentionUpdate(code, participantID, name, engine, policy, env.Data)

		case models.MsgHeartbeat:
			client.Send(models.Outgoing{Type: models.MsgHeartbeatAck})

		case models.MsgChatMessage:
			h.registry.RelayChat(code, participantID, name, "participant", env.Data)

		case models.MsgCameraFrame:
			h.registry.RelayCameraFrame(code, participantID, env.Data)

		default:
			log.Printf("Participant %s sent unknown message type %q", participantID, env.Type)
		}
	}
}

func (h *Handler) handleAttentionUpdate(code, participantID, name string, engine *attention.Engine, policy *attention.Policy, data json.RawMessage) {
	var frame models.FeatureFrame
	if len(data) > 0 {
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Participant %s sent malformed feature frame: %v", participantID, err)
			h.metrics.IncrementWebSocketErrors()
			return
		}
	}

	res := engine.Update(frame)
	h.metrics.IncrementFrames()
	h.registry.UpdateStatus(code, participantID, res.Status, res.Confidence, res.Analysis)

	switch dec, alert := policy.Evaluate(participantID, name, res.Status); dec {
	case attention.DecisionAlert:
		h.registry.RelayAlert(code, *alert)
	case attention.DecisionClear:
		h.registry.RelayClear(code, participantID)
	}
}

// SupervisorWS handles /ws/supervisor?room_id=..., joining the named room
// if it is live and creating a fresh one otherwise.
func (h *Handler) SupervisorWS(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("room_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	h.metrics.IncrementWebSocketConnections()
	defer h.metrics.DecrementWebSocketConnections()

	client := newWSClient(uuid.NewString(), conn)
	go client.writePump()

	code, roster, err := h.registry.CreateOrJoin(client, requested)
	if err != nil {
		log.Printf("Supervisor admission failed: %v", err)
		client.Kick(websocket.CloseInternalServerErr, "Internal error")
		drain(conn)
		return
	}
	if roster == nil {
		roster = []models.ParticipantInfo{}
	}
	client.Send(models.Outgoing{
		Type: models.MsgRoomCreated,
		Data: map[string]interface{}{"room_id": code, "participants": roster},
	})

	defer func() {
		h.registry.LeaveSupervisor(code, client)
		client.Kick(websocket.CloseNormalClosure, "")
	}()

	conn.SetReadLimit(h.cfg.WSReadLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Supervisor %s read error: %v", client.ID(), err)
			}
			return
		}
		h.metrics.IncrementWebSocketMessages()

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Supervisor %s sent malformed message: %v", client.ID(), err)
			h.metrics.IncrementWebSocketErrors()
			continue
		}

		switch env.Type {
		case models.MsgHeartbeat:
			client.Send(models.Outgoing{Type: models.MsgHeartbeatAck})

		case models.MsgRequestUpdate:
			roster := h.registry.Roster(code)
			if roster == nil {
				roster = []models.ParticipantInfo{}
			}
			client.Send(models.Outgoing{
				Type: models.MsgStateUpdate,
				Data: map[string]interface{}{"participants": roster},
			})

		case models.MsgChatMessage:
			h.registry.RelayChat(code, client.ID(), "Supervisor", "supervisor", env.Data)

		default:
			log.Printf("Supervisor %s sent unknown message type %q", client.ID(), env.Type)
		}
	}
}

// drain reads until the peer acknowledges the close frame or the deadline
// hits, so a rejection message is not cut off mid-flight.
func drain(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(writeWait))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
