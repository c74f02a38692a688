// Package rooms holds the authoritative in-memory table of monitoring
// sessions: which supervisors and participants are in which room, each
// participant's latest attention snapshot, and the broadcast fan-out
// between them.
package rooms

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"LIVE_FEEDBACK/backend/internal/models"
	"LIVE_FEEDBACK/backend/internal/services"
)

// ErrRoomNotFound rejects a join against a code with no live supervisor.
var ErrRoomNotFound = errors.New("room not found")

type participantSession struct {
	conn Conn
	info models.ParticipantInfo
}

// A room exists exactly as long as it has at least one live supervisor
// connection.
type room struct {
	code         string
	supervisors  map[string]Conn
	participants map[string]*participantSession
}

// Registry owns every room. All map mutation happens under one mutex; the
// check-then-act sequences (room exists -> add participant, last supervisor
// leaves -> teardown) are single critical sections. Sends never block, so
// broadcasting while holding the lock is safe.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room
	metrics *services.Metrics
}

func NewRegistry(metrics *services.Metrics) *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		metrics: metrics,
	}
}

// CreateOrJoin admits a supervisor. If requested names a live room the
// supervisor joins it as an additional observer; anything else gets a
// freshly generated code. The current roster is returned so the handler can
// send room_created.
func (r *Registry) CreateOrJoin(conn Conn, requested string) (string, []models.ParticipantInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[requested]; ok {
		rm.supervisors[conn.ID()] = conn
		log.Printf("Supervisor %s joined room %s (%d supervisors)", conn.ID(), requested, len(rm.supervisors))
		return requested, rosterLocked(rm), nil
	}

	code, err := r.uniqueCodeLocked()
	if err != nil {
		return "", nil, err
	}
	rm := &room{
		code:         code,
		supervisors:  map[string]Conn{conn.ID(): conn},
		participants: make(map[string]*participantSession),
	}
	r.rooms[code] = rm
	r.metrics.IncrementRoomsCreated()
	log.Printf("Room %s created by supervisor %s", code, conn.ID())
	return code, nil, nil
}

// uniqueCodeLocked draws codes until one misses every active room.
func (r *Registry) uniqueCodeLocked() (string, error) {
	for {
		code, err := newRoomCode()
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
}

// JoinParticipant admits a participant to an existing room. The existence
// check and the insertion are one critical section so a join can never race
// a concurrent teardown. The joiner receives participant_list; everyone
// else learns about the join.
func (r *Registry) JoinParticipant(code, id, name string, conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	// A reconnect under the same id replaces the stale session. The old
	// connection's late cleanup is a no-op because removal checks
	// connection identity.
	if old, ok := rm.participants[id]; ok {
		log.Printf("Participant %s rejoined room %s, replacing stale connection", id, code)
		old.conn.Kick(models.CloseRoomClosed, "Replaced by a new connection")
	}

	rm.participants[id] = &participantSession{
		conn: conn,
		info: models.ParticipantInfo{
			ID:         id,
			Name:       name,
			Status:     models.StatusAttentive,
			LastUpdate: time.Now(),
		},
	}
	log.Printf("Participant %s (%s) joined room %s", name, id, code)

	if err := conn.Send(models.Outgoing{
		Type: models.MsgParticipantList,
		Data: map[string]interface{}{"participants": rosterLocked(rm)},
	}); err != nil {
		// The joiner died before seeing the roster; its read loop will
		// run the disconnect path.
		log.Printf("Failed to send roster to participant %s: %v", id, err)
	}

	joined := map[string]interface{}{
		"participant_id":   id,
		"participant_name": name,
		"timestamp":        time.Now(),
	}
	r.broadcastParticipantsLocked(rm, models.Outgoing{Type: models.MsgParticipantJoin, Data: joined}, id)
	r.broadcastSupervisorsLocked(rm, models.Outgoing{Type: models.MsgParticipantJoin, Data: joined})
	return nil
}

// LeaveParticipant removes a participant's session. It is the single
// cleanup path for explicit disconnects and broadcast-failure evictions;
// whichever runs second finds the session gone (or owned by a newer
// connection) and does nothing.
func (r *Registry) LeaveParticipant(code, id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	sess, ok := rm.participants[id]
	if !ok || sess.conn != conn {
		return
	}
	r.removeParticipantLocked(rm, id, sess)
}

func (r *Registry) removeParticipantLocked(rm *room, id string, sess *participantSession) {
	delete(rm.participants, id)
	log.Printf("Participant %s (%s) left room %s", sess.info.Name, id, rm.code)

	left := map[string]interface{}{
		"participant_id":   id,
		"participant_name": sess.info.Name,
		"timestamp":        time.Now(),
	}
	r.broadcastParticipantsLocked(rm, models.Outgoing{Type: models.MsgParticipantLeave, Data: left}, id)
	r.broadcastSupervisorsLocked(rm, models.Outgoing{Type: models.MsgParticipantLeave, Data: left})
}

// LeaveSupervisor removes a supervisor connection. When the last one goes,
// the room is torn down: every participant gets room_closed, is
// force-closed, and all room state is purged in the same critical section.
func (r *Registry) LeaveSupervisor(code string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	if _, ok := rm.supervisors[conn.ID()]; !ok {
		return
	}
	r.removeSupervisorLocked(rm, conn.ID())
}

func (r *Registry) removeSupervisorLocked(rm *room, connID string) {
	delete(rm.supervisors, connID)
	log.Printf("Supervisor %s left room %s (%d remaining)", connID, rm.code, len(rm.supervisors))
	if len(rm.supervisors) == 0 {
		r.closeRoomLocked(rm)
	}
}

// closeRoomLocked is teardown: irreversible, and the code goes back into
// the free pool only through fresh generation.
func (r *Registry) closeRoomLocked(rm *room) {
	log.Printf("Closing room %s: last supervisor left", rm.code)
	for id, sess := range rm.participants {
		if err := sess.conn.Send(models.Outgoing{
			Type: models.MsgRoomClosed,
			Data: map[string]interface{}{"message": "Supervisor has ended the session"},
		}); err != nil {
			log.Printf("Failed to notify participant %s of room close: %v", id, err)
		}
		sess.conn.Kick(models.CloseRoomClosed, "Room closed")
	}
	delete(r.rooms, rm.code)
	r.metrics.IncrementRoomsClosed()
}

// UpdateStatus stores a participant's latest classification and tells the
// supervisors. An update for an id the registry no longer knows (a frame
// racing a disconnect) is dropped.
func (r *Registry) UpdateStatus(code, id string, status models.AttentionStatus, confidence float64, analysis interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	sess, ok := rm.participants[id]
	if !ok {
		log.Printf("Dropping status update for unknown participant %s in room %s", id, code)
		return
	}
	sess.info.Status = status
	sess.info.Confidence = confidence
	sess.info.LastUpdate = time.Now()

	data := map[string]interface{}{
		"participant_id":   id,
		"participant_name": sess.info.Name,
		"status":           status,
		"confidence":       confidence,
		"timestamp":        sess.info.LastUpdate,
	}
	if analysis != nil {
		data["analysis"] = analysis
	}
	r.broadcastSupervisorsLocked(rm, models.Outgoing{
		Type: models.MsgAttentionUpdate,
		Data: data,
	})
}

// RelayAlert fans an alert out to the room's supervisors and bumps the
// participant's alert counter.
func (r *Registry) RelayAlert(code string, alert models.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	if sess, ok := rm.participants[alert.ParticipantID]; ok {
		sess.info.AlertsCount++
	}
	r.metrics.IncrementAlerts()
	r.broadcastSupervisorsLocked(rm, models.Outgoing{Type: models.MsgAlert, Data: alert})
}

// RelayClear tells supervisors a participant recovered.
func (r *Registry) RelayClear(code, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	name := id
	if sess, ok := rm.participants[id]; ok {
		name = sess.info.Name
	}
	r.metrics.IncrementClears()
	r.broadcastSupervisorsLocked(rm, models.Outgoing{
		Type: models.MsgClearAlert,
		Data: map[string]interface{}{
			"participant_id":   id,
			"participant_name": name,
			"timestamp":        time.Now(),
		},
	})
}

// RelayChat forwards an opaque chat payload to everyone in the room except
// the sender.
func (r *Registry) RelayChat(code, fromID, fromName, role string, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	msg := models.Outgoing{
		Type: models.MsgChatMessage,
		Data: map[string]interface{}{
			"from_id":   fromID,
			"from_name": fromName,
			"role":      role,
			"message":   payload,
			"timestamp": time.Now(),
		},
	}
	r.broadcastParticipantsLocked(rm, msg, fromID)
	if role == "participant" {
		r.broadcastSupervisorsLocked(rm, msg)
	} else {
		for connID, conn := range rm.supervisors {
			if connID == fromID {
				continue
			}
			r.deliverSupervisorLocked(rm, connID, conn, msg)
		}
	}
}

// RelayCameraFrame passes a participant's camera frame through to the
// supervisors untouched.
func (r *Registry) RelayCameraFrame(code, id string, payload json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[code]
	if !ok {
		return
	}
	r.broadcastSupervisorsLocked(rm, models.Outgoing{
		Type: models.MsgCameraFrame,
		Data: map[string]interface{}{
			"participant_id": id,
			"frame":          payload,
			"timestamp":      time.Now(),
		},
	})
}

// Exists reports whether code names a room with at least one live
// supervisor.
func (r *Registry) Exists(code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[code]
	return ok
}

// Roster returns the room's current participant snapshots.
func (r *Registry) Roster(code string) []models.ParticipantInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[code]
	if !ok {
		return nil
	}
	return rosterLocked(rm)
}

// Stats returns room/participant/supervisor totals for /stats and /health.
func (r *Registry) Stats() (roomCount, participantCount, supervisorCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomCount = len(r.rooms)
	for _, rm := range r.rooms {
		participantCount += len(rm.participants)
		supervisorCount += len(rm.supervisors)
	}
	return
}

// CloseAll tears down every room. Used on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.rooms {
		for _, conn := range rm.supervisors {
			conn.Kick(models.CloseRoomClosed, "Server shutting down")
		}
		r.closeRoomLocked(rm)
	}
}

// broadcastSupervisorsLocked delivers msg to every supervisor connection.
// A failed connection is evicted through the same removal path an explicit
// disconnect uses, and never blocks delivery to the rest.
func (r *Registry) broadcastSupervisorsLocked(rm *room, msg models.Outgoing) {
	for connID, conn := range rm.supervisors {
		r.deliverSupervisorLocked(rm, connID, conn, msg)
	}
}

func (r *Registry) deliverSupervisorLocked(rm *room, connID string, conn Conn, msg models.Outgoing) {
	if err := conn.Send(msg); err != nil {
		log.Printf("Evicting supervisor %s from room %s: %v", connID, rm.code, err)
		r.metrics.IncrementWebSocketErrors()
		conn.Kick(models.CloseRoomClosed, "Connection failed")
		r.removeSupervisorLocked(rm, connID)
	}
}

func (r *Registry) broadcastParticipantsLocked(rm *room, msg models.Outgoing, excludeID string) {
	var failed []string
	for id, sess := range rm.participants {
		if id == excludeID {
			continue
		}
		if err := sess.conn.Send(msg); err != nil {
			log.Printf("Evicting participant %s from room %s: %v", id, rm.code, err)
			r.metrics.IncrementWebSocketErrors()
			sess.conn.Kick(models.CloseRoomClosed, "Connection failed")
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		if sess, ok := rm.participants[id]; ok {
			r.removeParticipantLocked(rm, id, sess)
		}
	}
}

func rosterLocked(rm *room) []models.ParticipantInfo {
	roster := make([]models.ParticipantInfo, 0, len(rm.participants))
	for _, sess := range rm.participants {
		roster = append(roster, sess.info)
	}
	return roster
}
