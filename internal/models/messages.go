package models

import "encoding/json"

// Message types exchanged over the websocket. Both roles use the same
// {"type": ..., "data": ...} envelope.
const (
	// Inbound from participants.
	MsgAttentionUpdate = "attention_update"
	MsgHeartbeat       = "heartbeat"
	MsgChatMessage     = "chat_message"
	MsgCameraFrame     = "camera_frame"

	// Inbound from supervisors.
	MsgRequestUpdate = "request_update"

	// Outbound.
	MsgHeartbeatAck     = "heartbeat_ack"
	MsgRoomCreated      = "room_created"
	MsgParticipantList  = "participant_list"
	MsgParticipantJoin  = "participant_join"
	MsgParticipantLeave = "participant_leave"
	MsgRoomClosed       = "room_closed"
	MsgAlert            = "alert"
	MsgClearAlert       = "clear_alert"
	MsgStateUpdate      = "state_update"
	MsgError            = "error"
)

// Close codes for the two terminal conditions a client can be told about.
const (
	CloseRoomNotFound = 4004
	CloseRoomClosed   = 4003
)

// Envelope is the wire shape of every websocket message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outgoing is an envelope with an arbitrary marshalable payload.
type Outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ErrorMessage is sent to a client immediately before an abnormal close.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
