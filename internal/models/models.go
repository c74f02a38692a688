package models

import "time"

// AttentionStatus is the debounced classification of one participant.
type AttentionStatus string

const (
	StatusAttentive   AttentionStatus = "attentive"
	StatusLookingAway AttentionStatus = "looking_away"
	StatusDrowsy      AttentionStatus = "drowsy"
	StatusNoFace      AttentionStatus = "no_face"
)

// Known reports whether s is one of the statuses the engine can produce.
// Anything else came from upstream and is handled generically.
func (s AttentionStatus) Known() bool {
	switch s {
	case StatusAttentive, StatusLookingAway, StatusDrowsy, StatusNoFace:
		return true
	}
	return false
}

// Severity of a supervisor-facing alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// GazeVector is the normalized offset of the estimated gaze from
// camera-forward.
type GazeVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HeadPose is the estimated head rotation in degrees.
type HeadPose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FeatureFrame is one batch of sensor-derived features for a participant.
// Feature extraction happens upstream; every field is optional and a missing
// field defaults to a neutral value (EAR=1.0, pose/gaze=0) so absence alone
// never produces a non-attentive classification. A frame with gaze, head
// pose, EAR and precomputed status all absent counts as a no-face frame.
type FeatureFrame struct {
	Gaze              *GazeVector `json:"gaze_direction,omitempty"`
	HeadPose          *HeadPose   `json:"head_pose,omitempty"`
	EyeAspectRatio    *float64    `json:"eye_aspect_ratio,omitempty"`
	PrecomputedStatus string      `json:"precomputed_status,omitempty"`
}

// NoFace reports whether the frame carries no usable feature data at all.
func (f FeatureFrame) NoFace() bool {
	return f.Gaze == nil && f.HeadPose == nil && f.EyeAspectRatio == nil &&
		f.PrecomputedStatus == ""
}

// Alert is a supervisor-facing notification about one participant.
type Alert struct {
	Type            AttentionStatus `json:"alert_type"`
	Message         string          `json:"message"`
	Severity        Severity        `json:"severity"`
	ParticipantID   string          `json:"participant_id"`
	ParticipantName string          `json:"participant_name"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ParticipantInfo is the registry's status snapshot for one participant,
// as shown in supervisor rosters.
type ParticipantInfo struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      AttentionStatus `json:"status"`
	Confidence  float64         `json:"confidence"`
	LastUpdate  time.Time       `json:"last_update"`
	AlertsCount int             `json:"alerts_count"`
}
