package attention

import (
	"fmt"
	"time"

	"LIVE_FEEDBACK/backend/internal/models"
)

// Decision is what the policy wants done with one classification.
type Decision int

const (
	// DecisionNone suppresses a duplicate of the active alert.
	DecisionNone Decision = iota
	// DecisionAlert emits a new or refreshed alert.
	DecisionAlert
	// DecisionClear clears the active alert.
	DecisionClear
)

// Policy decides when a classification becomes a supervisor-facing alert.
// Alerts are edge-triggered: one alert stays active until the participant
// recovers, with a cooldown-paced refresh while the issue persists. Like the
// engine, a Policy belongs to exactly one participant handler and is not
// safe for concurrent use.
type Policy struct {
	cooldown time.Duration
	now      func() time.Time

	active    bool
	lastAlert time.Time
}

// NewPolicy returns an idle policy with the given refresh cooldown.
func NewPolicy(cooldown time.Duration) *Policy {
	return &Policy{cooldown: cooldown, now: time.Now}
}

// SetClock overrides the policy's time source for tests.
func (p *Policy) SetClock(now func() time.Time) {
	p.now = now
}

// Evaluate consumes one classification and returns what, if anything, to
// send to supervisors.
func (p *Policy) Evaluate(participantID, name string, status models.AttentionStatus) (Decision, *models.Alert) {
	now := p.now()

	if status == models.StatusAttentive {
		if !p.active {
			return DecisionNone, nil
		}
		p.active = false
		return DecisionClear, nil
	}

	if p.active && now.Sub(p.lastAlert) < p.cooldown {
		return DecisionNone, nil
	}

	p.active = true
	p.lastAlert = now
	return DecisionAlert, buildAlert(participantID, name, status, now)
}

func buildAlert(participantID, name string, status models.AttentionStatus, now time.Time) *models.Alert {
	alert := &models.Alert{
		Type:            status,
		ParticipantID:   participantID,
		ParticipantName: name,
		Timestamp:       now,
	}

	switch status {
	case models.StatusLookingAway:
		alert.Message = fmt.Sprintf("%s is looking away from the screen", name)
		alert.Severity = models.SeverityMedium
	case models.StatusDrowsy:
		alert.Message = fmt.Sprintf("%s appears drowsy or sleepy", name)
		alert.Severity = models.SeverityHigh
	case models.StatusNoFace:
		alert.Message = fmt.Sprintf("%s's face is not visible", name)
		alert.Severity = models.SeverityHigh
	default:
		// Unknown upstream status: degrade to a generic nudge instead of
		// dropping it.
		alert.Message = fmt.Sprintf("%s needs attention", name)
		alert.Severity = models.SeverityLow
	}
	return alert
}
