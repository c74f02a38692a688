package attention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIVE_FEEDBACK/backend/internal/models"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEngine(clock *fakeClock) *Engine {
	e := NewEngine(DefaultConfig())
	e.SetClock(clock.now)
	return e
}

func frameWith(gazeX, gazeY, pitch, yaw, ear float64) models.FeatureFrame {
	e := ear
	return models.FeatureFrame{
		Gaze:           &models.GazeVector{X: gazeX, Y: gazeY},
		HeadPose:       &models.HeadPose{Pitch: pitch, Yaw: yaw},
		EyeAspectRatio: &e,
	}
}

func neutralFrame() models.FeatureFrame {
	return frameWith(0, 0, 0, 0, 0.3)
}

func TestNeutralFrameIsAttentive(t *testing.T) {
	e := newTestEngine(newFakeClock())

	res := e.Update(neutralFrame())
	assert.Equal(t, models.StatusAttentive, res.Status)
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
}

func TestMissingFieldsDefaultToNeutral(t *testing.T) {
	e := newTestEngine(newFakeClock())

	// Only gaze present: EAR defaults to 1.0 and pose to 0, so a sparse
	// frame can never look drowsy or turned away on its own.
	res := e.Update(models.FeatureFrame{Gaze: &models.GazeVector{X: 0.1, Y: 0.0}})
	assert.Equal(t, models.StatusAttentive, res.Status)
}

func TestLookingAwayIsImmediate(t *testing.T) {
	tests := []struct {
		name  string
		frame models.FeatureFrame
	}{
		{"gaze x", frameWith(0.5, 0, 0, 0, 0.3)},
		{"gaze y", frameWith(0, -0.4, 0, 0, 0.3)},
		{"yaw", frameWith(0, 0, 0, 45, 0.3)},
		{"pitch", frameWith(0, 0, -35, 0, 0.3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(newFakeClock())
			res := e.Update(tt.frame)
			assert.Equal(t, models.StatusLookingAway, res.Status)
			assert.Greater(t, res.Confidence, 0.0)
		})
	}
}

func TestLookingAwayConfidenceScalesWithExceedance(t *testing.T) {
	e := newTestEngine(newFakeClock())

	res := e.Update(frameWith(0, 0, 0, 33, 0.3))
	assert.InDelta(t, 0.1, res.Confidence, 1e-9)

	res = e.Update(frameWith(0, 0, 0, 90, 0.3))
	assert.Equal(t, 1.0, res.Confidence, "confidence must clamp at 1")
}

// Scenario: EAR 0.10 at 10 fps for 2.5s with neutral gaze/pose and a 2s
// drowsiness window. Every frame before the 2s instant stays attentive; the
// frame crossing 2s flips to drowsy; one recovered frame flips back.
func TestDrowsyTransitionAtThresholdInstant(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	for i := 0; i <= 25; i++ {
		res := e.Update(frameWith(0, 0, 0, 0, 0.10))
		elapsed := time.Duration(i) * 100 * time.Millisecond
		if elapsed < 2*time.Second {
			require.Equal(t, models.StatusAttentive, res.Status, "frame %d (elapsed %s)", i, elapsed)
		} else {
			require.Equal(t, models.StatusDrowsy, res.Status, "frame %d (elapsed %s)", i, elapsed)
			require.Greater(t, res.Confidence, 0.0)
		}
		clock.advance(100 * time.Millisecond)
	}

	res := e.Update(frameWith(0, 0, 0, 0, 0.9))
	assert.Equal(t, models.StatusAttentive, res.Status)
}

func TestDrowsyTimerResetsOnRecovery(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// 1.9s of closed eyes, one recovered frame, then 1.9s more: drowsy
	// must never fire because closure was not continuous.
	for i := 0; i < 19; i++ {
		res := e.Update(frameWith(0, 0, 0, 0, 0.10))
		require.Equal(t, models.StatusAttentive, res.Status)
		clock.advance(100 * time.Millisecond)
	}
	res := e.Update(frameWith(0, 0, 0, 0, 0.35))
	require.Equal(t, models.StatusAttentive, res.Status)
	clock.advance(100 * time.Millisecond)

	for i := 0; i < 19; i++ {
		res = e.Update(frameWith(0, 0, 0, 0, 0.10))
		require.Equal(t, models.StatusAttentive, res.Status)
		clock.advance(100 * time.Millisecond)
	}
}

func TestLookingAwayWinsOverDrowsy(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// Eyes closed long enough for drowsy, but yaw is also out of bounds:
	// looking_away wins every frame.
	for i := 0; i < 30; i++ {
		res := e.Update(frameWith(0, 0, 0, 45, 0.10))
		require.Equal(t, models.StatusLookingAway, res.Status, "frame %d", i)
		clock.advance(100 * time.Millisecond)
	}
}

func TestLookingAwayResetsClosureTimer(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	// Eyes closed for 1.9s, then one looking-away frame preempts, then
	// closed again: the full 2s must elapse before drowsy.
	for i := 0; i < 19; i++ {
		e.Update(frameWith(0, 0, 0, 0, 0.10))
		clock.advance(100 * time.Millisecond)
	}
	res := e.Update(frameWith(0.5, 0, 0, 0, 0.10))
	require.Equal(t, models.StatusLookingAway, res.Status)
	clock.advance(100 * time.Millisecond)

	for i := 0; i < 20; i++ {
		res = e.Update(frameWith(0, 0, 0, 0, 0.10))
		require.Equal(t, models.StatusAttentive, res.Status, "frame %d after preemption", i)
		clock.advance(100 * time.Millisecond)
	}
	res = e.Update(frameWith(0, 0, 0, 0, 0.10))
	assert.Equal(t, models.StatusDrowsy, res.Status)
}

func TestNoFaceRequiresConsecutiveFrames(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	empty := models.FeatureFrame{}

	// One or two missing frames are sensor noise, not absence.
	res := e.Update(empty)
	require.Equal(t, models.StatusAttentive, res.Status)
	res = e.Update(empty)
	require.Equal(t, models.StatusAttentive, res.Status)
	res = e.Update(empty)
	assert.Equal(t, models.StatusNoFace, res.Status)
}

func TestNoFaceStreakBrokenByUsableFrame(t *testing.T) {
	e := newTestEngine(newFakeClock())

	empty := models.FeatureFrame{}
	e.Update(empty)
	e.Update(empty)
	res := e.Update(neutralFrame())
	require.Equal(t, models.StatusAttentive, res.Status)

	// The streak restarted, so two more empty frames still do not flip.
	e.Update(empty)
	res = e.Update(empty)
	assert.Equal(t, models.StatusAttentive, res.Status)
}

func TestNoFaceWinsOverEverything(t *testing.T) {
	e := newTestEngine(newFakeClock())

	empty := models.FeatureFrame{}
	e.Update(empty)
	e.Update(empty)
	e.Update(empty)
	res := e.Update(empty)
	assert.Equal(t, models.StatusNoFace, res.Status)
	assert.Contains(t, res.Analysis.Features, "no_face")
}

func TestMovementSignalIsAuxiliaryOnly(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	still := frameWith(0, 0, 5, 5, 0.3)
	e.Update(still)
	for i := 0; i < 50; i++ {
		clock.advance(time.Second)
		res := e.Update(still)
		// Long stillness never changes the classification.
		require.Equal(t, models.StatusAttentive, res.Status)
		require.InDelta(t, float64(i+1), res.Analysis.SecondsSinceMovement, 1e-9)
	}

	clock.advance(time.Second)
	res := e.Update(frameWith(0, 0, 5, 25, 0.3))
	assert.Equal(t, 0.0, res.Analysis.SecondsSinceMovement, "pose change resets the stillness clock")
}

func TestJitterDoesNotCountAsMovement(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(clock)

	e.Update(frameWith(0, 0, 5, 5, 0.30))
	clock.advance(time.Second)
	res := e.Update(frameWith(0, 0, 5.5, 4.8, 0.31))
	assert.InDelta(t, 1.0, res.Analysis.SecondsSinceMovement, 1e-9)
}

func TestPrecomputedStatusShortCircuits(t *testing.T) {
	e := newTestEngine(newFakeClock())

	res := e.Update(models.FeatureFrame{PrecomputedStatus: "drowsy"})
	assert.Equal(t, models.StatusDrowsy, res.Status)
	assert.Equal(t, 1.0, res.Confidence)

	// Unknown upstream strings flow through untouched; the alert policy
	// degrades them to a generic alert.
	res = e.Update(models.FeatureFrame{PrecomputedStatus: "on_phone"})
	assert.Equal(t, models.AttentionStatus("on_phone"), res.Status)
	assert.False(t, res.Status.Known())
}
