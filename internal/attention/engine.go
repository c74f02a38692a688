// Package attention turns noisy per-participant feature frames into a
// debounced attention classification and edge-triggered alerts.
package attention

import (
	"math"
	"time"

	"LIVE_FEEDBACK/backend/internal/models"
)

// Config holds every classification threshold. The exact values are an
// unsettled product requirement, so nothing is hardcoded in the engine.
type Config struct {
	// GazeThreshold is the normalized gaze offset beyond which the
	// participant counts as looking away.
	GazeThreshold float64
	// HeadYawThreshold / HeadPitchThreshold are degrees of head rotation
	// beyond which the participant counts as looking away.
	HeadYawThreshold   float64
	HeadPitchThreshold float64
	// DrowsyEARThreshold is the eye aspect ratio below which eyes count
	// as closed.
	DrowsyEARThreshold float64
	// DrowsyDuration is how long the eyes must stay closed before the
	// participant is classified drowsy.
	DrowsyDuration time.Duration
	// NoFaceFrames is how many consecutive frames without usable feature
	// data it takes to classify no_face.
	NoFaceFrames int
	// PoseJitter (degrees) and EARJitter bound what counts as significant
	// movement for the auxiliary stillness signal.
	PoseJitter float64
	EARJitter  float64
}

// DefaultConfig returns the thresholds the system ships with.
func DefaultConfig() Config {
	return Config{
		GazeThreshold:      0.3,
		HeadYawThreshold:   30,
		HeadPitchThreshold: 30,
		DrowsyEARThreshold: 0.2,
		DrowsyDuration:     2 * time.Second,
		NoFaceFrames:       3,
		PoseJitter:         2.0,
		EARJitter:          0.04,
	}
}

// Analysis is the auxiliary detail attached to every classification.
type Analysis struct {
	Gaze                 models.GazeVector `json:"gaze_direction"`
	HeadPose             models.HeadPose   `json:"head_pose"`
	EyeAspectRatio       float64           `json:"eye_aspect_ratio"`
	Features             []string          `json:"features"`
	SecondsSinceMovement float64           `json:"seconds_since_movement"`
}

// Result is the engine's output for one frame.
type Result struct {
	Status     models.AttentionStatus
	Confidence float64
	Analysis   Analysis
}

// Engine classifies one participant's frame stream. It is owned exclusively
// by that participant's connection handler and does no I/O; it is not safe
// for concurrent use.
type Engine struct {
	cfg Config
	now func() time.Time

	eyesClosedSince time.Time
	noFaceStreak    int

	hasPrev      bool
	prevPose     models.HeadPose
	prevEAR      float64
	lastMovement time.Time
}

// NewEngine returns an engine in the attentive state.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// SetClock overrides the engine's time source. Tests use this to drive the
// drowsiness timer deterministically.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Update consumes one frame and returns the debounced classification.
// Transition rules, in strict priority order:
//
//  1. no usable data for >= NoFaceFrames consecutive frames -> no_face
//  2. head pose or gaze beyond thresholds -> looking_away (immediate)
//  3. EAR below threshold continuously for >= DrowsyDuration -> drowsy
//  4. otherwise attentive
//
// A higher-priority condition resets the eye-closure timer.
func (e *Engine) Update(frame models.FeatureFrame) Result {
	now := e.now()

	if frame.PrecomputedStatus != "" {
		return e.adoptUpstream(frame, now)
	}

	if frame.NoFace() {
		e.noFaceStreak++
	} else {
		e.noFaceStreak = 0
	}

	// Missing fields fall back to neutral values so a sparse frame never
	// classifies as inattentive on its own.
	gaze := models.GazeVector{}
	if frame.Gaze != nil {
		gaze = *frame.Gaze
	}
	pose := models.HeadPose{}
	if frame.HeadPose != nil {
		pose = *frame.HeadPose
	}
	ear := 1.0
	if frame.EyeAspectRatio != nil {
		ear = *frame.EyeAspectRatio
	}

	analysis := Analysis{
		Gaze:           gaze,
		HeadPose:       pose,
		EyeAspectRatio: ear,
		Features:       []string{},
	}
	e.trackMovement(frame, pose, ear, now)
	if !e.lastMovement.IsZero() {
		analysis.SecondsSinceMovement = now.Sub(e.lastMovement).Seconds()
	}

	if e.noFaceStreak >= e.cfg.NoFaceFrames {
		e.eyesClosedSince = time.Time{}
		analysis.Features = append(analysis.Features, "no_face")
		return Result{
			Status:     models.StatusNoFace,
			Confidence: clamp01(float64(e.noFaceStreak) / 10),
			Analysis:   analysis,
		}
	}

	if conf, away := e.lookingAway(gaze, pose); away {
		e.eyesClosedSince = time.Time{}
		analysis.Features = append(analysis.Features, "looking_away")
		return Result{Status: models.StatusLookingAway, Confidence: conf, Analysis: analysis}
	}

	if ear < e.cfg.DrowsyEARThreshold {
		if e.eyesClosedSince.IsZero() {
			e.eyesClosedSince = now
		}
		analysis.Features = append(analysis.Features, "eyes_closed")
		if now.Sub(e.eyesClosedSince) >= e.cfg.DrowsyDuration {
			conf := clamp01((e.cfg.DrowsyEARThreshold - ear) / e.cfg.DrowsyEARThreshold)
			return Result{Status: models.StatusDrowsy, Confidence: conf, Analysis: analysis}
		}
	} else {
		e.eyesClosedSince = time.Time{}
	}

	return Result{Status: models.StatusAttentive, Confidence: 0.9, Analysis: analysis}
}

// adoptUpstream passes a status decided by the feature extractor straight
// through. Local debounce state is discarded so a later locally-classified
// frame starts clean.
func (e *Engine) adoptUpstream(frame models.FeatureFrame, now time.Time) Result {
	e.noFaceStreak = 0
	e.eyesClosedSince = time.Time{}

	analysis := Analysis{EyeAspectRatio: 1.0, Features: []string{"precomputed"}}
	if !e.lastMovement.IsZero() {
		analysis.SecondsSinceMovement = now.Sub(e.lastMovement).Seconds()
	}
	return Result{
		Status:     models.AttentionStatus(frame.PrecomputedStatus),
		Confidence: 1.0,
		Analysis:   analysis,
	}
}

func (e *Engine) lookingAway(gaze models.GazeVector, pose models.HeadPose) (float64, bool) {
	exceed := 0.0
	away := false

	check := func(value, threshold float64) {
		if threshold <= 0 {
			return
		}
		if v := math.Abs(value); v > threshold {
			away = true
			exceed = math.Max(exceed, (v-threshold)/threshold)
		}
	}
	check(pose.Yaw, e.cfg.HeadYawThreshold)
	check(pose.Pitch, e.cfg.HeadPitchThreshold)
	check(gaze.X, e.cfg.GazeThreshold)
	check(gaze.Y, e.cfg.GazeThreshold)

	return clamp01(exceed), away
}

// trackMovement maintains the "seconds since last significant movement"
// signal. It never classifies; it is auxiliary telemetry only.
func (e *Engine) trackMovement(frame models.FeatureFrame, pose models.HeadPose, ear float64, now time.Time) {
	if frame.NoFace() {
		return
	}
	if !e.hasPrev {
		e.hasPrev = true
		e.prevPose = pose
		e.prevEAR = ear
		e.lastMovement = now
		return
	}
	moved := math.Abs(pose.Yaw-e.prevPose.Yaw) > e.cfg.PoseJitter ||
		math.Abs(pose.Pitch-e.prevPose.Pitch) > e.cfg.PoseJitter ||
		math.Abs(ear-e.prevEAR) > e.cfg.EARJitter
	e.prevPose = pose
	e.prevEAR = ear
	if moved {
		e.lastMovement = now
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
