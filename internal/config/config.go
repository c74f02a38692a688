package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"LIVE_FEEDBACK/backend/internal/attention"
)

// Config holds server settings and every classification threshold. The
// thresholds are configurable on purpose: the right values are still an
// open product question, so tests and deployments can vary them without
// touching the engine.
type Config struct {
	HTTPPort    string
	CORSOrigins string
	Environment string

	// Maximum inbound websocket message size in bytes. Camera frames are
	// the largest payload that flows through.
	WSReadLimit int64

	LookingAwayThreshold  float64
	HeadRotationThreshold float64
	DrowsyEARThreshold    float64
	DrowsyDuration        time.Duration
	NoFaceFrames          int
	AlertCooldown         time.Duration
	PoseJitter            float64
	EARJitter             float64
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// EngineConfig maps the loaded thresholds onto an attention engine config.
func (c *Config) EngineConfig() attention.Config {
	return attention.Config{
		GazeThreshold:      c.LookingAwayThreshold,
		HeadYawThreshold:   c.HeadRotationThreshold,
		HeadPitchThreshold: c.HeadRotationThreshold,
		DrowsyEARThreshold: c.DrowsyEARThreshold,
		DrowsyDuration:     c.DrowsyDuration,
		NoFaceFrames:       c.NoFaceFrames,
		PoseJitter:         c.PoseJitter,
		EARJitter:          c.EARJitter,
	}
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		Environment: getEnv("ENVIRONMENT", "production"),
		WSReadLimit: int64(getEnvInt("WS_READ_LIMIT_BYTES", 1024*1024)),

		LookingAwayThreshold:  getEnvFloat("LOOKING_AWAY_THRESHOLD", 0.3),
		HeadRotationThreshold: getEnvFloat("HEAD_ROTATION_THRESHOLD", 30),
		DrowsyEARThreshold:    getEnvFloat("DROWSY_EYE_RATIO_THRESHOLD", 0.2),
		DrowsyDuration:        getEnvDuration("DROWSY_SECONDS", 2*time.Second),
		NoFaceFrames:          getEnvInt("NO_FACE_FRAMES_THRESHOLD", 3),
		AlertCooldown:         getEnvDuration("ALERT_COOLDOWN_SECONDS", 10*time.Second),
		PoseJitter:            getEnvFloat("POSE_JITTER_DEGREES", 2.0),
		EARJitter:             getEnvFloat("EAR_JITTER", 0.04),
	}
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration expressed in seconds, e.g. "2" or "2.5".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultVal
}
