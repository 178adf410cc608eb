// Package config provides centralized default values for the role detection service
package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseFloat(valStr, 64); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%g (default: %g)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration

	// Database
	DBDriver                 string
	DBPath                   string
	DBAuthToken              string
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeMinutes int
	DBConnMaxIdleMinutes     int

	// Redis
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Detection Thresholds
	CacheThreshold     float64
	RecomputeThreshold float64
	ConfidentThreshold float64

	// Scoring
	ScoreCeiling      float64
	ScoreDivisor      float64
	PageAffinityBoost float64
	MergeDamping      float64

	// Behavior Log
	MaxBehaviorEvents  int
	BehaviorWindowDays int

	// TTL Configuration
	ConfidentRoleTTL time.Duration
	ProbableRoleTTL  time.Duration

	// Durable Store
	DurableReadTimeout time.Duration

	// Write Propagation
	WriteThrottleInterval time.Duration
	WriteQueueSize        int

	// Memory Management
	MaxSessions        int
	MaxBehaviorActors  int
	CleanupInterval    time.Duration
	ThrottleEntryTTL   time.Duration
	CleanupVerbose     bool
	SlowQueryThreshold time.Duration

	// Auth
	JWTSecret string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)

	// Database
	DBDriver = getEnvString("DB_DRIVER", "sqlite3")
	DBPath = getEnvString("DB_PATH", "roledetect.db")
	DBAuthToken = getEnvString("DB_AUTH_TOKEN", "")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	DBConnMaxLifetimeMinutes = getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	DBConnMaxIdleMinutes = getEnvInt("DB_CONN_MAX_IDLE_MINUTES", 3)

	// Redis
	RedisEnabled = getEnvBool("REDIS_ENABLED", false)
	RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	RedisPassword = getEnvString("REDIS_PASSWORD", "")
	RedisDB = getEnvInt("REDIS_DB", 0)

	// Detection Thresholds
	CacheThreshold = getEnvFloat("CACHE_THRESHOLD", 0.6)
	RecomputeThreshold = getEnvFloat("RECOMPUTE_THRESHOLD", 0.7)
	ConfidentThreshold = getEnvFloat("CONFIDENT_THRESHOLD", 0.8)

	// Scoring
	ScoreCeiling = getEnvFloat("SCORE_CEILING", 5.0)
	ScoreDivisor = getEnvFloat("SCORE_DIVISOR", 10.0)
	PageAffinityBoost = getEnvFloat("PAGE_AFFINITY_BOOST", 0.2)
	MergeDamping = getEnvFloat("MERGE_DAMPING", 0.7)

	// Behavior Log
	MaxBehaviorEvents = getEnvInt("MAX_BEHAVIOR_EVENTS", 50)
	BehaviorWindowDays = getEnvInt("BEHAVIOR_WINDOW_DAYS", 7)

	// TTL Configuration
	ConfidentRoleTTL = time.Duration(getEnvInt("CONFIDENT_ROLE_TTL_HOURS", 168)) * time.Hour
	ProbableRoleTTL = time.Duration(getEnvInt("PROBABLE_ROLE_TTL_HOURS", 24)) * time.Hour

	// Durable Store
	DurableReadTimeout = getEnvDuration("DURABLE_READ_TIMEOUT", 500*time.Millisecond)

	// Write Propagation
	WriteThrottleInterval = getEnvDuration("WRITE_THROTTLE_INTERVAL", 30*time.Second)
	WriteQueueSize = getEnvInt("WRITE_QUEUE_SIZE", 1024)

	// Memory Management
	MaxSessions = getEnvInt("MAX_SESSIONS", 10000)
	MaxBehaviorActors = getEnvInt("MAX_BEHAVIOR_ACTORS", 10000)
	CleanupInterval = time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute
	ThrottleEntryTTL = time.Duration(getEnvInt("THROTTLE_ENTRY_TTL_MINUTES", 10)) * time.Minute
	CleanupVerbose = getEnvBool("CLEANUP_VERBOSE", true)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)

	// Auth
	JWTSecret = getEnvString("JWT_SECRET", "")
}
