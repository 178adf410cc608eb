package cleanup

import (
	"time"

	"github.com/arzani/roledetect-go/pkg/config"
)

// Config holds cleanup worker configuration, sourced from the central config package.
type Config struct {
	CleanupInterval  time.Duration
	VerboseReporting bool
	BehaviorWindow   time.Duration
}

// NewConfig creates a new cleanup configuration by reading values
// from the already-initialized variables in the centralized /pkg/config package.
func NewConfig() *Config {
	return &Config{
		CleanupInterval:  config.CleanupInterval,
		VerboseReporting: config.CleanupVerbose,
		BehaviorWindow:   time.Duration(config.BehaviorWindowDays) * 24 * time.Hour,
	}
}
