package database_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
	"github.com/arzani/roledetect-go/pkg/config"
)

func TestGetSlowQueryThreshold(t *testing.T) {
	assert.Equal(t, config.SlowQueryThreshold, database.GetSlowQueryThreshold())
}

func TestCheckAndLogSlowQueryToleratesNilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		database.CheckAndLogSlowQuery(nil, "SELECT 1", config.SlowQueryThreshold+time.Second)
		database.CheckAndLogSlowQuery(nil, "SELECT 1", 0)
	})
}
