// Package container provides dependency injection for all singleton services
package container

import (
	"time"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/behavior"
	"github.com/arzani/roledetect-go/internal/domain/roles"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/manager"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	persistbehavior "github.com/arzani/roledetect-go/internal/infrastructure/persistence/behavior"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/redisstore"
	persistroles "github.com/arzani/roledetect-go/internal/infrastructure/persistence/roles"
	"github.com/arzani/roledetect-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Detection pipeline services
	ScoringService  *services.ScoringService
	RecorderService *services.RecorderService
	ResolverService *services.ResolverService
	WriterService   *services.WriterService

	// Repositories
	PreferenceRepo roles.PreferenceRepository
	SessionRepo    *persistroles.SQLSessionCacheRepository
	EventRepo      behavior.Repository

	// Infrastructure
	DB           *database.DB
	CacheManager *manager.Manager
	PerfTracker  *performance.Tracker
	Metrics      *metrics.Collector
	Logger       *logging.ChanneledLogger
}

// NewContainer creates and wires all singleton services. The durable
// preference tier is Redis-backed when enabled, SQL otherwise.
func NewContainer(db *database.DB, cacheManager *manager.Manager, perfTracker *performance.Tracker, collector *metrics.Collector, clock func() time.Time, logger *logging.ChanneledLogger) (*Container, error) {
	if clock == nil {
		clock = time.Now
	}

	var preferenceRepo roles.PreferenceRepository
	if config.RedisEnabled {
		client, err := redisstore.NewClient(config.RedisAddr, config.RedisPassword, config.RedisDB)
		if err != nil {
			return nil, err
		}
		preferenceRepo = redisstore.NewPreferenceRepository(client, logger)
		if logger != nil {
			logger.Startup().Info("Durable preference tier backed by Redis", "addr", config.RedisAddr)
		}
	} else {
		preferenceRepo = persistroles.NewSQLPreferenceRepository(db, logger)
	}

	sessionRepo := persistroles.NewSQLSessionCacheRepository(db, logger)
	eventRepo := persistbehavior.NewSQLEventRepository(db, logger)

	scorer := services.NewScoringService(logger)
	recorder := services.NewRecorderService(cacheManager, eventRepo, perfTracker, collector, clock, logger)
	resolver := services.NewResolverService(preferenceRepo, sessionRepo, cacheManager, eventRepo, scorer, perfTracker, collector, clock, logger)
	writer := services.NewWriterService(preferenceRepo, sessionRepo, cacheManager, perfTracker, collector, clock, logger)

	return &Container{
		ScoringService:  scorer,
		RecorderService: recorder,
		ResolverService: resolver,
		WriterService:   writer,

		PreferenceRepo: preferenceRepo,
		SessionRepo:    sessionRepo,
		EventRepo:      eventRepo,

		DB:           db,
		CacheManager: cacheManager,
		PerfTracker:  perfTracker,
		Metrics:      collector,
		Logger:       logger,
	}, nil
}
