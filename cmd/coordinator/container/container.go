// Package container initializes all repositories and services once.
package container

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stylehub/coordinator/cmd/coordinator/clients"
	"github.com/stylehub/coordinator/cmd/coordinator/policy"
	"github.com/stylehub/coordinator/cmd/coordinator/repository"
	"github.com/stylehub/coordinator/cmd/coordinator/service"
	"github.com/stylehub/coordinator/common/bootstrap"
	"github.com/stylehub/coordinator/common/ratelimit"
	rediscommon "github.com/stylehub/coordinator/common/redis"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Redis      *rediscommon.Client
	RedisRaw   *redis.Client
	Limiter    *ratelimit.Limiter
	Lookup     *clients.LookupClient

	// Repositories
	AssetRepo      *repository.AssetRepository
	StyleGroupRepo *repository.StyleGroupRepository
	AgentRepo      *repository.AgentRepository
	PairingRepo    *repository.PairingRepository
	ScanRepo       *repository.ScanRequestRepository
	JobRepo        *repository.JobRepository

	// Services
	StyleGroupService  *service.StyleGroupService
	IngestService      *service.IngestService
	HeartbeatService   *service.HeartbeatService
	ScanService        *service.ScanService
	JobService         *service.JobService
	PairingService     *service.PairingService
	MaintenanceService *service.MaintenanceService
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config
	log := components.Logger

	// Redis backs only the heartbeat rate limiter; the coordinator
	// stays functional without it.
	redisRaw := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisClient := rediscommon.NewClient(redisRaw, log)
	limiter := ratelimit.NewLimiter(redisRaw, log)

	lookupClient := clients.NewLookupClient(cfg.Lookup, components.Cache, log)

	ingestPolicy, err := policy.NewEvaluator(cfg.Ingest.PolicyExpression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ingest policy: %w", err)
	}

	// Initialize repositories
	assetRepo := repository.NewAssetRepository(components.DB)
	styleGroupRepo := repository.NewStyleGroupRepository(components.DB)
	agentRepo := repository.NewAgentRepository(components.DB)
	pairingRepo := repository.NewPairingRepository(components.DB)
	scanRepo := repository.NewScanRequestRepository(components.DB)
	jobRepo := repository.NewJobRepository(components.DB)

	// Initialize services (bottom-up: dependencies first)
	styleGroupService := service.NewStyleGroupService(styleGroupRepo, assetRepo, components.Queue, log)
	ingestService := service.NewIngestService(assetRepo, jobRepo, styleGroupService, lookupClient, ingestPolicy, cfg.Ingest, log)
	heartbeatService := service.NewHeartbeatService(agentRepo, scanRepo, cfg.Agent, cfg.Scan, log)
	scanService := service.NewScanService(scanRepo, agentRepo, cfg.Scan, log)
	jobService := service.NewJobService(jobRepo, assetRepo, styleGroupService, cfg.Agent, log)
	pairingService := service.NewPairingService(pairingRepo, agentRepo, cfg.Agent.PairingCodeTTL, log)
	maintenanceService := service.NewMaintenanceService(assetRepo, styleGroupService, ingestService, log)

	return &Container{
		Components:         components,
		Redis:              redisClient,
		RedisRaw:           redisRaw,
		Limiter:            limiter,
		Lookup:             lookupClient,
		AssetRepo:          assetRepo,
		StyleGroupRepo:     styleGroupRepo,
		AgentRepo:          agentRepo,
		PairingRepo:        pairingRepo,
		ScanRepo:           scanRepo,
		JobRepo:            jobRepo,
		StyleGroupService:  styleGroupService,
		IngestService:      ingestService,
		HeartbeatService:   heartbeatService,
		ScanService:        scanService,
		JobService:         jobService,
		PairingService:     pairingService,
		MaintenanceService: maintenanceService,
	}, nil
}
