package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcoot/battleship/internal/config"
	"github.com/mcoot/battleship/internal/dependencies/clock"
	"github.com/mcoot/battleship/internal/dependencies/random"
	"github.com/mcoot/battleship/internal/events"
	"github.com/mcoot/battleship/internal/model"
	"github.com/mcoot/battleship/internal/services/auth"
	"github.com/mcoot/battleship/internal/services/challenge"
	"github.com/mcoot/battleship/internal/services/game"
	"github.com/mcoot/battleship/internal/services/gamesync"
	"github.com/mcoot/battleship/internal/services/presence"
	"github.com/mcoot/battleship/internal/services/sweeper"
	"github.com/mcoot/battleship/internal/sse"
	"github.com/mcoot/battleship/internal/storage"
	"github.com/mcoot/battleship/internal/storage/memory"
	"github.com/mcoot/battleship/internal/storage/postgres"
	redisstorage "github.com/mcoot/battleship/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Push delivery
	HubManager  *sse.HubManager
	Broadcaster *sse.Broadcaster
	Publisher   events.Publisher
	Relay       *events.RedisRelay // nil unless events go through redis

	// Services
	PresenceService  *presence.Service
	Synchronizer     *gamesync.Synchronizer
	GameController   *game.Controller
	ChallengeService *challenge.Service
	AuthService      *auth.Service
	Sweeper          *sweeper.Sweeper

	closers []io.Closer
}

// Options tune the services an App is built with. Zero values mean defaults.
type Options struct {
	PresenceConfig  presence.Config
	AuthConfig      auth.Config
	ChallengeConfig challenge.Config
	SyncConfig      gamesync.Config
	SweeperConfig   sweeper.Config
}

// DefaultOptions returns default service settings
func DefaultOptions() Options {
	return Options{
		PresenceConfig:  presence.DefaultConfig(),
		AuthConfig:      auth.DefaultConfig(),
		ChallengeConfig: challenge.DefaultConfig(),
		SyncConfig:      gamesync.DefaultConfig(),
		SweeperConfig:   sweeper.DefaultConfig(),
	}
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
	// EventsRedisURL relays push events through redis when storage is not redis.
	// With redis storage the storage connection is always used.
	EventsRedisURL string
	// Options configures the services
	Options Options
}

// ConfigFromSettings translates loaded server settings into a factory Config
func ConfigFromSettings(settings *config.Config, logger *slog.Logger) Config {
	opts := DefaultOptions()
	opts.AuthConfig.Secret = []byte(settings.JWTSecret)
	opts.AuthConfig.TokenTTL = settings.TokenTTL
	opts.ChallengeConfig.Timeout = settings.ChallengeTimeout
	opts.SyncConfig.CommitRetries = settings.CommitRetries
	opts.SweeperConfig = sweeper.Config{
		Interval:         settings.SweepInterval,
		PresenceTimeout:  settings.PresenceTimeout,
		ChallengeTimeout: settings.ChallengeTimeout,
	}

	cfg := Config{
		Logger:         logger,
		StorageType:    settings.StorageType,
		EventsRedisURL: settings.RedisURL,
		Options:        opts,
	}
	switch settings.StorageType {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = settings.RedisURL
		cfg.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = settings.PostgresDSN
		cfg.PostgresConfig = &pgCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var (
		store       storage.Storage
		redisClient *goredis.Client
		closers     []io.Closer
	)
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		redisClient = redisStore.Client()
		closers = append(closers, redisStore)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := postgres.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, err
		}
		store = pgStore
		closers = append(closers, pgStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	if redisClient == nil && cfg.EventsRedisURL != "" {
		opts, err := goredis.ParseURL(cfg.EventsRedisURL)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		redisClient = goredis.NewClient(opts)
		closers = append(closers, redisClient)
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	app := newWithDependencies(store, clk, rnd, cfg.Options, redisClient, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing).
// A nil redisClient delivers events in-process only.
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, opts Options, redisClient *goredis.Client, logger *slog.Logger) *App {
	hubManager := sse.NewHubManager(logger)
	broadcaster := sse.NewBroadcaster(hubManager, logger)

	var (
		publisher   events.Publisher = broadcaster
		relay       *events.RedisRelay
		revocations auth.Revocations = auth.NewMemoryRevocations()
	)
	if redisClient != nil {
		relay = events.NewRedisRelay(redisClient, events.DefaultChannel, broadcaster, logger)
		publisher = relay
		revocations = auth.NewRedisRevocations(redisClient, auth.DefaultRevocationPrefix, clk)
	}

	presenceService := presence.New(store, clk, rnd, opts.PresenceConfig, logger)
	synchronizer := gamesync.New(store, publisher, clk, opts.SyncConfig, logger)
	gameController := game.NewController(store, synchronizer, clk, rnd, logger)
	challengeService := challenge.New(store, presenceService, gameController, publisher, clk, rnd, opts.ChallengeConfig, logger)
	authService := auth.New(presenceService, revocations, clk, rnd, opts.AuthConfig)
	sweep := sweeper.New(presenceService, challengeService, hubManager, authService, clk, opts.SweeperConfig, logger)

	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		HubManager:       hubManager,
		Broadcaster:      broadcaster,
		Publisher:        publisher,
		Relay:            relay,
		PresenceService:  presenceService,
		Synchronizer:     synchronizer,
		GameController:   gameController,
		ChallengeService: challengeService,
		AuthService:      authService,
		Sweeper:          sweep,
	}
}

// Close stops push hubs and releases storage connections
func (a *App) Close() error {
	a.HubManager.Close()
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}
	return errors.Join(errs...)
}

// NewPlayer registers a player and returns a token for them. Handy for tools and tests.
func (a *App) NewPlayer(ctx context.Context, displayName, secret string) (*auth.Session, error) {
	return a.AuthService.Login(ctx, displayName, secret)
}

// SessionFor is a shortcut to the session an accepted challenge produced
func (a *App) SessionFor(ctx context.Context, id model.ChallengeID) (*model.GameSession, error) {
	return a.GameController.GetSession(ctx, model.SessionIDForChallenge(id))
}
