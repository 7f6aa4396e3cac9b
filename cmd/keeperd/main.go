// Package main provides the keeper daemon binary that runs the dungeon
// simulation: the frame loop, the game clock, the wave director, and
// periodic snapshot persistence.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hollowroot/keeper/internal/config"
	"github.com/hollowroot/keeper/internal/events"
	"github.com/hollowroot/keeper/internal/game/floor"
	"github.com/hollowroot/keeper/internal/game/grid"
	"github.com/hollowroot/keeper/internal/game/monster"
	"github.com/hollowroot/keeper/internal/game/party"
	"github.com/hollowroot/keeper/internal/game/renovation"
	"github.com/hollowroot/keeper/internal/game/rng"
	"github.com/hollowroot/keeper/internal/game/sim"
	"github.com/hollowroot/keeper/internal/observability"
	"github.com/hollowroot/keeper/internal/scripting"
	"github.com/hollowroot/keeper/internal/server"
	"github.com/hollowroot/keeper/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	dungeonPath := flag.String("dungeon", "content/dungeon.yaml", "path to dungeon layout YAML")
	monstersDir := flag.String("monsters-dir", "content/monsters", "path to monster template YAML directory")
	snapshotEvery := flag.Duration("snapshot-every", 5*time.Minute, "interval between dungeon snapshots")
	snapshotKeep := flag.Int("snapshot-keep", 10, "number of snapshots to retain")
	resume := flag.Bool("resume", true, "resume from the latest snapshot when one exists")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting keeper daemon",
		zap.Duration("tick_interval", cfg.Sim.TickInterval),
		zap.Int("max_floors", cfg.Dungeon.MaxFloors),
	)

	bus := events.NewBus()

	// Connect to PostgreSQL for snapshot persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)
	snapRepo := postgres.NewSnapshotRepository(pool.DB())

	registry := buildRegistry(ctx, cfg, snapRepo, bus, *dungeonPath, *resume, logger)

	renovator := renovation.NewManager(registry, bus)
	renovator.SetActiveFloor(1)

	parties, err := party.NewManager(party.Config{
		HealInterval:      cfg.Sim.HealInterval,
		HealAmount:        cfg.Sim.HealAmount,
		CooperationRadius: cfg.Sim.CooperationRadius,
		PartyBonus:        cfg.Sim.PartyBonus,
	}, bus)
	if err != nil {
		logger.Fatal("creating party manager", zap.Error(err))
	}

	// Load monster templates and build the spawner.
	templates, err := monster.LoadTemplatesFromDir(*monstersDir)
	if err != nil {
		logger.Fatal("loading monster templates", zap.Error(err))
	}
	logger.Info("loaded monster templates", zap.Int("count", len(templates)))
	spawner := monster.NewSpawner(registry, templates, rng.NewCryptoSource(), bus)

	engine := sim.NewEngine(spawner, parties, cfg.Sim.CooperationRadius, logger)
	loop := sim.NewLoop(cfg.Sim.TickInterval, engine.Tick)
	clock := sim.NewClock(cfg.Sim.StartHour, cfg.Sim.HourInterval)

	// Wire lifecycle.
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("sim-loop", loop)

	lifecycle.Add("clock", clockService(clock))

	if cfg.Scripting.WaveScript != "" {
		director := buildDirector(cfg, clock, registry, spawner, logger)
		lifecycle.Add("wave-director", directorService(director, clock))
	} else {
		logger.Info("wave director disabled: no script configured")
	}

	lifecycle.Add("snapshots", snapshotService(ctx, snapRepo, registry, *snapshotEvery, *snapshotKeep, logger))

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("keeper daemon initialized",
		zap.Duration("startup", time.Since(start)),
		zap.Int("floors", registry.Depth()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("daemon error", zap.Error(err))
	}
}

// buildRegistry restores the dungeon from the latest snapshot, or loads the
// layout YAML, or falls back to a single-floor dungeon from configuration.
func buildRegistry(ctx context.Context, cfg config.Config, repo *postgres.SnapshotRepository, bus *events.Bus, dungeonPath string, resume bool, logger *zap.Logger) *floor.Registry {
	regCfg := floor.RegistryConfig{
		MaxFloors: cfg.Dungeon.MaxFloors,
		Bounds: grid.Bounds{
			Min: grid.Pos{X: cfg.Dungeon.MinX, Y: cfg.Dungeon.MinY},
			Max: grid.Pos{X: cfg.Dungeon.MaxX, Y: cfg.Dungeon.MaxY},
		},
		DefaultUpStair:   grid.Pos{X: cfg.Dungeon.MinX, Y: cfg.Dungeon.MinY},
		DefaultDownStair: grid.Pos{X: cfg.Dungeon.MaxX, Y: cfg.Dungeon.MaxY},
	}

	if resume {
		snap, err := repo.LoadLatest(ctx)
		switch {
		case err == nil:
			registry, rerr := postgres.RestoreRegistry(regCfg, snap.Floors, bus)
			if rerr != nil {
				logger.Fatal("restoring snapshot", zap.Int64("snapshot", snap.ID), zap.Error(rerr))
			}
			logger.Info("dungeon restored from snapshot",
				zap.Int64("snapshot", snap.ID),
				zap.Int("floors", registry.Depth()),
			)
			return registry
		case errors.Is(err, postgres.ErrNoSnapshot):
			// Fall through to the layout file.
		default:
			logger.Fatal("loading latest snapshot", zap.Error(err))
		}
	}

	if _, err := os.Stat(dungeonPath); err == nil {
		registry, err := floor.LoadRegistryFromFile(dungeonPath, bus)
		if err != nil {
			logger.Fatal("loading dungeon layout", zap.String("path", dungeonPath), zap.Error(err))
		}
		logger.Info("dungeon loaded from layout",
			zap.String("path", dungeonPath),
			zap.Int("floors", registry.Depth()),
		)
		return registry
	}

	registry, err := floor.NewRegistry(regCfg, bus)
	if err != nil {
		logger.Fatal("creating dungeon registry", zap.Error(err))
	}
	logger.Info("dungeon created from configuration")
	return registry
}

// buildDirector creates the wave director with dungeon callbacks wired in.
func buildDirector(cfg config.Config, clock *sim.Clock, registry *floor.Registry, spawner *monster.Spawner, logger *zap.Logger) *scripting.Director {
	director := scripting.NewDirector(logger)
	director.GameHour = func() int { return int(clock.CurrentHour()) }
	director.IsNight = func() bool { return clock.CurrentHour().IsNight() }
	director.FloorCount = registry.Depth
	director.CountSide = func(side string) int {
		n := 0
		for _, inst := range spawner.Live() {
			if inst.Affiliation().String() == side {
				n++
			}
		}
		return n
	}
	director.SpawnMonster = func(templateID string, floorIndex, count int) error {
		return spawner.Schedule(templateID, floorIndex, count, time.Now())
	}

	if err := director.Load(cfg.Scripting.WaveScript, cfg.Scripting.InstructionLimit); err != nil {
		logger.Fatal("loading wave script",
			zap.String("path", cfg.Scripting.WaveScript),
			zap.Error(err),
		)
	}
	logger.Info("wave director loaded", zap.String("script", cfg.Scripting.WaveScript))
	return director
}

// clockService adapts the game clock to the lifecycle Service contract.
func clockService(clock *sim.Clock) server.Service {
	var (
		mu   sync.Mutex
		stop func()
	)
	done := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			mu.Lock()
			stop = clock.Start()
			mu.Unlock()
			<-done
			return nil
		},
		StopFn: func() {
			mu.Lock()
			if stop != nil {
				stop()
			}
			mu.Unlock()
			close(done)
		},
	}
}

// directorService feeds clock hour ticks into the wave director.
func directorService(director *scripting.Director, clock *sim.Clock) server.Service {
	hours := make(chan sim.GameHour, 4)
	done := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			clock.Subscribe(hours)
			for {
				select {
				case h := <-hours:
					director.OnHour(int(h))
				case <-done:
					return nil
				}
			}
		},
		StopFn: func() {
			clock.Unsubscribe(hours)
			close(done)
			director.Close()
		},
	}
}

// snapshotService periodically persists the dungeon and prunes old snapshots.
func snapshotService(ctx context.Context, repo *postgres.SnapshotRepository, registry *floor.Registry, interval time.Duration, keep int, logger *zap.Logger) server.Service {
	done := make(chan struct{})
	save := func() {
		id, err := repo.Save(ctx, postgres.RecordsFromRegistry(registry))
		if err != nil {
			logger.Warn("saving snapshot", zap.Error(err))
			return
		}
		logger.Info("snapshot saved", zap.Int64("snapshot", id))
		if pruned, err := repo.Prune(ctx, keep); err != nil {
			logger.Warn("pruning snapshots", zap.Error(err))
		} else if pruned > 0 {
			logger.Debug("snapshots pruned", zap.Int64("count", pruned))
		}
	}
	return &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					save()
				case <-done:
					return nil
				}
			}
		},
		StopFn: func() {
			close(done)
			// Final snapshot on shutdown.
			save()
		},
	}
}
