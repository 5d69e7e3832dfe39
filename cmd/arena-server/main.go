package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/park285/game-arena/internal/agent"
	"github.com/park285/game-arena/internal/arena"
	appcfg "github.com/park285/game-arena/internal/config"
	"github.com/park285/game-arena/internal/obslog"
	"github.com/park285/game-arena/internal/rating"
	"github.com/park285/game-arena/internal/rules"
	"github.com/park285/game-arena/internal/rules/chessrules"
	"github.com/park285/game-arena/internal/rules/pokerrules"
	"github.com/park285/game-arena/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	registry := rules.NewRegistry()
	registry.Register(chessrules.New())
	pokerAdapter := pokerrules.New()
	pokerAdapter.SetStartingChips(cfg.PokerStartingChips)
	registry.Register(pokerAdapter)

	engine := session.NewEngine(registry, rating.NewCalculator(float64(cfg.EloK)))

	store, err := arena.NewStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("store init error: %v", err)
	}

	var repo arena.Repository
	if cfg.DatabaseURL != "" {
		repo, err = arena.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("repository init error: %v", err)
		}
	} else {
		logger.Warn("no DATABASE_URL configured, using in-memory repository")
		repo = arena.NewMemoryRepository()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := arena.SeedParticipants(ctx, repo, cfg.DefaultRating); err != nil {
		logger.Warn("participant seed failed", zap.Error(err))
	}

	var provider agent.Provider = agent.FirstLegal{}
	if cfg.AgentGatewayURL != "" {
		provider = agent.NewGateway(cfg.AgentGatewayURL,
			agent.WithTimeout(cfg.AgentMoveTimeout),
			agent.WithHeaderProvider(func() map[string]string {
				if cfg.AgentGatewayKey == "" {
					return nil
				}
				return map[string]string{"Authorization": "Bearer " + cfg.AgentGatewayKey}
			}),
		)
	} else {
		logger.Warn("no AGENT_GATEWAY_URL configured, agents play first legal move")
	}

	mgr := arena.NewManager(engine, registry, store, repo, provider,
		arena.WithAgentTimeout(cfg.AgentMoveTimeout))

	go mgr.ServeAgents(ctx)
	logger.Info("arena started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	_ = store.Close()
	_ = repo.Close()
	logger.Info("arena stopped")
}
