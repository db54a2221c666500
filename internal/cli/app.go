package cli

import (
	"context"
	"fmt"

	"dialogue/config"
	"dialogue/internal/adapter/cache"
	"dialogue/internal/adapter/embedding"
	"dialogue/internal/adapter/memstore"
	"dialogue/internal/adapter/retriever"
	"dialogue/internal/adapter/store"
	"dialogue/internal/port"
	"dialogue/internal/usecase"
)

// app holds the collaborators every command builds from config.
type app struct {
	cfg      *config.Config
	store    port.ConversationStore
	embedder port.Embedder
	cache    port.SearchCache
	closers  []func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()

	st, err := openStore(cfg, GetRootDir())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: st, closers: []func() error{st.Close}}

	a.embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStore(cfg *config.Config, dir string) (port.ConversationStore, error) {
	opts := []store.Option{store.WithLogger(logger)}

	switch cfg.Store.Backend {
	case "memory":
		return memstore.NewMemoryStore(), nil
	case "bolt", "":
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewBoltStore(config.StorePath(dir, cfg), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open conversation store: %w", err)
		}
		return st, nil
	case "sqlite":
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err := store.NewSQLiteStore(config.StorePath(dir, cfg), opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open conversation store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}

func (a *app) openCache(ctx context.Context) error {
	c := a.cfg.Cache
	if !c.Enabled {
		return nil
	}

	switch c.Backend {
	case "memory", "":
		a.cache = cache.NewQueryCache(c.MaxSize, c.TTL)
	case "redis":
		rdb, err := cache.DialRedis(ctx, c.RedisAddr, c.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		rc := cache.NewRedisCache(rdb, c.KeyPrefix, c.TTL, logger)
		a.cache = rc
		a.closers = append(a.closers, rc.Close)
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Backend)
	}
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func (a *app) evaluator() (*usecase.Evaluator, error) {
	rule, err := usecase.ParseCombineRule(a.cfg.Scoring.Combine)
	if err != nil {
		return nil, err
	}
	return usecase.NewEvaluator(a.embedder, rule), nil
}

func (a *app) saver() (*usecase.SaveUseCase, error) {
	ev, err := a.evaluator()
	if err != nil {
		return nil, err
	}
	return usecase.NewSaveUseCase(a.store, a.embedder, ev, a.cache), nil
}

func (a *app) searcher(noMMR bool) *usecase.SearchUseCase {
	s := a.cfg.Search
	opts := usecase.SearchOptions{
		DefaultTopK:       s.TopK,
		MaxTopK:           s.MaxTopK,
		MinScoreThreshold: s.MinScoreThreshold,
	}
	if s.MMREnabled && !noMMR {
		opts.MMR = retriever.NewMMRReranker(s.MMRLambda, s.DedupThreshold)
	}
	// cached entries are MMR-reranked when MMR is on, so bypass them otherwise
	if !s.MMREnabled || !noMMR {
		opts.Cache = a.cache
	}
	return usecase.NewSearchUseCase(retriever.NewSemanticRetriever(a.store, a.embedder, nil), opts)
}
