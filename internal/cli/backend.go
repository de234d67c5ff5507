package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/existflow/goalpost/internal/cache"
	"github.com/existflow/goalpost/internal/config"
	"github.com/existflow/goalpost/internal/db"
	"github.com/existflow/goalpost/internal/fsstore"
	"github.com/existflow/goalpost/internal/goals"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/model"
	"github.com/existflow/goalpost/internal/store"
	"github.com/existflow/goalpost/internal/store/memstore"
	gsync "github.com/existflow/goalpost/internal/sync"
)

// backend bundles an open repository with whatever needs closing afterwards
type backend struct {
	repo    *goals.Repository
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// The memory store lives for the whole process so consecutive commands see each other's writes
var (
	memOnce sync.Once
	mem     *memstore.Store
)

func memoryStore() *memstore.Store {
	memOnce.Do(func() { mem = memstore.New() })
	return mem
}

// openStore opens the record store selected by cfg.Store
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		d, err := db.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return d, d.Close, nil
	case config.StorePostgres:
		d, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return d, d.Close, nil
	case config.StoreRemote:
		c := gsync.NewClient(cfg.ServerURL, cfg.OwnerID)
		if err := c.Health(ctx); err != nil {
			logger.Warn("Server health check failed", logger.F("server", cfg.ServerURL), logger.Err(err))
		}
		return c, func() error { return nil }, nil
	case config.StoreFirestore:
		s, err := fsstore.Open(ctx, cfg.FirestoreProject, cfg.FirestoreCredentials)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open firestore: %w", err)
		}
		return s, s.Close, nil
	case config.StoreMemory:
		return memoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// openBackend wires store, cache and repository from cfg
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", logger.F("store", cfg.Store), logger.Err(err))
		return nil, err
	}
	b := &backend{closers: []func() error{closeStore}}

	opts := []goals.Option{
		goals.WithLogger(logger.Default()),
		goals.WithLocation(cfg.Location()),
	}
	if cfg.RedisAddr != "" {
		c, err := cache.Open(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			// The list still works uncached
			logger.Warn("Redis unavailable, global list cache disabled", logger.F("addr", cfg.RedisAddr), logger.Err(err))
		} else {
			opts = append(opts, goals.WithCache(c))
			b.closers = append(b.closers, c.Close)
		}
	}

	b.repo = goals.NewRepository(s, opts...)
	logger.Debug("Backend ready", logger.F("store", cfg.Store))
	return b, nil
}

func requireOwner(cfg *config.Config) error {
	if cfg.OwnerID == "" {
		return errors.New("no owner configured, run: goalpost config set owner <id>")
	}
	return nil
}

// resolveGoal finds one of the owner's goals by full id or unique id prefix
func resolveGoal(ctx context.Context, repo *goals.Repository, ownerID, ref string) (model.Goal, error) {
	return resolve(ctx, repo, ownerID, ref, repo.ListByOwner)
}

// resolveDeletedGoal is resolveGoal over the owner's soft-deleted goals
func resolveDeletedGoal(ctx context.Context, repo *goals.Repository, ownerID, ref string) (model.Goal, error) {
	return resolve(ctx, repo, ownerID, ref, repo.ListDeleted)
}

func resolve(ctx context.Context, repo *goals.Repository, ownerID, ref string,
	list func(context.Context, string) ([]model.Goal, error)) (model.Goal, error) {
	g, err := repo.Get(ctx, ownerID, ref)
	if err == nil {
		return g, nil
	}
	if goals.KindOf(err) != goals.KindNotOwnerOrNotFound {
		return model.Goal{}, err
	}

	candidates, err := list(ctx, ownerID)
	if err != nil {
		return model.Goal{}, err
	}
	var matches []model.Goal
	for _, g := range candidates {
		if strings.HasPrefix(g.ID, ref) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		return model.Goal{}, fmt.Errorf("goal not found: %s", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Goal{}, fmt.Errorf("goal id %q is ambiguous (%d matches)", ref, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// failure turns a repository error into the message printed to the member
func failure(action string, err error) error {
	if goals.KindOf(err) == 0 {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	return fmt.Errorf("failed to %s: %s", action, goals.Reason(err))
}

// parseDeadlineArg passes epoch millis through as a number and everything else as text
func parseDeadlineArg(s string) any {
	if ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return ms
	}
	return s
}
