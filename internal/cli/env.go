package cli

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ansel1/merry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/auth"
	"github.com/roach88/serownia/internal/config"
	"github.com/roach88/serownia/internal/fold"
	"github.com/roach88/serownia/internal/logging"
	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/store"
)

// env is what a command runs against: the loaded config, an open store and
// the services built on it.
type env struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *store.Store
	schemas   *protocol.Schemas
	protocols *protocol.Service
	accounts  *auth.Service
	out       *OutputFormatter
	now       func() time.Time
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openEnv loads the config, opens the database and builds the services.
// Failures are reported on out before returning.
func openEnv(opts *RootOptions, out *OutputFormatter) (*env, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, out.report(ErrCodeConfig, ExitCommandError, err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = logging.New(cfg.Log, opts.Verbose); err != nil {
			return nil, out.report(ErrCodeConfig, ExitCommandError, err)
		}
	}

	schemas, err := protocol.DefaultSchemas()
	if err != nil {
		return nil, out.report(ErrCodeConfig, ExitCommandError, err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, out.report(ErrCodeIO, ExitCommandError, err)
		}
	}
	out.VerboseLog("opening database %s (%s)", cfg.Database.Path, cfg.Database.Driver)
	st, err := store.Open(store.Options{
		Path:          cfg.Database.Path,
		Driver:        cfg.Database.Driver,
		BusyTimeoutMS: cfg.Database.BusyTimeoutMS,
		DetailTables:  schemas.DetailTables(),
	})
	if err != nil {
		return nil, out.report(ErrCodeDB, ExitCommandError, merry.Prepend(err, "failed to open database"))
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	protoOpts := []protocol.ServiceOption{
		protocol.WithLimits(protocol.Limits{
			MaxAdditiveLines: cfg.Protocol.MaxAdditiveLines,
			MaxBatchLines:    cfg.Protocol.MaxBatchLines,
		}),
		protocol.WithClock(now),
	}
	if opts.IDs != nil {
		protoOpts = append(protoOpts, protocol.WithIDGenerator(opts.IDs))
	}
	authOpts := []auth.Option{auth.WithClock(now)}
	if opts.BcryptCost != 0 {
		authOpts = append(authOpts, auth.WithCost(opts.BcryptCost))
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		schemas:   schemas,
		protocols: protocol.NewService(st, schemas, logger.Named("protocol"), protoOpts...),
		accounts:  auth.NewService(st, logger.Named("auth"), authOpts...),
		out:       out,
		now:       now,
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// runWithEnv opens the environment, runs fn and reports its error.
func runWithEnv(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	out := newFormatter(opts, cmd)
	e, err := openEnv(opts, out)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, e); err != nil {
		return out.Fail(err)
	}
	return nil
}

func (e *env) today() string {
	return e.now().Format(protocol.DateLayout)
}

func (e *env) kindOf(category string) string {
	return e.schemas.ResolveKind(category).String()
}

// parseID parses a positive row id argument.
func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, inputErrorf("Niepoprawny identyfikator %s: %q.", what, s)
	}
	return id, nil
}

// pick resolves a reference given as an id or a name. Names compare with
// fold.Equal.
func pick[T any](what, ref string, items []T, id func(T) int64, name func(T) string) (T, error) {
	var zero T
	if n, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		for _, it := range items {
			if id(it) == n {
				return it, nil
			}
		}
		return zero, merry.Prependf(store.ErrNotFound, "%s %d", what, n).
			WithUserMessagef("Nie znaleziono: %s %d.", what, n)
	}
	for _, it := range items {
		if fold.Equal(name(it), ref) {
			return it, nil
		}
	}
	return zero, merry.Prependf(store.ErrNotFound, "%s %q", what, ref).
		WithUserMessagef("Nie znaleziono: %s %q.", what, ref)
}

// categoryRef resolves an optional category reference; empty means none.
func (e *env) categoryRef(ctx context.Context, kind store.CategoryKind, ref string) (int64, error) {
	if strings.TrimSpace(ref) == "" {
		return 0, nil
	}
	cats, err := e.store.ListCategories(ctx, kind)
	if err != nil {
		return 0, err
	}
	c, err := pick("kategoria", ref, cats,
		func(c store.Category) int64 { return c.ID },
		func(c store.Category) string { return c.Name })
	return c.ID, err
}

func (e *env) productRef(ctx context.Context, ref string) (store.Product, error) {
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return store.Product{}, err
	}
	return pick("produkt", ref, products,
		func(p store.Product) int64 { return p.ID },
		func(p store.Product) string { return p.Name })
}

func (e *env) additiveRef(ctx context.Context, ref string) (store.Additive, error) {
	additives, err := e.store.ListAdditives(ctx)
	if err != nil {
		return store.Additive{}, err
	}
	return pick("dodatek", ref, additives,
		func(a store.Additive) int64 { return a.ID },
		func(a store.Additive) string { return a.Name })
}

func (e *env) packagingRef(ctx context.Context, ref string) (store.Packaging, error) {
	items, err := e.store.ListPackaging(ctx)
	if err != nil {
		return store.Packaging{}, err
	}
	return pick("opakowanie", ref, items,
		func(p store.Packaging) int64 { return p.ID },
		func(p store.Packaging) string { return p.Name })
}
