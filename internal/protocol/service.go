package protocol

import (
	"context"
	"time"

	"github.com/ansel1/merry"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/fold"
	"github.com/roach88/serownia/internal/store"
)

// Repository is the persistence the service needs. *store.Store implements it.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (store.Product, error)
	ListProductAdditives(ctx context.Context, productID int64) ([]store.ProductAdditive, error)
	NextSeriesNumber(ctx context.Context, month, year int) (int, error)
	GetProductionRecord(ctx context.Context, id int64) (store.ProductionRecord, error)
	ListProductionRecords(ctx context.Context, filter string) ([]store.ProductionRecord, error)
	GetDetail(ctx context.Context, table string, recordID int64) (map[string]string, bool, error)
	ListAdditiveSnapshots(ctx context.Context, recordID int64) ([]store.AdditiveSnapshot, error)
	ListBatches(ctx context.Context, recordID int64) ([]store.Batch, error)
	SaveProtocol(ctx context.Context, w store.ProtocolWrite) (int64, error)
	DeleteProductionRecord(ctx context.Context, id int64) error
	DeleteProtocol(ctx context.Context, id int64) error
}

var _ Repository = (*store.Store)(nil)

// Service runs the protocol lifecycle: start a form, load one, rescale
// doses, save and delete.
type Service struct {
	repo    Repository
	schemas *Schemas
	logger  *zap.Logger
	limits  Limits
	now     func() time.Time
	ids     IDGenerator
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLimits sets the per-section line limits.
func WithLimits(l Limits) ServiceOption {
	return func(s *Service) {
		s.limits = l
	}
}

// WithClock replaces time.Now, which dates new protocols.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator sets the generator of save correlation ids.
func WithIDGenerator(g IDGenerator) ServiceOption {
	return func(s *Service) {
		s.ids = g
	}
}

// NewService creates a Service. A nil logger disables logging.
func NewService(repo Repository, schemas *Schemas, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:    repo,
		schemas: schemas,
		logger:  logger,
		limits:  DefaultLimits,
		now:     time.Now,
		ids:     UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schemas returns the field schemas the service validates against.
func (s *Service) Schemas() *Schemas { return s.schemas }

// Resolve loads a product and the protocol schema of its category.
// Products of other categories yield ErrNoProtocol.
func (s *Service) Resolve(ctx context.Context, productID int64) (store.Product, *Schema, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return store.Product{}, nil, err
	}
	kind := s.schemas.ResolveKind(product.CategoryName)
	sc, ok := s.schemas.For(kind)
	if !ok {
		return product, nil, merry.Prependf(ErrNoProtocol, "product %d (%s)", product.ID, product.CategoryName)
	}
	return product, sc, nil
}

// New starts an unsaved protocol for a product: today's date, the next
// series number of the month, field defaults and the product's recipe as
// additive lines with empty doses.
func (s *Service) New(ctx context.Context, productID int64) (*Protocol, error) {
	product, sc, err := s.Resolve(ctx, productID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	seq, err := s.repo.NextSeriesNumber(ctx, int(today.Month()), today.Year())
	if err != nil {
		return nil, err
	}

	recipe, err := s.repo.ListProductAdditives(ctx, productID)
	if err != nil {
		return nil, err
	}

	p := &Protocol{
		Kind:      sc.Kind,
		Date:      today.Format(DateLayout),
		Series:    FormatSeries(seq, int(today.Month()), today.Year()),
		ProductID: product.ID,
		Product:   product.Name,
		Fields:    sc.Defaults(),
		Additives: []AdditiveLine{},
		Batches:   []BatchLine{},
	}
	for i, r := range recipe {
		if s.limits.MaxAdditiveLines > 0 && i >= s.limits.MaxAdditiveLines {
			break
		}
		p.Additives = append(p.Additives, AdditiveLine{
			Category: r.CategoryName,
			Name:     r.AdditiveName,
			Rate:     r.DosagePer100,
		})
	}
	Recalculate(p, sc)
	return p, nil
}

// Load reads a saved protocol. A missing detail row loads as defaults.
// Additive lines get the rate of the recipe line with the same additive
// name, so a later volume change rescales them.
func (s *Service) Load(ctx context.Context, id int64) (*Protocol, error) {
	rec, err := s.repo.GetProductionRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	product, sc, err := s.Resolve(ctx, rec.ProductID)
	if err != nil {
		return nil, err
	}

	fields := sc.Defaults()
	detail, found, err := s.repo.GetDetail(ctx, sc.Table, id)
	if err != nil {
		return nil, err
	}
	if found {
		for k, v := range detail {
			fields[k] = v
		}
	}

	snaps, err := s.repo.ListAdditiveSnapshots(ctx, id)
	if err != nil {
		return nil, err
	}
	recipe, err := s.repo.ListProductAdditives(ctx, rec.ProductID)
	if err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatches(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &Protocol{
		ID:        rec.ID,
		Kind:      sc.Kind,
		Date:      rec.Date,
		Series:    rec.Series,
		ProductID: rec.ProductID,
		Product:   product.Name,
		Fields:    fields,
		Additives: make([]AdditiveLine, 0, len(snaps)),
		Batches:   make([]BatchLine, 0, len(batches)),
	}
	for _, a := range snaps {
		line := AdditiveLine{Category: a.Category, Name: a.Name, Dose: a.Dose}
		for _, r := range recipe {
			if fold.Equal(r.AdditiveName, a.Name) {
				line.Rate = r.DosagePer100
				break
			}
		}
		p.Additives = append(p.Additives, line)
	}
	for _, b := range batches {
		p.Batches = append(p.Batches, BatchLine{Lot: b.Lot, Weight: b.Weight, Comment: b.Comment})
	}
	return p, nil
}

// Recalculate rescales the doses of p to its volume field.
func (s *Service) Recalculate(p *Protocol) error {
	sc, ok := s.schemas.For(p.Kind)
	if !ok {
		return merry.Prependf(ErrNoProtocol, "kind %s", p.Kind)
	}
	Recalculate(p, sc)
	return nil
}

// Save validates p and writes it in one transaction. On success p.ID holds
// the record id. Nothing is written when validation fails.
func (s *Service) Save(ctx context.Context, p *Protocol) (int64, error) {
	log := s.logger.With(
		zap.String("save_id", s.ids.Generate()),
		zap.Int64("record_id", p.ID),
		zap.Stringer("kind", p.Kind),
	)

	sc, ok := s.schemas.For(p.Kind)
	if !ok {
		return 0, merry.Prependf(ErrNoProtocol, "kind %s", p.Kind)
	}
	if err := Validate(p, sc, s.limits); err != nil {
		log.Debug("protocol rejected", zap.Error(err))
		return 0, err
	}

	product, productSchema, err := s.Resolve(ctx, p.ProductID)
	switch {
	case store.IsNotFound(err):
		return 0, invalid("Wybrany produkt nie istnieje.")
	case merry.Is(err, ErrNoProtocol):
		return 0, invalid("Produkt %q nie ma protokołu produkcji.", product.Name)
	case err != nil:
		return 0, err
	case productSchema.Kind != p.Kind:
		return 0, invalid("Produkt %q wymaga protokołu %s.", product.Name, productSchema.Kind)
	}

	id, err := s.repo.SaveProtocol(ctx, p.toWrite(sc))
	if err != nil {
		log.Error("protocol save failed", zap.Error(err))
		return 0, err
	}
	created := p.IsNew()
	p.ID = id
	p.Product = product.Name
	log.Info("protocol saved",
		zap.Int64("id", id),
		zap.Bool("created", created),
		zap.String("series", p.Series),
		zap.Int("additives", len(p.Additives)),
		zap.Int("batches", len(p.Batches)),
	)
	return id, nil
}

// Delete removes a protocol. Without purge only the record row goes and
// its detail, additive and batch rows stay behind as orphans; with purge
// everything goes in one transaction.
func (s *Service) Delete(ctx context.Context, id int64, purge bool) error {
	var err error
	if purge {
		err = s.repo.DeleteProtocol(ctx, id)
	} else {
		err = s.repo.DeleteProductionRecord(ctx, id)
	}
	if err != nil {
		return err
	}
	s.logger.Info("protocol deleted", zap.Int64("id", id), zap.Bool("purge", purge))
	return nil
}

// List returns saved records whose series or product name contains filter.
func (s *Service) List(ctx context.Context, filter string) ([]store.ProductionRecord, error) {
	return s.repo.ListProductionRecords(ctx, filter)
}
