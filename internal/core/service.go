package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockroom/internal/infra/persistence/memory"
	"stockroom/pkg/domain"
)

// Service exposes the transactional inventory, category and history operations.
type Service struct {
	store   PersistentStore
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	history bool
	cascade CascadeHistory
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:   store,
		clock:   o.clock,
		logger:  o.logger,
		audit:   o.audit,
		metrics: o.metrics,
		tracer:  o.tracer,
		history: o.history,
		cascade: o.cascadeHistory,
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
// The store mints identifiers from the service clock.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	store := memory.NewStore(engine, memory.WithNowFunc(o.clock.Now))
	return NewService(store, opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// HistoryEnabled reports whether mutations append to the history log.
func (s *Service) HistoryEnabled() bool {
	return s.history
}

// ProductInput carries the fields of the New Product form.
type ProductInput struct {
	Category     string `json:"category"`
	Name         string `json:"name"`
	Sizes        string `json:"sizes"`
	InitialStock int    `json:"initial_stock"`
}

// VariantInput carries the fields of the Add Variant form.
type VariantInput struct {
	Product      string `json:"product"`
	Sizes        string `json:"sizes"`
	InitialStock int    `json:"initial_stock"`
}

// CreateOutcome lists the items a create operation added and the sizes it skipped
// because the product already had them.
type CreateOutcome struct {
	Created []StockItem `json:"created"`
	Skipped []string    `json:"skipped"`
}

// AdjustOutcome reports the item after a stock adjustment. Changed is false when a
// decrement hit the zero floor.
type AdjustOutcome struct {
	Item    StockItem `json:"item"`
	Changed bool      `json:"changed"`
}

// SplitSizes splits a comma-separated size list, trimming whitespace and dropping
// empty tokens.
func SplitSizes(raw string) []string {
	var out []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			out = append(out, token)
		}
	}
	return out
}

func validateStock(stock int) error {
	if stock < 0 {
		return ValidationError{Field: "initial_stock", Message: "must not be negative"}
	}
	return nil
}

// CreateProduct adds one item per new size of a product in an existing category.
// Sizes the product already has are skipped; creating nothing is not an error.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (CreateOutcome, Result, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	sizes := SplitSizes(in.Sizes)
	if name == "" {
		return CreateOutcome{}, Result{}, ValidationError{Field: "name", Message: "is required"}
	}
	if len(sizes) == 0 {
		return CreateOutcome{}, Result{}, ValidationError{Field: "sizes", Message: "must contain at least one size"}
	}
	if err := validateStock(in.InitialStock); err != nil {
		return CreateOutcome{}, Result{}, err
	}

	var out CreateOutcome
	now := s.now()
	res, err := s.run(ctx, "create_product", name, func(tx domain.Transaction) error {
		if len(tx.Snapshot().ListCategories()) == 0 {
			return ValidationError{Field: "category", Message: "no categories defined"}
		}
		if category == "" {
			return ValidationError{Field: "category", Message: "is required"}
		}
		if !tx.HasCategory(category) {
			return ErrNotFound{Entity: EntityCategory, ID: category}
		}
		var err error
		out, err = s.createVariants(tx, now, category, name, sizes, in.InitialStock, domain.HistoryCreated)
		return err
	})
	if err != nil {
		return CreateOutcome{}, res, err
	}
	return out, res, nil
}

// AddVariant adds new sizes to an existing product, inheriting the category of
// the first item carrying that product name.
func (s *Service) AddVariant(ctx context.Context, in VariantInput) (CreateOutcome, Result, error) {
	product := strings.TrimSpace(in.Product)
	sizes := SplitSizes(in.Sizes)
	if product == "" {
		return CreateOutcome{}, Result{}, ValidationError{Field: "product", Message: "is required"}
	}
	if len(sizes) == 0 {
		return CreateOutcome{}, Result{}, ValidationError{Field: "sizes", Message: "must contain at least one size"}
	}
	if err := validateStock(in.InitialStock); err != nil {
		return CreateOutcome{}, Result{}, err
	}

	var out CreateOutcome
	now := s.now()
	res, err := s.run(ctx, "add_variant", product, func(tx domain.Transaction) error {
		category := domain.UncategorizedCategory
		for _, item := range tx.Snapshot().ListItems() {
			if item.Name == product {
				category = item.Category
				break
			}
		}
		var err error
		out, err = s.createVariants(tx, now, category, product, sizes, in.InitialStock, domain.HistoryCreatedVariant)
		return err
	})
	if err != nil {
		return CreateOutcome{}, res, err
	}
	return out, res, nil
}

func (s *Service) createVariants(tx domain.Transaction, now time.Time, category, name string, sizes []string, stock int, action HistoryAction) (CreateOutcome, error) {
	existing := make(map[string]bool)
	for _, item := range tx.Snapshot().ListItems() {
		existing[item.VariantKey()] = true
	}
	out := CreateOutcome{Created: []StockItem{}, Skipped: []string{}}
	for _, size := range sizes {
		key := domain.VariantKey(name, size)
		if existing[key] {
			out.Skipped = append(out.Skipped, size)
			continue
		}
		item, err := tx.CreateItem(StockItem{
			Category:    category,
			Name:        name,
			Size:        size,
			Stock:       stock,
			LastUpdated: now.Format(domain.DateLayout),
		})
		if err != nil {
			return CreateOutcome{}, err
		}
		existing[key] = true
		out.Created = append(out.Created, item)
		if err := s.record(tx, now, name, size, action, stock, stock); err != nil {
			return CreateOutcome{}, err
		}
	}
	return out, nil
}

// AdjustStock moves an item's stock by delta, which must be +1 or -1. A
// decrement at zero leaves the item untouched and records nothing.
func (s *Service) AdjustStock(ctx context.Context, id int64, delta int) (AdjustOutcome, Result, error) {
	if delta != 1 && delta != -1 {
		return AdjustOutcome{}, Result{}, ValidationError{Field: "delta", Message: "must be +1 or -1"}
	}
	var out AdjustOutcome
	now := s.now()
	res, err := s.run(ctx, "adjust_stock", formatID(id), func(tx domain.Transaction) error {
		item, ok := tx.FindItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityStockItem, ID: formatID(id)}
		}
		if delta < 0 && item.Stock <= 0 {
			out = AdjustOutcome{Item: item}
			return nil
		}
		updated, err := tx.UpdateItem(id, func(it *StockItem) error {
			it.Stock += delta
			return nil
		})
		if err != nil {
			return err
		}
		out = AdjustOutcome{Item: updated, Changed: true}
		action := domain.HistoryStockIn
		if delta < 0 {
			action = domain.HistoryStockOut
		}
		return s.record(tx, now, updated.Name, updated.Size, action, delta, updated.Stock)
	})
	if err != nil {
		return AdjustOutcome{}, res, err
	}
	return out, res, nil
}

// DeleteVariant removes a single item and returns it.
func (s *Service) DeleteVariant(ctx context.Context, id int64) (StockItem, Result, error) {
	var removed StockItem
	now := s.now()
	res, err := s.run(ctx, "delete_variant", formatID(id), func(tx domain.Transaction) error {
		item, ok := tx.FindItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityStockItem, ID: formatID(id)}
		}
		if err := tx.DeleteItem(id); err != nil {
			return err
		}
		removed = item
		return s.record(tx, now, item.Name, item.Size, domain.HistoryDeletedVariant, 0, 0)
	})
	if err != nil {
		return StockItem{}, res, err
	}
	return removed, res, nil
}

// DeleteProduct removes every item with the given product name and returns how
// many were removed. One history entry covers the whole product.
func (s *Service) DeleteProduct(ctx context.Context, name string) (int, Result, error) {
	if strings.TrimSpace(name) == "" {
		return 0, Result{}, ValidationError{Field: "product", Message: "is required"}
	}
	var removed int
	now := s.now()
	res, err := s.run(ctx, "delete_product", name, func(tx domain.Transaction) error {
		for _, item := range tx.Snapshot().ListItems() {
			if item.Name != name {
				continue
			}
			if err := tx.DeleteItem(item.ID); err != nil {
				return err
			}
			removed++
		}
		if removed == 0 {
			return ErrNotFound{Entity: EntityStockItem, ID: name}
		}
		return s.record(tx, now, name, domain.AllProductsSize, domain.HistoryDeletedProduct, 0, 0)
	})
	if err != nil {
		return 0, res, err
	}
	return removed, res, nil
}

// AddCategory registers a new category name.
func (s *Service) AddCategory(ctx context.Context, name string) (string, Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Result{}, ValidationError{Field: "category", Message: "is required"}
	}
	res, err := s.run(ctx, "add_category", name, func(tx domain.Transaction) error {
		if tx.HasCategory(name) {
			return fmt.Errorf("%w: %s", ErrDuplicateCategory, name)
		}
		return tx.AddCategory(name)
	})
	if err != nil {
		return "", res, err
	}
	return name, res, nil
}

// DeleteCategory removes a category and every item filed under it, returning the
// number of items removed.
func (s *Service) DeleteCategory(ctx context.Context, name string) (int, Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, Result{}, ValidationError{Field: "category", Message: "is required"}
	}
	var removed int
	now := s.now()
	res, err := s.run(ctx, "delete_category", name, func(tx domain.Transaction) error {
		if !tx.HasCategory(name) {
			return ErrNotFound{Entity: EntityCategory, ID: name}
		}
		if err := tx.DeleteCategory(name); err != nil {
			return err
		}
		for _, item := range tx.Snapshot().ListItems() {
			if item.Category != name {
				continue
			}
			if err := tx.DeleteItem(item.ID); err != nil {
				return err
			}
			removed++
			if s.cascade == CascadeHistoryPerItem {
				if err := s.record(tx, now, item.Name, item.Size, domain.HistoryDeletedVariant, 0, 0); err != nil {
					return err
				}
			}
		}
		if s.cascade == CascadeHistoryAggregate && removed > 0 {
			return s.record(tx, now, name, domain.AllProductsSize, domain.HistoryDeletedCategory, 0, 0)
		}
		return nil
	})
	if err != nil {
		return 0, res, err
	}
	return removed, res, nil
}

func (s *Service) record(tx domain.Transaction, now time.Time, product, size string, action HistoryAction, change, final int) error {
	if !s.history {
		return nil
	}
	return tx.AppendHistory(HistoryEntry{
		Timestamp:   now,
		ProductName: product,
		Size:        size,
		Action:      action,
		Change:      change,
		FinalStock:  final,
	})
}

func (s *Service) now() time.Time {
	return s.clock.Now().Truncate(time.Second)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (s *Service) run(ctx context.Context, op, entityID string, fn func(domain.Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	duration := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, duration)
	span.End(err)
	if err != nil {
		s.logger.Error("inventory operation failed", "operation", op, "entity_id", entityID, "error", err)
		s.recordAudit(ctx, op, entityID, AuditStatusError, err, duration)
		return res, err
	}
	for _, warning := range res.Warnings() {
		s.logger.Warn("rule warning", "operation", op, "entity_id", entityID, "message", warning)
	}
	s.logger.Debug("inventory operation committed", "operation", op, "entity_id", entityID, "duration", duration)
	s.recordAudit(ctx, op, entityID, AuditStatusSuccess, nil, duration)
	return res, nil
}

type operationMeta struct {
	entity EntityType
	action Action
}

var auditedOperations = map[string]operationMeta{
	"create_product":  {EntityStockItem, ActionCreate},
	"add_variant":     {EntityStockItem, ActionCreate},
	"adjust_stock":    {EntityStockItem, ActionUpdate},
	"delete_variant":  {EntityStockItem, ActionDelete},
	"delete_product":  {EntityStockItem, ActionDelete},
	"add_category":    {EntityCategory, ActionCreate},
	"delete_category": {EntityCategory, ActionDelete},
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, status AuditStatus, err error, duration time.Duration) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    status,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
