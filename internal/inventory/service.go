package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
	"github.com/trywear-labs/storefront-backend/pkg/outbox/payloads"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"
)

// clampRetries bounds the read-then-CAS loop under heavy contention.
const clampRetries = 5

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReorderPolicy suggests how much to reorder for a low-stock variant.
type ReorderPolicy interface {
	SuggestedReorder(stockQuantity, threshold int) int
}

// MultiplierPolicy reorders up to threshold*multiplier. The suggestion grows
// as stock falls, never below zero.
type MultiplierPolicy struct {
	Multiplier int
}

func (p MultiplierPolicy) SuggestedReorder(stockQuantity, threshold int) int {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	suggested := threshold*multiplier - stockQuantity
	if suggested < 0 {
		return 0
	}
	return suggested
}

// AdjustInput describes one stock change request.
type AdjustInput struct {
	StoreID        uuid.UUID
	VariantID      uuid.UUID
	MovementType   enums.MovementType
	QuantityChange int
	OrderID        *uuid.UUID
	Note           *string
	CreatedBy      *uuid.UUID
}

// Adjustment reports what actually happened, which can differ from the
// request when a sale oversells.
type Adjustment struct {
	VariantID        uuid.UUID
	MovementType     enums.MovementType
	RequestedChange  int
	AppliedChange    int
	PreviousQuantity int
	NewQuantity      int
	Oversold         int
	LowStock         bool
	Threshold        int
}

// LowStockItem pairs a low variant with its reorder suggestion.
type LowStockItem struct {
	Variant      models.ProductVariant
	SuggestedQty int
}

// Service is the inventory ledger: every stock change goes through it and
// leaves exactly one movement row.
type Service interface {
	AdjustStock(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Adjustment, error)
	LowStock(ctx context.Context, storeID uuid.UUID) ([]LowStockItem, error)
	MovementsByOrder(ctx context.Context, storeID, orderID uuid.UUID) ([]models.InventoryMovement, error)
	MovementsByVariant(ctx context.Context, storeID, variantID uuid.UUID, params pagination.Params) ([]models.InventoryMovement, error)
}

type service struct {
	repo   Repository
	policy ReorderPolicy
	outbox outboxPublisher
}

// NewService wires the inventory ledger.
func NewService(repo Repository, policy ReorderPolicy, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if policy == nil {
		policy = MultiplierPolicy{Multiplier: 3}
	}
	return &service{repo: repo, policy: policy, outbox: publisher}, nil
}

// AdjustStock applies the change atomically and records the movement with
// the delta actually applied. Sales clamp to zero instead of failing; every
// other movement type fails when it would drive stock negative.
func (s *service) AdjustStock(ctx context.Context, tx *gorm.DB, input AdjustInput) (*Adjustment, error) {
	if err := validateAdjustInput(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)

	variant, err := repo.GetVariant(ctx, input.StoreID, input.VariantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": input.VariantID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}

	adjustment, err := s.applyChange(ctx, repo, variant, input)
	if err != nil {
		return nil, err
	}

	movement := &models.InventoryMovement{
		StoreID:          input.StoreID,
		VariantID:        input.VariantID,
		MovementType:     input.MovementType,
		QuantityChange:   adjustment.AppliedChange,
		PreviousQuantity: adjustment.PreviousQuantity,
		NewQuantity:      adjustment.NewQuantity,
		OrderID:          input.OrderID,
		Note:             input.Note,
		CreatedBy:        input.CreatedBy,
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record movement")
	}

	adjustment.Threshold = variant.LowStockThreshold
	adjustment.LowStock = adjustment.NewQuantity <= variant.LowStockThreshold

	if err := s.emitEvents(ctx, tx, variant, adjustment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock events")
	}

	return adjustment, nil
}

func (s *service) applyChange(ctx context.Context, repo Repository, variant *models.ProductVariant, input AdjustInput) (*Adjustment, error) {
	change := input.QuantityChange

	if change >= 0 {
		if err := repo.IncrementStock(ctx, variant.ID, change); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
		return &Adjustment{
			VariantID:        variant.ID,
			MovementType:     input.MovementType,
			RequestedChange:  change,
			AppliedChange:    change,
			PreviousQuantity: variant.StockQuantity,
			NewQuantity:      variant.StockQuantity + change,
		}, nil
	}

	qty := -change
	ok, err := repo.DecrementGuarded(ctx, variant.ID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if ok {
		return &Adjustment{
			VariantID:        variant.ID,
			MovementType:     input.MovementType,
			RequestedChange:  change,
			AppliedChange:    change,
			PreviousQuantity: variant.StockQuantity,
			NewQuantity:      variant.StockQuantity - qty,
		}, nil
	}

	if input.MovementType != enums.MovementTypeSale {
		return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "adjustment would drive stock negative").
			WithDetails(map[string]any{
				"variant_id": variant.ID.String(),
				"requested":  change,
			})
	}

	// Oversell: take whatever remains, clamping to zero. The guard failed, so
	// the row may have changed since our read; retry the CAS a few times.
	for attempt := 0; attempt < clampRetries; attempt++ {
		current, err := repo.GetVariant(ctx, input.StoreID, variant.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant")
		}
		if current.StockQuantity >= qty {
			// Restocked concurrently; the full decrement can succeed now.
			ok, err := repo.DecrementGuarded(ctx, variant.ID, qty)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				continue
			}
			return &Adjustment{
				VariantID:        variant.ID,
				MovementType:     input.MovementType,
				RequestedChange:  change,
				AppliedChange:    change,
				PreviousQuantity: current.StockQuantity,
				NewQuantity:      current.StockQuantity - qty,
			}, nil
		}

		ok, err := repo.ClampToZero(ctx, variant.ID, current.StockQuantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clamp stock")
		}
		if !ok {
			continue
		}
		applied := -current.StockQuantity
		return &Adjustment{
			VariantID:        variant.ID,
			MovementType:     input.MovementType,
			RequestedChange:  change,
			AppliedChange:    applied,
			PreviousQuantity: current.StockQuantity,
			NewQuantity:      0,
			Oversold:         qty - current.StockQuantity,
		}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock contention retries exhausted").
		WithDetails(map[string]any{"variant_id": variant.ID.String()})
}

func (s *service) emitEvents(ctx context.Context, tx *gorm.DB, variant *models.ProductVariant, adj *Adjustment) error {
	if s.outbox == nil || tx == nil {
		return nil
	}

	if adj.MovementType != enums.MovementTypeSale {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   variant.ID,
			Data: payloads.StockAdjustedEvent{
				VariantID:        variant.ID,
				StoreID:          variant.StoreID,
				MovementType:     adj.MovementType,
				QuantityChange:   adj.AppliedChange,
				PreviousQuantity: adj.PreviousQuantity,
				NewQuantity:      adj.NewQuantity,
			},
			Version: 1,
		})
		if err != nil {
			return err
		}
	}

	// Only the crossing edge emits, not every sale while already low.
	if adj.LowStock && adj.PreviousQuantity > adj.Threshold {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateProductVariant,
			AggregateID:   variant.ID,
			Data: payloads.LowStockDetectedEvent{
				VariantID:     variant.ID,
				StoreID:       variant.StoreID,
				StockQuantity: adj.NewQuantity,
				Threshold:     adj.Threshold,
				SuggestedQty:  s.policy.SuggestedReorder(adj.NewQuantity, adj.Threshold),
			},
			Version: 1,
		})
	}
	return nil
}

func (s *service) LowStock(ctx context.Context, storeID uuid.UUID) ([]LowStockItem, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	variants, err := s.repo.ListLowStock(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	items := make([]LowStockItem, len(variants))
	for i, variant := range variants {
		items[i] = LowStockItem{
			Variant:      variant,
			SuggestedQty: s.policy.SuggestedReorder(variant.StockQuantity, variant.LowStockThreshold),
		}
	}
	return items, nil
}

func (s *service) MovementsByOrder(ctx context.Context, storeID, orderID uuid.UUID) ([]models.InventoryMovement, error) {
	if storeID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and order id required")
	}
	movements, err := s.repo.MovementsByOrder(ctx, storeID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return movements, nil
}

func (s *service) MovementsByVariant(ctx context.Context, storeID, variantID uuid.UUID, params pagination.Params) ([]models.InventoryMovement, error) {
	if storeID == uuid.Nil || variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and variant id required")
	}
	movements, err := s.repo.MovementsByVariant(ctx, storeID, variantID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return movements, nil
}

func validateAdjustInput(input AdjustInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.VariantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if !input.MovementType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type").
			WithDetails(map[string]any{"movement_type": string(input.MovementType)})
	}
	if input.QuantityChange == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	switch input.MovementType {
	case enums.MovementTypeSale:
		if input.QuantityChange > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "sale movements must decrease stock")
		}
	case enums.MovementTypeRestock, enums.MovementTypeReturn:
		if input.QuantityChange < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restock and return movements must increase stock")
		}
	}
	return nil
}
