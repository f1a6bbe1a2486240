package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/internal/inventory"
	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	"github.com/trywear-labs/storefront-backend/internal/pricing"
	dbpkg "github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/metrics"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
	"github.com/trywear-labs/storefront-backend/pkg/outbox/payloads"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"
)

const (
	stageValidate  = "validate"
	stageResolve   = "resolve"
	stagePrice     = "price"
	stageOrder     = "order"
	stageItems     = "items"
	stageInventory = "inventory"
	stageRedeem    = "redeem"
	stageEarn      = "earn"
	stageEvents    = "events"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service completes sales. Every write a completion performs happens inside
// one database transaction; a failure at any stage leaves no trace.
type Service interface {
	CompleteSale(ctx context.Context, input CompleteSaleInput) (*Receipt, error)
	GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
}

type service struct {
	db            txRunner
	repo          Repository
	calc          *pricing.Calculator
	inventory     inventory.Service
	loyalty       loyalty.Service
	outbox        outboxPublisher
	metrics       *metrics.SaleMetrics
	logg          *logger.Logger
	numberRetries int
	maxLines      int
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	DB                 txRunner
	Repo               Repository
	Calculator         *pricing.Calculator
	Inventory          inventory.Service
	Loyalty            loyalty.Service
	Outbox             outboxPublisher
	Metrics            *metrics.SaleMetrics
	Logger             *logger.Logger
	OrderNumberRetries int
	MaxLinesPerOrder   int
}

// NewService wires the sale completion orchestrator.
func NewService(deps Deps) (Service, error) {
	if deps.DB == nil || deps.Repo == nil {
		return nil, fmt.Errorf("database and repository required")
	}
	if deps.Calculator == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if deps.Inventory == nil || deps.Loyalty == nil {
		return nil, fmt.Errorf("inventory and loyalty services required")
	}
	retries := deps.OrderNumberRetries
	if retries < 1 {
		retries = 5
	}
	maxLines := deps.MaxLinesPerOrder
	if maxLines < 1 {
		maxLines = 100
	}
	return &service{
		db:            deps.DB,
		repo:          deps.Repo,
		calc:          deps.Calculator,
		inventory:     deps.Inventory,
		loyalty:       deps.Loyalty,
		outbox:        deps.Outbox,
		metrics:       deps.Metrics,
		logg:          deps.Logger,
		numberRetries: retries,
		maxLines:      maxLines,
	}, nil
}

type resolvedLine struct {
	product *models.Product
	variant *models.ProductVariant
	request SaleLine
	price   decimal.Decimal
	label   *string
}

func (s *service) CompleteSale(ctx context.Context, input CompleteSaleInput) (*Receipt, error) {
	start := time.Now()

	if err := s.validateInput(input); err != nil {
		s.recordFailure(stageValidate)
		return nil, err
	}

	stage := stageResolve
	var receipt *Receipt

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		stage = stageResolve
		resolved, err := s.resolveLines(ctx, repo, input)
		if err != nil {
			return err
		}

		stage = stagePrice
		lines := make([]pricing.Line, len(resolved))
		for i, rl := range resolved {
			lines[i] = pricing.Line{UnitPrice: rl.price, Quantity: rl.request.Quantity}
		}
		quote, err := s.calc.Quote(lines, input.DiscountPercent, decimal.Zero)
		if err != nil {
			return err
		}

		var rewardBill decimal.Decimal
		if input.RewardID != nil {
			rewardBill = quote.Subtotal.Sub(quote.DiscountAmount)
			loyaltyDiscount, err := s.loyalty.QuoteReward(ctx, tx, input.StoreID, *input.RewardID, rewardBill)
			if err != nil {
				return err
			}
			if loyaltyDiscount.IsPositive() {
				quote, err = s.calc.Quote(lines, input.DiscountPercent, loyaltyDiscount)
				if err != nil {
					return err
				}
			}
		}

		stage = stageOrder
		order := s.buildOrder(input, quote)
		if err := s.createOrderWithNumber(ctx, tx, order); err != nil {
			return err
		}

		stage = stageItems
		items := buildItems(order.ID, resolved, quote)
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order items")
		}
		order.Items = items

		stage = stageInventory
		var warnings []string
		var oversold []payloads.OversoldLine
		for i, rl := range resolved {
			if rl.variant == nil {
				continue
			}
			adj, err := s.inventory.AdjustStock(ctx, tx, inventory.AdjustInput{
				StoreID:        input.StoreID,
				VariantID:      rl.variant.ID,
				MovementType:   enums.MovementTypeSale,
				QuantityChange: -rl.request.Quantity,
				OrderID:        &order.ID,
				CreatedBy:      &input.CashierID,
			})
			if err != nil {
				return err
			}
			if adj.Oversold > 0 {
				applied := -adj.AppliedChange
				warnings = append(warnings, fmt.Sprintf(
					"line %d: requested %d of %s, only %d in stock",
					i+1, rl.request.Quantity, rl.product.Name, applied,
				))
				oversold = append(oversold, payloads.OversoldLine{
					VariantID: rl.variant.ID,
					Requested: rl.request.Quantity,
					Applied:   applied,
				})
			}
		}

		stage = stageRedeem
		var redemption *loyalty.RedeemResult
		if input.RewardID != nil {
			redemption, err = s.loyalty.RedeemReward(ctx, tx, loyalty.RedeemInput{
				Key: loyalty.AccountKey{
					StoreID: input.StoreID,
					Phone:   input.Customer.Phone,
					Name:    input.Customer.Name,
				},
				RewardID:   *input.RewardID,
				OrderID:    order.ID,
				BillAmount: rewardBill,
			})
			if err != nil {
				return err
			}
			// The quoted discount is baked into the stored totals; a reward
			// changing mid-checkout would make them lie.
			if !redemption.DiscountAmount.Equal(quote.LoyaltyDiscount) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "reward changed during checkout").
					WithDetails(map[string]any{"reward_id": input.RewardID.String()})
			}
			if err := s.emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRewardRedeemed,
				AggregateType: enums.AggregateLoyaltyAccount,
				AggregateID:   redemption.AccountID,
				Data: payloads.RewardRedeemedEvent{
					RedemptionID:   redemption.RedemptionID,
					RewardID:       redemption.RewardID,
					AccountID:      redemption.AccountID,
					OrderID:        order.ID,
					PointsSpent:    redemption.PointsSpent,
					DiscountAmount: redemption.DiscountAmount,
				},
			}); err != nil {
				return err
			}
		}

		stage = stageEarn
		var earned *loyalty.EarnResult
		if input.Customer != nil {
			earned, err = s.loyalty.EarnPoints(ctx, tx, loyalty.AccountKey{
				StoreID: input.StoreID,
				Phone:   input.Customer.Phone,
				Name:    input.Customer.Name,
			}, order.ID, quote.Total)
			if err != nil {
				return err
			}
			if earned.Points > 0 {
				if err := s.emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventLoyaltyPointsEarned,
					AggregateType: enums.AggregateLoyaltyAccount,
					AggregateID:   earned.AccountID,
					Data: payloads.LoyaltyPointsEarnedEvent{
						AccountID:     earned.AccountID,
						StoreID:       input.StoreID,
						OrderID:       order.ID,
						Points:        earned.Points,
						TotalPoints:   earned.TotalPoints,
						LifetimeTotal: earned.LifetimePoints,
						Tier:          earned.Tier,
					},
				}); err != nil {
					return err
				}
			}
		}

		stage = stageEvents
		pointsEarned := 0
		if earned != nil {
			pointsEarned = earned.Points
		}
		if err := s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.SaleCompletedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				StoreID:       order.StoreID,
				Total:         order.Total,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     len(items),
				PointsEarned:  pointsEarned,
				Flagged:       len(oversold) > 0,
				CompletedAt:   order.CreatedAt,
			},
		}); err != nil {
			return err
		}
		if len(oversold) > 0 {
			if err := s.emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSaleOversellFlagged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.SaleOversellFlaggedEvent{
					OrderID:     order.ID,
					OrderNumber: order.OrderNumber,
					StoreID:     order.StoreID,
					Lines:       oversold,
					FlaggedAt:   time.Now().UTC(),
				},
			}); err != nil {
				return err
			}
		}

		receipt = &Receipt{
			Order:      *order,
			Points:     earned,
			Redemption: redemption,
			Warnings:   warnings,
		}
		return nil
	})
	if err != nil {
		s.recordFailure(stage)
		return nil, withStep(err, stage)
	}

	if s.metrics != nil {
		s.metrics.IncCompleted("success")
		s.metrics.ObserveDuration(time.Since(start))
		if receipt.Flagged() {
			s.metrics.IncOversell()
		}
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, receipt.Order.ID.String())
		s.logg.Info(ctx, "sale completed")
	}
	return receipt, nil
}

func (s *service) validateInput(input CompleteSaleInput) error {
	if input.StoreID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.CashierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cashier id required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"payment_method": string(input.PaymentMethod)})
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
	}
	if len(input.Lines) > s.maxLines {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many cart lines").
			WithDetails(map[string]any{"max_lines": s.maxLines})
	}
	for i, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line product id required").
				WithDetails(map[string]any{"line": i})
		}
		if line.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be at least 1").
				WithDetails(map[string]any{"line": i})
		}
	}
	if input.Customer != nil && strings.TrimSpace(input.Customer.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer phone required")
	}
	if input.RewardID != nil && input.Customer == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "reward redemption requires a customer")
	}
	return nil
}

func (s *service) resolveLines(ctx context.Context, repo Repository, input CompleteSaleInput) ([]resolvedLine, error) {
	resolved := make([]resolvedLine, len(input.Lines))
	for i, line := range input.Lines {
		product, err := repo.GetProduct(ctx, input.StoreID, line.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"line": i, "product_id": line.ProductID.String()})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not for sale").
				WithDetails(map[string]any{"line": i, "product_id": product.ID.String()})
		}

		rl := resolvedLine{product: product, request: line, price: product.BasePrice}
		if line.VariantID != nil {
			variant, err := repo.GetVariant(ctx, input.StoreID, *line.VariantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
						WithDetails(map[string]any{"line": i, "variant_id": line.VariantID.String()})
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
			}
			if variant.ProductID != product.ID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
					WithDetails(map[string]any{"line": i})
			}
			rl.variant = variant
			rl.price = product.BasePrice.Add(variant.PriceAdjustment)
			rl.label = variantLabel(variant)
		}
		resolved[i] = rl
	}
	return resolved, nil
}

func (s *service) buildOrder(input CompleteSaleInput, quote *pricing.Quote) *models.Order {
	order := &models.Order{
		ID:              uuid.New(),
		StoreID:         input.StoreID,
		Subtotal:        quote.Subtotal,
		DiscountPercent: quote.DiscountPercent,
		DiscountAmount:  quote.DiscountAmount,
		LoyaltyDiscount: quote.LoyaltyDiscount,
		TaxPercent:      quote.TaxPercent,
		TaxAmount:       quote.TaxAmount,
		Total:           quote.Total,
		PaymentMethod:   input.PaymentMethod,
		Status:          enums.OrderStatusCompleted,
		CreatedBy:       input.CashierID,
		CreatedAt:       time.Now().UTC(),
	}
	if input.Customer != nil {
		order.CustomerName = input.Customer.Name
		phone := input.Customer.Phone
		order.CustomerPhone = &phone
	}
	return order
}

// createOrderWithNumber allocates the next daily sequence and inserts the
// order. Each attempt runs in a savepoint so a unique violation does not
// poison the surrounding transaction.
func (s *service) createOrderWithNumber(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	dayStart, dayEnd := dayBounds(order.CreatedAt)
	repo := s.repo.WithTx(tx)

	for attempt := 0; attempt < s.numberRetries; attempt++ {
		count, err := repo.CountOrdersBetween(ctx, order.StoreID, dayStart, dayEnd)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count daily orders")
		}
		order.OrderNumber = formatOrderNumber(dayStart, int(count)+1+attempt)

		err = tx.Transaction(func(inner *gorm.DB) error {
			return s.repo.WithTx(inner).CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !dbpkg.IsUniqueViolation(err, "ux_orders_store_order_number") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number").
		WithDetails(map[string]any{"attempts": s.numberRetries})
}

func buildItems(orderID uuid.UUID, resolved []resolvedLine, quote *pricing.Quote) []models.OrderItem {
	items := make([]models.OrderItem, len(resolved))
	for i, rl := range resolved {
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProductID:   rl.product.ID,
			ProductName: rl.product.Name,
			Quantity:    rl.request.Quantity,
			UnitPrice:   rl.price,
			LineTotal:   quote.LineTotals[i],
		}
		if rl.variant != nil {
			variantID := rl.variant.ID
			item.VariantID = &variantID
			item.VariantLabel = rl.label
		}
		items[i] = item
	}
	return items
}

func variantLabel(variant *models.ProductVariant) *string {
	var parts []string
	if variant.Size != nil && *variant.Size != "" {
		parts = append(parts, *variant.Size)
	}
	if variant.Color != nil && *variant.Color != "" {
		parts = append(parts, *variant.Color)
	}
	if len(parts) == 0 {
		return nil
	}
	label := strings.Join(parts, " / ")
	return &label
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.outbox == nil {
		return nil
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record outbox event")
	}
	return nil
}

func (s *service) recordFailure(stage string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncCompleted("failure")
	s.metrics.IncStageFailure(stage)
}

// withStep annotates coded errors with the stage that aborted the sale so
// clients can tell a pricing rejection from an inventory one.
func withStep(err error, stage string) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return err
	}
	switch details := typed.Details().(type) {
	case nil:
		typed.WithDetails(map[string]any{"step": stage})
	case map[string]any:
		if _, ok := details["step"]; !ok {
			details["step"] = stage
		}
	}
	return typed
}

func (s *service) GetOrder(ctx context.Context, storeID, orderID uuid.UUID) (*models.Order, error) {
	if storeID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id and order id required")
	}
	order, err := s.repo.GetOrder(ctx, storeID, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, storeID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if storeID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	orders, next, err := s.repo.ListOrders(ctx, storeID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, next, nil
}
