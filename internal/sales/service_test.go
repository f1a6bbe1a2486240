package sales

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/internal/inventory"
	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	"github.com/trywear-labs/storefront-backend/internal/pricing"
	"github.com/trywear-labs/storefront-backend/pkg/config"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE products (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			sku TEXT NOT NULL,
			name TEXT NOT NULL,
			base_price NUMERIC NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE product_variants (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL,
			store_id TEXT NOT NULL,
			sku TEXT NOT NULL,
			size TEXT,
			color TEXT,
			price_adjustment NUMERIC NOT NULL DEFAULT 0,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			low_stock_threshold INTEGER NOT NULL DEFAULT 5,
			updated_at DATETIME
		)`,
		`CREATE TABLE inventory_movements (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			variant_id TEXT NOT NULL,
			movement_type TEXT NOT NULL,
			quantity_change INTEGER NOT NULL,
			previous_quantity INTEGER NOT NULL,
			new_quantity INTEGER NOT NULL,
			order_id TEXT,
			note TEXT,
			created_by TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE orders (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			order_number TEXT NOT NULL,
			customer_name TEXT,
			customer_phone TEXT,
			subtotal NUMERIC NOT NULL,
			discount_percent INTEGER NOT NULL DEFAULT 0,
			discount_amount NUMERIC NOT NULL,
			loyalty_discount NUMERIC NOT NULL DEFAULT 0,
			tax_percent NUMERIC NOT NULL,
			tax_amount NUMERIC NOT NULL,
			total NUMERIC NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at DATETIME,
			UNIQUE (store_id, order_number)
		)`,
		`CREATE TABLE order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			variant_id TEXT,
			product_name TEXT NOT NULL,
			variant_label TEXT,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC NOT NULL,
			line_total NUMERIC NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE loyalty_accounts (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_name TEXT,
			total_points INTEGER NOT NULL DEFAULT 0,
			lifetime_points INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME,
			UNIQUE (store_id, customer_phone)
		)`,
		`CREATE TABLE loyalty_transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			order_id TEXT,
			type TEXT NOT NULL,
			points INTEGER NOT NULL,
			note TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE loyalty_rewards (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			name TEXT NOT NULL,
			points_required INTEGER NOT NULL,
			discount_type TEXT NOT NULL,
			discount_value NUMERIC NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			redemption_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE reward_redemptions (
			id TEXT PRIMARY KEY,
			reward_id TEXT NOT NULL,
			account_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			points_spent INTEGER NOT NULL,
			discount_amount NUMERIC NOT NULL,
			created_at DATETIME
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	calc, err := pricing.NewCalculator(config.PricingConfig{
		TaxPercent:    "18",
		DiscountTiers: "0,5,10,15,20",
	})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard})
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	invSvc, err := inventory.NewService(inventory.NewRepository(db), nil, publisher)
	if err != nil {
		t.Fatalf("inventory.NewService: %v", err)
	}
	loySvc, err := loyalty.NewService(loyalty.NewRepository(db), loyalty.Thresholds{
		PointsPer100: 10, Silver: 1000, Gold: 5000, Platinum: 15000,
	})
	if err != nil {
		t.Fatalf("loyalty.NewService: %v", err)
	}
	svc, err := NewService(Deps{
		DB:         gormTxRunner{db: db},
		Repo:       NewRepository(db),
		Calculator: calc,
		Inventory:  invSvc,
		Loyalty:    loySvc,
		Outbox:     publisher,
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, name, price string, active bool) models.Product {
	t.Helper()
	product := models.Product{
		ID:        uuid.New(),
		StoreID:   storeID,
		SKU:       "P-" + uuid.NewString()[:8],
		Name:      name,
		BasePrice: decimal.RequireFromString(price),
		Active:    active,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedVariant(t *testing.T, db *gorm.DB, product models.Product, adjustment string, stock int) models.ProductVariant {
	t.Helper()
	size := "M"
	variant := models.ProductVariant{
		ID:                uuid.New(),
		ProductID:         product.ID,
		StoreID:           product.StoreID,
		SKU:               product.SKU + "-M",
		Size:              &size,
		PriceAdjustment:   decimal.RequireFromString(adjustment),
		StockQuantity:     stock,
		LowStockThreshold: 2,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error %s, got %v", want, err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s", want, typed.Code())
	}
}

func assertStep(t *testing.T, err error, want string) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %#v", typed.Details())
	}
	if details["step"] != want {
		t.Fatalf("expected step %q, got %v", want, details["step"])
	}
}

func TestCompleteSaleHappyPath(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Linen Shirt", "1000", true)
	variant := seedVariant(t, db, product, "0", 5)
	name := "Asha"

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:         storeID,
		CashierID:       uuid.New(),
		DiscountPercent: 10,
		PaymentMethod:   enums.PaymentMethodUPI,
		Customer:        &CustomerInfo{Name: &name, Phone: "+919876510001"},
		Lines: []SaleLine{
			{ProductID: product.ID, VariantID: &variant.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}

	order := receipt.Order
	if !order.Subtotal.Equal(decimal.RequireFromString("2000")) {
		t.Fatalf("subtotal = %s, want 2000", order.Subtotal)
	}
	if !order.DiscountAmount.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("discount = %s, want 200", order.DiscountAmount)
	}
	if !order.TaxAmount.Equal(decimal.RequireFromString("324")) {
		t.Fatalf("tax = %s, want 324", order.TaxAmount)
	}
	if !order.Total.Equal(decimal.RequireFromString("2124")) {
		t.Fatalf("total = %s, want 2124", order.Total)
	}
	if order.Status != enums.OrderStatusCompleted {
		t.Fatalf("status = %s, want completed", order.Status)
	}
	if len(order.OrderNumber) != len("ORD-20260830-0001") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if receipt.Flagged() {
		t.Fatalf("unexpected warnings: %v", receipt.Warnings)
	}

	// 2124 earns floor(21.24)*10 = 210 points.
	if receipt.Points == nil || receipt.Points.Points != 210 {
		t.Fatalf("unexpected points: %+v", receipt.Points)
	}

	var reloaded models.ProductVariant
	if err := db.First(&reloaded, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if reloaded.StockQuantity != 3 {
		t.Fatalf("stock = %d, want 3", reloaded.StockQuantity)
	}

	var movements []models.InventoryMovement
	if err := db.Where("order_id = ?", order.ID).Find(&movements).Error; err != nil {
		t.Fatalf("load movements: %v", err)
	}
	if len(movements) != 1 || movements[0].QuantityChange != -2 {
		t.Fatalf("unexpected movements: %+v", movements)
	}

	var events []models.OutboxEvent
	if err := db.Where("aggregate_id = ?", order.ID).Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 1 || events[0].EventType != enums.EventSaleCompleted {
		t.Fatalf("unexpected order events: %+v", events)
	}
}

func TestCompleteSaleEmptyCartWritesNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       uuid.New(),
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	var count int64
	if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("no order should exist, found %d", count)
	}
}

func TestCompleteSaleOversellFlagsReceipt(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Denim Jacket", "800", true)
	variant := seedVariant(t, db, product, "0", 2)

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCard,
		Lines: []SaleLine{
			{ProductID: product.ID, VariantID: &variant.ID, Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}
	if !receipt.Flagged() {
		t.Fatal("expected a flagged receipt")
	}
	// The receipt charges for all 5; only stock movement is clamped.
	if !receipt.Order.Subtotal.Equal(decimal.RequireFromString("4000")) {
		t.Fatalf("subtotal = %s, want 4000", receipt.Order.Subtotal)
	}

	var reloaded models.ProductVariant
	if err := db.First(&reloaded, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if reloaded.StockQuantity != 0 {
		t.Fatalf("stock = %d, want 0", reloaded.StockQuantity)
	}

	var count int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventSaleOversellFlagged).
		Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 oversell event, got %d", count)
	}
}

func TestCompleteSaleSequentialOrderNumbers(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Cotton Tee", "500", true)

	var numbers []string
	for i := 0; i < 3; i++ {
		receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
			StoreID:       storeID,
			CashierID:     uuid.New(),
			PaymentMethod: enums.PaymentMethodCash,
			Lines:         []SaleLine{{ProductID: product.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("CompleteSale %d: %v", i, err)
		}
		numbers = append(numbers, receipt.Order.OrderNumber)
	}
	for i, number := range numbers {
		want := byte('1' + i)
		if number[len(number)-1] != want {
			t.Fatalf("order %d number %q does not end in %c", i, number, want)
		}
	}
}

func TestCompleteSaleRetriesOrderNumberOnConflict(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Canvas Tote", "600", true)

	// An order stamped before today already holds today's first number, so
	// the sequence derived from today's count collides on insert.
	dayStart, _ := dayBounds(time.Now().UTC())
	stale := models.Order{
		ID:              uuid.New(),
		StoreID:         storeID,
		OrderNumber:     formatOrderNumber(dayStart, 1),
		Subtotal:        decimal.Zero,
		DiscountAmount:  decimal.Zero,
		LoyaltyDiscount: decimal.Zero,
		TaxPercent:      decimal.Zero,
		TaxAmount:       decimal.Zero,
		Total:           decimal.Zero,
		PaymentMethod:   enums.PaymentMethodCash,
		Status:          enums.OrderStatusCompleted,
		CreatedBy:       uuid.New(),
		CreatedAt:       dayStart.Add(-time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed stale order: %v", err)
	}

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
		Lines:         []SaleLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}
	if want := formatOrderNumber(dayStart, 2); receipt.Order.OrderNumber != want {
		t.Fatalf("order number = %q, want %q", receipt.Order.OrderNumber, want)
	}
}

func TestCompleteSaleRewardRedemption(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Wool Scarf", "1000", true)
	name := "Ravi"
	phone := "+919876510002"

	account := models.LoyaltyAccount{
		ID:             uuid.New(),
		StoreID:        storeID,
		CustomerPhone:  phone,
		TotalPoints:    500,
		LifetimePoints: 500,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	reward := models.LoyaltyReward{
		ID:             uuid.New(),
		StoreID:        storeID,
		Name:           "100 off",
		PointsRequired: 200,
		DiscountType:   enums.RewardDiscountFixed,
		DiscountValue:  decimal.RequireFromString("100"),
		Active:         true,
	}
	if err := db.Create(&reward).Error; err != nil {
		t.Fatalf("seed reward: %v", err)
	}

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:         storeID,
		CashierID:       uuid.New(),
		DiscountPercent: 0,
		RewardID:        &reward.ID,
		PaymentMethod:   enums.PaymentMethodWallet,
		Customer:        &CustomerInfo{Name: &name, Phone: phone},
		Lines:           []SaleLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}

	// 1000 - 100 loyalty = 900 taxable, tax 162, total 1062.
	if !receipt.Order.LoyaltyDiscount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("loyalty discount = %s, want 100", receipt.Order.LoyaltyDiscount)
	}
	if !receipt.Order.Total.Equal(decimal.RequireFromString("1062")) {
		t.Fatalf("total = %s, want 1062", receipt.Order.Total)
	}
	if receipt.Redemption == nil || receipt.Redemption.PointsSpent != 200 {
		t.Fatalf("unexpected redemption: %+v", receipt.Redemption)
	}

	// 1062 earns 100 points on top of the 300 left after the deduction.
	var reloaded models.LoyaltyAccount
	if err := db.First(&reloaded, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if reloaded.TotalPoints != 400 {
		t.Fatalf("total points = %d, want 400", reloaded.TotalPoints)
	}
	if reloaded.LifetimePoints != 600 {
		t.Fatalf("lifetime points = %d, want 600", reloaded.LifetimePoints)
	}
}

func TestCompleteSaleInsufficientPointsRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Silk Tie", "1000", true)
	variant := seedVariant(t, db, product, "0", 5)
	phone := "+919876510003"

	account := models.LoyaltyAccount{
		ID:            uuid.New(),
		StoreID:       storeID,
		CustomerPhone: phone,
		TotalPoints:   50,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	reward := models.LoyaltyReward{
		ID:             uuid.New(),
		StoreID:        storeID,
		Name:           "big discount",
		PointsRequired: 80,
		DiscountType:   enums.RewardDiscountFixed,
		DiscountValue:  decimal.RequireFromString("200"),
		Active:         true,
	}
	if err := db.Create(&reward).Error; err != nil {
		t.Fatalf("seed reward: %v", err)
	}

	_, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		RewardID:      &reward.ID,
		PaymentMethod: enums.PaymentMethodCash,
		Customer:      &CustomerInfo{Phone: phone},
		Lines:         []SaleLine{{ProductID: product.ID, VariantID: &variant.ID, Quantity: 1}},
	})
	assertCode(t, err, pkgerrors.CodeInsufficientPoints)
	assertStep(t, err, "redeem")

	// Everything the earlier stages wrote must be gone.
	var orders int64
	if err := db.Model(&models.Order{}).Count(&orders).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orders != 0 {
		t.Fatalf("expected rollback, found %d orders", orders)
	}
	var reloaded models.ProductVariant
	if err := db.First(&reloaded, "id = ?", variant.ID).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	if reloaded.StockQuantity != 5 {
		t.Fatalf("stock = %d, want 5 after rollback", reloaded.StockQuantity)
	}
}

func TestCompleteSaleInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Retired Hat", "300", false)

	_, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
		Lines:         []SaleLine{{ProductID: product.ID, Quantity: 1}},
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	assertStep(t, err, "resolve")
}

func TestCompleteSaleVariantPriceAdjustment(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Oxford Shirt", "1200", true)
	variant := seedVariant(t, db, product, "150", 4)

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCard,
		Lines:         []SaleLine{{ProductID: product.ID, VariantID: &variant.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}
	if !receipt.Order.Subtotal.Equal(decimal.RequireFromString("1350")) {
		t.Fatalf("subtotal = %s, want 1350", receipt.Order.Subtotal)
	}
	if len(receipt.Order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(receipt.Order.Items))
	}
	item := receipt.Order.Items[0]
	if item.VariantLabel == nil || *item.VariantLabel != "M" {
		t.Fatalf("unexpected variant label: %v", item.VariantLabel)
	}
}

func TestGetOrderScopedToStore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	storeID := uuid.New()
	product := seedProduct(t, db, storeID, "Belt", "400", true)

	receipt, err := svc.CompleteSale(context.Background(), CompleteSaleInput{
		StoreID:       storeID,
		CashierID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCash,
		Lines:         []SaleLine{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CompleteSale: %v", err)
	}

	loaded, err := svc.GetOrder(context.Background(), storeID, receipt.Order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(loaded.Items) != 1 {
		t.Fatalf("expected items preloaded, got %d", len(loaded.Items))
	}

	_, err = svc.GetOrder(context.Background(), uuid.New(), receipt.Order.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}
