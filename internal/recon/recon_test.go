package recon

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:recon_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, ddl := range []string{
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
			created_at DATETIME
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
		`CREATE TABLE loyalty_accounts (
			id TEXT PRIMARY KEY,
			store_id TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_name TEXT,
			total_points INTEGER NOT NULL DEFAULT 0,
			lifetime_points INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME,
			updated_at DATETIME
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

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "recon-test", Output: io.Discard})
}

func seedOrder(t *testing.T, db *gorm.DB, storeID uuid.UUID, total string, itemVariants int, age time.Duration) models.Order {
	t.Helper()
	order := models.Order{
		ID:             uuid.New(),
		StoreID:        storeID,
		OrderNumber:    "ORD-20260830-" + uuid.NewString()[:4],
		Subtotal:       decimal.RequireFromString(total),
		DiscountAmount: decimal.Zero,
		TaxPercent:     decimal.Zero,
		TaxAmount:      decimal.Zero,
		Total:          decimal.RequireFromString(total),
		PaymentMethod:  enums.PaymentMethodCash,
		Status:         enums.OrderStatusCompleted,
		CreatedBy:      uuid.New(),
		CreatedAt:      time.Now().UTC().Add(-age),
	}
	if err := db.Omit("Items").Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for i := 0; i < itemVariants; i++ {
		variantID := uuid.New()
		item := models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   uuid.New(),
			VariantID:   &variantID,
			ProductName: "audit item",
			Quantity:    1,
			UnitPrice:   decimal.RequireFromString(total),
			LineTotal:   decimal.RequireFromString(total),
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
		movement := models.InventoryMovement{
			ID:               uuid.New(),
			StoreID:          storeID,
			VariantID:        variantID,
			MovementType:     enums.MovementTypeSale,
			QuantityChange:   -1,
			PreviousQuantity: 1,
			NewQuantity:      0,
			OrderID:          &order.ID,
		}
		if err := db.Create(&movement).Error; err != nil {
			t.Fatalf("seed movement: %v", err)
		}
	}
	return order
}

func countEvents(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", eventType).
		Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestOrderIntegrityJobFlagsEmptyOrder(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	storeID := uuid.New()
	seedOrder(t, db, storeID, "500", 1, time.Hour)
	bad := seedOrder(t, db, storeID, "900", 0, time.Hour)

	logg := testLogger()
	publisher := outbox.NewService(outbox.NewRepository(db), logg)
	job, err := NewOrderIntegrityJob(OrderIntegrityJobParams{
		Logger: logg,
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Outbox: publisher,
	})
	if err != nil {
		t.Fatalf("NewOrderIntegrityJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countEvents(t, db, enums.EventSaleInconsistency); got != 1 {
		t.Fatalf("expected 1 inconsistency event, got %d", got)
	}

	var event models.OutboxEvent
	if err := db.First(&event, "event_type = ?", enums.EventSaleInconsistency).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AggregateID != bad.ID {
		t.Fatalf("event aggregate = %s, want %s", event.AggregateID, bad.ID)
	}

	// A second scan must not duplicate the finding.
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := countEvents(t, db, enums.EventSaleInconsistency); got != 1 {
		t.Fatalf("expected finding to stay deduplicated, got %d", got)
	}
}

func TestOrderIntegrityJobFlagsTotalMismatch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	storeID := uuid.New()
	order := seedOrder(t, db, storeID, "500", 1, time.Hour)
	if err := db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("total", decimal.RequireFromString("999")).Error; err != nil {
		t.Fatalf("corrupt total: %v", err)
	}

	logg := testLogger()
	job, err := NewOrderIntegrityJob(OrderIntegrityJobParams{
		Logger: logg,
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
	})
	if err != nil {
		t.Fatalf("NewOrderIntegrityJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countEvents(t, db, enums.EventSaleInconsistency); got != 1 {
		t.Fatalf("expected 1 inconsistency event, got %d", got)
	}
}

func TestOrderIntegrityJobSkipsFreshOrders(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	seedOrder(t, db, uuid.New(), "900", 0, time.Minute)

	logg := testLogger()
	job, err := NewOrderIntegrityJob(OrderIntegrityJobParams{
		Logger:      logg,
		DB:          gormTxRunner{db: db},
		Repo:        NewRepository(db),
		Outbox:      outbox.NewService(outbox.NewRepository(db), logg),
		SettleDelay: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewOrderIntegrityJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countEvents(t, db, enums.EventSaleInconsistency); got != 0 {
		t.Fatalf("fresh orders must be left to settle, got %d events", got)
	}
}

func TestLedgerReplayJobDetectsStockDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	storeID := uuid.New()

	clean := models.ProductVariant{
		ID: uuid.New(), ProductID: uuid.New(), StoreID: storeID,
		SKU: "CLEAN", StockQuantity: 3,
	}
	drifted := models.ProductVariant{
		ID: uuid.New(), ProductID: uuid.New(), StoreID: storeID,
		SKU: "DRIFT", StockQuantity: 7,
	}
	for _, v := range []models.ProductVariant{clean, drifted} {
		if err := db.Create(&v).Error; err != nil {
			t.Fatalf("seed variant: %v", err)
		}
	}
	// clean: 5 -> 3. drifted: replay says 5 - 2 = 3 but the row stores 7.
	for _, m := range []models.InventoryMovement{
		{ID: uuid.New(), StoreID: storeID, VariantID: clean.ID, MovementType: enums.MovementTypeSale,
			QuantityChange: -2, PreviousQuantity: 5, NewQuantity: 3},
		{ID: uuid.New(), StoreID: storeID, VariantID: drifted.ID, MovementType: enums.MovementTypeSale,
			QuantityChange: -2, PreviousQuantity: 5, NewQuantity: 3},
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed movement: %v", err)
		}
	}

	logg := testLogger()
	job, err := NewLedgerReplayJob(LedgerReplayJobParams{
		Logger: logg,
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
	})
	if err != nil {
		t.Fatalf("NewLedgerReplayJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := countEvents(t, db, enums.EventLedgerDriftDetected); got != 1 {
		t.Fatalf("expected 1 drift event, got %d", got)
	}

	var event models.OutboxEvent
	if err := db.First(&event, "event_type = ?", enums.EventLedgerDriftDetected).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AggregateID != drifted.ID {
		t.Fatalf("event aggregate = %s, want %s", event.AggregateID, drifted.ID)
	}
}

func TestLedgerReplayJobDetectsPointsDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	storeID := uuid.New()

	clean := models.LoyaltyAccount{
		ID: uuid.New(), StoreID: storeID, CustomerPhone: "+919876520001",
		TotalPoints: 30, LifetimePoints: 30,
	}
	drifted := models.LoyaltyAccount{
		ID: uuid.New(), StoreID: storeID, CustomerPhone: "+919876520002",
		TotalPoints: 100, LifetimePoints: 100,
	}
	for _, a := range []models.LoyaltyAccount{clean, drifted} {
		if err := db.Create(&a).Error; err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}
	for _, txn := range []models.LoyaltyTransaction{
		{ID: uuid.New(), AccountID: clean.ID, Type: enums.LoyaltyTransactionEarned, Points: 30},
		{ID: uuid.New(), AccountID: drifted.ID, Type: enums.LoyaltyTransactionEarned, Points: 80},
	} {
		if err := db.Create(&txn).Error; err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}

	logg := testLogger()
	job, err := NewLedgerReplayJob(LedgerReplayJobParams{
		Logger: logg,
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Outbox: outbox.NewService(outbox.NewRepository(db), logg),
	})
	if err != nil {
		t.Fatalf("NewLedgerReplayJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var event models.OutboxEvent
	if err := db.First(&event, "event_type = ?", enums.EventLedgerDriftDetected).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if event.AggregateID != drifted.ID {
		t.Fatalf("event aggregate = %s, want %s", event.AggregateID, drifted.ID)
	}
}

func TestOutboxRetentionJobPrunesPublishedOnly(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	recent := time.Now().UTC()

	events := []models.OutboxEvent{
		{ID: uuid.New(), EventType: enums.EventSaleCompleted, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: []byte("{}"), CreatedAt: old, PublishedAt: &old},
		{ID: uuid.New(), EventType: enums.EventSaleCompleted, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: []byte("{}"), CreatedAt: old},
		{ID: uuid.New(), EventType: enums.EventSaleCompleted, AggregateType: enums.AggregateOrder,
			AggregateID: uuid.New(), Payload: []byte("{}"), CreatedAt: recent, PublishedAt: &recent},
	}
	for _, event := range events {
		if err := db.Create(&event).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        testLogger(),
		Repo:          outbox.NewRepository(db),
		RetentionDays: 14,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var remaining int64
	if err := db.Model(&models.OutboxEvent{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 surviving events, got %d", remaining)
	}
}

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (s *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	return s.values[key], nil
}

func (s *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusion(t *testing.T) {
	t.Parallel()

	store := newFakeLockStore()
	first, err := NewRedisLock(store, "recon", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, err := NewRedisLock(store, "recon", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	ok, err := first.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("first acquire = %v, %v", ok, err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil || ok {
		t.Fatalf("second acquire should fail while held, got %v, %v", ok, err)
	}
	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(context.Background())
	if err != nil || !ok {
		t.Fatalf("acquire after release = %v, %v", ok, err)
	}
}

func TestRegistrySkipsNilJobs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	if len(registry.Jobs()) != 0 {
		t.Fatal("nil jobs must be ignored")
	}
}
