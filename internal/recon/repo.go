package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockDriftRow pairs a variant's recorded stock with the total its movement
// ledger replays to.
type StockDriftRow struct {
	VariantID     uuid.UUID `gorm:"column:variant_id"`
	StoreID       uuid.UUID `gorm:"column:store_id"`
	StockQuantity int       `gorm:"column:stock_quantity"`
	ReplayedTotal int       `gorm:"column:replayed_total"`
}

// PointsDriftRow pairs an account's balance with the sum of its transactions.
type PointsDriftRow struct {
	AccountID   uuid.UUID `gorm:"column:account_id"`
	StoreID     uuid.UUID `gorm:"column:store_id"`
	TotalPoints int       `gorm:"column:total_points"`
	LedgerTotal int       `gorm:"column:ledger_total"`
}

// Repository reads the data the reconciliation jobs audit. It never writes.
type Repository interface {
	CompletedOrdersBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
	SaleMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryMovement, error)
	StockReplay(ctx context.Context) ([]StockDriftRow, error)
	PointsReplay(ctx context.Context) ([]PointsDriftRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CompletedOrdersBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND created_at >= ? AND created_at < ?", enums.OrderStatusCompleted, from, to).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) SaleMovementsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND movement_type = ?", orderID, enums.MovementTypeSale).
		Find(&movements).Error
	return movements, err
}

// StockReplay reconstructs each tracked variant's stock from its movement
// chain: the first movement's starting quantity plus every delta since.
// Variants with no movements have nothing to replay and are skipped.
func (r *repository) StockReplay(ctx context.Context) ([]StockDriftRow, error) {
	var rows []StockDriftRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT v.id AS variant_id,
			v.store_id AS store_id,
			v.stock_quantity AS stock_quantity,
			(SELECT m.previous_quantity
				FROM inventory_movements m
				WHERE m.variant_id = v.id
				ORDER BY m.created_at ASC, m.id ASC
				LIMIT 1)
			+ (SELECT COALESCE(SUM(m2.quantity_change), 0)
				FROM inventory_movements m2
				WHERE m2.variant_id = v.id) AS replayed_total
		FROM product_variants v
		WHERE EXISTS (
			SELECT 1 FROM inventory_movements m3 WHERE m3.variant_id = v.id
		)
	`).Scan(&rows).Error
	return rows, err
}

// PointsReplay sums each account's transaction ledger.
func (r *repository) PointsReplay(ctx context.Context) ([]PointsDriftRow, error) {
	var rows []PointsDriftRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id,
			a.store_id AS store_id,
			a.total_points AS total_points,
			COALESCE(SUM(t.points), 0) AS ledger_total
		FROM loyalty_accounts a
		LEFT JOIN loyalty_transactions t ON t.account_id = a.id
		GROUP BY a.id, a.store_id, a.total_points
	`).Scan(&rows).Error
	return rows, err
}
