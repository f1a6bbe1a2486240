package recon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/metrics"
	"github.com/trywear-labs/storefront-backend/pkg/outbox"
	"github.com/trywear-labs/storefront-backend/pkg/outbox/payloads"
)

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderIntegrityJobParams configure the completed-order audit.
type OrderIntegrityJobParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Repo     Repository
	Outbox   outboxEmitter
	Metrics  *metrics.JobMetrics
	Lookback time.Duration
	// SettleDelay keeps the scan away from sales that are still committing.
	SettleDelay time.Duration
}

type orderIntegrityJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        Repository
	outbox      outboxEmitter
	metrics     *metrics.JobMetrics
	lookback    time.Duration
	settleDelay time.Duration
	now         func() time.Time
}

// NewOrderIntegrityJob builds the job that cross-checks completed orders
// against their items and stock movements.
func NewOrderIntegrityJob(params OrderIntegrityJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("recon repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	settleDelay := params.SettleDelay
	if settleDelay <= 0 {
		settleDelay = 5 * time.Minute
	}
	return &orderIntegrityJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repo,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		lookback:    lookback,
		settleDelay: settleDelay,
		now:         time.Now,
	}, nil
}

func (j *orderIntegrityJob) Name() string { return "order-integrity" }

func (j *orderIntegrityJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	from := now.Add(-j.lookback)
	to := now.Add(-j.settleDelay)

	orders, err := j.repo.CompletedOrdersBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load completed orders: %w", err)
	}

	var errs []error
	flagged := 0
	for _, order := range orders {
		problems, err := j.auditOrder(ctx, order)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(problems) == 0 {
			continue
		}
		flagged++
		if err := j.flagOrder(ctx, order, problems, now); err != nil {
			errs = append(errs, err)
		}
	}

	if j.metrics != nil && flagged > 0 {
		j.metrics.IncFindings(j.Name(), "order", flagged)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_scanned": len(orders),
		"orders_flagged": flagged,
	})
	j.logg.Info(logCtx, "order integrity scan complete")
	return multierr.Combine(errs...)
}

func (j *orderIntegrityJob) auditOrder(ctx context.Context, order models.Order) ([]string, error) {
	var problems []string

	if len(order.Items) == 0 {
		problems = append(problems, "completed order has no items")
	}

	expected := order.Subtotal.
		Sub(order.DiscountAmount).
		Sub(order.LoyaltyDiscount).
		Add(order.TaxAmount)
	if !expected.Equal(order.Total) {
		problems = append(problems, fmt.Sprintf(
			"stored total %s does not match recomputed %s", order.Total, expected,
		))
	}

	tracked := 0
	for _, item := range order.Items {
		if item.VariantID != nil {
			tracked++
		}
	}
	if tracked > 0 {
		movements, err := j.repo.SaleMovementsByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("load movements for order %s: %w", order.ID, err)
		}
		if len(movements) < tracked {
			problems = append(problems, fmt.Sprintf(
				"%d tracked items but only %d sale movements", tracked, len(movements),
			))
		}
	}

	return problems, nil
}

func (j *orderIntegrityJob) flagOrder(ctx context.Context, order models.Order, problems []string, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleInconsistency,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OccurredAt:    now,
			Data: payloads.SaleInconsistencyFoundEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				StoreID:     order.StoreID,
				Problems:    problems,
				DetectedAt:  now,
			},
		})
	})
}
