package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trywear-labs/storefront-backend/api/responses"
	"github.com/trywear-labs/storefront-backend/api/validators"
	"github.com/trywear-labs/storefront-backend/internal/inventory"
	"github.com/trywear-labs/storefront-backend/pkg/db"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"
)

type adjustStockRequest struct {
	VariantID    uuid.UUID `json:"variant_id" validate:"required"`
	MovementType string    `json:"movement_type" validate:"required"`
	Quantity     int       `json:"quantity" validate:"required"`
	Note         *string   `json:"note" validate:"omitempty,max=500"`
}

type adjustmentResponse struct {
	VariantID        uuid.UUID          `json:"variant_id"`
	MovementType     enums.MovementType `json:"movement_type"`
	RequestedChange  int                `json:"requested_change"`
	AppliedChange    int                `json:"applied_change"`
	PreviousQuantity int                `json:"previous_quantity"`
	NewQuantity      int                `json:"new_quantity"`
	LowStock         bool               `json:"low_stock"`
}

// AdjustStock records a manual stock movement. Sale movements are only
// written by checkout, so they are rejected here.
func AdjustStock(client *db.Client, svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, userID, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		movementType, err := enums.ParseMovementType(payload.MovementType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}
		if movementType == enums.MovementTypeSale {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "sale movements are created by checkout"))
			return
		}

		var adj *inventory.Adjustment
		err = client.WithTx(r.Context(), func(tx *gorm.DB) error {
			var txErr error
			adj, txErr = svc.AdjustStock(r.Context(), tx, inventory.AdjustInput{
				StoreID:        storeID,
				VariantID:      payload.VariantID,
				MovementType:   movementType,
				QuantityChange: payload.Quantity,
				Note:           payload.Note,
				CreatedBy:      &userID,
			})
			return txErr
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, adjustmentResponse{
			VariantID:        adj.VariantID,
			MovementType:     adj.MovementType,
			RequestedChange:  adj.RequestedChange,
			AppliedChange:    adj.AppliedChange,
			PreviousQuantity: adj.PreviousQuantity,
			NewQuantity:      adj.NewQuantity,
			LowStock:         adj.LowStock,
		})
	}
}

type lowStockResponse struct {
	VariantID     uuid.UUID `json:"variant_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Size          *string   `json:"size,omitempty"`
	Color         *string   `json:"color,omitempty"`
	StockQuantity int       `json:"stock_quantity"`
	Threshold     int       `json:"threshold"`
	SuggestedQty  int       `json:"suggested_qty"`
}

// ListLowStock returns variants at or below their reorder threshold.
func ListLowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.LowStock(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]lowStockResponse, len(items))
		for i, item := range items {
			out[i] = lowStockResponse{
				VariantID:     item.Variant.ID,
				ProductID:     item.Variant.ProductID,
				Size:          item.Variant.Size,
				Color:         item.Variant.Color,
				StockQuantity: item.Variant.StockQuantity,
				Threshold:     item.Variant.LowStockThreshold,
				SuggestedQty:  item.SuggestedQty,
			}
		}
		responses.WriteSuccess(w, out)
	}
}

type movementResponse struct {
	ID               uuid.UUID          `json:"id"`
	VariantID        uuid.UUID          `json:"variant_id"`
	MovementType     enums.MovementType `json:"movement_type"`
	QuantityChange   int                `json:"quantity_change"`
	PreviousQuantity int                `json:"previous_quantity"`
	NewQuantity      int                `json:"new_quantity"`
	OrderID          *uuid.UUID         `json:"order_id,omitempty"`
	Note             *string            `json:"note,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ListMovements returns movement history filtered by variant or order,
// newest first.
func ListMovements(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var movements []models.InventoryMovement
		variantRaw := r.URL.Query().Get("variant_id")
		orderRaw := r.URL.Query().Get("order_id")
		switch {
		case variantRaw != "":
			variantID, parseErr := validators.ParsePathUUID(variantRaw, "variant id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			movements, err = svc.MovementsByVariant(r.Context(), storeID, variantID, pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			})
		case orderRaw != "":
			orderID, parseErr := validators.ParsePathUUID(orderRaw, "order id")
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			movements, err = svc.MovementsByOrder(r.Context(), storeID, orderID)
		default:
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "variant_id or order_id query parameter required"))
			return
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, next := pagination.Page(movements, limit, func(m models.InventoryMovement) pagination.Cursor {
			return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
		})
		out := make([]movementResponse, len(page))
		for i, m := range page {
			out[i] = movementResponse{
				ID:               m.ID,
				VariantID:        m.VariantID,
				MovementType:     m.MovementType,
				QuantityChange:   m.QuantityChange,
				PreviousQuantity: m.PreviousQuantity,
				NewQuantity:      m.NewQuantity,
				OrderID:          m.OrderID,
				Note:             m.Note,
				CreatedAt:        m.CreatedAt,
			}
		}
		responses.WriteList(w, out, next)
	}
}
