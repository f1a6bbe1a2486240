package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/api/middleware"
	"github.com/trywear-labs/storefront-backend/api/responses"
	"github.com/trywear-labs/storefront-backend/api/validators"
	salesvc "github.com/trywear-labs/storefront-backend/internal/sales"
	"github.com/trywear-labs/storefront-backend/pkg/db/models"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
	"github.com/trywear-labs/storefront-backend/pkg/pagination"
)

// CompleteSale handles checkout for the cashier's active store.
func CompleteSale(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales service unavailable"))
			return
		}

		storeID, cashierID, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload completeSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(storeID, cashierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.CompleteSale(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newReceiptResponse(receipt))
	}
}

// GetOrder returns one order with its frozen items.
func GetOrder(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "orderID"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), storeID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

// ListOrders returns the store's orders, newest first, cursor paginated.
func ListOrders(svc salesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		orders, next, err := svc.ListOrders(r.Context(), storeID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderResponse, len(orders))
		for i, order := range orders {
			items[i] = newOrderResponse(order)
		}
		responses.WriteList(w, items, next)
	}
}

func saleContext(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	storeRaw := middleware.StoreIDFromContext(r.Context())
	if storeRaw == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	storeID, err := uuid.Parse(storeRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	userRaw := middleware.UserIDFromContext(r.Context())
	userID, err := uuid.Parse(userRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return storeID, userID, nil
}

type completeSaleRequest struct {
	Lines           []saleLinePayload    `json:"lines" validate:"required,min=1,dive"`
	DiscountPercent int                  `json:"discount_percent" validate:"min=0,max=100"`
	RewardID        *uuid.UUID           `json:"reward_id"`
	PaymentMethod   string               `json:"payment_method" validate:"required"`
	Customer        *saleCustomerPayload `json:"customer"`
}

type saleLinePayload struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" validate:"required,min=1"`
}

type saleCustomerPayload struct {
	Name  *string `json:"name"`
	Phone string  `json:"phone" validate:"required,e164"`
}

func (p completeSaleRequest) toInput(storeID, cashierID uuid.UUID) (salesvc.CompleteSaleInput, error) {
	method, err := enums.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return salesvc.CompleteSaleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	lines := make([]salesvc.SaleLine, len(p.Lines))
	for i, line := range p.Lines {
		lines[i] = salesvc.SaleLine{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
		}
	}
	input := salesvc.CompleteSaleInput{
		StoreID:         storeID,
		CashierID:       cashierID,
		Lines:           lines,
		DiscountPercent: p.DiscountPercent,
		RewardID:        p.RewardID,
		PaymentMethod:   method,
	}
	if p.Customer != nil {
		input.Customer = &salesvc.CustomerInfo{
			Name:  p.Customer.Name,
			Phone: p.Customer.Phone,
		}
	}
	return input, nil
}

type orderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	VariantID    *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName  string          `json:"product_name"`
	VariantLabel *string         `json:"variant_label,omitempty"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerName    *string             `json:"customer_name,omitempty"`
	CustomerPhone   *string             `json:"customer_phone,omitempty"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	DiscountPercent int                 `json:"discount_percent"`
	DiscountAmount  decimal.Decimal     `json:"discount_amount"`
	LoyaltyDiscount decimal.Decimal     `json:"loyalty_discount"`
	TaxPercent      decimal.Decimal     `json:"tax_percent"`
	TaxAmount       decimal.Decimal     `json:"tax_amount"`
	Total           decimal.Decimal     `json:"total"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Status          enums.OrderStatus   `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	Items           []orderItemResponse `json:"items"`
}

type receiptLoyaltyResponse struct {
	AccountID    uuid.UUID         `json:"account_id"`
	PointsEarned int               `json:"points_earned"`
	TotalPoints  int               `json:"total_points"`
	Tier         enums.LoyaltyTier `json:"tier"`
}

type receiptRedemptionResponse struct {
	RewardID       uuid.UUID       `json:"reward_id"`
	PointsSpent    int             `json:"points_spent"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type receiptResponse struct {
	Order      orderResponse              `json:"order"`
	Loyalty    *receiptLoyaltyResponse    `json:"loyalty,omitempty"`
	Redemption *receiptRedemptionResponse `json:"redemption,omitempty"`
	Flagged    bool                       `json:"flagged"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemResponse{
			ID:           item.ID,
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			ProductName:  item.ProductName,
			VariantLabel: item.VariantLabel,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			LineTotal:    item.LineTotal,
		}
	}
	return orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		Subtotal:        order.Subtotal,
		DiscountPercent: order.DiscountPercent,
		DiscountAmount:  order.DiscountAmount,
		LoyaltyDiscount: order.LoyaltyDiscount,
		TaxPercent:      order.TaxPercent,
		TaxAmount:       order.TaxAmount,
		Total:           order.Total,
		PaymentMethod:   order.PaymentMethod,
		Status:          order.Status,
		CreatedAt:       order.CreatedAt,
		Items:           items,
	}
}

func newReceiptResponse(receipt *salesvc.Receipt) receiptResponse {
	resp := receiptResponse{
		Order:    newOrderResponse(receipt.Order),
		Flagged:  receipt.Flagged(),
		Warnings: receipt.Warnings,
	}
	if receipt.Points != nil && receipt.Points.Points > 0 {
		resp.Loyalty = &receiptLoyaltyResponse{
			AccountID:    receipt.Points.AccountID,
			PointsEarned: receipt.Points.Points,
			TotalPoints:  receipt.Points.TotalPoints,
			Tier:         receipt.Points.Tier,
		}
	}
	if receipt.Redemption != nil {
		resp.Redemption = &receiptRedemptionResponse{
			RewardID:       receipt.Redemption.RewardID,
			PointsSpent:    receipt.Redemption.PointsSpent,
			DiscountAmount: receipt.Redemption.DiscountAmount,
		}
	}
	return resp
}
