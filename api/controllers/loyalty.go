package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trywear-labs/storefront-backend/api/responses"
	"github.com/trywear-labs/storefront-backend/internal/loyalty"
	"github.com/trywear-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/trywear-labs/storefront-backend/pkg/errors"
	"github.com/trywear-labs/storefront-backend/pkg/logger"
)

type loyaltyAccountResponse struct {
	AccountID      uuid.UUID         `json:"account_id"`
	CustomerPhone  string            `json:"customer_phone"`
	CustomerName   *string           `json:"customer_name,omitempty"`
	TotalPoints    int               `json:"total_points"`
	LifetimePoints int               `json:"lifetime_points"`
	Tier           enums.LoyaltyTier `json:"tier"`
}

// GetLoyaltyAccount looks up a customer's balance and tier by phone.
func GetLoyaltyAccount(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		phone := strings.TrimSpace(chi.URLParam(r, "phone"))
		if phone == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "phone is required"))
			return
		}

		view, err := svc.GetAccount(r.Context(), storeID, phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loyaltyAccountResponse{
			AccountID:      view.Account.ID,
			CustomerPhone:  view.Account.CustomerPhone,
			CustomerName:   view.Account.CustomerName,
			TotalPoints:    view.Account.TotalPoints,
			LifetimePoints: view.Account.LifetimePoints,
			Tier:           view.Tier,
		})
	}
}

type rewardResponse struct {
	ID             uuid.UUID                `json:"id"`
	Name           string                   `json:"name"`
	PointsRequired int                      `json:"points_required"`
	DiscountType   enums.RewardDiscountType `json:"discount_type"`
	DiscountValue  decimal.Decimal          `json:"discount_value"`
}

// ListRewards returns the store's active rewards, cheapest first.
func ListRewards(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeID, _, err := saleContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rewards, err := svc.ListActiveRewards(r.Context(), storeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]rewardResponse, len(rewards))
		for i, reward := range rewards {
			out[i] = rewardResponse{
				ID:             reward.ID,
				Name:           reward.Name,
				PointsRequired: reward.PointsRequired,
				DiscountType:   reward.DiscountType,
				DiscountValue:  reward.DiscountValue,
			}
		}
		responses.WriteSuccess(w, out)
	}
}
