package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"spx-studio/internal/billing"
	"spx-studio/internal/database"
	"spx-studio/internal/logging"
	"spx-studio/internal/models"
)

type CheckoutRequest struct {
	Plan string `json:"plan" example:"pro"`
}

type CheckoutResponse struct {
	URL string `json:"url" example:"https://checkout.stripe.com/c/pay/cs_test_a1"`
}

type SubscriptionSuccessRequest struct {
	SessionID string `json:"sessionId" example:"cs_test_a1"`
}

type SubscriptionResponse struct {
	Success bool         `json:"success"`
	User    *models.User `json:"user,omitempty"`
}

func billingError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, billing.ErrInvalidPlan):
		http.Error(w, "Invalid plan selected", http.StatusBadRequest)
	case errors.Is(err, billing.ErrInvalidSession):
		http.Error(w, "Invalid session", http.StatusBadRequest)
	case errors.Is(err, billing.ErrNotConfigured):
		http.Error(w, "Payments are not available", http.StatusServiceUnavailable)
	default:
		internalError(w, r, msg, err)
	}
}

// origin is where Stripe sends the customer back to.
func (s *Server) origin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	if len(s.config.HTTP.AllowedOrigins) > 0 && s.config.HTTP.AllowedOrigins[0] != "*" {
		return s.config.HTTP.AllowedOrigins[0]
	}
	return "http://" + s.config.AppHost
}

// @Summary      Start a subscription checkout
// @Description  Creates a Stripe hosted checkout session for the basic or pro plan and returns its URL.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CheckoutRequest  true  "Plan"
// @Success      200      {object}  CheckoutResponse
// @Failure      400      {string}  string "Invalid plan selected"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      500      {string}  string "Failed to create checkout session"
// @Failure      503      {string}  string "Payments are not available"
// @Router       /billing/checkout [post]
func (s *Server) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to create checkout session", err)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	sess, err := s.checkout.CreateCheckout(r.Context(), billing.CheckoutParams{
		Plan:   req.Plan,
		Email:  user.Email,
		UserID: user.ID,
		Origin: s.origin(r),
	})
	if err != nil {
		billingError(w, r, "Failed to create checkout session", err)
		return
	}

	writeJSON(w, http.StatusOK, CheckoutResponse{URL: sess.URL})
}

// @Summary      Confirm a completed checkout
// @Description  Applies the plan bought in a completed checkout session to the caller.
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SubscriptionSuccessRequest  true  "Checkout session"
// @Success      200      {object}  SubscriptionResponse
// @Failure      400      {string}  string "Session ID is required"
// @Failure      401      {string}  string "Unauthorized"
// @Failure      500      {string}  string "Failed to process subscription"
// @Router       /billing/subscription/success [post]
func (s *Server) SubscriptionSuccessHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req SubscriptionSuccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	conf, err := s.checkout.Confirm(r.Context(), req.SessionID)
	if err != nil {
		billingError(w, r, "Failed to process subscription", err)
		return
	}

	arg := database.UpdateUserPlanParams{
		UserID:               claims.UserID,
		Plan:                 conf.Plan,
		StripeSubscriptionID: &conf.SubscriptionID,
	}
	if conf.CustomerID != "" {
		arg.StripeCustomerID = &conf.CustomerID
	}
	user, err := s.store.UpdateUserPlan(r.Context(), arg)
	if err != nil {
		internalError(w, r, "Failed to process subscription", err)
		return
	}

	logging.WithContext(r.Context()).Info("subscription activated",
		logging.Int64("user_id", user.ID),
		logging.String("plan", user.Plan),
	)
	s.recordEvent(r.Context(), user.ID, "plan_changed", map[string]string{"plan": user.Plan})
	writeJSON(w, http.StatusOK, SubscriptionResponse{Success: true, User: user})
}

// @Summary      Cancel the subscription
// @Description  Cancels the caller's subscription at the end of the current billing period.
// @Tags         billing
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  SubscriptionResponse
// @Failure      400  {string}  string "No active subscription"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Failed to cancel subscription"
// @Router       /billing/subscription/cancel [post]
func (s *Server) CancelSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		internalError(w, r, "Failed to cancel subscription", err)
		return
	}
	if user == nil || user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		http.Error(w, "No active subscription", http.StatusBadRequest)
		return
	}

	if err := s.checkout.CancelAtPeriodEnd(r.Context(), *user.StripeSubscriptionID); err != nil {
		billingError(w, r, "Failed to cancel subscription", err)
		return
	}

	writeJSON(w, http.StatusOK, SubscriptionResponse{Success: true})
}
