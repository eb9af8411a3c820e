// Package billing sells the paid plans through Stripe hosted checkout.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"spx-studio/internal/plans"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

var (
	ErrInvalidPlan    = errors.New("billing: invalid plan")
	ErrInvalidSession = errors.New("billing: invalid session")
	ErrNotConfigured  = errors.New("billing: stripe is not configured")
)

var descriptions = map[string]string{
	plans.Basic: "100GB storage, standard AI features, 1 custom domain",
	plans.Pro:   "4TB storage, unlimited AI, 2 custom domains, priority support",
}

type CheckoutParams struct {
	Plan   string
	Email  string
	UserID int64
	// Origin is the frontend base URL the customer returns to.
	Origin string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Confirmation is what a completed checkout grants.
type Confirmation struct {
	Plan           string
	CustomerID     string
	SubscriptionID string
}

type Checkout interface {
	CreateCheckout(ctx context.Context, arg CheckoutParams) (*CheckoutSession, error)
	Confirm(ctx context.Context, sessionID string) (*Confirmation, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error
}

// PlanForAmount maps a paid total in cents back to a plan.
func PlanForAmount(amountCents int64) string {
	if amountCents == plans.Lookup(plans.Basic).PriceCents {
		return plans.Basic
	}
	return plans.Pro
}

func productName(plan string) string {
	return "SPX STUDIO " + strings.ToUpper(plan[:1]) + plan[1:] + " Plan"
}

type Stripe struct {
	api        *client.API
	configured bool
}

var _ Checkout = (*Stripe)(nil)

// NewStripe builds a client for secretKey. backends may be nil to talk to the
// real Stripe API.
func NewStripe(secretKey string, backends *stripe.Backends) *Stripe {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Stripe{api: api, configured: secretKey != ""}
}

func (s *Stripe) CreateCheckout(ctx context.Context, arg CheckoutParams) (*CheckoutSession, error) {
	if !plans.IsPaid(arg.Plan) {
		return nil, ErrInvalidPlan
	}
	if !s.configured {
		return nil, ErrNotConfigured
	}

	origin := strings.TrimRight(arg.Origin, "/")
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(productName(arg.Plan)),
						Description: stripe.String(descriptions[arg.Plan]),
					},
					UnitAmount: stripe.Int64(plans.Lookup(arg.Plan).PriceCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(origin + "/dashboard?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(origin + "/pricing"),
		CustomerEmail:     stripe.String(arg.Email),
		ClientReferenceID: stripe.String(strconv.FormatInt(arg.UserID, 10)),
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("billing: create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) Confirm(ctx context.Context, sessionID string) (*Confirmation, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	if !s.configured {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("billing: retrieve checkout session: %w", err)
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		return nil, ErrInvalidSession
	}

	conf := &Confirmation{
		Plan:           PlanForAmount(sess.AmountTotal),
		SubscriptionID: sess.Subscription.ID,
	}
	if sess.Customer != nil {
		conf.CustomerID = sess.Customer.ID
	}
	return conf, nil
}

func (s *Stripe) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	if !s.configured {
		return ErrNotConfigured
	}

	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("billing: cancel subscription: %w", err)
	}
	return nil
}
