// Package billing integrates Stripe subscriptions. The rest of the system
// only sees the is_subscribed flag on the user record; this package owns
// keeping that flag in sync with Stripe.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	checkout "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/microlens/microlens-backend/internal/config"
	"github.com/microlens/microlens-backend/internal/models"
	"github.com/microlens/microlens-backend/internal/repository"
)

// Service handles checkout sessions and webhook events
type Service struct {
	users repository.UserRepository
	cfg   config.StripeConfig
	log   *logrus.Logger
}

// NewService creates the billing service and wires the Stripe API key
func NewService(users repository.UserRepository, cfg config.StripeConfig, log *logrus.Logger) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{users: users, cfg: cfg, log: log}
}

// CreateCheckoutSession starts a subscription checkout for the user and
// returns the hosted checkout URL.
func (s *Service) CreateCheckoutSession(ctx context.Context, user *models.User, successURL, cancelURL string) (string, error) {
	if s.cfg.PriceID == "" {
		return "", errors.New("billing not configured")
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}

	sess, err := checkout.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies and applies a Stripe event. Subscription state is
// only ever changed from here, keyed by the Stripe customer ID.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("invalid session payload: %w", err)
		}
		if sess.Customer == nil || sess.Customer.ID == "" {
			return errors.New("missing customer id")
		}
		if err := s.users.SetSubscribedByCustomer(ctx, sess.Customer.ID, true); err != nil {
			return err
		}
		s.log.WithField("customer", sess.Customer.ID).Info("subscription activated")

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("invalid subscription payload: %w", err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return errors.New("missing customer id")
		}
		if err := s.users.SetSubscribedByCustomer(ctx, sub.Customer.ID, false); err != nil {
			return err
		}
		s.log.WithField("customer", sub.Customer.ID).Info("subscription cancelled")

	default:
		// Intentionally ignore unhandled events.
	}

	return nil
}

func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomer != nil && *user.StripeCustomer != "" {
		return *user.StripeCustomer, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}

	if err := s.users.SetStripeCustomer(ctx, user.ID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
