package billing

import (
	"fmt"
	"io/ioutil"
	"net/http"

	"github.com/swiftdial/console/response"

	"github.com/go-chi/chi"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

// maxWebhookBody bounds the webhook payload we are willing to read
const maxWebhookBody = 65536

// ServiceOptions contains the configuration for the billing Service router
type ServiceOptions struct {
	BillingManager *Manager
	WebhookSecret  string
	Logger         *zap.Logger
}

// Service is the webhook endpoint the payment gateway calls with payment
// outcomes
type Service struct {
	ServiceOptions
}

// NewService returns a new instance of the billing Service router
func NewService(option ServiceOptions) (*Service, error) {
	if option.BillingManager == nil {
		return nil, fmt.Errorf("nil BillingManager is invalid")
	}
	if len(option.WebhookSecret) == 0 {
		return nil, fmt.Errorf("empty WebhookSecret is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.WriteError(w, r, response.ErrBadRequest().AddMessages("Unable to read webhook payload"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.WebhookSecret)
	if err != nil {
		s.Logger.Warn("Webhook signature verification failed",
			zap.Error(err),
		)
		response.WriteError(w, r, response.ErrBadRequest().AddMessages("Invalid webhook signature"))
		return
	}

	if err := s.BillingManager.HandleEvent(ctx, event); err != nil {
		s.Logger.Error("Unable to process webhook event",
			zap.Error(err),
			zap.String("EventType", event.Type),
		)
		response.WriteError(w, r, response.ErrUnexpected())
		return
	}

	response.WriteResponse(w, r, "received")
}

// Router returns the webhook routes for the payment gateway. The routes are
// authenticated by signature verification, not by session
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", s.handleWebhook)

	return r
}
