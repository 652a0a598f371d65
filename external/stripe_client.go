package external

import "github.com/stripe/stripe-go/v72/client"

// NewStripeClient returns a configured Stripe API client for the billing gateway
func NewStripeClient(key string) *client.API {
	sc := &client.API{}
	sc.Init(key, nil)
	return sc
}
