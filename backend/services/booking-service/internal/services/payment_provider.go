package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// PaymentOptions is what the checkout is opened with. IdempotencyKey is new
// for every attempt; BookingID stays the same across retries.
type PaymentOptions struct {
	BookingID       string
	AmountMinor     int64
	Currency        string
	Description     string
	PaymentMethodID string
	IdempotencyKey  string
}

type PaymentResult struct {
	PaymentID string
}

// PaymentProvider is the opaque payment gateway.
type PaymentProvider interface {
	Open(ctx context.Context, opts PaymentOptions) (PaymentResult, error)
}

// PaymentError carries the provider's human-readable failure reason.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %s", internal_utils.ErrPaymentFailed, e.Reason)
}

func (e *PaymentError) Unwrap() []error {
	if e.Err == nil {
		return []error{internal_utils.ErrPaymentFailed}
	}
	return []error{internal_utils.ErrPaymentFailed, e.Err}
}

// PaymentFailureReason extracts the reason from err, falling back to its text.
func PaymentFailureReason(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return err.Error()
}

// ToMinorUnits converts a major-unit amount to minor units, rounding half up.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(constants.MinorUnitsPerMajor)).Round(0).IntPart()
}

// StripePaymentProvider creates and confirms a PaymentIntent in one call.
// Redirect-based payment methods are disabled since there is no browser in
// the loop to complete them.
type StripePaymentProvider struct{}

func NewStripePaymentProvider(secretKey string) *StripePaymentProvider {
	stripe.Key = secretKey
	return &StripePaymentProvider{}
}

func (p *StripePaymentProvider) Open(ctx context.Context, opts PaymentOptions) (PaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(opts.AmountMinor),
		Currency:      stripe.String(opts.Currency),
		PaymentMethod: stripe.String(opts.PaymentMethodID),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String(opts.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String(string(stripe.PaymentIntentAutomaticPaymentMethodsAllowRedirectsNever)),
		},
	}
	params.Context = ctx
	params.AddMetadata(constants.PaymentMetadataBookingIDKey, opts.BookingID)
	params.SetIdempotencyKey(opts.IdempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			reason := stripeErr.Msg
			if reason == "" {
				reason = string(stripeErr.Code)
			}
			return PaymentResult{}, &PaymentError{Reason: reason, Err: err}
		}
		return PaymentResult{}, &PaymentError{Reason: "payment provider unreachable", Err: err}
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return PaymentResult{}, &PaymentError{Reason: fmt.Sprintf("payment not completed (status %s)", pi.Status)}
	}
	return PaymentResult{PaymentID: pi.ID}, nil
}
