package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/dtos"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/services"
	internal_utils "github.com/poofware/homeservices/backend/services/booking-service/internal/utils"
	"github.com/poofware/homeservices/backend/shared/go-middleware"
	"github.com/poofware/homeservices/backend/shared/go-models"
	"github.com/poofware/homeservices/backend/shared/go-utils"
)

type BookingController struct {
	bookingService *services.BookingService
	validate       *validator.Validate
}

func NewBookingController(s *services.BookingService) *BookingController {
	return &BookingController{
		bookingService: s,
		validate:       validator.New(),
	}
}

// POST /api/v1/bookings
func (c *BookingController) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return
	}

	var req dtos.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request body", nil, err)
		return
	}
	if err := c.validate.Struct(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", formatValidationErrors(validationErrors))
			return
		}
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid request body", nil, err)
		return
	}
	if req.Flow == models.FlowServiceSeeker && !req.Amount.IsPositive() {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Validation failed", []dtos.ValidationErrorDetail{{
			Field:   "Amount",
			Message: "Field 'Amount' must be greater than zero",
			Code:    "validation_gt",
		}})
		return
	}

	view, result, err := c.bookingService.CreateBooking(r.Context(), userID, &req)
	switch {
	case err == nil:
		utils.RespondWithJSON(w, http.StatusAccepted, createResponse(view, result, ""))
	case errors.Is(err, internal_utils.ErrNoEligibleWorkers):
		utils.RespondErrorWithCode(w, http.StatusUnprocessableEntity, internal_utils.ErrCodeNoEligibleWorkers, internal_utils.ErrNoEligibleWorkers.Error(), nil)
	case errors.Is(err, internal_utils.ErrDispatchFailed) && view != nil:
		utils.Logger.WithError(err).WithField("booking_id", view.BookingID).Warn("Partial dispatch, polling live records")
		utils.RespondWithJSON(w, http.StatusAccepted, createResponse(view, result, internal_utils.ErrDispatchFailed.Error()))
	case errors.Is(err, internal_utils.ErrDispatchFailed):
		utils.RespondErrorWithCode(w, http.StatusBadGateway, internal_utils.ErrCodeDispatchFailed, "Booking could not be dispatched", dispatchSummary(result), err)
	default:
		respondServiceError(w, err, nil)
	}
}

// GET /api/v1/bookings/{booking_id}
func (c *BookingController) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return
	}
	view, err := c.bookingService.GetBooking(userID, mux.Vars(r)["booking_id"])
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// POST /api/v1/bookings/{booking_id}/cancel
func (c *BookingController) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return
	}
	view, err := c.bookingService.CancelBooking(r.Context(), userID, mux.Vars(r)["booking_id"])
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// POST /api/v1/bookings/{booking_id}/payment/retry
func (c *BookingController) RetryPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return
	}
	view, err := c.bookingService.RetryPayment(r.Context(), userID, mux.Vars(r)["booking_id"])
	if err != nil {
		respondServiceError(w, err, view)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// POST /api/v1/bookings/{booking_id}/payment/cancel
func (c *BookingController) CancelPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return
	}
	view, err := c.bookingService.CancelPayment(userID, mux.Vars(r)["booking_id"])
	if err != nil {
		respondServiceError(w, err, nil)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, view)
}

// respondServiceError maps service errors onto public codes.
func respondServiceError(w http.ResponseWriter, err error, details any) {
	switch {
	case errors.Is(err, internal_utils.ErrSessionNotFound):
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Booking not found", nil)
	case errors.Is(err, internal_utils.ErrAlreadyResolving):
		utils.RespondErrorWithCode(w, http.StatusConflict, internal_utils.ErrCodeAlreadyResolving, internal_utils.ErrAlreadyResolving.Error(), nil)
	case errors.Is(err, internal_utils.ErrPaymentInFlight):
		utils.RespondErrorWithCode(w, http.StatusConflict, internal_utils.ErrCodePaymentInFlight, internal_utils.ErrPaymentInFlight.Error(), nil)
	case errors.Is(err, internal_utils.ErrPaymentNotAvailable):
		utils.RespondErrorWithCode(w, http.StatusConflict, internal_utils.ErrCodePaymentNotAvailable, internal_utils.ErrPaymentNotAvailable.Error(), nil)
	case errors.Is(err, internal_utils.ErrPaymentFailed):
		utils.RespondErrorWithCode(w, http.StatusPaymentRequired, internal_utils.ErrCodePaymentFailed,
			fmt.Sprintf("payment failed: %s", services.PaymentFailureReason(err)), details)
	default:
		utils.HandleAppError(w, err)
	}
}

func createResponse(view *services.SessionView, result *services.DispatchResult, warning string) dtos.CreateBookingResponse {
	return dtos.CreateBookingResponse{
		BookingID: view.BookingID,
		State:     string(view.State),
		Dispatch:  dispatchSummary(result),
		Warning:   warning,
	}
}

func dispatchSummary(result *services.DispatchResult) dtos.DispatchSummary {
	summary := dtos.DispatchSummary{Succeeded: []int64{}, Failed: []dtos.DispatchFailure{}}
	if result == nil {
		return summary
	}
	summary.Succeeded = append(summary.Succeeded, result.Succeeded...)
	for _, f := range result.Failed {
		summary.Failed = append(summary.Failed, dtos.DispatchFailure{WorkerID: f.WorkerID, Error: f.Error})
	}
	return summary
}

// formatValidationErrors converts validator errors into a user-friendly format.
func formatValidationErrors(errs validator.ValidationErrors) []dtos.ValidationErrorDetail {
	var details []dtos.ValidationErrorDetail
	for _, err := range errs {
		var message string
		switch err.Tag() {
		case "required", "required_if", "required_without":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case "min":
			message = fmt.Sprintf("Field '%s' must be at least %s in length", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("Field '%s' must not exceed %s in length", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("Field '%s' must be one of [%s]", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("Field '%s' must be greater than %s", err.Field(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, dtos.ValidationErrorDetail{
			Field:   err.Field(),
			Message: message,
			Code:    "validation_" + err.Tag(),
		})
	}
	return details
}
