package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"hospital-booking-api/internal/middleware"
	"hospital-booking-api/internal/service"
)

// requestError is a client error whose message is returned verbatim.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

var (
	errEndpointNotFound = &requestError{http.StatusNotFound, "Endpoint not found"}
	errInvalidBody      = &requestError{http.StatusBadRequest, "Invalid request body"}
	errLoginFields      = &requestError{http.StatusBadRequest, "Email and password are required"}
)

func missingField(name string) error {
	return &requestError{http.StatusBadRequest, "Missing required field: " + name}
}

const internalMessage = "Internal server error"

// ErrorResponder turns the last error attached to the context into the JSON
// error body. Anything it does not recognise becomes a 500.
func (h *Handler) ErrorResponder() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, msg := classify(err)
		if status >= http.StatusInternalServerError {
			h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		}
		c.JSON(status, errorBody(msg))
	}
}

func classify(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status, re.msg
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, service.ErrDoctorNotFound):
		return http.StatusNotFound, "Doctor not found"
	case errors.Is(err, service.ErrSlotConflict):
		return http.StatusConflict, "This time slot is already booked. Please select another time."
	case errors.Is(err, service.ErrAppointmentNotFound):
		return http.StatusNotFound, "Appointment not found"
	case errors.Is(err, middleware.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, middleware.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, internalMessage
	}
}

func errorBody(msg string) gin.H {
	return gin.H{"success": false, "error": msg}
}

// recovered is the panic handler for gin's recovery middleware.
func (h *Handler) recovered(c *gin.Context, rec interface{}) {
	h.log.WithField("path", c.Request.URL.Path).Errorf("panic: %v", rec)
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(internalMessage))
}

// bind decodes the JSON body into req and reports the first missing
// required field.
func (h *Handler) bind(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return errInvalidBody
	}
	if err := h.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return missingField(ve[0].Field())
		}
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
