package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"hospital-booking-api/internal/middleware"
	"hospital-booking-api/internal/service"
)

type bookRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	DoctorID string `json:"doctor_id" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time" validate:"required"`
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req bookRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	conf, err := h.booking.Book(c.Request.Context(), service.BookingRequest{
		UserID:   req.UserID,
		DoctorID: req.DoctorID,
		Date:     req.Date,
		Time:     req.Time,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"appointment_id": conf.Appointment.ID,
		"message":        "Appointment booked successfully",
		"details": gin.H{
			"doctor_name":    conf.Doctor.Name,
			"specialization": conf.Doctor.Specialization,
			"date":           conf.Appointment.Date,
			"time":           conf.Appointment.Time,
		},
	})
}

func (h *Handler) ListAppointments(c *gin.Context) {
	list, err := h.booking.ForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointments": list})
}

// AppointmentQRCode renders a PNG the front desk scans at check-in.
func (h *Handler) AppointmentQRCode(c *gin.Context) {
	a, err := h.booking.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	content := strings.Join([]string{h.opts.HospitalName, a.ID, a.DoctorID, a.Date, a.Time}, "|")
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		_ = c.Error(fmt.Errorf("qrcode: %w", err))
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
