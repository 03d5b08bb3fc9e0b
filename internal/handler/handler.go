// Package handler exposes the booking services over HTTP with gin.
package handler

import (
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/middleware"
	"hospital-booking-api/internal/service"
)

type Options struct {
	ServiceName  string
	HospitalName string
	StorageName  string
	JWTSecret    string
	JWTTTL       time.Duration
	// AuthLimiter throttles /signup and /login when set.
	AuthLimiter *middleware.RateLimiter
	// TrustedProxies are allowed to set X-Forwarded-For. None by default,
	// so ClientIP is the socket address.
	TrustedProxies []string
}

type Handler struct {
	accounts  *service.Accounts
	directory *service.Directory
	booking   *service.Booking
	log       *logrus.Logger
	validate  *validator.Validate
	opts      Options
}

func New(accounts *service.Accounts, directory *service.Directory, booking *service.Booking, log *logrus.Logger, opts Options) *Handler {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		accounts:  accounts,
		directory: directory,
		booking:   booking,
		log:       log,
		validate:  v,
		opts:      opts,
	}
}

func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.opts.TrustedProxies); err != nil {
		h.log.WithError(err).Warn("bad trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		middleware.Metrics(),
		middleware.Logger(h.log),
		gin.CustomRecoveryWithWriter(io.Discard, h.recovered),
		middleware.CORS(),
		h.ErrorResponder(),
	)

	authLimit := func(c *gin.Context) { c.Next() }
	if h.opts.AuthLimiter != nil {
		authLimit = h.opts.AuthLimiter.Limit()
	}
	requireUser := middleware.RequireUser(h.opts.JWTSecret)

	r.GET("/", h.Home)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/signup", authLimit, h.Signup)
	r.POST("/login", authLimit, h.Login)

	r.GET("/doctors", h.ListDoctors)
	r.GET("/doctors/:id", h.GetDoctor)

	r.POST("/book-appointment", h.BookAppointment)
	r.GET("/appointments", requireUser, h.ListAppointments)
	r.GET("/appointments/:id/qrcode", requireUser, h.AppointmentQRCode)

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(errEndpointNotFound)
	})
	return r
}

func (h *Handler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to " + h.opts.ServiceName,
		"storage": h.opts.StorageName,
		"endpoints": gin.H{
			"POST /signup":                 "User registration",
			"POST /login":                  "User login",
			"GET /doctors":                 "Get all doctors",
			"GET /doctors/:id":             "Get one doctor",
			"POST /book-appointment":       "Book an appointment",
			"GET /appointments":            "List your appointments (bearer token)",
			"GET /appointments/:id/qrcode": "Check-in QR code (bearer token)",
			"GET /health":                  "Health check",
			"GET /metrics":                 "Prometheus metrics",
		},
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.opts.ServiceName,
		"storage": h.opts.StorageName,
	})
}
