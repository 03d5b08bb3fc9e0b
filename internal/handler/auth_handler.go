package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"hospital-booking-api/internal/auth"
	"hospital-booking-api/internal/service"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	id, err := h.accounts.Register(c.Request.Context(), service.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	tok, err := auth.MakeToken(id, h.opts.JWTSecret, h.opts.JWTTTL)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user_id": id,
		"message": "User registered successfully",
		"token":   tok,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errInvalidBody)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			err = errLoginFields
		}
		_ = c.Error(err)
		return
	}

	u, err := h.accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}

	tok, err := auth.MakeToken(u.ID, h.opts.JWTSecret, h.opts.JWTTTL)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user_id": u.ID,
		"name":    u.Name,
		"email":   u.Email,
		"message": "Login successful",
		"token":   tok,
	})
}
