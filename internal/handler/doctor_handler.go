package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.directory.ListDoctors(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctors": doctors})
}

func (h *Handler) GetDoctor(c *gin.Context) {
	d, err := h.directory.Doctor(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "doctor": d})
}
