package api

import (
	"errors"
	"net/http"
	"time"

	"payment-reconciler/internal/models"
	"payment-reconciler/internal/service"
	"payment-reconciler/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	checkout  *service.PaymentCompletionService
	preorders *service.PreorderReconciler
	gateway   *webhook.Gateway
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.PaymentCompletionService,
	preorders *service.PreorderReconciler,
	gateway *webhook.Gateway,
) *Handler {
	return &Handler{
		checkout:  checkout,
		preorders: preorders,
		gateway:   gateway,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(securityHeaders())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks", h.gateway.Handle)
	router.GET("/webhooks", h.gateway.HandleChallenge)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments", h.chargePayment)
		v1.GET("/preorders/:productId", h.getPreorder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// chargePayment handles synchronous checkout completion
func (h *Handler) chargePayment(c *gin.Context) {
	var req service.ChargeRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	resp, err := h.checkout.Charge(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, models.ErrOrderNotFound):
			status = http.StatusNotFound
		case errors.Is(err, models.ErrPaymentDeclined):
			status = http.StatusPaymentRequired
		case errors.Is(err, models.ErrProviderUnavailable):
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"error":   "Failed to complete payment",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// getPreorder handles preorder capacity lookups
func (h *Handler) getPreorder(c *gin.Context) {
	productID := c.Param("productId")

	preorder, err := h.preorders.Lookup(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, models.ErrNotPreorderItem) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Not a preorder item",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to look up preorder",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preorder":  preorder,
		"remaining": preorder.Remaining(),
	})
}
