package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/service"
	"pass-service/internal/store"
	"pass-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	reconciler *service.Reconciler
	processor  *service.Processor
	notifier   *service.Notifier
	store      *store.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(reconciler *service.Reconciler, processor *service.Processor, notifier *service.Notifier, st *store.Store) *Handler {
	return &Handler{
		reconciler: reconciler,
		processor:  processor,
		notifier:   notifier,
		store:      st,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/payments/webhook", h.paymentWebhook)
		v1.GET("/payments/return", h.paymentReturn)
		v1.POST("/issuances", h.createIssuance)
		v1.POST("/issuances/:id/trigger", h.issuanceTrigger)
		v1.POST("/sweep", h.runSweep)
		v1.GET("/passes/:code", h.getPass)
		v1.POST("/passes/:id/rebuy", h.rebuyReminder)
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

// paymentWebhook handles the server-to-server payment confirmation
func (h *Handler) paymentWebhook(c *gin.Context) {
	var conf service.PaymentConfirmation
	if err := c.ShouldBindJSON(&conf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid confirmation payload",
			"details": err.Error(),
		})
		return
	}
	conf.Source = service.SourceWebhook

	h.handleConfirmation(c, &conf)
}

// paymentReturn handles the browser-redirect confirmation for the same
// logical transaction. The processor sends both; the gate collapses them.
func (h *Handler) paymentReturn(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return
	}
	guests, _ := strconv.Atoi(c.DefaultQuery("guests", "1"))
	days, _ := strconv.Atoi(c.DefaultQuery("days", "1"))

	conf := service.PaymentConfirmation{
		PaymentID:      c.Query("payment_id"),
		Amount:         amount,
		Currency:       c.DefaultQuery("currency", "EUR"),
		CustomerName:   c.Query("name"),
		CustomerEmail:  c.Query("email"),
		Guests:         guests,
		Days:           days,
		DeliveryMethod: c.DefaultQuery("delivery", models.DeliveryBoth),
		Source:         service.SourceReturn,
	}
	if raw := c.Query("scheduled_for"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scheduled_for"})
			return
		}
		conf.ScheduledFor = &t
	}

	h.handleConfirmation(c, &conf)
}

// handleConfirmation runs the gate and, for new orders, the issuance path:
// immediate orders are issued on the spot, future orders become scheduled
// issuances.
func (h *Handler) handleConfirmation(c *gin.Context, conf *service.PaymentConfirmation) {
	result, err := h.reconciler.Reconcile(c.Request.Context(), conf)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reconcile payment",
			"details": err.Error(),
		})
		return
	}

	if !result.IsNew {
		c.JSON(http.StatusOK, gin.H{
			"duplicate": true,
			"order_id":  result.Order.ID,
		})
		return
	}

	if conf.ScheduledFor != nil {
		si, err := h.processor.ScheduleIssuance(c.Request.Context(), &service.ScheduleRequest{
			ScheduledFor:   *conf.ScheduledFor,
			ClientName:     conf.CustomerName,
			ClientEmail:    conf.CustomerEmail,
			Guests:         conf.Guests,
			Days:           conf.Days,
			SellerID:       models.SellerSystem,
			ConfigID:       models.ConfigDefault,
			DeliveryMethod: conf.DeliveryMethod,
		})
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrInvalidGuestsOrDays) || errors.Is(err, service.ErrConfigurationNotFound) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{
				"error":   "Failed to schedule issuance",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"order_id":      result.Order.ID,
			"issuance_id":   si.ID,
			"scheduled_for": si.ScheduledFor,
		})
		return
	}

	res, err := h.processor.IssueImmediate(c.Request.Context(), result.Order)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidGuestsOrDays) || errors.Is(err, service.ErrConfigurationNotFound) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "Failed to issue pass",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":  result.Order.ID,
		"pass_code": res.Pass.Code,
	})
}

// createIssuanceRequest is the seller-facing schedule request
type createIssuanceRequest struct {
	ScheduledFor   time.Time `json:"scheduled_for" binding:"required"`
	ClientName     string    `json:"client_name" binding:"required"`
	ClientEmail    string    `json:"client_email" binding:"required,email"`
	Guests         int       `json:"guests" binding:"required,min=1"`
	Days           int       `json:"days" binding:"required,min=1"`
	SellerID       string    `json:"seller_id" binding:"required"`
	ConfigID       string    `json:"config_id"`
	DeliveryMethod string    `json:"delivery_method"`
}

// createIssuance handles the seller request flow for future activations
func (h *Handler) createIssuance(c *gin.Context) {
	var req createIssuanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.DeliveryMethod == "" {
		req.DeliveryMethod = models.DeliveryBoth
	}

	si, err := h.processor.ScheduleIssuance(c.Request.Context(), &service.ScheduleRequest{
		ScheduledFor:   req.ScheduledFor,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		Guests:         req.Guests,
		Days:           req.Days,
		SellerID:       req.SellerID,
		ConfigID:       req.ConfigID,
		DeliveryMethod: req.DeliveryMethod,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidGuestsOrDays) || errors.Is(err, service.ErrConfigurationNotFound) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{
			"error":   "Failed to schedule issuance",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, si)
}

// issuanceTrigger handles the push callback from the dispatch service. A
// record that was already processed is a success: the dispatch service may
// deliver the same trigger more than once.
func (h *Handler) issuanceTrigger(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issuance ID"})
		return
	}

	if err := h.processor.HandleScheduledTrigger(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrIssuanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issuance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to process trigger",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// runSweep handles manual sweep invocations
func (h *Handler) runSweep(c *gin.Context) {
	result, err := h.processor.SweepOverdue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sweep failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// getPass handles pass lookup by code
func (h *Handler) getPass(c *gin.Context) {
	pass, err := h.store.GetPassByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return
	}
	if pass == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pass not found"})
		return
	}

	c.JSON(http.StatusOK, pass)
}

// rebuyReminder handles the delayed rebuy callback from the dispatch service
func (h *Handler) rebuyReminder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pass ID"})
		return
	}

	pass, err := h.store.GetPassByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return
	}
	if pass == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pass not found"})
		return
	}

	result := h.notifier.SendRebuyReminder(c.Request.Context(), pass)
	c.JSON(http.StatusOK, gin.H{"sent": result.Sent})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
