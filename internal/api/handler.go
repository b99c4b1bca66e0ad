package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"kanzey-backend/internal/models"
	"kanzey-backend/internal/service"
	"kanzey-backend/internal/store"
	"kanzey-backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	eventService        *service.EventService
	purchaseService     *service.PurchaseService
	paymentService      *service.PaymentService
	verificationService *service.VerificationService
	jwtSecret           string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	eventService *service.EventService,
	purchaseService *service.PurchaseService,
	paymentService *service.PaymentService,
	verificationService *service.VerificationService,
	jwtSecret string,
) *Handler {
	return &Handler{
		eventService:        eventService,
		purchaseService:     purchaseService,
		paymentService:      paymentService,
		verificationService: verificationService,
		jwtSecret:           jwtSecret,
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

	auth := AuthRequired(h.jwtSecret)
	staff := RoleRequired(models.RoleOrganizer, models.RoleAdmin)
	admin := RoleRequired(models.RoleAdmin)

	api := router.Group("/api")
	{
		events := api.Group("/events")
		{
			events.GET("", h.listEvents)
			events.GET("/:id", h.getEvent)
			events.GET("/:id/availability", h.getAvailability)
			events.POST("", auth, staff, h.createEvent)
			events.PUT("/:id", auth, staff, h.updateEvent)
			events.DELETE("/:id", auth, staff, h.deleteEvent)
		}

		payment := api.Group("/payment")
		{
			payment.POST("/initiate", auth, h.initiatePurchase)
			payment.GET("/success", h.paymentSuccess)
			payment.GET("/cancel", h.paymentCancel)
			payment.POST("/callback", h.paymentCallback)
		}

		tickets := api.Group("/tickets")
		{
			tickets.GET("/mine", auth, h.myTickets)
			tickets.POST("/verify", auth, staff, h.verifyTicket)
		}

		slides := api.Group("/slides")
		{
			slides.GET("", h.listSlides)
			slides.POST("", auth, admin, h.createSlide)
			slides.PUT("/:id", auth, admin, h.updateSlide)
			slides.DELETE("/:id", auth, admin, h.deleteSlide)
		}
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

// listEvents handles event listing with optional filters
func (h *Handler) listEvents(c *gin.Context) {
	filter := store.EventFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Featured: c.Query("featured") == "true",
	}

	events, err := h.eventService.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// getEvent handles get event by ID
func (h *Handler) getEvent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	event, err := h.eventService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// getAvailability reports current availability for an event
func (h *Handler) getAvailability(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	available, capacity, err := h.eventService.Availability(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"event_id":          id,
		"available_tickets": available,
		"capacity":          capacity,
	})
}

// createEvent handles event creation
func (h *Handler) createEvent(c *gin.Context) {
	var req service.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid date, expected YYYY-MM-DD",
		})
		return
	}

	caller := CallerIdentity(c)
	event := &models.Event{
		Title:            req.Title,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Date:             date,
		Time:             req.Time,
		Location:         req.Location,
		Address:          req.Address,
		Price:            req.Price,
		Capacity:         req.Capacity,
		Category:         req.Category,
		Image:            req.Image,
		Tags:             pq.StringArray(req.Tags),
		IsFeatured:       req.IsFeatured,
		OrganizerID:      caller.UserID,
		CreatedBy:        caller.UserID,
	}

	if err := h.eventService.Create(c.Request.Context(), event); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// updateEvent handles event updates
func (h *Handler) updateEvent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	event.ID = id

	if err := h.eventService.Update(c.Request.Context(), &event, CallerIdentity(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// deleteEvent handles event deletion
func (h *Handler) deleteEvent(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.eventService.Delete(c.Request.Context(), id, CallerIdentity(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// initiatePurchase creates a pending ticket and returns the gateway
// redirect URL
func (h *Handler) initiatePurchase(c *gin.Context) {
	var req service.InitiatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.purchaseService.Initiate(c.Request.Context(), &req, CallerIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// paymentSuccess resolves the browser return after a payment attempt.
// The redirect alone proves nothing; a still-pending ticket triggers a
// server-to-server status query.
func (h *Handler) paymentSuccess(c *gin.Context) {
	transactionID := c.Query("transaction_id")
	if transactionID == "" {
		transactionID = c.Query("transaction")
	}
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing transaction_id"})
		return
	}

	resolution, ticket, err := h.paymentService.ResolveReturn(c.Request.Context(), transactionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	status := "processing"
	switch resolution {
	case service.ReturnConfirmed:
		status = "confirmed"
	case service.ReturnFailed:
		status = "failed"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"ticket": ticket,
	})
}

// paymentCancel handles the explicit cancel redirect from the gateway
func (h *Handler) paymentCancel(c *gin.Context) {
	transactionID := c.Query("transaction_id")
	if transactionID == "" {
		transactionID = c.Query("transaction")
	}
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing transaction_id"})
		return
	}

	ticket, err := h.paymentService.Cancel(c.Request.Context(), transactionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "cancelled",
		"ticket": ticket,
	})
}

// paymentCallback handles the provider's server-to-server webhook. It
// acknowledges duplicates with 200 so the provider stops retrying.
func (h *Handler) paymentCallback(c *gin.Context) {
	var payload service.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid callback payload",
			"details": err.Error(),
		})
		return
	}

	ticket, err := h.paymentService.HandleWebhook(c.Request.Context(), &payload)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientAvailability) {
			// The payment succeeded but the event sold out underneath it.
			// Acknowledge the webhook; the ticket is recorded as failed.
			c.JSON(http.StatusOK, gin.H{
				"status": "failed",
				"ticket": ticket,
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": ticket.Status,
		"ticket": ticket,
	})
}

// myTickets lists the caller's tickets
func (h *Handler) myTickets(c *gin.Context) {
	tickets, err := h.purchaseService.ListUserTickets(c.Request.Context(), CallerIdentity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// verifyTicketRequest is the door-side verification request
type verifyTicketRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
	Admit    bool   `json:"admit"`
}

// verifyTicket checks a presented ticket and optionally admits it
func (h *Handler) verifyTicket(c *gin.Context) {
	var req verifyTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.verificationService.Verify(c.Request.Context(), req.TicketID, req.Admit, CallerIdentity(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// listSlides lists the active hero slides
func (h *Handler) listSlides(c *gin.Context) {
	slides, err := h.eventService.ListSlides(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slides": slides})
}

// createSlide adds a hero slide
func (h *Handler) createSlide(c *gin.Context) {
	var slide models.Slide
	if err := c.ShouldBindJSON(&slide); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.eventService.CreateSlide(c.Request.Context(), &slide); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, slide)
}

// updateSlide modifies a hero slide
func (h *Handler) updateSlide(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var slide models.Slide
	if err := c.ShouldBindJSON(&slide); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	slide.ID = id

	if err := h.eventService.UpdateSlide(c.Request.Context(), &slide); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, slide)
}

// deleteSlide removes a hero slide
func (h *Handler) deleteSlide(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.eventService.DeleteSlide(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEventNotFound),
		errors.Is(err, store.ErrTicketNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrSlideNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientAvailability),
		errors.Is(err, service.ErrEventNotPurchasable):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrExternalService):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
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
