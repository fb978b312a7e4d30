package payment

import (
	"net/http"
	"strconv"
	"time"

	"openbooking/internal/httpx"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.Engine) {
	g := r.Group("/api/payments")
	g.POST("/process", h.process)
	g.GET("/:id", h.get)
}

type processRequest struct {
	UserID         int64  `json:"user_id" binding:"required"`
	BookingID      int64  `json:"booking_id" binding:"required"`
	AmountCents    int64  `json:"amount_cents" binding:"required"`
	Method         string `json:"payment_method"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	if req.Method == "" {
		req.Method = "CARD"
	}

	result, err := h.svc.Charge(c.Request.Context(), ChargeCommand{
		UserID:         req.UserID,
		BookingID:      req.BookingID,
		AmountCents:    req.AmountCents,
		Method:         req.Method,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type paymentView struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BookingID     int64     `json:"booking_id"`
	AmountCents   int64     `json:"amount_cents"`
	Status        Status    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "id must be an integer")
		return
	}

	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentView{
		ID:            p.ID,
		UserID:        p.UserID,
		BookingID:     p.BookingID,
		AmountCents:   p.AmountCents,
		Status:        p.Status,
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
}
