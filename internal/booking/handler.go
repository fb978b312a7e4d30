package booking

import (
	"net/http"
	"strconv"
	"time"

	"openbooking/internal/httpx"
	"openbooking/internal/pkg/dates"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.Engine) {
	g := r.Group("/api/bookings")
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.GET("/user/:userId", h.listByUser)
}

type createRequest struct {
	UserID       int64  `json:"user_id" binding:"required"`
	RoomID       int64  `json:"room_id" binding:"required"`
	CheckInDate  string `json:"check_in_date" binding:"required"`
	CheckOutDate string `json:"check_out_date" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
}

type bookingView struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id"`
	RoomID          int64  `json:"room_id"`
	CheckInDate     string `json:"check_in_date"`
	CheckOutDate    string `json:"check_out_date"`
	Quantity        int    `json:"quantity"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Status          Status `json:"status"`
	SagaStep        string `json:"saga_step"`
	PaymentID       *int64 `json:"payment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toView(b Booking) bookingView {
	return bookingView{
		ID:              b.ID,
		UserID:          b.UserID,
		RoomID:          b.RoomID,
		CheckInDate:     dates.Format(b.CheckInDate),
		CheckOutDate:    dates.Format(b.CheckOutDate),
		Quantity:        b.Quantity,
		TotalPriceCents: b.TotalPriceCents,
		Status:          b.Status,
		SagaStep:        string(b.SagaStep),
		PaymentID:       b.PaymentID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// create maps the saga outcome onto the response: 200 for CONFIRMED, 202
// when the outcome is unclear and recovery owns the booking, error status
// for a clear failure.
func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	checkIn, err := dates.Parse(req.CheckInDate)
	if err != nil {
		httpx.BadRequest(c, "check_in_date must be YYYY-MM-DD")
		return
	}
	checkOut, err := dates.Parse(req.CheckOutDate)
	if err != nil {
		httpx.BadRequest(c, "check_out_date must be YYYY-MM-DD")
		return
	}

	result, err := h.svc.Create(c.Request.Context(), CreateCommand{
		UserID:       req.UserID,
		RoomID:       req.RoomID,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		Quantity:     req.Quantity,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}

	switch result.Outcome {
	case OutcomeConfirmed:
		c.JSON(http.StatusOK, toView(result.Booking))
	case OutcomePendingUnclear:
		c.JSON(http.StatusAccepted, gin.H{
			"booking": toView(result.Booking),
			"message": "Your booking is being processed. Check back shortly.",
		})
	case OutcomeBusinessFailure:
		httpx.Error(c, result.Err)
	}
}

func (h *Handler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "id must be an integer")
		return
	}
	b, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, toView(b))
}

func (h *Handler) listByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "userId must be an integer")
		return
	}
	bookings, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, toView(b))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views})
}
