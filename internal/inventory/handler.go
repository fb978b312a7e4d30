package inventory

import (
	"net/http"
	"strconv"

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
	g := r.Group("/api/inventory")
	g.POST("/reserve", h.reserve)
	g.POST("/confirm/:bookingId", h.confirm)
	g.POST("/release", h.release)
	g.POST("/availability", h.seed)
	g.GET("/availability/:roomId", h.availability)
}

type reserveRequest struct {
	RoomID         int64  `json:"room_id" binding:"required"`
	CheckInDate    string `json:"check_in_date" binding:"required"`
	CheckOutDate   string `json:"check_out_date" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *Handler) reserve(c *gin.Context) {
	var req reserveRequest
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

	result, err := h.svc.Reserve(c.Request.Context(), ReserveCommand{
		RoomID:         req.RoomID,
		CheckIn:        checkIn,
		CheckOut:       checkOut,
		Quantity:       req.Quantity,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) confirm(c *gin.Context) {
	bookingID, err := strconv.ParseInt(c.Param("bookingId"), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "bookingId must be an integer")
		return
	}
	if err := h.svc.Confirm(c.Request.Context(), bookingID); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

type releaseRequest struct {
	RoomID       int64  `json:"room_id" binding:"required"`
	CheckInDate  string `json:"check_in_date" binding:"required"`
	CheckOutDate string `json:"check_out_date" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	BookingID    *int64 `json:"booking_id"`
}

func (h *Handler) release(c *gin.Context) {
	var req releaseRequest
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

	cmd := ReleaseCommand{
		RoomID:    req.RoomID,
		CheckIn:   checkIn,
		CheckOut:  checkOut,
		Quantity:  req.Quantity,
		BookingID: req.BookingID,
	}
	if err := h.svc.Release(c.Request.Context(), cmd); err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}

type seedRequest struct {
	RoomID         int64  `json:"room_id" binding:"required"`
	From           string `json:"from" binding:"required"`
	To             string `json:"to" binding:"required"`
	AvailableCount int    `json:"available_count"`
	PricePerNight  int64  `json:"price_per_night_cents"`
}

func (h *Handler) seed(c *gin.Context) {
	var req seedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, err.Error())
		return
	}
	from, err := dates.Parse(req.From)
	if err != nil {
		httpx.BadRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := dates.Parse(req.To)
	if err != nil {
		httpx.BadRequest(c, "to must be YYYY-MM-DD")
		return
	}

	nights, err := h.svc.Seed(c.Request.Context(), SeedCommand{
		RoomID:         req.RoomID,
		From:           from,
		To:             to,
		AvailableCount: req.AvailableCount,
		PricePerNight:  req.PricePerNight,
	})
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nights_seeded": nights})
}

func (h *Handler) availability(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
	if err != nil {
		httpx.BadRequest(c, "roomId must be an integer")
		return
	}
	from, err := dates.Parse(c.Query("from"))
	if err != nil {
		httpx.BadRequest(c, "from must be YYYY-MM-DD")
		return
	}
	to, err := dates.Parse(c.Query("to"))
	if err != nil {
		httpx.BadRequest(c, "to must be YYYY-MM-DD")
		return
	}

	rows, err := h.svc.AvailabilityRange(c.Request.Context(), roomID, from, to)
	if err != nil {
		httpx.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_id": roomID, "availability": rows})
}
