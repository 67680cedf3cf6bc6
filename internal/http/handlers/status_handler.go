// README: Plate status, spot status, and revenue query endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"parkman/internal/clock"
	"parkman/internal/modules/event"
)

type StatusHandler struct {
	events *event.Service
	clock  clock.Clock
}

func NewStatusHandler(events *event.Service, clk clock.Clock) *StatusHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &StatusHandler{events: events, clock: clk}
}

type plateStatusReq struct {
	LicensePlate string `json:"license_plate" binding:"required"`
}

type plateStatusResp struct {
	LicensePlate  string          `json:"license_plate"`
	PriceUntilNow decimal.Decimal `json:"price_until_now"`
	EntryTime     *string         `json:"entry_time"`
	TimeParked    *string         `json:"time_parked"`
}

func (h *StatusHandler) PlateStatus(c *gin.Context) {
	var req plateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "license_plate is required")
		return
	}
	status, err := h.events.PlateStatus(c.Request.Context(), req.LicensePlate)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plateStatusResp{
		LicensePlate:  status.LicensePlate,
		PriceUntilNow: status.PriceUntilNow,
		EntryTime:     formatTime(status.EntryTime),
		TimeParked:    formatTime(status.ParkedSince),
	})
}

type spotStatusReq struct {
	Lat *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" binding:"required,gte=-180,lte=180"`
}

type spotStatusResp struct {
	Occupied   bool    `json:"occupied"`
	EntryTime  *string `json:"entry_time"`
	TimeParked *string `json:"time_parked"`
}

func (h *StatusHandler) SpotStatus(c *gin.Context) {
	var req spotStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	status, err := h.events.SpotStatus(c.Request.Context(), *req.Lat, *req.Lng)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, spotStatusResp{
		Occupied:   status.Occupied,
		EntryTime:  formatTime(status.EntryTime),
		TimeParked: formatTime(status.ParkedSince),
	})
}

type revenueReq struct {
	Date   string `json:"date" binding:"required"`
	Sector string `json:"sector" binding:"required"`
}

type revenueResp struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp string          `json:"timestamp"`
}

func (h *StatusHandler) Revenue(c *gin.Context) {
	var req revenueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "date and sector are required")
		return
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(c, http.StatusBadRequest, "date must be in format YYYY-MM-DD")
		return
	}
	revenue, err := h.events.Revenue(c.Request.Context(), req.Sector, day)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	now := h.clock.Now()
	c.JSON(http.StatusOK, revenueResp{
		Amount:    revenue.Amount,
		Currency:  revenue.Currency,
		Timestamp: *formatTime(&now),
	})
}
