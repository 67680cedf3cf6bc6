// README: Garage bulk-provisioning endpoint.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"parkman/internal/modules/garage"
)

type GarageHandler struct {
	garage *garage.Service
}

func NewGarageHandler(svc *garage.Service) *GarageHandler {
	return &GarageHandler{garage: svc}
}

type sectorReq struct {
	Sector               string          `json:"sector" binding:"required"`
	BasePrice            decimal.Decimal `json:"basePrice" binding:"required"`
	MaxCapacity          int             `json:"max_capacity" binding:"required,gt=0"`
	OpenHour             string          `json:"open_hour" binding:"required"`
	CloseHour            string          `json:"close_hour" binding:"required"`
	DurationLimitMinutes int             `json:"duration_limit_minutes" binding:"required,gt=0"`
}

type spotReq struct {
	ID     int     `json:"id"`
	Sector string  `json:"sector" binding:"required"`
	Lat    float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lng    float64 `json:"lng" binding:"required,gte=-180,lte=180"`
}

type createGarageReq struct {
	Garage []sectorReq `json:"garage" binding:"required,min=1,dive"`
	Spots  []spotReq   `json:"spots" binding:"required,min=1,dive"`
}

func (h *GarageHandler) Create(c *gin.Context) {
	var req createGarageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	cmd := garage.ImportCommand{}
	for _, s := range req.Garage {
		cmd.Sectors = append(cmd.Sectors, garage.SectorInput{
			Code:                 s.Sector,
			BasePrice:            s.BasePrice,
			MaxCapacity:          s.MaxCapacity,
			OpenHour:             s.OpenHour,
			CloseHour:            s.CloseHour,
			DurationLimitMinutes: s.DurationLimitMinutes,
		})
	}
	for _, s := range req.Spots {
		cmd.Spots = append(cmd.Spots, garage.SpotInput{SectorCode: s.Sector, Lat: s.Lat, Lng: s.Lng})
	}

	if err := h.garage.Import(c.Request.Context(), cmd); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
