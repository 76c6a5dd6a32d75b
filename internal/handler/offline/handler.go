package offline

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lifepulse/internal/connectivity"
	"github.com/jwalitptl/lifepulse/internal/handler"
	"github.com/jwalitptl/lifepulse/internal/model"
	emergencyService "github.com/jwalitptl/lifepulse/internal/service/emergency"
	"github.com/jwalitptl/lifepulse/pkg/validator"
)

// ConnectivitySignal accepts push style online/offline events from the UI.
type ConnectivitySignal interface {
	Current() connectivity.State
	Set(online bool) bool
}

type Handler struct {
	service emergencyService.EmergencyServicer
	signal  ConnectivitySignal
}

func NewHandler(service emergencyService.EmergencyServicer, signal ConnectivitySignal) *Handler {
	// Binding tags on the models rely on the domain validators.
	if err := validator.RegisterWithGin(); err != nil {
		panic(err)
	}
	return &Handler{service: service, signal: signal}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/connectivity", h.GetConnectivity)
	r.PUT("/connectivity", h.SetConnectivity)

	offline := r.Group("/offline")
	{
		offline.GET("/contacts", h.GetContacts)
		offline.PUT("/contacts", h.SaveContacts)
		offline.GET("/donors", h.GetDonors)
		offline.PUT("/donors", h.SaveDonors)
		offline.GET("/location", h.GetLocation)
		offline.PUT("/location", h.SaveLocation)
	}
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

func (h *Handler) GetConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"state": h.signal.Current()}))
}

func (h *Handler) SetConnectivity(c *gin.Context) {
	var req connectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	changed := h.signal.Set(*req.Online)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"state":   h.signal.Current(),
		"changed": changed,
	}))
}

func (h *Handler) GetContacts(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.service.EmergencyContacts(c.Request.Context())))
}

func (h *Handler) SaveContacts(c *gin.Context) {
	var contacts []model.EmergencyContact
	if err := c.ShouldBindJSON(&contacts); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SaveEmergencyContacts(c.Request.Context(), contacts); err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(contacts))
}

func (h *Handler) GetDonors(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.service.Donors(c.Request.Context())))
}

func (h *Handler) SaveDonors(c *gin.Context) {
	var donors []model.Donor
	if err := c.ShouldBindJSON(&donors); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SaveDonors(c.Request.Context(), donors); err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(donors))
}

func (h *Handler) GetLocation(c *gin.Context) {
	loc, err := h.service.LastLocation(c.Request.Context())
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(loc))
}

func (h *Handler) SaveLocation(c *gin.Context) {
	var loc model.Location
	if err := c.ShouldBindJSON(&loc); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	saved, err := h.service.SaveLastLocation(c.Request.Context(), loc)
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(saved))
}
