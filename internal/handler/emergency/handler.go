package emergency

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lifepulse/internal/handler"
	"github.com/jwalitptl/lifepulse/internal/model"
	emergencyService "github.com/jwalitptl/lifepulse/internal/service/emergency"
	"github.com/jwalitptl/lifepulse/pkg/validator"
)

type Handler struct {
	service emergencyService.EmergencyServicer
}

func NewHandler(service emergencyService.EmergencyServicer) *Handler {
	// Binding tags on the models rely on the domain validators.
	if err := validator.RegisterWithGin(); err != nil {
		panic(err)
	}
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/emergency-requests")
	{
		requests.POST("", h.SubmitRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/retry", h.RetryRequest)
	}

	r.POST("/sync", h.Sync)
	r.GET("/status", h.Status)
}

func (h *Handler) SubmitRequest(c *gin.Context) {
	var draft model.EmergencyRequestDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ack := h.service.Submit(c.Request.Context(), draft)

	status := http.StatusCreated
	if ack.Queued {
		status = http.StatusAccepted
	}
	c.JSON(status, handler.NewMessageResponse(ack.Message, ack))
}

func (h *Handler) ListRequests(c *gin.Context) {
	status := model.RequestStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("status must be one of pending, synced, failed"))
		return
	}

	requests := h.service.List(c.Request.Context(), status)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"requests": requests,
		"total":    len(requests),
	}))
}

func (h *Handler) GetRequest(c *gin.Context) {
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) RetryRequest(c *gin.Context) {
	req, err := h.service.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewMessageResponse("Request re-queued", req))
}

func (h *Handler) Sync(c *gin.Context) {
	summary, err := h.service.SyncNow(c.Request.Context())
	if err != nil {
		handler.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(summary))
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.service.Status(c.Request.Context())))
}

