package intake

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medplan/medplan-api/internal/handler"
	"github.com/medplan/medplan-api/internal/model"
	intakeService "github.com/medplan/medplan-api/internal/service/intake"
	"github.com/medplan/medplan-api/pkg/metrics"
)

type Handler struct {
	service *intakeService.Service
	metrics *metrics.Metrics
}

func NewHandler(service *intakeService.Service, m *metrics.Metrics) *Handler {
	return &Handler{service: service, metrics: m}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/intake", h.SetIntakeState)
}

// SetIntakeState records one intake toggle from the display widget. A
// validation failure answers with the first failing check's message and a
// 400; storage trouble is a 500. On success the body data is literal true,
// matching the command protocol.
func (h *Handler) SetIntakeState(c *gin.Context) {
	var req model.SetIntakeStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SetIntakeState(c.Request.Context(), &req); err != nil {
		var verr *intakeService.ValidationError
		if errors.As(err, &verr) {
			if h.metrics != nil {
				h.metrics.IntakeRejected.WithLabelValues("validation").Inc()
			}
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse(verr.Error()))
			return
		}
		if h.metrics != nil {
			h.metrics.IntakeRejected.WithLabelValues("storage").Inc()
		}
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(true))
}
