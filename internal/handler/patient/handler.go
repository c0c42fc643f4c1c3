package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"github.com/medplan/medplan-api/internal/handler"
	"github.com/medplan/medplan-api/internal/model"
	intakeService "github.com/medplan/medplan-api/internal/service/intake"
)

const (
	cacheKeyMedications = "medications"
	cacheKeyIndex       = "patients-index"
)

// Handler serves the admin passthroughs: medication catalog, patients
// index and whole patient documents. List GETs are cached briefly; the
// matching PUT invalidates.
type Handler struct {
	service *intakeService.Service
	lists   *cache.Cache
}

func NewHandler(service *intakeService.Service) *Handler {
	return &Handler{
		service: service,
		lists:   cache.New(5*time.Second, time.Minute),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/medications", h.SetMedicationList)
	r.GET("/medications", h.GetMedicationList)

	patients := r.Group("/patients")
	{
		patients.PUT("/index", h.SetPatientsIndex)
		patients.GET("/index", h.GetPatientsIndex)
		patients.PUT("/:key", h.SetPatientData)
		patients.GET("/:key", h.GetPatientData)
		patients.DELETE("/:key", h.DeletePatientData)
	}
}

type setListRequest struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

func (h *Handler) SetMedicationList(c *gin.Context) {
	var req setListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var list []model.Medication
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &list); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("value must be a medication array"))
			return
		}
	}

	id := req.ID
	if id == "" {
		id = h.service.MedicationListAddress()
	}

	if err := h.service.SetMedicationList(c.Request.Context(), id, list); err != nil {
		h.respondError(c, err)
		return
	}

	h.lists.Delete(cacheKeyMedications)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(true))
}

func (h *Handler) GetMedicationList(c *gin.Context) {
	if cached, ok := h.lists.Get(cacheKeyMedications); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": cached}))
		return
	}

	id := c.Query("id")
	if id == "" {
		id = h.service.MedicationListAddress()
	}

	list, err := h.service.GetMedicationList(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.lists.Set(cacheKeyMedications, list, cache.DefaultExpiration)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": list}))
}

func (h *Handler) SetPatientsIndex(c *gin.Context) {
	var req setListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	var list []model.IndexEntry
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &list); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("value must be an index array"))
			return
		}
	}

	id := req.ID
	if id == "" {
		id = h.service.PatientsIndexAddress()
	}

	if err := h.service.SetPatientsIndex(c.Request.Context(), id, list); err != nil {
		h.respondError(c, err)
		return
	}

	h.lists.Delete(cacheKeyIndex)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(true))
}

func (h *Handler) GetPatientsIndex(c *gin.Context) {
	if cached, ok := h.lists.Get(cacheKeyIndex); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": cached}))
		return
	}

	id := c.Query("id")
	if id == "" {
		id = h.service.PatientsIndexAddress()
	}

	list, err := h.service.GetPatientsIndex(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.lists.Set(cacheKeyIndex, list, cache.DefaultExpiration)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": list}))
}

type setPatientRequest struct {
	DisplayName string          `json:"displayName"`
	Value       json.RawMessage `json:"value"`
}

func (h *Handler) SetPatientData(c *gin.Context) {
	key := c.Param("key")

	var req setPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	addr := h.service.PatientAddress(key)
	if err := h.service.SetPatientData(c.Request.Context(), addr, req.DisplayName, req.Value); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(true))
}

func (h *Handler) GetPatientData(c *gin.Context) {
	addr := h.service.PatientAddress(c.Param("key"))

	doc, err := h.service.GetPatientData(c.Request.Context(), addr)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Absent or undecodable documents answer with an explicit null value.
	if doc == nil {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": nil}))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"value": doc}))
}

func (h *Handler) DeletePatientData(c *gin.Context) {
	addr := h.service.PatientAddress(c.Param("key"))

	if err := h.service.DeletePatientData(c.Request.Context(), addr); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(true))
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *intakeService.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(verr.Error()))
		return
	}
	c.JSON(http.StatusInternalServerError, handler.NewErrorResponse(err.Error()))
}
