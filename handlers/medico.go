package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clinica-medicos/models"
	"clinica-medicos/utils"
)

type MedicoHandler struct {
	repo   models.Repository
	kafka  utils.KafkaProducer
	logger *log.Logger
}

// NewMedicoHandler wires the registry into HTTP. kafka may be nil, in which
// case no change events are published.
func NewMedicoHandler(repo models.Repository, kafka utils.KafkaProducer, logger *log.Logger) *MedicoHandler {
	return &MedicoHandler{
		repo:   repo,
		kafka:  kafka,
		logger: logger,
	}
}

func (h *MedicoHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/guardar-medico", h.CreateMedico)
	r.GET("/medicos", h.ListMedicos)
	r.DELETE("/eliminar-medico", h.DeleteMedico)
	r.PATCH("/actualizar-medico", h.UpdateMedico)
	r.DELETE("/medicos/:id", h.DeleteMedicoByID)
}

type MedicoRequest struct {
	LoadDate       string   `json:"fecha_carga" form:"fecha_carga"`
	Specialty      string   `json:"especialidad" form:"especialidad"`
	FirstName      string   `json:"nombre_medico" form:"nombre_medico"`
	LastName       string   `json:"apellido_medico" form:"apellido_medico"`
	Category       string   `json:"categoria" form:"categoria"`
	InsurancePlans string   `json:"obra_social" form:"obra_social"`
	AttendanceDays []string `json:"dias_atencion" form:"dias_atencion"`
}

type IdentityRequest struct {
	FirstName string `json:"nombre_medico" form:"nombre_medico"`
	LastName  string `json:"apellido_medico" form:"apellido_medico"`
	Specialty string `json:"especialidad" form:"especialidad"`
}

func (r IdentityRequest) key() models.IdentityKey {
	return models.IdentityKey{FirstName: r.FirstName, LastName: r.LastName, Specialty: r.Specialty}
}

// UpdateRequest keys on names plus an optional specialty; empty fields are
// left untouched.
type UpdateRequest struct {
	IdentityRequest
	AttendanceDays []string `json:"dias_atencion" form:"dias_atencion"`
	InsurancePlans string   `json:"obra_social" form:"obra_social"`
	Category       string   `json:"categoria" form:"categoria"`
}

func (h *MedicoHandler) CreateMedico(c *gin.Context) {
	var req MedicoRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	medico := &models.Medico{
		LoadDate:       req.LoadDate,
		Specialty:      req.Specialty,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Category:       req.Category,
		InsurancePlans: req.InsurancePlans,
		AttendanceDays: req.AttendanceDays,
	}

	if err := h.repo.Create(c.Request.Context(), medico); err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(models.EventMedicoCreated, *medico)

	c.JSON(http.StatusOK, gin.H{"success": true, "id": medico.ID})
}

func (h *MedicoHandler) ListMedicos(c *gin.Context) {
	medicos, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, medicos)
}

func (h *MedicoHandler) DeleteMedico(c *gin.Context) {
	var req IdentityRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	removed, err := h.repo.Delete(c.Request.Context(), req.key())
	if err != nil {
		h.respondError(c, err)
		return
	}

	for _, m := range removed {
		h.publish(models.EventMedicoDeleted, m)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": len(removed)})
}

func (h *MedicoHandler) DeleteMedicoByID(c *gin.Context) {
	id, err := parseUint(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid medico ID format"})
		return
	}

	medico, err := h.repo.DeleteByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(models.EventMedicoDeleted, *medico)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *MedicoHandler) UpdateMedico(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	key := req.key()

	n, err := h.repo.UpdatePartial(c.Request.Context(), key, models.UpdateFields{
		AttendanceDays: req.AttendanceDays,
		InsurancePlans: req.InsurancePlans,
		Category:       req.Category,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.kafka != nil {
		updated, err := h.repo.Find(c.Request.Context(), key)
		if err != nil {
			h.logger.Printf("Failed to load updated medico %s for events: %v", key, err)
		}
		for _, m := range updated {
			h.publish(models.EventMedicoUpdated, m)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *MedicoHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, models.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
	default:
		h.logger.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}

func (h *MedicoHandler) publish(event string, medico models.Medico) {
	if h.kafka == nil {
		return
	}
	go h.sendKafkaEvent(models.NewMedicoEvent(event, medico))
}

func (h *MedicoHandler) sendKafkaEvent(event models.MedicoEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	jsonData, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("Failed to marshal Kafka event: %v", err)
		return
	}

	key := strconv.FormatUint(uint64(event.Data.ID), 10)
	if err := h.kafka.Publish(ctx, key, jsonData); err != nil {
		h.logger.Printf("Failed to send %s event for medico %s: %v", event.Event, key, err)
	}
}

func parseUint(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
