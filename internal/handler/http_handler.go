package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/lifecycle"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/middleware"
	"github.com/petlogue/consultation-service/pkg/response"
	"github.com/petlogue/consultation-service/pkg/token"
)

// Handler handles the consultation REST surface.
type Handler struct {
	engine         lifecycle.Engine
	rooms          repository.RoomRepository
	messages       repository.MessageRepository
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	engine lifecycle.Engine,
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		engine:         engine,
		rooms:          rooms,
		messages:       messages,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		consultations := api.Group("/consultations", h.authMiddleware.RequireAuth())
		{
			consultations.POST("", h.CreateConsultation)
			consultations.GET("/my", h.ListMyConsultations)
			consultations.GET("/:uuid", h.GetConsultation)

			consultations.POST("/:uuid/approve", h.Approve)
			consultations.POST("/:uuid/start", h.Start)
			consultations.POST("/:uuid/reject", h.Reject)
			consultations.POST("/:uuid/cancel", h.Cancel)
			consultations.POST("/:uuid/end", h.End)
			consultations.POST("/:uuid/answer", h.Answer)

			consultations.PUT("/:uuid/notes", h.UpdateNotes)
			consultations.PUT("/:uuid/prescription", h.UpdatePrescription)
			consultations.POST("/:uuid/payment", h.MarkPaid)

			consultations.GET("/:uuid/messages", h.ListMessages)
			consultations.POST("/:uuid/messages/read", h.MarkMessagesRead)
			consultations.GET("/:uuid/messages/unread-count", h.UnreadCount)
		}

		messages := api.Group("/messages", h.authMiddleware.RequireAuth())
		{
			messages.POST("/:id/important", h.ToggleImportant)
		}
	}
}

// CreateConsultation opens a new consultation room for the caller.
func (h *Handler) CreateConsultation(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	principal := middleware.GetPrincipal(c)
	if principal == nil {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("failed to bind create consultation request")
		response.BadRequest(c, err.Error())
		return
	}

	// Non-admin callers always create for themselves.
	if principal.Role != "admin" {
		req.UserID = principal.UserID
	}

	room, err := h.engine.Create(ctx, &req)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrUnknownType):
			response.BadRequest(c, err.Error())
		case errors.Is(err, repository.ErrScheduleUnavailable):
			response.Conflict(c, "schedule slot is no longer available")
		default:
			l.Error().Err(err).Msg("failed to create consultation")
			response.InternalError(c, "failed to create consultation")
		}
		return
	}

	response.Created(c, room)
}

// GetConsultation retrieves a consultation by public UUID.
func (h *Handler) GetConsultation(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}
	response.Success(c, room)
}

// ListMyConsultations lists the caller's consultations: by vet assignment for
// vets, by ownership otherwise.
func (h *Handler) ListMyConsultations(c *gin.Context) {
	ctx := c.Request.Context()

	principal := middleware.GetPrincipal(c)
	if principal == nil {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req domain.ListRoomsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	if req.Status != "" {
		if _, err := domain.ParseRoomStatus(req.Status); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	var (
		rooms []domain.Room
		total int
		err   error
	)
	if principal.Role == "vet" {
		rooms, total, err = h.rooms.ListByVet(ctx, principal.UserID, req.Page, req.PageSize, req.Status)
	} else {
		rooms, total, err = h.rooms.ListByUser(ctx, principal.UserID, req.Page, req.PageSize, req.Status)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to list consultations")
		response.InternalError(c, "failed to list consultations")
		return
	}

	totalPages := (total + req.PageSize - 1) / req.PageSize
	response.Success(c, &domain.ListRoomsResponse{
		Rooms:      rooms,
		Total:      total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages,
	})
}

// Approve is the assigned vet accepting the request.
func (h *Handler) Approve(c *gin.Context) {
	h.transition(c, requireVet, func(c *gin.Context, room *domain.Room) (*domain.Room, error) {
		return h.engine.Approve(c.Request.Context(), room.ID)
	})
}

// Start begins the session; same edge as Approve.
func (h *Handler) Start(c *gin.Context) {
	h.transition(c, requireVet, func(c *gin.Context, room *domain.Room) (*domain.Room, error) {
		return h.engine.Start(c.Request.Context(), room.ID)
	})
}

// Reject is the assigned vet declining the request.
func (h *Handler) Reject(c *gin.Context) {
	h.transition(c, requireVet, func(c *gin.Context, room *domain.Room) (*domain.Room, error) {
		var req domain.TransitionRequest
		c.ShouldBindJSON(&req)
		return h.engine.Reject(c.Request.Context(), room.ID, req.Reason)
	})
}

// Cancel is the requesting user withdrawing the request.
func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, requireOwner, func(c *gin.Context, room *domain.Room) (*domain.Room, error) {
		var req domain.TransitionRequest
		c.ShouldBindJSON(&req)
		return h.engine.Cancel(c.Request.Context(), room.ID, req.Reason)
	})
}

// End completes an in-progress session. Either participant may end it.
func (h *Handler) End(c *gin.Context) {
	h.transition(c, requireParticipant, func(c *gin.Context, room *domain.Room) (*domain.Room, error) {
		return h.engine.End(c.Request.Context(), room.ID)
	})
}

// Answer resolves a QNA consultation with the vet's written answer.
func (h *Handler) Answer(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}
	if !requireVet(principal, room) {
		response.Forbidden(c, "only the assigned vet may answer")
		return
	}

	var req domain.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updated, err := h.engine.Answer(c.Request.Context(), room.ID, principal.UserID, req.Content)
	if err != nil {
		h.transitionError(c, err)
		return
	}
	response.Success(c, updated)
}

// UpdateNotes replaces the vet's consultation notes.
func (h *Handler) UpdateNotes(c *gin.Context) {
	h.updateField(c, requireVet, func(c *gin.Context, room *domain.Room) error {
		var req domain.UpdateNotesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return errBadBody(err)
		}
		return h.engine.UpdateNotes(c.Request.Context(), room.ID, req.Notes)
	})
}

// UpdatePrescription replaces the prescription text.
func (h *Handler) UpdatePrescription(c *gin.Context) {
	h.updateField(c, requireVet, func(c *gin.Context, room *domain.Room) error {
		var req domain.UpdatePrescriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return errBadBody(err)
		}
		return h.engine.UpdatePrescription(c.Request.Context(), room.ID, req.Prescription)
	})
}

// MarkPaid records a completed payment for the consultation.
func (h *Handler) MarkPaid(c *gin.Context) {
	h.updateField(c, requireOwner, func(c *gin.Context, room *domain.Room) error {
		var req domain.MarkPaidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return errBadBody(err)
		}
		return h.engine.MarkPaid(c.Request.Context(), room.ID, req.PaymentMethod)
	})
}

// ListMessages lists the room's chat history, oldest first.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()

	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}

	var req domain.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 200 {
		req.PageSize = 50
	}

	messages, total, err := h.messages.ListByRoom(ctx, room.ID, req.Page, req.PageSize)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldRoomID, room.ID).Msg("failed to list messages")
		response.InternalError(c, "failed to list messages")
		return
	}

	response.Success(c, gin.H{
		"messages":  messages,
		"total":     total,
		"page":      req.Page,
		"page_size": req.PageSize,
	})
}

// MarkMessagesRead marks every message in the room not authored by the caller
// as read.
func (h *Handler) MarkMessagesRead(c *gin.Context) {
	ctx := c.Request.Context()

	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}

	updated, err := h.messages.MarkRead(ctx, room.ID, principal.UserID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldRoomID, room.ID).Msg("failed to mark messages read")
		response.InternalError(c, "failed to mark messages read")
		return
	}
	response.Success(c, gin.H{"updated": updated})
}

// UnreadCount returns the caller's unread message count for the room.
func (h *Handler) UnreadCount(c *gin.Context) {
	ctx := c.Request.Context()

	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}

	count, err := h.messages.UnreadCount(ctx, room.ID, principal.UserID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldRoomID, room.ID).Msg("failed to count unread messages")
		response.InternalError(c, "failed to count unread messages")
		return
	}
	response.Success(c, gin.H{"unread": count})
}

// ToggleImportant flips the important flag on a message the caller can see.
func (h *Handler) ToggleImportant(c *gin.Context) {
	ctx := c.Request.Context()

	principal := middleware.GetPrincipal(c)
	if principal == nil {
		response.Unauthorized(c, "unauthorized")
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}

	msg, err := h.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			response.NotFound(c, "message not found")
			return
		}
		response.InternalError(c, "failed to load message")
		return
	}

	room, err := h.rooms.GetByID(ctx, msg.RoomID)
	if err != nil {
		response.InternalError(c, "failed to load consultation")
		return
	}
	if !requireParticipant(principal, room) {
		response.Forbidden(c, "not a participant of this consultation")
		return
	}

	if err := h.messages.ToggleImportant(ctx, messageID); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("message_id", messageID).Msg("failed to toggle important flag")
		response.InternalError(c, "failed to toggle important flag")
		return
	}
	response.Success(c, nil)
}

type accessCheck func(principal *token.Principal, room *domain.Room) bool

func requireParticipant(principal *token.Principal, room *domain.Room) bool {
	if principal == nil {
		return false
	}
	if principal.Role == "admin" {
		return true
	}
	return principal.UserID == room.UserID || principal.UserID == room.VetID
}

func requireVet(principal *token.Principal, room *domain.Room) bool {
	if principal == nil {
		return false
	}
	if principal.Role == "admin" {
		return true
	}
	return principal.UserID == room.VetID
}

func requireOwner(principal *token.Principal, room *domain.Room) bool {
	if principal == nil {
		return false
	}
	if principal.Role == "admin" {
		return true
	}
	return principal.UserID == room.UserID
}

// loadRoom resolves the :uuid path parameter and enforces participant access.
func (h *Handler) loadRoom(c *gin.Context, principal *token.Principal) (*domain.Room, bool) {
	if principal == nil {
		response.Unauthorized(c, "unauthorized")
		return nil, false
	}

	roomUUID := c.Param("uuid")
	room, err := h.rooms.GetByUUID(c.Request.Context(), roomUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			response.NotFound(c, "consultation not found")
			return nil, false
		}
		log.Ctx(c.Request.Context()).Error().Err(err).Str(log.FieldRoomUUID, roomUUID).Msg("failed to load consultation")
		response.InternalError(c, "failed to load consultation")
		return nil, false
	}

	if !requireParticipant(principal, room) {
		response.Forbidden(c, "not a participant of this consultation")
		return nil, false
	}
	return room, true
}

// transition loads the room, enforces the access check, runs the edge and
// maps lifecycle errors onto status codes.
func (h *Handler) transition(c *gin.Context, check accessCheck, run func(*gin.Context, *domain.Room) (*domain.Room, error)) {
	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}
	if !check(principal, room) {
		response.Forbidden(c, "not permitted for this consultation")
		return
	}

	updated, err := run(c, room)
	if err != nil {
		h.transitionError(c, err)
		return
	}
	response.Success(c, updated)
}

func (h *Handler) updateField(c *gin.Context, check accessCheck, run func(*gin.Context, *domain.Room) error) {
	principal := middleware.GetPrincipal(c)
	room, ok := h.loadRoom(c, principal)
	if !ok {
		return
	}
	if !check(principal, room) {
		response.Forbidden(c, "not permitted for this consultation")
		return
	}

	if err := run(c, room); err != nil {
		var bad badBodyError
		if errors.As(err, &bad) {
			response.BadRequest(c, bad.Error())
			return
		}
		log.Ctx(c.Request.Context()).Error().Err(err).Int64(log.FieldRoomID, room.ID).Msg("failed to update consultation")
		response.InternalError(c, "failed to update consultation")
		return
	}
	response.Success(c, nil)
}

func (h *Handler) transitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	case errors.Is(err, lifecycle.ErrNotAnswerable):
		response.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrRoomNotFound):
		response.NotFound(c, "consultation not found")
	default:
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("consultation transition failed")
		response.InternalError(c, "consultation transition failed")
	}
}

type badBodyError struct{ err error }

func (e badBodyError) Error() string { return e.err.Error() }

func errBadBody(err error) error { return badBodyError{err: err} }
