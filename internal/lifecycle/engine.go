package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/pkg/log"
)

type engine struct {
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	schedules repository.ScheduleRepository
	directory repository.UserDirectory
	registry  TimeoutRegistry
	notifier  Notifier

	now func() time.Time
}

// NewEngine creates the lifecycle engine.
func NewEngine(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	schedules repository.ScheduleRepository,
	directory repository.UserDirectory,
	registry TimeoutRegistry,
	notifier Notifier,
) Engine {
	return &engine{
		rooms:     rooms,
		messages:  messages,
		schedules: schedules,
		directory: directory,
		registry:  registry,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Create opens a new consultation room. QNA consultations start PENDING,
// scheduled ones CREATED, immediate ones WAITING. Pending rooms are
// registered for automatic timeout and the assigned vet is alerted.
func (e *engine) Create(ctx context.Context, req *domain.CreateRoomRequest) (*domain.Room, error) {
	l := log.Ctx(ctx)

	typ := domain.TypeChat
	if req.Type != "" {
		switch domain.ConsultationType(req.Type) {
		case domain.TypeChat, domain.TypeVideo, domain.TypePhone, domain.TypeQNA:
			typ = domain.ConsultationType(req.Type)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
		}
	}

	status := domain.StatusWaiting
	switch {
	case typ == domain.TypeQNA:
		status = domain.StatusPending
	case req.ScheduledAt != nil:
		status = domain.StatusCreated
	}

	if req.ScheduleID != nil {
		if err := e.schedules.Book(ctx, *req.ScheduleID); err != nil {
			return nil, err
		}
	}

	room := &domain.Room{
		UserID:         req.UserID,
		VetID:          req.VetID,
		PetID:          req.PetID,
		ScheduleID:     req.ScheduleID,
		Status:         status,
		Type:           typ,
		ScheduledAt:    req.ScheduledAt,
		Fee:            req.Fee,
		PaymentStatus:  domain.PaymentPending,
		ChiefComplaint: req.ChiefComplaint,
	}

	if err := e.rooms.Create(ctx, room); err != nil {
		if req.ScheduleID != nil {
			if relErr := e.schedules.Release(ctx, *req.ScheduleID); relErr != nil {
				l.Error().Err(relErr).Int64("schedule_id", *req.ScheduleID).Msg("failed to release slot after create failure")
			}
		}
		return nil, err
	}

	if room.Status.IsPending() {
		e.registry.Register(room.ID)
	}

	username, petName := e.resolveNames(ctx, room)
	n := domain.NewConsultationNotification(room, username, petName)
	e.notifier.NotifyNewConsultation(ctx, n, e.vetLoginID(ctx, room.VetID))

	l.Info().
		Int64(log.FieldRoomID, room.ID).
		Str(log.FieldRoomUUID, room.UUID).
		Str("status", string(room.Status)).
		Str("consultation_type", string(room.Type)).
		Msg("consultation created")
	return room, nil
}

// Approve is the vet accepting a pending request; the session begins
// immediately.
func (e *engine) Approve(ctx context.Context, roomID int64) (*domain.Room, error) {
	return e.begin(ctx, roomID, domain.ActionApprove)
}

// Start begins the session; the same edge as Approve, taken when the client
// signals session start directly.
func (e *engine) Start(ctx context.Context, roomID int64) (*domain.Room, error) {
	return e.begin(ctx, roomID, domain.ActionStart)
}

func (e *engine) begin(ctx context.Context, roomID int64, action domain.Action) (*domain.Room, error) {
	now := e.now()
	room, err := e.rooms.Transition(ctx, roomID, action.PreStates(), domain.StatusInProgress,
		map[string]interface{}{"started_at": now})
	if err != nil {
		return nil, err
	}

	e.registry.Unregister(roomID)
	e.notifier.BroadcastStatusChange(ctx, room, domain.StatusInProgress, "consultation started")
	return room, nil
}

// Reject is the vet declining a pending request.
func (e *engine) Reject(ctx context.Context, roomID int64, reason string) (*domain.Room, error) {
	return e.decline(ctx, roomID, domain.ActionReject, domain.StatusRejected, reason, "consultation rejected")
}

// Cancel is the requesting user withdrawing a pending request.
func (e *engine) Cancel(ctx context.Context, roomID int64, reason string) (*domain.Room, error) {
	return e.decline(ctx, roomID, domain.ActionCancel, domain.StatusCancelled, reason, "consultation cancelled")
}

func (e *engine) decline(ctx context.Context, roomID int64, action domain.Action, to domain.RoomStatus, reason, message string) (*domain.Room, error) {
	now := e.now()
	room, err := e.rooms.Transition(ctx, roomID, action.PreStates(), to,
		map[string]interface{}{"ended_at": now})
	if err != nil {
		return nil, err
	}

	e.registry.Unregister(roomID)
	e.releaseSlot(ctx, room)

	if reason != "" {
		e.appendSystemMessage(ctx, room.ID, fmt.Sprintf("%s: %s", message, reason))
		message = reason
	}
	e.notifier.BroadcastStatusChange(ctx, room, to, message)
	return room, nil
}

// End completes an in-progress session. Duration is recorded in whole
// minutes, truncated.
func (e *engine) End(ctx context.Context, roomID int64) (*domain.Room, error) {
	now := e.now()

	current, err := e.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	duration := 0
	if current.StartedAt != nil {
		duration = int(now.Sub(*current.StartedAt).Minutes())
	}

	room, err := e.rooms.Transition(ctx, roomID, domain.ActionEnd.PreStates(), domain.StatusCompleted,
		map[string]interface{}{"ended_at": now, "duration_minutes": duration})
	if err != nil {
		return nil, err
	}

	e.notifier.BroadcastConsultationEnded(ctx, room)
	e.notifier.BroadcastStatusChange(ctx, room, domain.StatusCompleted, "consultation completed")
	return room, nil
}

// TimeOut expires a pending request that went unanswered. Driven only by the
// timeout reconciler; an explicit transition landing first makes this return
// domain.ErrInvalidTransition.
func (e *engine) TimeOut(ctx context.Context, roomID int64) error {
	now := e.now()
	room, err := e.rooms.Transition(ctx, roomID, domain.ActionTimeout.PreStates(), domain.StatusTimedOut,
		map[string]interface{}{"ended_at": now})
	if err != nil {
		return err
	}

	e.registry.Unregister(roomID)
	e.releaseSlot(ctx, room)
	e.appendSystemMessage(ctx, room.ID, "consultation request was not answered in time")
	e.notifier.BroadcastStatusChange(ctx, room, domain.StatusTimedOut, "consultation timed out")

	log.Ctx(ctx).Info().
		Int64(log.FieldRoomID, room.ID).
		Str(log.FieldRoomUUID, room.UUID).
		Msg("consultation timed out")
	return nil
}

// Answer resolves a QNA consultation with the vet's written answer. The
// answer is persisted as a vet chat message in the room.
func (e *engine) Answer(ctx context.Context, roomID, vetID int64, content string) (*domain.Room, error) {
	current, err := e.rooms.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if current.Type != domain.TypeQNA {
		return nil, ErrNotAnswerable
	}

	now := e.now()
	room, err := e.rooms.Transition(ctx, roomID, domain.ActionAnswer.PreStates(), domain.StatusAnswered,
		map[string]interface{}{"ended_at": now})
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		RoomID:   room.ID,
		SenderID: vetID,
		Role:     domain.SenderVet,
		Kind:     domain.KindText,
		Content:  content,
	}
	if err := e.messages.Append(ctx, msg); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64(log.FieldRoomID, room.ID).Msg("failed to persist QNA answer message")
	}

	e.notifier.BroadcastStatusChange(ctx, room, domain.StatusAnswered, "consultation answered")
	return room, nil
}

// UpdateNotes replaces the vet's free-text consultation notes.
func (e *engine) UpdateNotes(ctx context.Context, roomID int64, notes string) error {
	return e.rooms.UpdateFields(ctx, roomID, map[string]interface{}{"consultation_notes": notes})
}

// UpdatePrescription replaces the prescription text.
func (e *engine) UpdatePrescription(ctx context.Context, roomID int64, prescription string) error {
	return e.rooms.UpdateFields(ctx, roomID, map[string]interface{}{"prescription": prescription})
}

// MarkPaid records a completed payment.
func (e *engine) MarkPaid(ctx context.Context, roomID int64, method string) error {
	return e.rooms.UpdateFields(ctx, roomID, map[string]interface{}{
		"payment_status": string(domain.PaymentPaid),
		"payment_method": method,
		"paid_at":        e.now(),
	})
}

// releaseSlot frees the booked schedule slot, if any. Best effort.
func (e *engine) releaseSlot(ctx context.Context, room *domain.Room) {
	if room.ScheduleID == nil {
		return
	}
	if err := e.schedules.Release(ctx, *room.ScheduleID); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Int64(log.FieldRoomID, room.ID).
			Int64("schedule_id", *room.ScheduleID).
			Msg("failed to release schedule slot")
	}
}

// appendSystemMessage records a system line in the room's chat. Best effort.
func (e *engine) appendSystemMessage(ctx context.Context, roomID int64, content string) {
	msg := &domain.ChatMessage{
		RoomID:  roomID,
		Role:    domain.SenderSystem,
		Kind:    domain.KindSystem,
		Content: content,
	}
	if err := e.messages.Append(ctx, msg); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64(log.FieldRoomID, roomID).Msg("failed to append system message")
	}
}

// resolveNames looks up the requester and pet display names for the new
// consultation alert. Lookup failures degrade to empty fields.
func (e *engine) resolveNames(ctx context.Context, room *domain.Room) (username, petName string) {
	if profile, err := e.directory.UserByID(ctx, room.UserID); err == nil {
		username = profile.Nickname
	}
	if room.PetID != nil {
		if name, err := e.directory.PetName(ctx, *room.PetID); err == nil {
			petName = name
		}
	}
	return username, petName
}

// vetLoginID resolves the assigned vet's login id for addressed delivery.
// Returns "" when the vet cannot be resolved, which falls back to the
// fleet-wide broadcast.
func (e *engine) vetLoginID(ctx context.Context, vetID int64) string {
	if vetID == 0 {
		return ""
	}
	profile, err := e.directory.UserByID(ctx, vetID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64(log.FieldVetID, vetID).Msg("failed to resolve vet login id")
		return ""
	}
	return profile.LoginID
}
