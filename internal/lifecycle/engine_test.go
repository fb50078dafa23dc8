package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/repository"
)

type memRoomRepo struct {
	rooms  map[int64]*domain.Room
	nextID int64
}

func newMemRoomRepo() *memRoomRepo {
	return &memRoomRepo{rooms: make(map[int64]*domain.Room), nextID: 1}
}

func (m *memRoomRepo) Create(ctx context.Context, room *domain.Room) error {
	room.ID = m.nextID
	room.UUID = fmt.Sprintf("uuid-%d", m.nextID)
	room.CreatedAt = time.Now()
	m.nextID++
	cp := *room
	m.rooms[room.ID] = &cp
	return nil
}

func (m *memRoomRepo) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	cp := *room
	return &cp, nil
}

func (m *memRoomRepo) GetByUUID(ctx context.Context, uuid string) (*domain.Room, error) {
	for _, room := range m.rooms {
		if room.UUID == uuid {
			cp := *room
			return &cp, nil
		}
	}
	return nil, repository.ErrRoomNotFound
}

func (m *memRoomRepo) Transition(ctx context.Context, roomID int64, from []domain.RoomStatus, to domain.RoomStatus, updates map[string]interface{}) (*domain.Room, error) {
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	allowed := false
	for _, f := range from {
		if room.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: room %d is %s", domain.ErrInvalidTransition, roomID, room.Status)
	}
	room.Status = to
	if v, ok := updates["started_at"].(time.Time); ok {
		room.StartedAt = &v
	}
	if v, ok := updates["ended_at"].(time.Time); ok {
		room.EndedAt = &v
	}
	if v, ok := updates["duration_minutes"].(int); ok {
		room.DurationMinutes = v
	}
	cp := *room
	return &cp, nil
}

func (m *memRoomRepo) FindPendingOlderThan(ctx context.Context, threshold time.Time) ([]domain.Room, error) {
	return nil, nil
}

func (m *memRoomRepo) ListByUser(ctx context.Context, userID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return nil, 0, nil
}

func (m *memRoomRepo) ListByVet(ctx context.Context, vetID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return nil, 0, nil
}

func (m *memRoomRepo) UpdateFields(ctx context.Context, roomID int64, updates map[string]interface{}) error {
	if _, ok := m.rooms[roomID]; !ok {
		return repository.ErrRoomNotFound
	}
	room := m.rooms[roomID]
	if v, ok := updates["consultation_notes"].(string); ok {
		room.Notes = v
	}
	if v, ok := updates["prescription"].(string); ok {
		room.Prescription = v
	}
	if v, ok := updates["payment_status"].(string); ok {
		room.PaymentStatus = domain.PaymentStatus(v)
	}
	if v, ok := updates["payment_method"].(string); ok {
		room.PaymentMethod = v
	}
	return nil
}

type memMessageRepo struct {
	appended []*domain.ChatMessage
	err      error
}

func (m *memMessageRepo) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, msg)
	return nil
}
func (m *memMessageRepo) GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	return nil, repository.ErrMessageNotFound
}
func (m *memMessageRepo) ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]domain.ChatMessage, int, error) {
	return nil, 0, nil
}
func (m *memMessageRepo) Recent(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	return nil, nil
}
func (m *memMessageRepo) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	return 0, nil
}
func (m *memMessageRepo) UnreadCount(ctx context.Context, roomID, readerID int64) (int64, error) {
	return 0, nil
}
func (m *memMessageRepo) ToggleImportant(ctx context.Context, messageID int64) error { return nil }

type fakeSchedules struct {
	booked   []int64
	released []int64
	bookErr  error
}

func (f *fakeSchedules) Book(ctx context.Context, scheduleID int64) error {
	if f.bookErr != nil {
		return f.bookErr
	}
	f.booked = append(f.booked, scheduleID)
	return nil
}
func (f *fakeSchedules) Release(ctx context.Context, scheduleID int64) error {
	f.released = append(f.released, scheduleID)
	return nil
}

type fakeDirectory struct {
	users map[int64]*domain.UserProfile
	pets  map[int64]string
}

func (f *fakeDirectory) UserByID(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	if profile, ok := f.users[userID]; ok {
		return profile, nil
	}
	return nil, repository.ErrUserNotFound
}
func (f *fakeDirectory) PetName(ctx context.Context, petID int64) (string, error) {
	return f.pets[petID], nil
}

type fakeRegistry struct {
	registered   []int64
	unregistered []int64
}

func (f *fakeRegistry) Register(roomID int64)   { f.registered = append(f.registered, roomID) }
func (f *fakeRegistry) Unregister(roomID int64) { f.unregistered = append(f.unregistered, roomID) }

type notifyCall struct {
	kind       string
	status     domain.RoomStatus
	message    string
	vetLoginID string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) NotifyNewConsultation(ctx context.Context, n *domain.Notification, vetLoginID string) {
	f.calls = append(f.calls, notifyCall{kind: "new", vetLoginID: vetLoginID})
}
func (f *fakeNotifier) BroadcastStatusChange(ctx context.Context, room *domain.Room, status domain.RoomStatus, message string) {
	f.calls = append(f.calls, notifyCall{kind: "status", status: status, message: message})
}
func (f *fakeNotifier) BroadcastConsultationEnded(ctx context.Context, room *domain.Room) {
	f.calls = append(f.calls, notifyCall{kind: "ended"})
}

type engineFixture struct {
	engine    Engine
	rooms     *memRoomRepo
	messages  *memMessageRepo
	schedules *fakeSchedules
	directory *fakeDirectory
	registry  *fakeRegistry
	notifier  *fakeNotifier
}

func newFixture() *engineFixture {
	f := &engineFixture{
		rooms:     newMemRoomRepo(),
		messages:  &memMessageRepo{},
		schedules: &fakeSchedules{},
		directory: &fakeDirectory{
			users: map[int64]*domain.UserProfile{
				10: {UserID: 10, LoginID: "owner01", Nickname: "Dana", Role: "user"},
				20: {UserID: 20, LoginID: "vet01", Nickname: "Dr. Lee", Role: "vet"},
			},
			pets: map[int64]string{5: "Mochi"},
		},
		registry: &fakeRegistry{},
		notifier: &fakeNotifier{},
	}
	f.engine = NewEngine(f.rooms, f.messages, f.schedules, f.directory, f.registry, f.notifier)
	return f
}

func TestCreate_ImmediateConsultationIsWaitingAndRegistered(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	petID := int64(5)
	room, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID:         10,
		VetID:          20,
		PetID:          &petID,
		Type:           "CHAT",
		ChiefComplaint: "loss of appetite",
	})
	req.NoError(err)

	// Then the room waits for the vet and is tracked for timeout
	req.Equal(domain.StatusWaiting, room.Status)
	req.Equal([]int64{room.ID}, f.registry.registered)

	// And the assigned vet is alerted directly
	req.Len(f.notifier.calls, 1)
	req.Equal("new", f.notifier.calls[0].kind)
	req.Equal("vet01", f.notifier.calls[0].vetLoginID)
}

func TestCreate_ScheduledConsultationBooksSlot(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	scheduleID := int64(77)
	scheduledAt := time.Now().Add(24 * time.Hour)
	room, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID:      10,
		VetID:       20,
		ScheduleID:  &scheduleID,
		ScheduledAt: &scheduledAt,
		Type:        "VIDEO",
	})
	req.NoError(err)

	req.Equal(domain.StatusCreated, room.Status)
	req.Equal([]int64{77}, f.schedules.booked)
	req.Contains(f.registry.registered, room.ID)
}

func TestCreate_ScheduleConflictFailsCreation(t *testing.T) {
	req := require.New(t)
	f := newFixture()
	f.schedules.bookErr = repository.ErrScheduleUnavailable

	scheduleID := int64(77)
	_, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID:     10,
		VetID:      20,
		ScheduleID: &scheduleID,
	})
	req.ErrorIs(err, repository.ErrScheduleUnavailable)
	req.Empty(f.registry.registered)
	req.Empty(f.notifier.calls)
}

func TestCreate_QNAIsPendingAndNotTracked(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID: 10,
		VetID:  20,
		Type:   "QNA",
	})
	req.NoError(err)

	// QNA consultations have no response window
	req.Equal(domain.StatusPending, room.Status)
	req.Empty(f.registry.registered)
}

func TestCreate_UnknownVetFallsBackToFleetBroadcast(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	_, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID: 10,
		VetID:  999,
	})
	req.NoError(err)

	req.Len(f.notifier.calls, 1)
	req.Equal("", f.notifier.calls[0].vetLoginID)
}

func TestCreate_UnknownTypeRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	_, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID: 10,
		VetID:  20,
		Type:   "TELEPATHY",
	})
	req.ErrorIs(err, ErrUnknownType)
}

func TestApprove_BeginsSessionAndUnregisters(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, err := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})
	req.NoError(err)

	updated, err := f.engine.Approve(context.Background(), room.ID)
	req.NoError(err)

	req.Equal(domain.StatusInProgress, updated.Status)
	req.NotNil(updated.StartedAt)
	req.Equal([]int64{room.ID}, f.registry.unregistered)

	last := f.notifier.calls[len(f.notifier.calls)-1]
	req.Equal("status", last.kind)
	req.Equal(domain.StatusInProgress, last.status)
}

func TestApprove_TwiceIsInvalid(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})
	_, err := f.engine.Approve(context.Background(), room.ID)
	req.NoError(err)

	_, err = f.engine.Approve(context.Background(), room.ID)
	req.ErrorIs(err, domain.ErrInvalidTransition)
}

func TestReject_WithReasonAppendsSystemMessageAndFreesSlot(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	scheduleID := int64(88)
	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{
		UserID: 10, VetID: 20, ScheduleID: &scheduleID,
	})

	updated, err := f.engine.Reject(context.Background(), room.ID, "fully booked today")
	req.NoError(err)

	req.Equal(domain.StatusRejected, updated.Status)
	req.NotNil(updated.EndedAt)
	req.Equal([]int64{88}, f.schedules.released)
	req.Contains(f.registry.unregistered, room.ID)

	req.Len(f.messages.appended, 1)
	req.Equal(domain.SenderSystem, f.messages.appended[0].Role)
	req.Contains(f.messages.appended[0].Content, "fully booked today")
}

func TestCancel_ByOwner(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})

	updated, err := f.engine.Cancel(context.Background(), room.ID, "")
	req.NoError(err)
	req.Equal(domain.StatusCancelled, updated.Status)
	req.Empty(f.messages.appended) // no reason, no system line
}

func TestEnd_RecordsTruncatedDuration(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})
	_, err := f.engine.Approve(context.Background(), room.ID)
	req.NoError(err)

	// Given the session started 15m40s ago
	started := time.Now().Add(-(15*time.Minute + 40*time.Second))
	f.rooms.rooms[room.ID].StartedAt = &started

	updated, err := f.engine.End(context.Background(), room.ID)
	req.NoError(err)

	// Then seconds are truncated, not rounded
	req.Equal(domain.StatusCompleted, updated.Status)
	req.Equal(15, updated.DurationMinutes)
	req.NotNil(updated.EndedAt)

	kinds := []string{}
	for _, call := range f.notifier.calls {
		kinds = append(kinds, call.kind)
	}
	req.Contains(kinds, "ended")
}

func TestTimeOut_AppendsSystemMessageAndNotifies(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})

	err := f.engine.TimeOut(context.Background(), room.ID)
	req.NoError(err)

	current, _ := f.rooms.GetByID(context.Background(), room.ID)
	req.Equal(domain.StatusTimedOut, current.Status)
	req.Contains(f.registry.unregistered, room.ID)

	req.Len(f.messages.appended, 1)
	req.Equal(domain.KindSystem, f.messages.appended[0].Kind)

	last := f.notifier.calls[len(f.notifier.calls)-1]
	req.Equal(domain.StatusTimedOut, last.status)
}

func TestTimeOut_LosesRaceAgainstApprove(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})
	_, err := f.engine.Approve(context.Background(), room.ID)
	req.NoError(err)

	err = f.engine.TimeOut(context.Background(), room.ID)
	req.ErrorIs(err, domain.ErrInvalidTransition)

	// The approved session is untouched
	current, _ := f.rooms.GetByID(context.Background(), room.ID)
	req.Equal(domain.StatusInProgress, current.Status)
}

func TestAnswer_ResolvesQNAWithVetMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20, Type: "QNA"})

	updated, err := f.engine.Answer(context.Background(), room.ID, 20, "Feed smaller portions twice daily.")
	req.NoError(err)

	req.Equal(domain.StatusAnswered, updated.Status)
	req.Len(f.messages.appended, 1)
	req.Equal(domain.SenderVet, f.messages.appended[0].Role)
	req.EqualValues(20, f.messages.appended[0].SenderID)
}

func TestAnswer_RejectedForNonQNA(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20, Type: "CHAT"})

	_, err := f.engine.Answer(context.Background(), room.ID, 20, "answer")
	req.ErrorIs(err, ErrNotAnswerable)
}

func TestMarkPaid_UpdatesPaymentFields(t *testing.T) {
	req := require.New(t)
	f := newFixture()

	room, _ := f.engine.Create(context.Background(), &domain.CreateRoomRequest{UserID: 10, VetID: 20})

	err := f.engine.MarkPaid(context.Background(), room.ID, "card")
	req.NoError(err)

	current, _ := f.rooms.GetByID(context.Background(), room.ID)
	req.Equal(domain.PaymentPaid, current.PaymentStatus)
	req.Equal("card", current.PaymentMethod)
}
