package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/hub"
	"github.com/petlogue/consultation-service/internal/presence"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/pkg/token"
)

type fakeValidator struct {
	principals map[string]*token.Principal
}

func (f *fakeValidator) Validate(tokenString string) (*token.Principal, error) {
	if p, ok := f.principals[tokenString]; ok {
		return p, nil
	}
	return nil, token.ErrInvalidToken
}

type fakeRooms struct {
	byUUID map[string]*domain.Room
}

func (f *fakeRooms) Create(ctx context.Context, room *domain.Room) error { return nil }
func (f *fakeRooms) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	return nil, repository.ErrRoomNotFound
}
func (f *fakeRooms) GetByUUID(ctx context.Context, uuid string) (*domain.Room, error) {
	if room, ok := f.byUUID[uuid]; ok {
		return room, nil
	}
	return nil, repository.ErrRoomNotFound
}
func (f *fakeRooms) Transition(ctx context.Context, roomID int64, from []domain.RoomStatus, to domain.RoomStatus, updates map[string]interface{}) (*domain.Room, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeRooms) FindPendingOlderThan(ctx context.Context, threshold time.Time) ([]domain.Room, error) {
	return nil, nil
}
func (f *fakeRooms) ListByUser(ctx context.Context, userID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return nil, 0, nil
}
func (f *fakeRooms) ListByVet(ctx context.Context, vetID int64, page, pageSize int, status string) ([]domain.Room, int, error) {
	return nil, 0, nil
}
func (f *fakeRooms) UpdateFields(ctx context.Context, roomID int64, updates map[string]interface{}) error {
	return nil
}

type fakeMessages struct {
	appended []*domain.ChatMessage
	err      error
}

func (f *fakeMessages) Append(ctx context.Context, msg *domain.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	msg.ID = int64(len(f.appended) + 1)
	f.appended = append(f.appended, msg)
	return nil
}
func (f *fakeMessages) GetByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	return nil, repository.ErrMessageNotFound
}
func (f *fakeMessages) ListByRoom(ctx context.Context, roomID int64, page, pageSize int) ([]domain.ChatMessage, int, error) {
	return nil, 0, nil
}
func (f *fakeMessages) Recent(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	return nil, nil
}
func (f *fakeMessages) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	return 0, nil
}
func (f *fakeMessages) UnreadCount(ctx context.Context, roomID, readerID int64) (int64, error) {
	return 0, nil
}
func (f *fakeMessages) ToggleImportant(ctx context.Context, messageID int64) error { return nil }

type fakeDirectory struct {
	users map[int64]*domain.UserProfile
}

func (f *fakeDirectory) UserByID(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	if p, ok := f.users[userID]; ok {
		return p, nil
	}
	return nil, repository.ErrUserNotFound
}
func (f *fakeDirectory) PetName(ctx context.Context, petID int64) (string, error) { return "", nil }

type recordedEvent struct {
	kind     string
	roomUUID string
	username string
	code     string
	message  *domain.ChatMessage
}

type fakeNotifier struct {
	events []recordedEvent
}

func (f *fakeNotifier) BroadcastUserJoined(ctx context.Context, roomUUID, username string) {
	f.events = append(f.events, recordedEvent{kind: "joined", roomUUID: roomUUID, username: username})
}
func (f *fakeNotifier) BroadcastUserLeft(ctx context.Context, roomUUID, username string) {
	f.events = append(f.events, recordedEvent{kind: "left", roomUUID: roomUUID, username: username})
}
func (f *fakeNotifier) BroadcastChat(ctx context.Context, roomUUID string, msg *domain.ChatMessage) {
	f.events = append(f.events, recordedEvent{kind: "chat", roomUUID: roomUUID, message: msg})
}
func (f *fakeNotifier) BroadcastTyping(ctx context.Context, frame *domain.TypingFrame) {
	f.events = append(f.events, recordedEvent{kind: "typing", roomUUID: frame.RoomUUID, username: frame.Username})
}
func (f *fakeNotifier) BroadcastStatusFrame(ctx context.Context, frame *domain.StatusFrame) {
	f.events = append(f.events, recordedEvent{kind: "status", roomUUID: frame.RoomUUID})
}
func (f *fakeNotifier) SendError(ctx context.Context, loginID, code, message string) {
	f.events = append(f.events, recordedEvent{kind: "error", username: loginID, code: code})
}

type sessionFixture struct {
	svc      SessionService
	hub      *hub.Hub
	tracker  *presence.Tracker
	rooms    *fakeRooms
	messages *fakeMessages
	notifier *fakeNotifier
}

func newSessionFixture() *sessionFixture {
	wsCfg := config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	}
	h := hub.NewHub(wsCfg)
	tracker := presence.NewTracker()
	rooms := &fakeRooms{byUUID: map[string]*domain.Room{
		"room-a": {ID: 1, UUID: "room-a", UserID: 10, VetID: 20, Status: domain.StatusInProgress},
		"room-z": {ID: 2, UUID: "room-z", UserID: 11, VetID: 21, Status: domain.StatusInProgress},
		"room-c": {ID: 3, UUID: "room-c", UserID: 10, VetID: 20, Status: domain.StatusCompleted},
	}}
	messages := &fakeMessages{}
	notifier := &fakeNotifier{}
	directory := &fakeDirectory{users: map[int64]*domain.UserProfile{
		10: {UserID: 10, LoginID: "owner01", Nickname: "Dana", Role: "user"},
		20: {UserID: 20, LoginID: "vet01", Nickname: "Dr. Lee", Role: "vet"},
	}}
	validator := &fakeValidator{principals: map[string]*token.Principal{
		"owner-token": {UserID: 10, LoginID: "owner01", Role: "user"},
		"vet-token":   {UserID: 20, LoginID: "vet01", Role: "vet"},
	}}

	return &sessionFixture{
		svc:      NewSessionService(h, tracker, validator, rooms, messages, directory, notifier),
		hub:      h,
		tracker:  tracker,
		rooms:    rooms,
		messages: messages,
		notifier: notifier,
	}
}

func newConn(f *sessionFixture, id string) *hub.Client {
	wsCfg := config.WebSocketConfig{PingInterval: 30 * time.Second, PongWait: 60 * time.Second, WriteWait: 10 * time.Second, MaxMessageSize: 8192}
	return hub.NewClient(id, f.hub, nil, wsCfg)
}

func lastFrame(t *testing.T, client *hub.Client) map[string]interface{} {
	t.Helper()
	select {
	case data := <-client.Send:
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestHandleConnect_ValidToken(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")

	err := f.svc.HandleConnect(context.Background(), client, "Bearer owner-token")
	req.NoError(err)

	frame := lastFrame(t, client)
	req.Equal("connected", frame["type"])
	req.Equal(true, frame["authenticated"])
	req.Equal("owner01", frame["login_id"])

	req.NotNil(client.Principal())
	req.True(f.tracker.IsOnline("owner01"))
}

func TestHandleConnect_QueryTokenFallback(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	client.QueryToken = "vet-token"

	err := f.svc.HandleConnect(context.Background(), client, "")
	req.NoError(err)

	frame := lastFrame(t, client)
	req.Equal(true, frame["authenticated"])
	req.Equal("vet01", frame["login_id"])
}

func TestHandleConnect_InvalidTokenStaysAnonymous(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")

	err := f.svc.HandleConnect(context.Background(), client, "Bearer forged")
	req.NoError(err)

	frame := lastFrame(t, client)
	req.Equal(false, frame["authenticated"])
	req.Nil(client.Principal())
}

func TestHandleConnect_NoTokenIsAnonymous(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")

	req.NoError(f.svc.HandleConnect(context.Background(), client, ""))

	frame := lastFrame(t, client)
	req.Equal(false, frame["authenticated"])
}

func connectAs(t *testing.T, f *sessionFixture, client *hub.Client, bearer string) {
	t.Helper()
	require.NoError(t, f.svc.HandleConnect(context.Background(), client, "Bearer "+bearer))
	<-client.Send // drain the connected frame
}

func TestHandleSubscribe_ParticipantJoins(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")

	err := f.svc.HandleSubscribe(context.Background(), client, "room-a")
	req.NoError(err)

	frame := lastFrame(t, client)
	req.Equal("subscribed", frame["type"])
	req.Equal("room-a", frame["room_uuid"])

	roomUUID, ok := f.tracker.RoomFor("conn-1")
	req.True(ok)
	req.Equal("room-a", roomUUID)

	req.Len(f.notifier.events, 1)
	req.Equal("joined", f.notifier.events[0].kind)
	req.Equal("Dana", f.notifier.events[0].username)
}

func TestHandleSubscribe_AnonymousRejected(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")

	err := f.svc.HandleSubscribe(context.Background(), client, "room-a")
	req.NoError(err)

	frame := lastFrame(t, client)
	req.Equal("error", frame["type"])
	req.Equal(domain.ErrCodeUnauthorized, frame["code"])
}

func TestHandleSubscribe_NonParticipantForbidden(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")

	// room-z belongs to other users
	req.NoError(f.svc.HandleSubscribe(context.Background(), client, "room-z"))

	req.Len(f.notifier.events, 1)
	req.Equal("error", f.notifier.events[0].kind)
	req.Equal(domain.ErrCodeForbidden, f.notifier.events[0].code)
}

func TestHandleSubscribe_UnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")

	req.NoError(f.svc.HandleSubscribe(context.Background(), client, "missing"))

	req.Equal(domain.ErrCodeNotFound, f.notifier.events[0].code)
}

func subscribe(t *testing.T, f *sessionFixture, client *hub.Client, roomUUID string) {
	t.Helper()
	require.NoError(t, f.svc.HandleSubscribe(context.Background(), client, roomUUID))
	<-client.Send // drain the subscribed frame
}

func TestHandleSend_PersistsAndEchoes(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	subscribe(t, f, client, "room-a")
	f.notifier.events = nil

	raw, _ := json.Marshal(&domain.ChatSendFrame{Type: domain.FrameTypeSend, RoomUUID: "room-a", Content: "hello"})
	req.NoError(f.svc.HandleSend(context.Background(), client, raw))

	// Persisted once
	req.Len(f.messages.appended, 1)
	req.EqualValues(1, f.messages.appended[0].RoomID)
	req.EqualValues(10, f.messages.appended[0].SenderID)
	req.Equal(domain.SenderUser, f.messages.appended[0].Role)

	// Echoed with the denormalized sender name
	req.Len(f.notifier.events, 1)
	req.Equal("chat", f.notifier.events[0].kind)
	req.Equal("Dana", f.notifier.events[0].message.SenderName)
}

func TestHandleSend_RequiresSubscription(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")

	raw, _ := json.Marshal(&domain.ChatSendFrame{Type: domain.FrameTypeSend, RoomUUID: "room-a", Content: "hello"})
	req.NoError(f.svc.HandleSend(context.Background(), client, raw))

	req.Empty(f.messages.appended)
	req.Equal(domain.ErrCodeForbidden, f.notifier.events[0].code)
}

func TestHandleSend_ClosedConsultationRejected(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	subscribe(t, f, client, "room-c")
	f.notifier.events = nil

	raw, _ := json.Marshal(&domain.ChatSendFrame{Type: domain.FrameTypeSend, RoomUUID: "room-c", Content: "hello"})
	req.NoError(f.svc.HandleSend(context.Background(), client, raw))

	req.Empty(f.messages.appended)
	req.Equal(domain.ErrCodeForbidden, f.notifier.events[0].code)
}

func TestHandleTyping_StampedAndRebroadcast(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "vet-token")

	raw, _ := json.Marshal(&domain.TypingFrame{Type: domain.FrameTypeTyping, RoomUUID: "room-a", Typing: true})
	req.NoError(f.svc.HandleTyping(context.Background(), client, raw))

	req.Len(f.notifier.events, 1)
	req.Equal("typing", f.notifier.events[0].kind)
	req.Equal("Dr. Lee", f.notifier.events[0].username)

	// Typing indicators are never persisted
	req.Empty(f.messages.appended)
}

func TestHandleUnsubscribe_AnnouncesLeave(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	subscribe(t, f, client, "room-a")
	f.notifier.events = nil

	req.NoError(f.svc.HandleUnsubscribe(context.Background(), client, "room-a"))

	req.Len(f.notifier.events, 1)
	req.Equal("left", f.notifier.events[0].kind)
	req.Equal("room-a", f.notifier.events[0].roomUUID)

	// Presence is cleared, so the disconnect announces nothing more
	_, ok := f.tracker.RoomFor("conn-1")
	req.False(ok)
	f.svc.HandleDisconnect(context.Background(), client)
	req.Len(f.notifier.events, 1)
}

func TestHandleUnsubscribe_WrongRoomKeepsPresence(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	subscribe(t, f, client, "room-a")
	f.notifier.events = nil

	// Naming a room the connection never joined must not fake a leave for it
	req.NoError(f.svc.HandleUnsubscribe(context.Background(), client, "room-z"))

	req.Len(f.notifier.events, 1)
	req.Equal("error", f.notifier.events[0].kind)
	req.Equal(domain.ErrCodeBadRequest, f.notifier.events[0].code)

	// The real room is still tracked and gets exactly one leave on disconnect
	roomUUID, ok := f.tracker.RoomFor("conn-1")
	req.True(ok)
	req.Equal("room-a", roomUUID)

	f.svc.HandleDisconnect(context.Background(), client)
	req.Len(f.notifier.events, 2)
	req.Equal("left", f.notifier.events[1].kind)
	req.Equal("room-a", f.notifier.events[1].roomUUID)
}

func TestHandleDisconnect_AnnouncesLeaveOnce(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	subscribe(t, f, client, "room-a")
	f.notifier.events = nil

	f.svc.HandleDisconnect(context.Background(), client)

	req.Len(f.notifier.events, 1)
	req.Equal("left", f.notifier.events[0].kind)
	req.Equal("room-a", f.notifier.events[0].roomUUID)

	// A second disconnect for the same connection announces nothing
	f.svc.HandleDisconnect(context.Background(), client)
	req.Len(f.notifier.events, 1)
}

func TestHandleDisconnect_OutsideRoomIsSilent(t *testing.T) {
	req := require.New(t)
	f := newSessionFixture()
	client := newConn(f, "conn-1")
	connectAs(t, f, client, "owner-token")
	f.notifier.events = nil

	f.svc.HandleDisconnect(context.Background(), client)
	req.Empty(f.notifier.events)
}
