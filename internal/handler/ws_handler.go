package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/hub"
	"github.com/petlogue/consultation-service/internal/service"
	"github.com/petlogue/consultation-service/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and dispatches frames to the session
// service.
type WSHandler struct {
	hub     *hub.Hub
	service service.SessionService
	wsCfg   config.WebSocketConfig
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.SessionService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request. A ?token= query parameter is kept as
// a handshake fallback for clients that cannot set headers before upgrading.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	client.QueryToken = c.Query("token")

	h.hub.Register(client)

	go client.WritePump()
	go func() {
		defer h.service.HandleDisconnect(context.Background(), client)
		client.ReadPump(h.handleFrame)
	}()
}

func (h *WSHandler) handleFrame(client *hub.Client, raw []byte) {
	ctx := context.Background()

	var base domain.BaseFrame
	if err := json.Unmarshal(raw, &base); err != nil {
		client.SendMessage(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid frame"))
		return
	}

	switch base.Type {
	case domain.FrameTypeConnect:
		var frame domain.ConnectFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.SendMessage(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid connect frame"))
			return
		}
		if err := h.service.HandleConnect(ctx, client, frame.Authorization); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("connect handling failed")
		}

	case domain.FrameTypeSubscribe:
		var frame domain.SubscribeFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.RoomUUID == "" {
			client.SendMessage(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid subscribe frame"))
			return
		}
		if err := h.service.HandleSubscribe(ctx, client, frame.RoomUUID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("subscribe handling failed")
		}

	case domain.FrameTypeUnsubscribe:
		var frame domain.SubscribeFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.RoomUUID == "" {
			client.SendMessage(domain.NewErrorFrame(domain.ErrCodeBadRequest, "invalid unsubscribe frame"))
			return
		}
		if err := h.service.HandleUnsubscribe(ctx, client, frame.RoomUUID); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("unsubscribe handling failed")
		}

	case domain.FrameTypeSend:
		if err := h.service.HandleSend(ctx, client, raw); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("send handling failed")
		}

	case domain.FrameTypeTyping:
		if err := h.service.HandleTyping(ctx, client, raw); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("typing handling failed")
		}

	case domain.FrameTypeStatus:
		if err := h.service.HandleStatus(ctx, client, raw); err != nil {
			log.L().Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("status handling failed")
		}

	case domain.FrameTypePing:
		client.SendMessage(map[string]string{"type": domain.FrameTypePong})

	default:
		client.SendMessage(domain.NewErrorFrame(domain.ErrCodeBadRequest, "unknown frame type"))
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/consultation/ws", h.HandleWebSocket)
}
