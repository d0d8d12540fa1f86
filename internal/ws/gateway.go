package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"relay/internal/config"
	"relay/internal/domain"
	"relay/internal/service"
	apperrors "relay/pkg/errors"
	"relay/pkg/logger"
)

// Gateway runs the realtime protocol on top of the Hub: connection lifecycle,
// message pipeline events, typing relay and call signalling.
type Gateway struct {
	hub        *Hub
	membership service.MembershipService
	messages   service.MessageService
	presence   service.PresenceRegistry
	calls      service.CallRegistry
	limiter    service.RateLimitService
	audit      service.AuditService
	locks      *keyedMutex
	cfg        config.RealtimeConfig
	log        logger.Logger
}

func NewGateway(hub *Hub, services *service.Services, cfg config.RealtimeConfig, log logger.Logger) *Gateway {
	return &Gateway{
		hub:        hub,
		membership: services.Membership,
		messages:   services.Message,
		presence:   services.Presence,
		calls:      services.Calls,
		limiter:    services.RateLimit,
		audit:      services.Audit,
		locks:      newKeyedMutex(),
		cfg:        cfg,
		log:        log,
	}
}

// Serve owns an upgraded connection until it closes. user must already be
// authenticated.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, user *domain.User) {
	if !g.hub.enter() {
		closeWithReason(conn, websocket.CloseGoingAway, "server shutting down", g.cfg.WriteWait)
		return
	}
	defer g.hub.leave()

	c := NewClient(conn, user, g.cfg, g.log)
	if err := g.Connect(ctx, c); err != nil {
		c.log.Error("Failed to set up realtime connection", "error", err)
		closeWithReason(conn, websocket.CloseInternalServerErr, "try again later", g.cfg.WriteWait)
		return
	}
	defer g.Disconnect(ctx, c)

	g.hub.track(c.writePump)

	c.readPump(func(raw []byte) {
		g.Dispatch(ctx, c, raw)
	})
}

// Connect subscribes c to its rooms and registers its presence. On error c
// holds nothing and is closed.
func (g *Gateway) Connect(ctx context.Context, c *Client) error {
	rooms, err := g.membership.Rooms(ctx, c.UserID)
	if err != nil {
		c.Close()
		return fmt.Errorf("failed to load conversation rooms: %w", err)
	}

	if err := g.hub.Register(c); err != nil {
		c.Close()
		return err
	}
	g.hub.Join(c, userRoom(c.UserID))
	for _, id := range rooms {
		g.hub.Join(c, conversationRoom(id))
	}

	online := g.presence.Connect(c.UserID, func() {
		g.hub.EmitAll(g.frame(domain.EventUserOnline, domain.UserPresenceEvent{UserID: c.UserID}))
	})
	c.Send(g.frame(domain.EventPresenceInit, domain.PresenceInitEvent{OnlineUsers: online}))

	c.log.Info("Realtime connection established", "rooms", len(rooms), "devices", g.presence.Count(c.UserID))
	return nil
}

// Disconnect releases everything c holds. Safe to call more than once.
func (g *Gateway) Disconnect(ctx context.Context, c *Client) {
	c.cleanup(func() {
		g.hub.Unregister(c)
		c.Close()

		g.presence.Disconnect(c.UserID, func() {
			g.hub.EmitAll(g.frame(domain.EventUserOffline, domain.UserPresenceEvent{UserID: c.UserID}))
		})

		if call, ok := g.calls.End(c.UserID); ok {
			g.endCall(ctx, c.UserID, call, "disconnect")
		}

		c.log.Info("Realtime connection closed", "devices", g.presence.Count(c.UserID))
	})
}

// Dispatch decodes one inbound frame and routes it to its handler.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		c.log.Debug("Dropping malformed frame", "error", err)
		return
	}

	if !g.limiter.Allow(ctx, "ws:events:"+c.UserID, g.cfg.EventRateLimit, g.cfg.EventRateWindow) {
		c.log.Warn("Realtime event rate limited", "event", env.Event)
		if env.Event == domain.EventMessageSend {
			var p domain.SendMessagePayload
			_ = json.Unmarshal(env.Data, &p)
			g.sendFailed(c, p.TempID, domain.FailureRateLimited)
		}
		return
	}

	switch env.Event {
	case domain.EventMessageSend:
		g.handleSend(ctx, c, env.Data)
	case domain.EventConversationRead:
		g.handleRead(ctx, c, env.Data)
	case domain.EventMessageDelete:
		g.handleDelete(ctx, c, env.Data)
	case domain.EventMessageEdit:
		g.handleEdit(ctx, c, env.Data)
	case domain.EventTypingStart, domain.EventTypingStop:
		g.handleTyping(ctx, c, env.Event, env.Data)
	case domain.EventCallInitiate:
		g.handleCallInitiate(ctx, c, env.Data)
	case domain.EventCallAccept:
		g.handleCallAccept(c, env.Data)
	case domain.EventCallReject, domain.EventCallEnd:
		g.handleCallEnd(ctx, c, env.Event, env.Data)
	case domain.EventCallSignal:
		g.handleCallSignal(c, env.Data)
	default:
		c.log.Debug("Unknown realtime event", "event", env.Event)
	}
}

/* ---------- messages ---------- */

func (g *Gateway) handleSend(ctx context.Context, c *Client, data json.RawMessage) {
	var p domain.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		g.sendFailed(c, p.TempID, domain.FailureInvalidPayload)
		return
	}

	req := service.SendRequest{
		ConversationID: p.ConversationID,
		SenderID:       c.UserID,
		Content:        p.Content,
		Type:           p.Type,
		Attachments:    p.Attachments,
	}
	if err := req.Normalize(); err != nil {
		if errors.Is(err, apperrors.ErrEmptyContent) {
			g.sendFailed(c, p.TempID, domain.FailureEmptyMessage)
		} else {
			g.sendFailed(c, p.TempID, domain.FailureInvalidPayload)
		}
		return
	}

	unlock := g.locks.Lock(req.ConversationID)
	defer unlock()

	conv, err := g.membership.Authorize(ctx, req.ConversationID, c.UserID, domain.EventMessageSend)
	if err != nil {
		if errors.Is(err, apperrors.ErrForbidden) {
			g.sendFailed(c, p.TempID, domain.FailureForbidden)
			return
		}
		c.log.Error("Failed to authorize message", "error", err, "conversation_id", req.ConversationID)
		g.sendFailed(c, p.TempID, domain.FailureSendFailed)
		return
	}

	deliveredTo := g.hub.Reachable(conv.ID, conv.OtherParticipants(c.UserID))

	msg, err := g.messages.Create(ctx, conv, req, deliveredTo)
	if err != nil {
		c.log.Error("Failed to persist message", "error", err, "conversation_id", conv.ID)
		g.sendFailed(c, p.TempID, domain.FailureSendFailed)
		return
	}

	room := conversationRoom(conv.ID)
	g.hub.EmitRoom(room, g.frame(domain.EventMessageNew, domain.MessageNewEvent{
		ID:             msg.ID,
		TempID:         p.TempID,
		ConversationID: conv.ID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		Attachments:    msg.Attachments,
		CreatedAt:      msg.CreatedAt,
	}), participantsOf(conv, ""))

	c.Send(g.frame(domain.EventMessageSent, domain.MessageSentEvent{
		TempID:         p.TempID,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		CreatedAt:      msg.CreatedAt,
	}))

	if len(msg.DeliveredTo) > 0 {
		g.hub.EmitRoom(room, g.frame(domain.EventMessageDelivered, domain.MessageDeliveredEvent{
			MessageID:      msg.ID,
			ConversationID: conv.ID,
			DeliveredAt:    time.Now().UTC(),
		}), participantsOf(conv, c.UserID))
	}
}

func (g *Gateway) handleRead(ctx context.Context, c *Client, data json.RawMessage) {
	var p domain.ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		return
	}

	unlock := g.locks.Lock(p.ConversationID)
	defer unlock()

	conv, err := g.membership.Authorize(ctx, p.ConversationID, c.UserID, domain.EventConversationRead)
	if err != nil {
		g.dropped(c, domain.EventConversationRead, err)
		return
	}

	ids, readAt, err := g.messages.MarkRead(ctx, conv, c.UserID)
	if err != nil {
		c.log.Error("Failed to mark conversation read", "error", err, "conversation_id", conv.ID)
		return
	}
	if len(ids) == 0 {
		return
	}

	g.hub.EmitRoom(conversationRoom(conv.ID), g.frame(domain.EventMessageRead, domain.MessageReadEvent{
		ConversationID: conv.ID,
		MessageIDs:     ids,
		ReaderID:       c.UserID,
		ReadAt:         readAt,
	}), participantsOf(conv, ""))
}

func (g *Gateway) handleDelete(ctx context.Context, c *Client, data json.RawMessage) {
	var p domain.DeleteMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		return
	}

	convID, err := g.messages.ConversationOf(ctx, p.MessageID)
	if err != nil {
		g.dropped(c, domain.EventMessageDelete, err)
		return
	}

	unlock := g.locks.Lock(convID)
	defer unlock()

	msg, conv, err := g.messages.Delete(ctx, p.MessageID, c.UserID)
	if err != nil {
		g.dropped(c, domain.EventMessageDelete, err)
		return
	}

	g.hub.EmitRoom(conversationRoom(conv.ID), g.frame(domain.EventMessageDeleted, domain.MessageDeletedEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		DeletedAt:      *msg.DeletedAt,
	}), participantsOf(conv, ""))
}

func (g *Gateway) handleEdit(ctx context.Context, c *Client, data json.RawMessage) {
	var p domain.EditMessagePayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		return
	}

	msg, conv, err := g.messages.Edit(ctx, p.MessageID, c.UserID, p.Content)
	if err != nil {
		g.dropped(c, domain.EventMessageEdit, err)
		return
	}

	g.hub.EmitRoom(conversationRoom(conv.ID), g.frame(domain.EventMessageEdited, domain.MessageEditedEvent{
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		Content:        msg.Content,
		EditedAt:       *msg.EditedAt,
	}), participantsOf(conv, ""))
}

/* ---------- typing ---------- */

func (g *Gateway) handleTyping(ctx context.Context, c *Client, event string, data json.RawMessage) {
	var p domain.ConversationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" {
		return
	}

	conv, err := g.membership.Authorize(ctx, p.ConversationID, c.UserID, event)
	if err != nil {
		g.dropped(c, event, err)
		return
	}

	g.hub.EmitRoom(conversationRoom(conv.ID), g.frame(event, domain.TypingEvent{
		ConversationID: conv.ID,
		UserID:         c.UserID,
		UserName:       c.UserName,
	}), participantsOf(conv, c.UserID))
}

/* ---------- calls ---------- */

func (g *Gateway) handleCallInitiate(ctx context.Context, c *Client, data json.RawMessage) {
	var p domain.CallInitiatePayload
	if err := json.Unmarshal(data, &p); err != nil || !service.ValidID(p.ToUserID) {
		c.Send(g.frame(domain.EventCallFailed, domain.CallFailedEvent{ToUserID: p.ToUserID, Reason: domain.FailureInvalidPayload}))
		return
	}

	if p.ToUserID != c.UserID && !g.presence.IsOnline(p.ToUserID) {
		c.Send(g.frame(domain.EventCallFailed, domain.CallFailedEvent{ToUserID: p.ToUserID, Reason: domain.FailureUserOffline}))
		return
	}

	call, err := g.calls.Initiate(c.UserID, p.ToUserID, p.Type)
	if err != nil {
		if errors.Is(err, apperrors.ErrBusy) {
			c.Send(g.frame(domain.EventCallBusy, domain.CallBusyEvent{ToUserID: p.ToUserID}))
			return
		}
		c.Send(g.frame(domain.EventCallFailed, domain.CallFailedEvent{ToUserID: p.ToUserID, Reason: domain.FailureInvalidPayload}))
		return
	}

	delivered := g.hub.EmitUser(p.ToUserID, g.frame(domain.EventCallIncoming, domain.CallIncomingEvent{
		FromUserID: c.UserID,
		CallerName: c.UserName,
		Type:       call.Media,
	}))
	if delivered == 0 {
		g.calls.EndWith(c.UserID, p.ToUserID)
		c.Send(g.frame(domain.EventCallFailed, domain.CallFailedEvent{ToUserID: p.ToUserID, Reason: domain.FailureUserOffline}))
		return
	}

	_ = g.audit.LogEvent(ctx, c.UserID, "", domain.EventTypeCallStarted, map[string]interface{}{
		"callee_id": p.ToUserID,
		"type":      call.Media,
	})
}

func (g *Gateway) handleCallAccept(c *Client, data json.RawMessage) {
	var p domain.CallPeerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ToUserID == "" {
		return
	}

	if _, err := g.calls.Accept(c.UserID, p.ToUserID); err != nil {
		c.log.Debug("Dropping call accept", "error", err, "peer_id", p.ToUserID)
		return
	}

	g.hub.EmitUser(p.ToUserID, g.frame(domain.EventCallAccepted, domain.CallPeerEvent{FromUserID: c.UserID}))
}

func (g *Gateway) handleCallEnd(ctx context.Context, c *Client, event string, data json.RawMessage) {
	var p domain.CallPeerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ToUserID == "" {
		return
	}

	call, ok := g.calls.EndWith(c.UserID, p.ToUserID)
	if !ok {
		return
	}
	reason := "ended"
	if event == domain.EventCallReject {
		reason = "rejected"
	}
	g.endCall(ctx, c.UserID, call, reason)
}

func (g *Gateway) handleCallSignal(c *Client, data json.RawMessage) {
	var p domain.CallSignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.ToUserID == "" || len(p.Signal) == 0 {
		return
	}

	if !g.calls.Paired(c.UserID, p.ToUserID) {
		c.log.Debug("Dropping signal outside a call", "peer_id", p.ToUserID)
		return
	}

	g.hub.EmitUser(p.ToUserID, g.frame(domain.EventCallSignal, domain.CallSignalEvent{
		FromUserID: c.UserID,
		Signal:     p.Signal,
	}))
}

// endCall notifies the remaining peer of a call that userID tore down.
func (g *Gateway) endCall(ctx context.Context, userID string, call service.Call, reason string) {
	peer := call.Peer(userID)
	g.hub.EmitUser(peer, g.frame(domain.EventCallEnded, domain.CallPeerEvent{FromUserID: userID}))

	payload := map[string]interface{}{
		"caller_id": call.CallerID,
		"callee_id": call.CalleeID,
		"type":      call.Media,
		"reason":    reason,
	}
	if !call.AnswerAt.IsZero() {
		payload["duration_ms"] = time.Since(call.AnswerAt).Milliseconds()
	}
	_ = g.audit.LogEvent(ctx, userID, "", domain.EventTypeCallEnded, payload)
}

/* ---------- helpers ---------- */

func (g *Gateway) sendFailed(c *Client, tempID, reason string) {
	c.Send(g.frame(domain.EventMessageFailed, domain.MessageFailedEvent{TempID: tempID, Reason: reason}))
}

// dropped logs an event that produced no output. Forbidden and validation
// failures are expected; anything else is an internal error.
func (g *Gateway) dropped(c *Client, event string, err error) {
	if errors.Is(err, apperrors.ErrForbidden) || apperrors.IsValidation(err) {
		c.log.Debug("Dropping realtime event", "event", event, "reason", err)
		return
	}
	c.log.Error("Realtime event failed", "event", event, "error", err)
}

func (g *Gateway) frame(event string, payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		g.log.Error("Failed to encode event", "error", err, "event", event)
		return nil
	}
	frame, err := json.Marshal(domain.Envelope{Event: event, Data: data})
	if err != nil {
		g.log.Error("Failed to encode envelope", "error", err, "event", event)
		return nil
	}
	return frame
}

// closeWithReason ends a connection that never reached the pumps.
func closeWithReason(conn *websocket.Conn, code int, reason string, wait time.Duration) {
	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wait))
	_ = conn.Close()
}

// participantsOf keeps clients whose user currently belongs to conv, except
// the user "except".
func participantsOf(conv *domain.Conversation, except string) func(*Client) bool {
	members := conv.ParticipantSet()
	return func(c *Client) bool {
		if c.UserID == except {
			return false
		}
		_, ok := members[c.UserID]
		return ok
	}
}
