// Package ws is the websocket transport: one goroutine reading
// frames, one write pump draining the connection's sink. All chat
// semantics live behind the service interfaces.
package ws

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Handler struct {
	log         *slog.Logger
	chat        services.IChatService
	auth        services.IAuthService
	bufferSize  int
	sinkTimeout time.Duration
}

func NewHandler(log *slog.Logger, chat services.IChatService, auth services.IAuthService,
	bufferSize int, sinkTimeout time.Duration) *Handler {
	return &Handler{
		log:         log,
		chat:        chat,
		auth:        auth,
		bufferSize:  bufferSize,
		sinkTimeout: sinkTimeout,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws", h.Handle)
}

// Handle upgrades the request and runs the connection until the peer
// goes away or the session is forced out. Writes happen only in the
// write pump; the read loop never touches the socket for output.
func (h *Handler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", c.Request.RemoteAddr, "error", err)
		return
	}

	connectionID := uuid.NewString()
	connSink := sink.NewChannelSink(h.log, h.bufferSize, h.sinkTimeout)
	ctx := c.Request.Context()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		h.writePump(conn, connSink)
	}()

	defer func() {
		h.chat.Detach(context.WithoutCancel(ctx), connectionID)
		connSink.Close()
		// The pump flushes queued frames, rejection events included,
		// before the socket goes down.
		<-pumpDone
		_ = conn.Close()
	}()

	h.readLoop(ctx, conn, connectionID, connSink)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connectionID string, connSink *sink.ChannelSink) {
	var identity *domain.Identity

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				h.log.Debug("Peer closed connection", "connection", connectionID)
			} else {
				h.log.Debug("Read failed, dropping connection", "connection", connectionID, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.send(ctx, connSink, event.Error{Kind: "validation", Message: "malformed frame"})
			continue
		}

		switch frame.Type {
		case "authenticate":
			newIdentity, ok := h.handleAuthenticate(ctx, connectionID, connSink, identity, frame.Payload)
			if !ok {
				return
			}
			identity = newIdentity

		case "send_public":
			if identity == nil {
				h.send(ctx, connSink, event.Error{Kind: "authentication", Message: "authenticate first"})
				continue
			}
			var payload sendPublicPayload
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				h.send(ctx, connSink, event.Error{Kind: "validation", Message: "malformed payload"})
				continue
			}
			if _, err := h.chat.SendPublic(ctx, *identity, payload.Content); err != nil {
				h.send(ctx, connSink, event.Error{Kind: errors.Kind(err), Message: err.Error()})
			}

		case "send_private":
			if identity == nil {
				h.send(ctx, connSink, event.Error{Kind: "authentication", Message: "authenticate first"})
				continue
			}
			var payload sendPrivatePayload
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				h.send(ctx, connSink, event.Error{Kind: "validation", Message: "malformed payload"})
				continue
			}
			if _, err := h.chat.SendPrivate(ctx, *identity, payload.ReceiverID, payload.Content); err != nil {
				h.send(ctx, connSink, event.Error{Kind: errors.Kind(err), Message: err.Error()})
			}

		case "ping":
			h.send(ctx, connSink, event.Pong{Time: time.Now().UTC()})

		default:
			h.send(ctx, connSink, event.Error{Kind: "validation", Message: "unknown frame type: " + frame.Type})
		}
	}
}

// handleAuthenticate verifies the credential and attaches the
// connection. The second return is false when the connection must be
// dropped. Authenticating twice on one connection is a protocol
// violation.
func (h *Handler) handleAuthenticate(ctx context.Context, connectionID string, connSink *sink.ChannelSink,
	current *domain.Identity, payload json.RawMessage) (*domain.Identity, bool) {
	if current != nil {
		h.send(ctx, connSink, event.Error{Kind: "validation", Message: "connection already authenticated"})
		return current, true
	}

	var body authenticatePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		h.send(ctx, connSink, event.AuthError{Message: "malformed payload"})
		return nil, false
	}

	identity, err := h.auth.Verify(body.Credential)
	if err != nil {
		h.log.Info("Authentication rejected", "connection", connectionID, "error", err)
		h.send(ctx, connSink, event.AuthError{Message: "invalid or expired credential"})
		return nil, false
	}

	// auth_success goes out before any presence or welcome traffic.
	h.send(ctx, connSink, event.AuthSuccess{UserID: identity.UserID, Username: identity.Username})

	if _, err := h.chat.Attach(ctx, connectionID, identity, connSink); err != nil {
		h.send(ctx, connSink, event.Error{Kind: errors.Kind(err), Message: "session could not be established"})
		return nil, false
	}
	return &identity, true
}

func (h *Handler) send(ctx context.Context, connSink *sink.ChannelSink, e event.DomainEvent) {
	if err := connSink.Consume(ctx, e); err != nil {
		h.log.Debug("Direct send failed", "type", e.EventType(), "error", err)
	}
}

// writePump drains the sink and writes frames until the sink closes
// or a write fails. On sink close the remaining buffered events are
// flushed first, so a rejection queued just before teardown still
// reaches the peer. After a forced logout frame the socket is closed
// server side; the read loop then unwinds and detaches.
func (h *Handler) writePump(conn *websocket.Conn, connSink *sink.ChannelSink) {
	for {
		select {
		case <-connSink.Closed():
			for {
				select {
				case e := <-connSink.Events():
					if err := h.writeEvent(conn, e); err != nil {
						return
					}
				default:
					return
				}
			}
		case e := <-connSink.Events():
			if err := h.writeEvent(conn, e); err != nil {
				return
			}

			if _, forced := e.(event.ForcedLogout); forced {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session replaced"),
					time.Now().Add(writeTimeout))
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, e event.DomainEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		h.log.Error("Event marshal failed", "type", e.EventType(), "error", err)
		return nil
	}
	data, err := json.Marshal(Frame{Type: e.EventType(), Payload: payload})
	if err != nil {
		h.log.Error("Frame marshal failed", "type", e.EventType(), "error", err)
		return nil
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.log.Debug("Write failed, dropping connection", "error", err)
		_ = conn.Close()
		return err
	}
	return nil
}
