package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"userhub/internal/core/domain"
	apperrors "userhub/pkg/errors"
	"userhub/pkg/userpb"
	"userhub/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type WebSocketOptions struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

// SubscriptionHandler bridges SubscribeToUserUpdates onto a websocket.
// Each notification is written as one JSON text frame.
type SubscriptionHandler struct {
	client userpb.UserServiceClient
	opts   WebSocketOptions
	logger *zap.SugaredLogger
}

func NewSubscriptionHandler(client userpb.UserServiceClient, opts WebSocketOptions, logger *zap.SugaredLogger) *SubscriptionHandler {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= opts.PingInterval {
		opts.PongTimeout = 2 * opts.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	return &SubscriptionHandler{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

func (h *SubscriptionHandler) SetupRoutes(router gin.IRouter) {
	router.GET("/api/v1/users/subscribe", h.Subscribe)
}

func parseTypesQuery(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var types []string
	for _, part := range strings.Split(raw, ",") {
		t, err := domain.ParseNotificationType(part)
		if err != nil {
			return nil, err
		}
		types = append(types, string(t))
	}
	return types, nil
}

// Subscribe upgrades the request and forwards notifications until either
// side goes away. Query parameters: client_id (optional) and types, a comma
// separated filter.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	types, err := parseTypesQuery(c.Query("types"))
	if err != nil {
		_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
		return
	}
	clientID := c.Query("client_id")
	if _, given := c.GetQuery("client_id"); given {
		if err := validation.ValidateID(clientID, "client_id"); err != nil {
			_ = c.Error(apperrors.NewInvalidInputError(err.Error()))
			return
		}
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream, err := h.client.SubscribeToUserUpdates(ctx)
	if err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}
	if err := stream.Send(&userpb.SubscribeRequest{ClientId: clientID, NotificationTypes: types}); err != nil {
		_ = c.Error(apperrors.FromGRPCStatus(err))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	h.logger.Infow("websocket subscriber connected", "client_id", clientID, "types", types)

	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	})

	// inbound frames are ignored; a read error means the peer is gone
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Infow("websocket read failed", "client_id", clientID, "error", err)
				}
				return
			}
		}
	}()

	notifications := make(chan *userpb.UserNotification)
	streamErr := make(chan error, 1)
	go func() {
		for {
			n, err := stream.Recv()
			if err != nil {
				streamErr <- err
				return
			}
			select {
			case notifications <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	pingTicker := time.NewTicker(h.opts.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case n := <-notifications:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Infow("websocket write failed", "client_id", clientID, "error", err)
				return
			}

		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				h.logger.Infow("websocket ping failed", "client_id", clientID, "error", err)
				return
			}

		case err := <-streamErr:
			code, reason := closeFrameFor(err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(h.opts.WriteTimeout))
			h.logger.Infow("subscription ended", "client_id", clientID, "reason", reason)
			return

		case <-ctx.Done():
			h.logger.Infow("websocket subscriber disconnected", "client_id", clientID)
			return
		}
	}
}

// closeFrameFor maps the end of the RPC stream onto a websocket close frame.
func closeFrameFor(err error) (int, string) {
	if errors.Is(err, io.EOF) {
		return websocket.CloseNormalClosure, "subscription closed"
	}
	st := status.Convert(err)
	switch st.Code() {
	case codes.Aborted:
		return websocket.ClosePolicyViolation, st.Message()
	case codes.ResourceExhausted:
		return websocket.CloseTryAgainLater, st.Message()
	case codes.InvalidArgument:
		return websocket.CloseUnsupportedData, st.Message()
	default:
		return websocket.CloseInternalServerErr, "subscription terminated"
	}
}
