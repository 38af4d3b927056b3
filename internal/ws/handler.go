package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/marketchat/backend/internal/auth"
)

// Handler upgrades authenticated HTTP requests into hub sessions. The
// credential is checked once, here; a connection that fails verification
// never reaches the hub.
type Handler struct {
	hub        *Hub
	verifier   auth.Verifier
	upgrader   websocket.Upgrader
	sendBuffer int
	log        zerolog.Logger
}

func NewHandler(hub *Hub, verifier auth.Verifier, sendBuffer int, log zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect cross-origin from the storefront;
			// auth happens via the token, not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// Serve handles GET /ws. The token travels either as a bearer header or,
// for browser websocket clients that cannot set headers, a query param.
func (h *Handler) Serve(c echo.Context) error {
	token := extractToken(c.Request())
	user, err := h.verifier.Verify(c.Request().Context(), token)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket auth refused")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": authCode(err)})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return nil
	}

	client := newClient(h.hub, conn, user, h.sendBuffer)
	h.hub.connect(client)
	go client.writePump()
	client.readPump()
	return nil
}

func extractToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func authCode(err error) string {
	switch err {
	case auth.ErrMissingToken:
		return "missing_token"
	case auth.ErrInvalidToken:
		return "invalid_token"
	case auth.ErrUnknownIdentity:
		return "unknown_identity"
	default:
		return "unauthorized"
	}
}
