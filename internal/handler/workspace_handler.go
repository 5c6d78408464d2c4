package handler

import (
	"docchat-client/internal/pkg/logger"
	"docchat-client/internal/pkg/serverutils"
	internalWS "docchat-client/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WorkspaceHandler upgrades renderer connections that receive every
// workspace snapshot.
type WorkspaceHandler struct {
	identities serverutils.IdentityVerifier
	hub        *internalWS.Hub
	logger     logger.ILogger
}

func NewWorkspaceHandler(identities serverutils.IdentityVerifier, hub *internalWS.Hub, log logger.ILogger) *WorkspaceHandler {
	return &WorkspaceHandler{
		identities: identities,
		hub:        hub,
		logger:     log,
	}
}

// ServeWs accepts the token as query parameter (browsers) or bearer header
// (tooling). Only the signed-in user may connect.
func (h *WorkspaceHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := serverutils.BearerToken(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	identity, err := h.identities.Verify(tokenStr)
	if err != nil {
		h.logger.Warn("WorkspaceHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}
	if current, ok := h.identities.Current(); !ok || current.Id != identity.Id {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Not the signed-in user"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("WorkspaceHandler", "Starting WebSocket session", map[string]interface{}{"user_id": identity.Id})
		internalWS.ServeWs(h.hub, conn, identity.Id)
		h.logger.Info("WorkspaceHandler", "WebSocket session ended", map[string]interface{}{"user_id": identity.Id})
	})(c)
}

func (h *WorkspaceHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
