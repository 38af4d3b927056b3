package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/marketchat/backend/internal/chat"
	"github.com/marketchat/backend/internal/service"
)

// ConversationHandler exposes the socket queries over plain HTTP for
// clients fetching history outside a live connection. Semantics match the
// gateway events one for one.
type ConversationHandler struct {
	svc service.ChatService
}

func NewConversationHandler(svc service.ChatService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// List handles GET /api/conversations.
func (h *ConversationHandler) List(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	sums, err := h.svc.ConversationsFor(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch conversations"))
	}
	return c.JSON(http.StatusOK, sums)
}

// History handles GET /api/conversations/:otherUserId/messages.
func (h *ConversationHandler) History(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	otherUID := c.Param("otherUserId")
	if otherUID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	page := atoiDefault(c.QueryParam("page"), 1)
	limit := atoiDefault(c.QueryParam("limit"), service.DefaultPageSize)

	key := chat.ConversationKey(uid, otherUID)
	msgs, pg, err := h.svc.History(c.Request().Context(), key, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch messages"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversationId": key,
		"messages":       msgs,
		"pagination":     pg,
	})
}

// MarkRead handles POST /api/conversations/:otherUserId/read.
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	otherUID := c.Param("otherUserId")
	if otherUID == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	key := chat.ConversationKey(uid, otherUID)
	count, err := h.svc.MarkRead(c.Request().Context(), key, uid)
	if err != nil {
		if err == service.ErrNotParticipant {
			return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not a participant"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to mark read"))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "count": count})
}

// DeleteMessage handles DELETE /api/messages/:id. Soft delete only: the
// row stays, flagged deleted, and leaves history and unread counts.
func (h *ConversationHandler) DeleteMessage(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	msgID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid message id"))
	}
	if err := h.svc.DeleteMessage(c.Request().Context(), msgID, uid); err != nil {
		if err == service.ErrNotFound {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "message not found"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to delete message"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
