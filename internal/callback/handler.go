// Package callback implements the Callback API gateway: the public endpoint
// VK pushes group events to. Message events run through the normalizer and
// come out as views handed to one caller-supplied handler; everything else
// is acknowledged and dropped.
package callback

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vkgate/vkgate/internal/message"
)

type updateNormalizer interface {
	Normalize(raw json.RawMessage, source message.Source) (message.Envelope, error)
}

// Handler consumes one normalized message view. Returning an error only
// logs it; the gateway still acknowledges so the platform stops
// redelivering an event no retry can fix.
type Handler func(ctx context.Context, view *message.View) error

const callbackMaxBodyBytes int64 = 1 << 20 // 1 MiB

// Events the gateway turns into message views. Other event types are
// acknowledged without processing.
const (
	eventConfirmation = "confirmation"
	eventMessageNew   = "message_new"
	eventMessageReply = "message_reply"
	eventMessageEdit  = "message_edit"
)

// Config holds the gateway settings.
type Config struct {
	// Path is the webhook route, /callback by default.
	Path string
	// Confirmation is the string answered to the confirmation handshake.
	Confirmation string
	// Secret, when set, must match the secret field of every event.
	Secret string
	// GroupID, when set, must match the group_id field of every event.
	GroupID int64
}

// WebhookHandler receives Callback API events.
type WebhookHandler struct {
	logger     *slog.Logger
	normalizer updateNormalizer
	api        message.Caller
	uploads    message.Uploader
	handler    Handler
	cfg        Config
}

// NewWebhookHandler creates the gateway. api and uploads are carried into
// every view built here so handler code can call remote operations directly.
func NewWebhookHandler(log *slog.Logger, normalizer updateNormalizer, api message.Caller, uploads message.Uploader, handler Handler, cfg Config) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/callback"
	}
	return &WebhookHandler{
		logger:     log.With(slog.String("handler", "vk_callback")),
		normalizer: normalizer,
		api:        api,
		uploads:    uploads,
		handler:    handler,
		cfg:        cfg,
	}
}

// Register registers the webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET(h.cfg.Path, h.HandleProbe)
	e.POST(h.cfg.Path, h.Handle)
}

// HandleProbe responds to health/probe requests on the webhook URL.
func (h *WebhookHandler) HandleProbe(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Handle processes one Callback API request.
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.normalizer == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "callback dependencies not configured")
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, callbackMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(payload)) > callbackMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", callbackMaxBodyBytes))
	}

	var event struct {
		Type    string          `json:"type"`
		GroupID int64           `json:"group_id"`
		Object  json.RawMessage `json:"object"`
		Secret  string          `json:"secret"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid callback payload: %v", err))
	}
	if h.cfg.Secret != "" && event.Secret != h.cfg.Secret {
		return echo.NewHTTPError(http.StatusForbidden, "invalid callback secret")
	}
	if h.cfg.GroupID != 0 && event.GroupID != h.cfg.GroupID {
		return echo.NewHTTPError(http.StatusForbidden, "unexpected group id")
	}

	switch strings.TrimSpace(event.Type) {
	case eventConfirmation:
		return c.String(http.StatusOK, h.cfg.Confirmation)
	case eventMessageNew, eventMessageReply, eventMessageEdit:
		h.dispatch(c.Request().Context(), event.Type, event.Object)
	default:
		h.logger.Debug("callback event ignored", slog.String("type", event.Type))
	}
	// The platform redelivers anything not answered with ok.
	return c.String(http.StatusOK, "ok")
}

// dispatch normalizes one message event and hands the view to the handler.
// Failures are logged, never bubbled: redelivery cannot fix a malformed
// payload or a handler bug.
func (h *WebhookHandler) dispatch(ctx context.Context, eventType string, object json.RawMessage) {
	env, err := h.normalizer.Normalize(object, message.SourceWebhook)
	if err != nil {
		h.logger.Warn("callback event dropped",
			slog.String("type", eventType),
			slog.Any("error", err))
		return
	}
	view := message.NewView(h.logger, h.api, h.uploads, env)
	h.logger.Debug("message event received",
		slog.String("type", eventType),
		slog.Any("message", view))
	if h.handler == nil {
		return
	}
	if err := h.handler(context.WithoutCancel(ctx), view); err != nil {
		h.logger.Error("message handler failed",
			slog.String("type", eventType),
			slog.Int64("message_id", view.ID()),
			slog.Any("error", err))
	}
}
