package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/service"
)

type stubChatService struct {
	authorizeErr error
	sent         []string
	deleted      []uint
}

func (s *stubChatService) ServeConnection(conn *fiberws.Conn, opts service.ChatConnectionOptions) {
	_ = conn.WriteJSON(dto.ChatEvent{Type: dto.FrameMessage, Message: &dto.MessageResponse{
		ChannelID: opts.Channel.ID,
		SenderID:  opts.Actor.ID,
		Content:   "welcome",
	}})
	_ = conn.Close()
}

func (s *stubChatService) Authorize(_ context.Context, _ service.Actor, channelID uint) (models.Channel, error) {
	if s.authorizeErr != nil {
		return models.Channel{}, s.authorizeErr
	}
	return models.Channel{ID: channelID, Name: "general", Type: models.ChannelTypeGroup}, nil
}

func (s *stubChatService) History(context.Context, dto.ChatHistoryQuery) ([]dto.MessageResponse, error) {
	return []dto.MessageResponse{{ID: 1, ChannelID: 1, SenderID: "student-1", Content: "hi"}}, nil
}

func (s *stubChatService) SendMessage(_ context.Context, _ service.Actor, _ uint, content string) (dto.SendResult, error) {
	s.sent = append(s.sent, content)
	return dto.SendResult{Message: dto.MessageResponse{ID: 1, Content: content}}, nil
}

func (s *stubChatService) DeleteMessage(_ context.Context, _ service.Actor, messageID uint) error {
	s.deleted = append(s.deleted, messageID)
	return nil
}

func (s *stubChatService) FlagMessage(context.Context, service.Actor, uint) error { return nil }

func (s *stubChatService) NotifyDirectoryChanged(context.Context, uint) {}

func (s *stubChatService) Start(context.Context) {}

func newChatApp(svc service.ChatService) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/chat", func(c *fiber.Ctx) error {
		c.Locals("user_id", "student-1")
		c.Locals("user_role", "student")
		return c.Next()
	})
	NewChatHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop()).Register(group)
	return app
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}

func TestChatWebsocketUpgradeAndFirstFrame(t *testing.T) {
	app := newChatApp(&stubChatService{})
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws?channel_id=1"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var event dto.ChatEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, dto.FrameMessage, event.Type)
	require.Equal(t, "welcome", event.Message.Content)
	require.Equal(t, "student-1", event.Message.SenderID)
}

func TestChatWebsocketRejectsUnauthorizedChannel(t *testing.T) {
	app := newChatApp(&stubChatService{authorizeErr: service.ErrChatNotAuthorised})
	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/chat/ws?channel_id=1"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err, "rejection happens after the upgrade")
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err, "connection must close without a data frame")
}

func TestChatWebsocketRequiresUpgradeHeader(t *testing.T) {
	app := newChatApp(&stubChatService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws?channel_id=1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatHistoryEndpoint(t *testing.T) {
	app := newChatApp(&stubChatService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?channel_id=1&limit=50", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                  `json:"success"`
		Data    []dto.MessageResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Len(t, body.Data, 1)
}

func TestChatHistoryRejectsForbiddenChannel(t *testing.T) {
	app := newChatApp(&stubChatService{authorizeErr: service.ErrChatNotAuthorised})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/history?channel_id=1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestChatSendFallbackEndpoint(t *testing.T) {
	svc := &stubChatService{}
	app := newChatApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(`{"channel_id":1,"content":"over http"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, []string{"over http"}, svc.sent)
}

func TestChatDeleteMessageEndpoint(t *testing.T) {
	svc := &stubChatService{}
	app := newChatApp(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/chat/messages/42", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, []uint{42}, svc.deleted)
}
