package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/observability"
	"github.com/opvera/opvera-api/internal/repository"
	"github.com/opvera/opvera-api/pkg/ai"
)

const (
	chatSendBufferSize = 32
	typingWindow       = time.Second
	// recentIDCap bounds the de-duplication window. Fan-out can deliver the
	// same insert over both Redis and NATS; ids inside the window are
	// broadcast at most once per node.
	recentIDCap = 1024
)

var (
	// ErrChatNotAuthorised indicates the user is not a member of the channel.
	ErrChatNotAuthorised = errors.New("user not authorised for channel")
	// ErrMessageNotFound indicates the message row is already gone.
	ErrMessageNotFound = errors.New("message not found")
	// ErrChannelNotFound indicates the channel does not exist.
	ErrChannelNotFound = errors.New("channel not found")
)

// ChatConnectionOptions wraps identity extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	Actor         Actor
	Channel       models.Channel
	CorrelationID string
	Context       context.Context
}

// ChatService manages websocket chat connections, message delivery, typing
// presence, and chat-level moderation of single messages.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Authorize(ctx context.Context, actor Actor, channelID uint) (models.Channel, error)
	History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error)
	SendMessage(ctx context.Context, actor Actor, channelID uint, content string) (dto.SendResult, error)
	DeleteMessage(ctx context.Context, actor Actor, messageID uint) error
	FlagMessage(ctx context.Context, actor Actor, messageID uint) error
	NotifyDirectoryChanged(ctx context.Context, channelID uint)
	Start(ctx context.Context)
}

type chatService struct {
	messages    repository.MessageRepository
	channels    repository.ChannelRepository
	users       repository.UserRepository
	audit       AuditService
	policy      *AuthorizationPolicy
	completer   ai.Completer
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *chatHub
	presence    *typingTracker
	nodeID      string
}

// ChatServiceDeps groups the collaborators of the chat service.
type ChatServiceDeps struct {
	Messages    repository.MessageRepository
	Channels    repository.ChannelRepository
	Users       repository.UserRepository
	Audit       AuditService
	Policy      *AuthorizationPolicy
	Completer   ai.Completer
	Redis       *redis.Client
	NATS        *nats.Conn
	ChannelBase string
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

// chatEvent is the cross-node fan-out envelope.
type chatEvent struct {
	Source  string              `json:"source"`
	Kind    string              `json:"kind"`
	Channel uint                `json:"channel"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewChatService creates a websocket chat service instance.
func NewChatService(deps ChatServiceDeps) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	svc := &chatService{
		messages:  deps.Messages,
		channels:  deps.Channels,
		users:     deps.Users,
		audit:     deps.Audit,
		policy:    deps.Policy,
		completer: deps.Completer,
		redis:     deps.Redis,
		nats:      deps.NATS,
		validator: deps.Validator,
		logger:    deps.Logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/opvera/opvera-api/internal/service/chat"),
		sanitizer: sanitizer,
		hub: &chatHub{
			rooms:     make(map[uint]map[*chatClient]struct{}),
			recentIDs: make(map[uint]struct{}),
			log:       deps.Logger.With().Str("component", "chat_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}

	if deps.ChannelBase != "" {
		svc.redisStream = deps.ChannelBase + ":chat"
		svc.natsSubject = strings.ReplaceAll(deps.ChannelBase, ":", ".") + ".chat"
	}

	svc.presence = newTypingTracker(typingWindow, svc.broadcastTyping)

	return svc
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.ChatEvent, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatConnections().Inc()
	defer observability.ChatConnections().Dec()

	go client.writer()
	client.reader()
}

// Authorize resolves the channel and verifies the actor may join it. Global
// channels admit everyone; others require membership or moderator rights.
func (s *chatService) Authorize(ctx context.Context, actor Actor, channelID uint) (models.Channel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Channel{}, ErrChannelNotFound
		}
		return models.Channel{}, err
	}

	if channel.Type != models.ChannelTypeGlobal && !channel.HasMember(actor.ID) && !s.policy.CanModerate(actor, &channel) {
		return models.Channel{}, ErrChatNotAuthorised
	}
	return channel, nil
}

func (s *chatService) History(ctx context.Context, query dto.ChatHistoryQuery) ([]dto.MessageResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByChannel(ctx, query.ChannelID, query.Limit)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

// SendMessage persists one message, or two for AI-enabled channels, and fans
// the rows out to connected clients. The returned rows let the caller append
// immediately; the hub's id window keeps the fan-out echo from re-rendering.
func (s *chatService) SendMessage(ctx context.Context, actor Actor, channelID uint, content string) (dto.SendResult, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SendResult{}, ErrChannelNotFound
		}
		return dto.SendResult{}, err
	}

	return s.send(ctx, actor, channel, content)
}

func (s *chatService) send(ctx context.Context, actor Actor, channel models.Channel, content string) (dto.SendResult, error) {
	if !channel.HasMember(actor.ID) && channel.Type != models.ChannelTypeGlobal {
		return dto.SendResult{}, ErrChatNotAuthorised
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if clean == "" {
		return dto.SendResult{}, fmt.Errorf("message content empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.Int64("chat.channel_id", int64(channel.ID)),
		attribute.String("chat.sender_id", actor.ID),
		attribute.Bool("chat.ai_enabled", channel.AIEnabled()),
	))
	defer span.End()

	if !channel.AIEnabled() {
		message, err := s.persist(spanCtx, channel.ID, actor.ID, clean, datatypes.JSONMap{})
		if err != nil {
			span.RecordError(err)
			return dto.SendResult{}, err
		}
		s.deliver(spanCtx, message, "text")
		return dto.SendResult{Message: message}, nil
	}

	// AI path: the human row first, then the completion over the rolling
	// window, then the assistant row under the same sender id.
	window, err := s.messages.ListRecent(spanCtx, channel.ID, ai.ChatWindowSize)
	if err != nil {
		span.RecordError(err)
		return dto.SendResult{}, err
	}

	human, err := s.persist(spanCtx, channel.ID, actor.ID, clean, datatypes.JSONMap{models.MetaAIRequest: true})
	if err != nil {
		span.RecordError(err)
		return dto.SendResult{}, err
	}
	s.deliver(spanCtx, human, "ai_request")

	turns := make([]ai.ChatTurn, 0, len(window)+1)
	for _, m := range window {
		role := "user"
		if m.IsAIReply() {
			role = "assistant"
		}
		turns = append(turns, ai.ChatTurn{Role: role, Content: m.Content})
	}
	turns = append(turns, ai.ChatTurn{Role: "user", Content: clean})

	replyText, err := ai.ChatReply(spanCtx, s.completer, turns, "")
	if err != nil {
		span.RecordError(err)
		return dto.SendResult{}, fmt.Errorf("assistant reply: %w", err)
	}

	reply, err := s.persist(spanCtx, channel.ID, actor.ID, replyText, datatypes.JSONMap{models.MetaAI: true})
	if err != nil {
		span.RecordError(err)
		return dto.SendResult{}, err
	}
	s.deliver(spanCtx, reply, "ai_reply")

	return dto.SendResult{Message: human, AIReply: &reply}, nil
}

func (s *chatService) persist(ctx context.Context, channelID uint, senderID, content string, metadata datatypes.JSONMap) (dto.MessageResponse, error) {
	model := models.Message{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Metadata:  metadata,
	}
	if err := s.messages.Create(ctx, &model); err != nil {
		return dto.MessageResponse{}, err
	}

	if err := s.channels.Touch(ctx, channelID); err != nil {
		s.logger.Warn().Err(err).Uint("channel_id", channelID).Msg("failed to bump channel recency")
	}

	if sender, err := s.users.GetByID(ctx, senderID); err == nil {
		model.Sender = &sender
	}

	return dto.NewMessageResponse(model), nil
}

// NotifyDirectoryChanged fans a channel-list refresh hint out to every
// connected client on every node. Channel mutations call this so open
// directory views pick up new channels and membership changes.
func (s *chatService) NotifyDirectoryChanged(ctx context.Context, channelID uint) {
	s.hub.broadcastDirectory(channelID, false)

	if err := s.publish(ctx, chatEvent{
		Source:  s.nodeID,
		Kind:    "directory",
		Channel: channelID,
		SentAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).Uint("channel_id", channelID).Msg("failed to publish directory event")
	}
}

func (s *chatService) deliver(ctx context.Context, message dto.MessageResponse, kind string) {
	s.hub.broadcastMessage(message)
	s.hub.broadcastDirectory(message.ChannelID, true)
	observability.ChatMessages().WithLabelValues(kind).Inc()

	if err := s.publish(ctx, chatEvent{
		Source:  s.nodeID,
		Kind:    kind,
		Channel: message.ChannelID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}
}

// DeleteMessage removes one message. The sender may delete their own rows;
// moderators may delete anyone's, which additionally writes an audit entry.
func (s *chatService) DeleteMessage(ctx context.Context, actor Actor, messageID uint) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	channel, err := s.channels.GetByID(ctx, message.ChannelID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if !s.policy.CanTouchMessage(actor, message, &channel) {
		return ErrForbidden
	}

	if err := s.messages.Delete(ctx, messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	if actor.ID != message.SenderID {
		s.audit.Record(ctx, actor, models.ActionAdminDeleteMessage, "message", strconv.FormatUint(uint64(messageID), 10), map[string]interface{}{
			"channel_id": message.ChannelID,
		})
	}

	s.hub.broadcastDeletion(message.ChannelID, messageID)
	if err := s.publish(ctx, chatEvent{
		Source:  s.nodeID,
		Kind:    "deleted",
		Channel: message.ChannelID,
		Message: dto.MessageResponse{ID: messageID, ChannelID: message.ChannelID},
		SentAt:  time.Now().UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat deletion")
	}
	return nil
}

// FlagMessage records a moderation flag without touching the message.
func (s *chatService) FlagMessage(ctx context.Context, actor Actor, messageID uint) error {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	channel, err := s.channels.GetByID(ctx, message.ChannelID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if !s.policy.CanTouchMessage(actor, message, &channel) {
		return ErrForbidden
	}

	s.audit.Record(ctx, actor, models.ActionFlagMessage, "message", strconv.FormatUint(uint64(messageID), 10), map[string]interface{}{
		"channel_id": message.ChannelID,
		"sender_id":  message.SenderID,
	})
	return nil
}

func (s *chatService) broadcastTyping(channelID uint, userIDs []string) {
	s.hub.broadcastEvent(channelID, dto.ChatEvent{Type: dto.FrameTyping, Typing: userIDs})
}

func (s *chatService) publish(ctx context.Context, event chatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "opvera-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	// Events this node produced were already broadcast locally.
	if event.Source == s.nodeID {
		return
	}

	switch event.Kind {
	case "deleted":
		s.hub.broadcastDeletion(event.Channel, event.Message.ID)
		return
	case "directory":
		s.hub.broadcastDirectory(event.Channel, false)
		return
	}

	observability.ChatMessages().WithLabelValues(event.Kind).Inc()
	s.hub.broadcastMessage(event.Message)
	s.hub.broadcastDirectory(event.Channel, true)
}

// chatHub keeps track of active websocket clients per channel and enforces
// at-most-once delivery of a message id on this node.
type chatHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*chatClient]struct{}
	recentIDs  map[uint]struct{}
	recentFIFO []uint
	log        zerolog.Logger
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.Channel.ID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("channel_id", room).Str("user_id", client.options.Actor.ID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.Channel.ID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Uint("channel_id", room).Str("user_id", client.options.Actor.ID).Msg("chat client disconnected")
}

func (h *chatHub) broadcastMessage(message dto.MessageResponse) {
	h.mu.Lock()
	if _, seen := h.recentIDs[message.ID]; seen {
		h.mu.Unlock()
		return
	}
	h.recentIDs[message.ID] = struct{}{}
	h.recentFIFO = append(h.recentFIFO, message.ID)
	if len(h.recentFIFO) > recentIDCap {
		delete(h.recentIDs, h.recentFIFO[0])
		h.recentFIFO = h.recentFIFO[1:]
	}
	h.mu.Unlock()

	h.broadcastEvent(message.ChannelID, dto.ChatEvent{Type: dto.FrameMessage, Message: &message})
}

// broadcastDirectory tells connected clients the channel directory changed
// and should be re-fetched. When skipOwnRoom is set, clients inside the
// affected channel are excluded: the message frame they already received
// carries the same information.
func (h *chatHub) broadcastDirectory(channelID uint, skipOwnRoom bool) {
	event := dto.ChatEvent{Type: dto.FrameDirectory, ChannelID: channelID}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for room, clients := range h.rooms {
		if skipOwnRoom && room == channelID {
			continue
		}
		for client := range clients {
			select {
			case client.send <- event:
			default:
				h.log.Warn().Uint("channel_id", channelID).Str("user_id", client.options.Actor.ID).Msg("dropping directory event for slow client")
			}
		}
	}
}

func (h *chatHub) broadcastDeletion(channelID, messageID uint) {
	h.broadcastEvent(channelID, dto.ChatEvent{
		Type:    dto.FrameDeleted,
		Message: &dto.MessageResponse{ID: messageID, ChannelID: channelID},
	})
}

func (h *chatHub) broadcastEvent(channelID uint, event dto.ChatEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[channelID] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("channel_id", channelID).Str("user_id", client.options.Actor.ID).Msg("dropping chat event for slow client")
		}
	}
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.ChatEvent
	options ChatConnectionOptions
	service *chatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

// reader consumes inbound frames. Sends are serialized per connection: a
// second message frame is not read until the one in flight has been fully
// processed.
func (c *chatClient) reader() {
	defer c.close()

	for {
		var frame dto.ChatFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}
		c.handleFrame(frame)
	}
}

// handleFrame dispatches one inbound frame. Frames failing validation, such
// as over-long message content, are dropped without touching storage.
func (c *chatClient) handleFrame(frame dto.ChatFrame) {
	if err := c.service.validator.Struct(frame); err != nil {
		c.service.logger.Warn().Err(err).Str("user_id", c.options.Actor.ID).Msg("rejecting invalid chat frame")
		return
	}

	switch frame.Type {
	case dto.FrameTyping:
		c.service.presence.Set(c.options.Channel.ID, c.options.Actor.ID, frame.Typing)
	case dto.FrameMessage, "":
		if _, err := c.service.send(c.baseCtx, c.options.Actor, c.options.Channel, frame.Content); err != nil {
			c.service.logger.Warn().Err(err).Msg("failed to process chat message")
		}
		c.service.presence.Set(c.options.Channel.ID, c.options.Actor.ID, false)
	default:
		c.service.logger.Debug().Str("type", frame.Type).Msg("ignoring unknown chat frame")
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if event.Type == dto.FrameTyping {
				event.Typing = removeString(event.Typing, c.options.Actor.ID)
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.presence.Set(c.options.Channel.ID, c.options.Actor.ID, false)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
