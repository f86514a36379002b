package service

import (
	"context"
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/models"
	"github.com/opvera/opvera-api/internal/repository"
)

// In-memory repository doubles shared by the service tests in this package.

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newStubUserRepo(users ...models.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) GetByIDs(_ context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *stubUserRepo) List(_ context.Context, _, _ int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *stubUserRepo) Search(_ context.Context, _ string, _ int) ([]models.User, error) {
	return nil, nil
}

func (s *stubUserRepo) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepo) UpdateRole(_ context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.Role = role
	s.users[id] = user
	return nil
}

type stubChannelRepo struct {
	mu       sync.Mutex
	channels map[uint]models.Channel
	nextID   uint
}

func newStubChannelRepo(channels ...models.Channel) *stubChannelRepo {
	repo := &stubChannelRepo{channels: make(map[uint]models.Channel), nextID: 1}
	for _, ch := range channels {
		if ch.ID >= repo.nextID {
			repo.nextID = ch.ID + 1
		}
		repo.channels[ch.ID] = ch
	}
	return repo
}

func (s *stubChannelRepo) Create(_ context.Context, channel *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel.ID = s.nextID
	s.nextID++
	s.channels[channel.ID] = *channel
	return nil
}

func (s *stubChannelRepo) GetByID(_ context.Context, id uint) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channel, ok := s.channels[id]
	if !ok {
		return models.Channel{}, gorm.ErrRecordNotFound
	}
	return channel, nil
}

func (s *stubChannelRepo) List(_ context.Context) ([]models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Channel, 0, len(s.channels))
	for _, channel := range s.channels {
		out = append(out, channel)
	}
	return out, nil
}

func (s *stubChannelRepo) Update(_ context.Context, channel *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channel.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.channels[channel.ID] = *channel
	return nil
}

func (s *stubChannelRepo) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.channels, id)
	return nil
}

func (s *stubChannelRepo) Touch(_ context.Context, _ uint) error { return nil }

type stubMessageRepo struct {
	mu       sync.Mutex
	messages map[uint]models.Message
	nextID   uint
}

func newStubMessageRepo(messages ...models.Message) *stubMessageRepo {
	repo := &stubMessageRepo{messages: make(map[uint]models.Message), nextID: 1}
	for _, m := range messages {
		if m.ID >= repo.nextID {
			repo.nextID = m.ID + 1
		}
		repo.messages[m.ID] = m
	}
	return repo
}

func (s *stubMessageRepo) Create(_ context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.ID = s.nextID
	s.nextID++
	s.messages[message.ID] = *message
	return nil
}

func (s *stubMessageRepo) GetByID(_ context.Context, id uint) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	message, ok := s.messages[id]
	if !ok {
		return models.Message{}, gorm.ErrRecordNotFound
	}
	return message, nil
}

func (s *stubMessageRepo) ListByChannel(_ context.Context, channelID uint, _ int) ([]models.Message, error) {
	return s.byChannel(channelID), nil
}

func (s *stubMessageRepo) ListRecent(_ context.Context, channelID uint, limit int) ([]models.Message, error) {
	messages := s.byChannel(channelID)
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *stubMessageRepo) LatestByChannel(_ context.Context, channelID uint) (models.Message, error) {
	messages := s.byChannel(channelID)
	if len(messages) == 0 {
		return models.Message{}, gorm.ErrRecordNotFound
	}
	return messages[len(messages)-1], nil
}

func (s *stubMessageRepo) Search(_ context.Context, query string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for id := uint(1); id < s.nextID; id++ {
		message, ok := s.messages[id]
		if !ok || !strings.Contains(message.Content, query) {
			continue
		}
		out = append(out, message)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubMessageRepo) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(s.messages, id)
	return nil
}

func (s *stubMessageRepo) DeleteMany(_ context.Context, ids []uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		if _, ok := s.messages[id]; ok {
			delete(s.messages, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *stubMessageRepo) byChannel(channelID uint) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0)
	for id := uint(1); id < s.nextID; id++ {
		if m, ok := s.messages[id]; ok && m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

type recordedAudit struct {
	Actor      Actor
	Action     string
	TargetType string
	TargetID   string
	Details    map[string]interface{}
}

// recordingAudit captures Record calls so tests can assert the trail without
// a database. List and Review are not exercised through it.
type recordingAudit struct {
	mu      sync.Mutex
	entries []recordedAudit
}

func (r *recordingAudit) Record(_ context.Context, actor Actor, action, targetType, targetID string, details map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedAudit{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Details:    details,
	})
}

func (r *recordingAudit) List(_ context.Context, _ repository.AuditLogFilter) ([]dto.AuditLogResponse, int64, error) {
	return nil, 0, nil
}

func (r *recordingAudit) Review(_ context.Context, _ uint, _ Actor, _ dto.AuditReviewRequest) (dto.AuditLogResponse, error) {
	return dto.AuditLogResponse{}, nil
}

func (r *recordingAudit) all() []recordedAudit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedAudit, len(r.entries))
	copy(out, r.entries)
	return out
}
