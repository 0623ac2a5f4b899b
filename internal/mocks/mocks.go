package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatneto/internal/auth"
	"chatneto/internal/models"
	"chatneto/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error) {
	args := m.Called(ctx, userID, friendID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, viewerID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, viewerID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int) ([]models.Message, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) Append(ctx context.Context, chatID int, senderID int, text string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, text)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID int, viewerID int) error {
	args := m.Called(ctx, chatID, viewerID)
	return args.Error(0)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) GetProfile(ctx context.Context, userID int) (models.Profile, error) {
	args := m.Called(ctx, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) ListProfiles(ctx context.Context, excludeUserID int) ([]models.Profile, error) {
	args := m.Called(ctx, excludeUserID)
	var profiles []models.Profile
	if val := args.Get(0); val != nil {
		profiles = val.([]models.Profile)
	}
	return profiles, args.Error(1)
}

func (m *ProfileRepositoryMock) UpdateProfile(ctx context.Context, userID int, update models.ProfileUpdate) (models.Profile, error) {
	args := m.Called(ctx, userID, update)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

func (m *ProfileRepositoryMock) TouchLastSeen(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AuthenticatorMock struct {
	mock.Mock
}

func (m *AuthenticatorMock) SignUp(ctx context.Context, email, password, name string) (auth.Session, error) {
	args := m.Called(ctx, email, password, name)
	var session auth.Session
	if val := args.Get(0); val != nil {
		session = val.(auth.Session)
	}
	return session, args.Error(1)
}

func (m *AuthenticatorMock) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	args := m.Called(ctx, email, password)
	var session auth.Session
	if val := args.Get(0); val != nil {
		session = val.(auth.Session)
	}
	return session, args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ProfileRepository = (*ProfileRepositoryMock)(nil)
var _ interface {
	SignUp(context.Context, string, string, string) (auth.Session, error)
	SignIn(context.Context, string, string) (auth.Session, error)
} = (*AuthenticatorMock)(nil)
