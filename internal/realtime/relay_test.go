package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatneto/internal/mocks"
	"chatneto/internal/models"
	"chatneto/internal/observability"
)

type stubVerifier struct {
	userID int
	err    error
}

func (s *stubVerifier) VerifyToken(token string) (int, error) {
	return s.userID, s.err
}

func newRelayServer(t *testing.T, hub *Hub, chatRepo *mocks.ChatRepositoryMock, verifier *stubVerifier) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/chats/:chat_id", NewRelayHandler(hub, chatRepo, verifier).Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestRelayDeliversBroadcastsToSubscriber(t *testing.T) {
	hub := NewHub()
	chatRepo := new(mocks.ChatRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	server := newRelayServer(t, hub, chatRepo, &stubVerifier{userID: 1})

	notifier := NewWSNotifier(wsURL(server), "tok")
	sub, err := notifier.Subscribe(context.Background(), 5)
	require.NoError(t, err)
	defer sub.Close()

	// Registration happens just after the upgrade; wait for the room.
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.rooms[5]) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(5, models.Message{ID: 9, ChatID: 5, SenderID: 2, Text: "ping"})

	select {
	case msg := <-sub.C:
		assert.Equal(t, 9, msg.ID)
		assert.Equal(t, "ping", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("expected broadcast to reach the subscriber")
	}
	chatRepo.AssertExpectations(t)
}

type lifecyclePublisher struct {
	mu     sync.Mutex
	ctxErr map[string]error
}

func (p *lifecyclePublisher) PublishJSON(ctx context.Context, routingKey string, event observability.EventEnvelope, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErr[event.EventName] = ctx.Err()
	return nil
}

func (p *lifecyclePublisher) errFor(event string) (error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	err, ok := p.ctxErr[event]
	return err, ok
}

func TestRelayDisconnectPublishOutlivesRequest(t *testing.T) {
	stub := &lifecyclePublisher{ctxErr: map[string]error{}}
	observability.SetPublisher(stub)
	defer observability.SetPublisher(nil)

	hub := NewHub()
	chatRepo := new(mocks.ChatRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	server := newRelayServer(t, hub, chatRepo, &stubVerifier{userID: 1})

	notifier := NewWSNotifier(wsURL(server), "tok")
	sub, err := notifier.Subscribe(context.Background(), 5)
	require.NoError(t, err)

	sub.Close()

	require.Eventually(t, func() bool {
		_, ok := stub.errFor("ws_disconnect")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	ctxErr, _ := stub.errFor("ws_disconnect")
	assert.NoError(t, ctxErr, "disconnect is published on a live context after the handler returns")
}

func TestRelayRejectsMissingToken(t *testing.T) {
	server := newRelayServer(t, NewHub(), new(mocks.ChatRepositoryMock), &stubVerifier{userID: 1})

	resp, err := http.Get(server.URL + "/ws/chats/5")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRelayRejectsInvalidToken(t *testing.T) {
	server := newRelayServer(t, NewHub(), new(mocks.ChatRepositoryMock), &stubVerifier{err: errors.New("bad token")})

	notifier := NewWSNotifier(wsURL(server), "bad")
	_, err := notifier.Subscribe(context.Background(), 5)
	assert.Error(t, err)
}

func TestRelayRejectsNonParticipant(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	chatRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()
	server := newRelayServer(t, NewHub(), chatRepo, &stubVerifier{userID: 1})

	notifier := NewWSNotifier(wsURL(server), "tok")
	_, err := notifier.Subscribe(context.Background(), 5)
	assert.Error(t, err)
	chatRepo.AssertExpectations(t)
}

func TestRelayRejectsBadChatID(t *testing.T) {
	server := newRelayServer(t, NewHub(), new(mocks.ChatRepositoryMock), &stubVerifier{userID: 1})

	resp, err := http.Get(server.URL + "/ws/chats/abc")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
