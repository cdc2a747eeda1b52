package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/events"
	"electricity-billing/internal/model"
	"electricity-billing/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ events.Publisher = (*Hub)(nil)

type harness struct {
	hub    *Hub
	issuer *token.Issuer
	server *httptest.Server

	mu    sync.Mutex
	users map[uuid.UUID]*uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		hub:    NewHub(zap.NewNop()),
		issuer: token.NewIssuer("ws-secret", time.Hour, clock.NewFakeClock(time.Now())),
		users:  map[uuid.UUID]*uuid.UUID{},
	}
	go h.hub.Run(ctx)

	resolve := func(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
		h.mu.Lock()
		p, ok := h.users[userID]
		h.mu.Unlock()
		if !ok {
			return nil, errors.New("no such user")
		}
		return p, nil
	}
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(h.hub, c, h.issuer, resolve) })
	h.server = httptest.NewServer(r)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) dial(t *testing.T, role model.Role, providerID *uuid.UUID) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	userID := uuid.New()
	h.mu.Lock()
	h.users[userID] = providerID
	h.mu.Unlock()
	signed, _, err := h.issuer.Issue(userID, role)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?token=" + signed
	return websocket.DefaultDialer.Dial(url, nil)
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_DeliversOnlyOwnProviderEvents(t *testing.T) {
	h := newHarness(t)
	own, foreign := uuid.New(), uuid.New()

	auditor, _, err := h.dial(t, model.RoleAuditor, &own)
	require.NoError(t, err)
	defer auditor.Close()
	admin, _, err := h.dial(t, model.RoleAdmin, nil)
	require.NoError(t, err)
	defer admin.Close()

	require.Eventually(t, func() bool { return h.hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	h.hub.Publish(events.InvoiceCreated, foreign, map[string]string{"invoice_number": "INV-B"})
	h.hub.Publish(events.PricingChanged, own, map[string]string{"kwh_price": "12.0000"})

	got := readMessage(t, auditor)
	assert.Equal(t, events.PricingChanged, got.Type)
	assert.Equal(t, own, got.ProviderID)

	first := readMessage(t, admin)
	second := readMessage(t, admin)
	assert.Equal(t, events.InvoiceCreated, first.Type)
	assert.Equal(t, events.PricingChanged, second.Type)
}

func TestServeWs_Rejections(t *testing.T) {
	h := newHarness(t)
	pid := uuid.New()

	_, res, err := h.dial(t, model.RoleCustomer, &pid)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, res, err = h.dial(t, model.RoleAuditor, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws?token=bogus"
	_, res, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestPublish_NeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())
	// Run is not started, so the queue fills up
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			hub.Publish(events.InvoiceUpdated, uuid.New(), i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{hub: hub, send: make(chan []byte, 1)}
	require.True(t, hub.join(c))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-stopped
	_, open := <-c.send
	assert.False(t, open, "shutdown closes client queues")

	returned := make(chan struct{})
	go func() {
		hub.leave(c)
		assert.False(t, hub.join(&Client{hub: hub, send: make(chan []byte, 1)}))
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("client blocked on a stopped hub")
	}
}
