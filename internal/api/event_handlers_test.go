package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remote-finder/internal/models"
	"remote-finder/internal/session"
	"remote-finder/internal/websocket"
)

func TestGetEventsHandler(t *testing.T) {
	env := newTestEnv(t)
	sess := env.openSession(t)

	require.Eventually(t, func() bool { return len(env.journal.types()) == 1 }, time.Second, 10*time.Millisecond)

	rr := serve(env.server.GetEventsHandler, withSession(httptest.NewRequest(http.MethodGet, "/api/events", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)

	var events []models.Event
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&events))
	require.Len(t, events, 1)
	require.Equal(t, models.EventSessionOpened, events[0].EventType)
	require.Equal(t, sess.ID, events[0].SessionID)

	rr = serve(env.server.GetEventsHandler, withSession(httptest.NewRequest(http.MethodGet, "/api/events?since=1", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(env.server.GetEventsHandler, withSession(httptest.NewRequest(http.MethodGet, "/api/events?since=latest", nil), sess))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env.journal.mu.Lock()
	env.journal.err = errors.New("pool closed")
	env.journal.mu.Unlock()
	rr = serve(env.server.GetEventsHandler, withSession(httptest.NewRequest(http.MethodGet, "/api/events", nil), sess))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetEventsHandler_NoJournal(t *testing.T) {
	sessions := session.NewStore()
	srv := NewServer(testConfig(), sessions, newFakeBroker(), websocket.NewHub(), nil)
	t.Cleanup(func() { sessions.CloseAll(session.ReasonShutdown) })

	sess, err := sessions.Create(testCreds(), newMemFS())
	require.NoError(t, err)

	rr := serve(srv.GetEventsHandler, withSession(httptest.NewRequest(http.MethodGet, "/api/events", nil), sess))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}
