package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"remote-finder/internal/models"
	"remote-finder/internal/session"
	"remote-finder/internal/websocket"
)

func dialTerminal(t *testing.T, ts *httptest.Server, token string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=" + token
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorilla.Conn) websocket.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func requireClosedWith(t *testing.T, conn *gorilla.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var closeErr *gorilla.CloseError
		require.True(t, errors.As(err, &closeErr), "unexpected error: %v", err)
		require.Equal(t, code, closeErr.Code)
		return
	}
}

func TestTerminalHandler_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Routes())
	defer ts.Close()

	conn := dialTerminal(t, ts, "bogus")
	requireClosedWith(t, conn, gorilla.ClosePolicyViolation)
	require.Zero(t, env.broker.dialCount())
}

func TestTerminalHandler_Bridge(t *testing.T) {
	env := newTestEnv(t)
	sess := env.openSession(t)
	ts := httptest.NewServer(env.server.Routes())
	defer ts.Close()

	conn := dialTerminal(t, ts, sess.Token)
	require.Eventually(t, func() bool { return env.hub.SessionCount(sess.ID) == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, sess.ShellCount())

	require.NoError(t, conn.WriteJSON(websocket.Message{Type: websocket.MessageInput, Data: "uptime\r"}))
	msg := readFrame(t, conn)
	require.Equal(t, websocket.MessageOutput, msg.Type)
	require.Equal(t, "uptime\r", msg.Data)

	require.NoError(t, conn.WriteJSON(websocket.Message{Type: websocket.MessageResize, Rows: 50, Cols: 200}))
	shells := env.broker.shells
	require.Eventually(t, func() bool {
		shells.mu.Lock()
		defer shells.mu.Unlock()
		if len(shells.shells) != 1 {
			return false
		}
		sh := shells.shells[0]
		sh.mu.Lock()
		defer sh.mu.Unlock()
		return slices.Equal(sh.resizes, [][2]int{{50, 200}})
	}, time.Second, 10*time.Millisecond)

	health := serve(env.server.HealthCheckHandler, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.JSONEq(t, `{"ok":true,"connections":1,"terminals":1}`, health.Body.String())

	// closing the socket ends only this shell
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return env.hub.SessionCount(sess.ID) == 0 && sess.ShellCount() == 0
	}, time.Second, 10*time.Millisecond)
	require.True(t, shells.shells[0].isClosed())
	require.Equal(t, session.SSHReady, sess.SSHState())

	require.Eventually(t, func() bool {
		types := env.journal.types()
		return slices.Contains(types, models.EventTerminalOpened) && slices.Contains(types, models.EventTerminalClosed)
	}, time.Second, 10*time.Millisecond)
}

func TestTerminalHandler_SharesShellTransport(t *testing.T) {
	env := newTestEnv(t)
	sess := env.openSession(t)
	ts := httptest.NewServer(env.server.Routes())
	defer ts.Close()

	dialTerminal(t, ts, sess.Token)
	dialTerminal(t, ts, sess.Token)
	require.Eventually(t, func() bool { return env.hub.SessionCount(sess.ID) == 2 }, time.Second, 10*time.Millisecond)
	require.Equal(t, 1, env.broker.dialCount())
}

func TestTerminalHandler_ClosedWithSession(t *testing.T) {
	env := newTestEnv(t)
	sess := env.openSession(t)
	ts := httptest.NewServer(env.server.Routes())
	defer ts.Close()

	conn := dialTerminal(t, ts, sess.Token)
	require.Eventually(t, func() bool { return env.hub.SessionCount(sess.ID) == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, env.sessions.Destroy(sess.Token, session.ReasonDisconnect))
	requireClosedWith(t, conn, gorilla.CloseNormalClosure)
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestTerminalHandler_DialFailure(t *testing.T) {
	env := newTestEnv(t)
	sess := env.openSession(t)
	env.broker.dialErr = errors.New("ssh: handshake failed")
	ts := httptest.NewServer(env.server.Routes())
	defer ts.Close()

	conn := dialTerminal(t, ts, sess.Token)
	msg := readFrame(t, conn)
	require.Equal(t, websocket.MessageError, msg.Type)
	require.Contains(t, msg.Data, "handshake failed")
	requireClosedWith(t, conn, gorilla.CloseInternalServerErr)
}
