package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"remote-finder/internal/models"
	"remote-finder/internal/remote"
	"remote-finder/internal/websocket"

	gorilla "github.com/gorilla/websocket"
)

var errShuttingDown = errors.New("server is shutting down")

// TerminalHandler upgrades to a WebSocket and bridges it to a fresh shell on
// the session's SSH transport. The token comes from the query string.
func (s *Server) TerminalHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Touch(r.URL.Query().Get(tokenParam))

	conn, upgradeErr := websocket.Upgrader.Upgrade(w, r, nil)
	if upgradeErr != nil {
		log.Println("[terminal] WebSocket upgrade error:", upgradeErr)
		return
	}

	if err != nil {
		websocket.Reject(conn, msgInvalidSession)
		return
	}

	shells, err := sess.ShellClient(r.Context(), s.dialShell)
	if err != nil {
		log.Printf("[terminal] session %s: opening shell transport failed: %v", sess.ID, err)
		websocket.Fail(conn, err)
		return
	}

	shell, err := shells.OpenShell(s.config.SSH.Term, remote.DefaultRows, remote.DefaultCols)
	if err != nil {
		log.Printf("[terminal] session %s: opening shell failed: %v", sess.ID, err)
		websocket.Fail(conn, err)
		return
	}

	bridgeID := uuid.New()
	if err := sess.AttachShell(bridgeID, shell); err != nil {
		shell.Close()
		websocket.Fail(conn, err)
		return
	}

	client := websocket.NewClient(s.hub, conn, sess.ID, shell, websocket.ClientOptions{
		ID:         bridgeID,
		OnActivity: func() { sess.Touch(time.Now()) },
		OnClose: func() {
			sess.DetachShell(bridgeID)
			terminalsActive.Dec()
			s.recordEvent(sess, models.EventTerminalClosed, map[string]string{"terminal": bridgeID.String()})
		},
	})
	terminalsActive.Inc()

	if !s.hub.Attach(client) {
		client.Close()
		websocket.Fail(conn, errShuttingDown)
		return
	}

	s.recordEvent(sess, models.EventTerminalOpened, map[string]string{"terminal": bridgeID.String()})
	client.Start()
}

// RootHandler serves the terminal WebSocket and, for plain requests, the
// static UI.
func (s *Server) RootHandler(static http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gorilla.IsWebSocketUpgrade(r) {
			s.TerminalHandler(w, r)
			return
		}
		static.ServeHTTP(w, r)
	}
}
