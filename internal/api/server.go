package api

import (
	"context"
	"log"
	"time"

	"remote-finder/internal/config"
	"remote-finder/internal/database"
	"remote-finder/internal/models"
	"remote-finder/internal/remote"
	"remote-finder/internal/session"
	"remote-finder/internal/websocket"
)

// Broker opens remote transports.
type Broker interface {
	Connect(ctx context.Context, creds remote.Credentials) (remote.FileClient, error)
	DialShell(ctx context.Context, creds remote.Credentials) (remote.ShellClient, error)
}

// Journal records session lifecycle events.
type Journal interface {
	LogEvent(ctx context.Context, arg database.LogEventParams) (int64, error)
	GetEventsSince(ctx context.Context, host, username string, sinceID int64) ([]models.Event, error)
}

type Server struct {
	config   *config.Config
	sessions *session.Store
	broker   Broker
	hub      *websocket.Hub
	journal  Journal
}

const journalTimeout = 5 * time.Second

// NewServer wires the HTTP layer to the session store. A nil journal
// disables event recording.
func NewServer(cfg *config.Config, sessions *session.Store, broker Broker, hub *websocket.Hub, journal Journal) *Server {
	s := &Server{
		config:   cfg,
		sessions: sessions,
		broker:   broker,
		hub:      hub,
		journal:  journal,
	}

	sessions.OnOpen(func(sess *session.Session) {
		sessionsActive.Inc()
		s.recordEvent(sess, models.EventSessionOpened, nil)
	})
	sessions.OnClose(func(sess *session.Session, reason session.CloseReason) {
		sessionsActive.Dec()
		sessionsClosed.WithLabelValues(string(reason)).Inc()
		hub.CloseSession(sess.ID)
		s.recordEvent(sess, models.EventSessionClosed, map[string]string{"reason": string(reason)})
	})

	return s
}

// recordEvent writes to the journal in the background so that session
// transitions never wait on the database.
func (s *Server) recordEvent(sess *session.Session, eventType string, payload interface{}) {
	if s.journal == nil {
		return
	}
	params := database.LogEventParams{
		SessionID: sess.ID,
		Host:      sess.Remote.Host,
		Username:  sess.Remote.Username,
		EventType: eventType,
		Payload:   payload,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if _, err := s.journal.LogEvent(ctx, params); err != nil {
			log.Printf("[api] WARN: failed to record %s for session %s: %v", eventType, sess.ID, err)
		}
	}()
}
