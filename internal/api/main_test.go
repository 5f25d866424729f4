package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remote-finder/internal/config"
	"remote-finder/internal/database"
	"remote-finder/internal/models"
	"remote-finder/internal/remote"
	"remote-finder/internal/session"
	"remote-finder/internal/websocket"
)

type testEnv struct {
	server   *Server
	broker   *fakeBroker
	sessions *session.Store
	hub      *websocket.Hub
	journal  *fakeJournal
	config   *config.Config
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Addr:            ":0",
			StaticDir:       "",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: time.Second,
		},
		SSH: config.SSHConfig{
			ReadyTimeout: time.Second,
			Term:         "xterm-256color",
		},
		Session: config.SessionConfig{
			IdleTimeout:   time.Minute,
			SweepInterval: time.Minute,
		},
		Limits: config.LimitsConfig{
			MaxReadBytes:   2 * 1024 * 1024,
			MaxUploadBytes: 1024 * 1024,
			MaxJSONBytes:   64 * 1024,
		},
		Exec: config.ExecConfig{Enabled: true},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := testConfig()
	broker := newFakeBroker()
	sessions := session.NewStore()
	hub := websocket.NewHub()
	journal := &fakeJournal{}

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	env := &testEnv{
		server:   NewServer(cfg, sessions, broker, hub, journal),
		broker:   broker,
		sessions: sessions,
		hub:      hub,
		journal:  journal,
		config:   cfg,
	}
	t.Cleanup(func() {
		sessions.CloseAll(session.ReasonShutdown)
		cancel()
	})
	return env
}

func testCreds() remote.Credentials {
	return remote.Credentials{Host: "files.example.com", Port: 22, Username: "alice", Password: "secret"}
}

// openSession registers a session over the fake file transport.
func (e *testEnv) openSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := e.sessions.Create(testCreds(), e.broker.fs)
	require.NoError(t, err)
	return sess
}

// withSession attaches sess to the request the way SessionMiddleware does.
func withSession(req *http.Request, sess *session.Session) *http.Request {
	ctx := context.WithValue(req.Context(), sessionContextKey, sess)
	return req.WithContext(ctx)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// fakeJournal keeps events in memory.
type fakeJournal struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (j *fakeJournal) LogEvent(_ context.Context, arg database.LogEventParams) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return 0, j.err
	}
	payload, err := json.Marshal(arg.Payload)
	if err != nil {
		return 0, err
	}
	id := int64(len(j.events) + 1)
	j.events = append(j.events, models.Event{
		ID:        id,
		SessionID: arg.SessionID,
		Host:      arg.Host,
		Username:  arg.Username,
		EventType: arg.EventType,
		EventTime: time.Now(),
		Payload:   payload,
	})
	return id, nil
}

func (j *fakeJournal) GetEventsSince(_ context.Context, host, username string, sinceID int64) ([]models.Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return nil, j.err
	}
	events := []models.Event{}
	for _, e := range j.events {
		if e.Host == host && e.Username == username && e.ID > sinceID {
			events = append(events, e)
		}
	}
	return events, nil
}

func (j *fakeJournal) types() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.events {
		out = append(out, e.EventType)
	}
	return out
}
