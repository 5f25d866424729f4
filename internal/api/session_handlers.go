package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"remote-finder/internal/remote"
	"remote-finder/internal/session"
)

// flexPort accepts the port as a JSON number or a numeric string.
type flexPort int

func (p *flexPort) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*p = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil || n < 0 || n > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	*p = flexPort(n)
	return nil
}

type ConnectRequest struct {
	Host       string   `json:"host" example:"files.example.com"`
	Port       flexPort `json:"port" swaggertype:"integer" example:"22"`
	Username   string   `json:"username" example:"alice"`
	Password   string   `json:"password,omitempty"`
	PrivateKey string   `json:"privateKey,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
}

type ConnectResponse struct {
	Token    string `json:"token"`
	Host     string `json:"host" example:"files.example.com"`
	Username string `json:"username" example:"alice"`
}

type HealthResponse struct {
	OK          bool `json:"ok" example:"true"`
	Connections int  `json:"connections" example:"3"`
	Terminals   int  `json:"terminals" example:"1"`
}

// @Summary      Open a session
// @Description  Authenticates against the remote host over SSH, starts the SFTP subsystem and returns a session token.
// @Tags         session
// @Accept       json
// @Produce      json
// @Param        request  body      ConnectRequest  true  "Remote host and credentials"
// @Success      200      {object}  ConnectResponse
// @Failure      400      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /connect [post]
func (s *Server) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	creds := remote.Credentials{
		Host:       strings.TrimSpace(req.Host),
		Port:       int(req.Port),
		Username:   req.Username,
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
		Passphrase: req.Passphrase,
	}
	if err := creds.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, remote.ErrMissingCredentials.Error())
		return
	}

	files, err := s.broker.Connect(r.Context(), creds)
	transportDials.WithLabelValues("sftp", dialResult(err)).Inc()
	if err != nil {
		log.Printf("[api] connect to %s@%s failed: %v", sanitizeForLog(creds.Username), sanitizeForLog(creds.Addr()), err)
		writeFailure(w, "Connection failed", err)
		return
	}

	sess, err := s.sessions.Create(creds, files)
	if err != nil {
		files.Close()
		writeFailure(w, "Connection failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ConnectResponse{
		Token:    sess.Token,
		Host:     creds.Host,
		Username: creds.Username,
	})
}

// @Summary      Close the session
// @Description  Closes every transport of the session. Subsequent calls with the same token get 401.
// @Tags         session
// @Produce      json
// @Security     SessionToken
// @Success      200  {object}  okResponse
// @Failure      401  {object}  errorResponse
// @Router       /disconnect [post]
func (s *Server) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	s.sessions.Destroy(sess.Token, session.ReasonDisconnect)
	writeOK(w)
}

// @Summary      Describe the session
// @Tags         session
// @Produce      json
// @Security     SessionToken
// @Success      200  {object}  models.SessionInfo
// @Failure      401  {object}  errorResponse
// @Router       /session [get]
func (s *Server) SessionInfoHandler(w http.ResponseWriter, r *http.Request) {
	sess := GetSessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess.Info())
}

// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:          true,
		Connections: s.sessions.Len(),
		Terminals:   s.hub.Count(),
	})
}
