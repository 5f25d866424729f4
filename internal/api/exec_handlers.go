package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"remote-finder/internal/remote"
	"remote-finder/internal/remotecmd"
)

type ExecRequest struct {
	Command string `json:"command" example:"ls -la"`
	Cwd     string `json:"cwd" example:"/home/alice"`
}

type ExecResponse struct {
	Output string `json:"output" example:"total 0"`
	Code   *int   `json:"code" example:"0"`
}

type CompressRequest struct {
	Cwd         string   `json:"cwd" example:"/home/alice"`
	Items       []string `json:"items"`
	ArchiveName string   `json:"archiveName" example:"archive.tar.gz"`
}

type ExtractRequest struct {
	Cwd     string `json:"cwd" example:"/home/alice"`
	Archive string `json:"archive" example:"archive.tar.gz"`
}

type DiskUsageResponse struct {
	Path    string                     `json:"path"`
	Entries []remotecmd.DiskUsageEntry `json:"entries"`
	Output  string                     `json:"output"`
}

type DuplicatesResponse struct {
	Path   string                     `json:"path"`
	Groups []remotecmd.DuplicateGroup `json:"groups"`
	Output string                     `json:"output"`
}

func (s *Server) dialShell(ctx context.Context, creds remote.Credentials) (remote.ShellClient, error) {
	client, err := s.broker.DialShell(ctx, creds)
	transportDials.WithLabelValues("shell", dialResult(err)).Inc()
	return client, err
}

// runRemote executes command over the session's shell transport. It writes
// the error response itself and reports whether the caller should continue.
func (s *Server) runRemote(w http.ResponseWriter, r *http.Request, command string) (remote.ExecResult, bool) {
	if !s.config.Exec.Enabled {
		writeError(w, http.StatusForbidden, "Command execution is disabled")
		return remote.ExecResult{}, false
	}

	sess := GetSessionFromContext(r.Context())
	shells, err := sess.ShellClient(r.Context(), s.dialShell)
	if err != nil {
		writeFailure(w, "Execution failed", err)
		return remote.ExecResult{}, false
	}

	result, err := shells.Exec(r.Context(), command)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[api] command for session %s cancelled by client", sess.ID)
		}
		writeFailure(w, "Execution failed", err)
		return remote.ExecResult{}, false
	}
	return result, true
}

func output(result remote.ExecResult) string {
	if result.Stdout != "" {
		return result.Stdout
	}
	return result.Stderr
}

// @Summary      Run a shell command
// @Description  Runs "cd cwd && command" on the remote host. Both cwd and command reach the remote shell as is.
// @Tags         exec
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      ExecRequest  true  "Command and working directory"
// @Success      200      {object}  ExecResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /exec [post]
func (s *Server) ExecHandler(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	result, ok := s.runRemote(w, r, remotecmd.Exec(req.Cwd, req.Command))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExecResponse{Output: output(result), Code: result.Code})
}

// @Summary      Disk usage of a directory's children
// @Tags         exec
// @Produce      json
// @Security     SessionToken
// @Param        path  query     string  true  "Directory"
// @Success      200   {object}  DiskUsageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /du [get]
func (s *Server) DiskUsageHandler(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	if dir == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	result, ok := s.runRemote(w, r, remotecmd.DiskUsage(dir))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DiskUsageResponse{
		Path:    dir,
		Entries: remotecmd.ParseDiskUsage(result.Stdout),
		Output:  result.Stdout,
	})
}

// @Summary      Find duplicate files
// @Description  Groups regular files under the directory by md5 sum.
// @Tags         exec
// @Produce      json
// @Security     SessionToken
// @Param        path  query     string  true  "Directory"
// @Success      200   {object}  DuplicatesResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /duplicates [get]
func (s *Server) DuplicatesHandler(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("path")
	if dir == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	result, ok := s.runRemote(w, r, remotecmd.Duplicates(dir))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DuplicatesResponse{
		Path:   dir,
		Groups: remotecmd.ParseDuplicates(result.Stdout),
		Output: result.Stdout,
	})
}

// @Summary      Compress items into a tarball
// @Tags         exec
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      CompressRequest  true  "Directory, items and archive name"
// @Success      200      {object}  ExecResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /compress [post]
func (s *Server) CompressHandler(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}

	command, err := remotecmd.Compress(req.Cwd, req.ArchiveName, req.Items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, ok := s.runRemote(w, r, command)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExecResponse{Output: output(result), Code: result.Code})
}

// @Summary      Extract an archive
// @Description  Supports .tar.gz, .tgz, .tar.bz2, .tar and .zip.
// @Tags         exec
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      ExtractRequest  true  "Directory and archive"
// @Success      200      {object}  ExecResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      403      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /extract [post]
func (s *Server) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Archive == "" {
		writeError(w, http.StatusBadRequest, "archive is required")
		return
	}

	command, err := remotecmd.Extract(req.Cwd, req.Archive)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, ok := s.runRemote(w, r, command)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ExecResponse{Output: output(result), Code: result.Code})
}
