package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path"
	"strconv"

	"remote-finder/internal/models"
	"remote-finder/internal/remote"
	"remote-finder/internal/remotecmd"
)

const (
	msgPathRequired = "path is required"
	msgBadBody      = "Invalid request body"
)

type PathRequest struct {
	Path string `json:"path" example:"/home/alice/projects"`
}

type RenameRequest struct {
	OldPath string `json:"oldPath" example:"/home/alice/a.txt"`
	NewPath string `json:"newPath" example:"/home/alice/b.txt"`
}

type DeleteRequest struct {
	Path string `json:"path" example:"/home/alice/old"`
	Type string `json:"type" example:"dir"`
}

type WriteRequest struct {
	Path    string `json:"path" example:"/home/alice/notes.txt"`
	Content string `json:"content"`
}

type ChmodRequest struct {
	Path string `json:"path" example:"/home/alice/run.sh"`
	Mode string `json:"mode" example:"755"`
}

type ListResponse struct {
	Path  string         `json:"path" example:"/home/alice"`
	Items []models.Entry `json:"items"`
}

type StatResponse struct {
	Path string          `json:"path" example:"/home/alice/notes.txt"`
	Info models.FileInfo `json:"info"`
}

type ReadResponse struct {
	Path    string `json:"path" example:"/home/alice/notes.txt"`
	Content string `json:"content"`
	Size    int    `json:"size" example:"42"`
}

// @Summary      List a directory
// @Tags         files
// @Produce      json
// @Security     SessionToken
// @Param        path  query     string  false  "Directory to list" default(/)
// @Success      200   {object}  ListResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /list [get]
func (s *Server) ListHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	dir := r.URL.Query().Get("path")
	if dir == "" {
		dir = "/"
	}

	infos, err := files.ReadDir(dir)
	if err != nil {
		writeFailure(w, "List failed", err)
		return
	}

	items := make([]models.Entry, 0, len(infos))
	for _, fi := range infos {
		items = append(items, remote.EntryFromInfo(dir, fi))
	}
	writeJSON(w, http.StatusOK, ListResponse{Path: dir, Items: items})
}

// @Summary      Stat a path
// @Tags         files
// @Produce      json
// @Security     SessionToken
// @Param        path  query     string  true  "Remote path"
// @Success      200   {object}  StatResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /stat [get]
func (s *Server) StatHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	fi, err := files.Stat(p)
	if err != nil {
		writeFailure(w, "Stat failed", err)
		return
	}
	writeJSON(w, http.StatusOK, StatResponse{Path: p, Info: remote.InfoFromStat(fi)})
}

// @Summary      Create a directory
// @Description  Creates the directory and any missing parents. Succeeds if it already exists.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      PathRequest  true  "Directory path"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /mkdir [post]
func (s *Server) MkdirHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	var req PathRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	if err := files.MkdirAll(req.Path); err != nil {
		writeFailure(w, "Mkdir failed", err)
		return
	}
	writeOK(w)
}

// @Summary      Rename or move a path
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      RenameRequest  true  "Old and new path"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /rename [post]
func (s *Server) RenameHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	var req RenameRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		writeError(w, http.StatusBadRequest, "oldPath and newPath are required")
		return
	}

	if err := files.Rename(req.OldPath, req.NewPath); err != nil {
		writeFailure(w, "Rename failed", err)
		return
	}
	writeOK(w)
}

// @Summary      Delete a file or directory
// @Description  Directories (type "dir") are removed recursively.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      DeleteRequest  true  "Path and entry type"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /delete [post]
func (s *Server) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	var req DeleteRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	var err error
	if req.Type == models.EntryTypeDir {
		err = files.RemoveAll(req.Path)
	} else {
		err = files.Remove(req.Path)
	}
	if err != nil {
		writeFailure(w, "Delete failed", err)
		return
	}
	writeOK(w)
}

// @Summary      Change permissions
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      ChmodRequest  true  "Path and octal mode"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /chmod [post]
func (s *Server) ChmodHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	var req ChmodRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}
	mode, err := remotecmd.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := files.Chmod(req.Path, mode); err != nil {
		writeFailure(w, "Chmod failed", err)
		return
	}
	writeOK(w)
}

// @Summary      Read a text file
// @Description  Returns the file as UTF-8 text. Files over the size limit get 413, files containing NUL bytes get 415.
// @Tags         files
// @Produce      json
// @Security     SessionToken
// @Param        path  query     string  true  "Remote file"
// @Success      200   {object}  ReadResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      415   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /read [get]
func (s *Server) ReadHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	limit := s.config.Limits.MaxReadBytes
	tooLarge := fmt.Sprintf("File too large (limit %s)", humanBytes(limit))

	fi, err := files.Stat(p)
	if err != nil {
		writeFailure(w, "Read failed", err)
		return
	}
	if fi.Size() > limit {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	f, err := files.Open(p)
	if err != nil {
		writeFailure(w, "Read failed", err)
		return
	}
	defer f.Close()

	// one byte past the limit catches files that grew since the stat
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeFailure(w, "Read failed", err)
		return
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return
	}
	if bytes.IndexByte(data, 0) >= 0 {
		writeError(w, http.StatusUnsupportedMediaType, "Binary file not supported in editor")
		return
	}

	writeJSON(w, http.StatusOK, ReadResponse{Path: p, Content: string(data), Size: len(data)})
}

// @Summary      Write a text file
// @Description  Replaces the whole file with the given UTF-8 content.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      WriteRequest  true  "Path and content"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /write [post]
func (s *Server) WriteHandler(w http.ResponseWriter, r *http.Request) {
	s.putText(w, r, "Write failed")
}

// @Summary      Create a file
// @Description  Creates the file with optional content, truncating it if it exists.
// @Tags         files
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request  body      WriteRequest  true  "Path and optional content"
// @Success      200      {object}  okResponse
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /touch [post]
func (s *Server) TouchHandler(w http.ResponseWriter, r *http.Request) {
	s.putText(w, r, "Touch failed")
}

func (s *Server) putText(w http.ResponseWriter, r *http.Request, failure string) {
	files := GetSessionFromContext(r.Context()).Files()

	var req WriteRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	if err := putFile(files, req.Path, bytes.NewReader([]byte(req.Content))); err != nil {
		writeFailure(w, failure, err)
		return
	}
	writeOK(w)
}

// putFile overwrites p with everything read from src.
func putFile(files remote.FileClient, p string, src io.Reader) error {
	f, err := files.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// @Summary      Download a file
// @Tags         files
// @Produce      octet-stream
// @Security     SessionToken
// @Param        path  query     string  true  "Remote file"
// @Success      200   {file}    binary
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /download [get]
func (s *Server) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	fi, err := files.Stat(p)
	if err != nil {
		writeFailure(w, "Download failed", err)
		return
	}
	if fi.IsDir() {
		writeFailure(w, "Download failed", errors.New("path is a directory"))
		return
	}

	f, err := files.Open(p)
	if err != nil {
		writeFailure(w, "Download failed", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(path.Base(p)))
	if fi.Mode().IsRegular() {
		w.Header().Set("Content-Length", strconv.FormatInt(fi.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		log.Printf("[api] download of %s interrupted: %v", sanitizeForLog(p), err)
	}
}

// contentDisposition quotes plain ASCII names directly and falls back to the
// RFC 2231 encoding for everything else.
func contentDisposition(name string) string {
	for _, r := range name {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
				return v
			}
			return "attachment"
		}
	}
	return `attachment; filename="` + name + `"`
}

// @Summary      Upload a file
// @Description  Stores the multipart "file" field at "path", overwriting any existing file.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     SessionToken
// @Param        file  formData  file    true  "File contents"
// @Param        path  formData  string  true  "Destination path"
// @Success      200   {object}  okResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /upload [post]
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	files := GetSessionFromContext(r.Context()).Files()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Limits.MaxUploadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large (limit %s)", humanBytes(s.config.Limits.MaxUploadBytes)))
			return
		}
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer r.MultipartForm.RemoveAll()

	target := r.FormValue("path")
	if target == "" {
		writeError(w, http.StatusBadRequest, msgPathRequired)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if err := putFile(files, target, file); err != nil {
		writeFailure(w, "Upload failed", err)
		return
	}
	writeOK(w)
}
