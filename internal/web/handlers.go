package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvtable/internal/core"
	"github.com/JonMunkholm/csvtable/internal/export"
	"github.com/JonMunkholm/csvtable/internal/table"
	"github.com/JonMunkholm/csvtable/internal/web/templates"
)

// maxMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const maxMemory = 32 << 20

// TableResponse is returned by GET /api/tables/{id}.
type TableResponse struct {
	Table core.TableInfo `json:"table"`
	Rows  [][]string     `json:"rows"`
}

// MergeRequest is the body of POST /api/merge.
type MergeRequest struct {
	IDs  []string `json:"ids"`
	Keys []string `json:"keys,omitempty"`
}

// ExportResponse is returned by the Postgres export.
type ExportResponse struct {
	Target string `json:"target"`
	Rows   int64  `json:"rows"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"tables":  len(s.service.List()),
		"limiter": s.service.LimiterStatus(),
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Profiles())
}

// handleUpload loads a multipart "file" field into a new table. Load
// options come from the form fields delimiter, encoding, has_columns, key,
// infer_types and profile.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if maxSize := s.cfg.CSV.MaxFileSize; maxSize > 0 {
		// Leave room for the multipart envelope; the service enforces the
		// exact file limit.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, r, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, tooBig.Limit))
			return
		}
		s.respondError(w, r, badRequest{err: fmt.Errorf("invalid form: %w", err)})
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	req, err := loadRequestFromForm(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sum, err := s.service.LoadUpload(r.Context(), header.Filename, file, header.Size, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sum)
}

func loadRequestFromForm(r *http.Request) (core.LoadRequest, error) {
	req := core.LoadRequest{
		Profile:   r.FormValue("profile"),
		Delimiter: r.FormValue("delimiter"),
		Encoding:  r.FormValue("encoding"),
		Key:       splitList(r.FormValue("key")),
	}
	var err error
	if req.HasColumns, err = parseBool(r.FormValue("has_columns"), "has_columns"); err != nil {
		return req, err
	}
	if req.InferTypes, err = parseBool(r.FormValue("infer_types"), "infer_types"); err != nil {
		return req, err
	}
	if v := r.FormValue("workers"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, badRequest{err: fmt.Errorf("invalid workers: %q", v)}
		}
		req.Workers = n
	}
	return req, nil
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.List())
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	t, info, err := s.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	offset := parseIntParam(r, "offset", 0)
	limit := parseIntParam(r, "limit", 0)

	rows := t.Rows()
	if offset > len(rows) {
		offset = len(rows)
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	resp := TableResponse{Table: info, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = table.FormatValue(v)
		}
		resp.Rows[i] = cells
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteTable(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownloadCSV streams a table as delimited text. Query parameters:
// profile, delimiter, encoding, has_columns, exclude (comma-separated).
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, info, err := s.service.Get(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	req := core.SaveRequest{
		Profile:   q.Get("profile"),
		Delimiter: q.Get("delimiter"),
		Encoding:  q.Get("encoding"),
		Exclude:   splitList(q.Get("exclude")),
	}
	if req.HasColumns, err = parseBool(q.Get("has_columns"), "has_columns"); err != nil {
		s.respondError(w, r, err)
		return
	}

	name := strings.TrimSuffix(info.Name, ".csv") + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))

	if _, err := s.service.Export(r.Context(), id, req, w); err != nil {
		// Options are validated before the first byte is written.
		w.Header().Del("Content-Disposition")
		s.respondError(w, r, err)
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Preview(chi.URLParam(r, "id"), parseIntParam(r, "limit", core.DefaultPreviewRows))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, p)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.PreviewPage(p).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	info, err := s.service.Merge(r.Context(), req.IDs, req.Keys)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleExportPostgres(w http.ResponseWriter, r *http.Request) {
	var target export.Target
	if err := decodeJSON(r, &target); err != nil {
		s.respondError(w, r, err)
		return
	}
	n, err := s.service.ExportPostgres(r.Context(), chi.URLParam(r, "id"), target)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Target: target.Table, Rows: n})
}

// parseIntParam parses a non-negative integer query parameter with a
// default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseBool returns nil for an empty value.
func parseBool(v, name string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, badRequest{err: fmt.Errorf("invalid %s: %q", name, v)}
	}
	return &b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
