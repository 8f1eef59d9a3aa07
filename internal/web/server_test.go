package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/core"
)

const ordersCSV = "id;customer;amount\n1;ann;10\n2;bob;20\n3;cid;30\n"

func testServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	cfg, err := config.LoadFrom(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})
	require.NoError(t, err)

	reg, err := core.NewRegistry(nil)
	require.NoError(t, err)

	s := NewServer(cfg, core.NewService(*cfg, reg, nil))
	t.Cleanup(func() { s.Shutdown(context.Background()) }) //nolint:errcheck
	return s
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name, data string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tables", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func upload(t *testing.T, s *Server, name, data string, fields map[string]string) core.LoadSummary {
	t.Helper()
	rec := do(t, s, uploadRequest(t, name, data, fields))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sum core.LoadSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	return sum
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealth(t *testing.T) {
	s := testServer(t, nil)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["tables"])
}

func TestUploadAndGet(t *testing.T) {
	s := testServer(t, nil)
	sum := upload(t, s, "orders.csv", ordersCSV, map[string]string{"key": "id", "infer_types": "true"})

	assert.Equal(t, "orders.csv", sum.Table.Name)
	assert.Equal(t, 3, sum.Table.Rows)
	assert.Equal(t, []string{"id"}, sum.Table.Key)
	assert.Equal(t, 4, sum.TotalRows)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"?offset=1&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, sum.Table.ID, resp.Table.ID)
	assert.Equal(t, [][]string{{"2", "bob", "20"}}, resp.Rows)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestUploadErrors(t *testing.T) {
	s := testServer(t, map[string]string{"CSV_MAX_FILE_SIZE": "64"})

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		wantCode string
	}{
		{"no file", uploadRequest(t, "", "", nil), http.StatusBadRequest, "FILE003"},
		{"empty file", uploadRequest(t, "empty.csv", "", nil), http.StatusBadRequest, "CSV001"},
		{"bad encoding", uploadRequest(t, "a.csv", "a\n1\n", map[string]string{"encoding": "ebcdic"}), http.StatusBadRequest, "CSV003"},
		{"bad bool", uploadRequest(t, "a.csv", "a\n1\n", map[string]string{"has_columns": "maybe"}), http.StatusBadRequest, ""},
		{"too large", uploadRequest(t, "big.csv", strings.Repeat("x;y\n", 40), nil), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			}
		})
	}
}

func TestTableNotFound(t *testing.T) {
	s := testServer(t, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "TBL001", decodeError(t, rec).Code)

	// The preview page answers with an HTML alert unless JSON is asked for.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/nope/preview", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.Contains(t, rec.Body.String(), "TBL001")
}

func TestDeleteTable(t *testing.T) {
	s := testServer(t, nil)
	sum := upload(t, s, "orders.csv", ordersCSV, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodDelete, "/api/tables/"+sum.Table.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/tables/"+sum.Table.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadCSV(t *testing.T) {
	s := testServer(t, nil)
	sum := upload(t, s, "orders.csv", ordersCSV, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"/csv?delimiter=,&exclude=customer", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=orders.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,amount\n1,10\n2,20\n3,30\n", normalizeNewlines(rec.Body.String()))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"/csv?has_columns=false&delimiter=%3B", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1;ann;10\n2;bob;20\n3;cid;30\n", normalizeNewlines(rec.Body.String()))

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"/csv?encoding=ebcdic", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestPreview(t *testing.T) {
	s := testServer(t, nil)
	sum := upload(t, s, "orders.csv", ordersCSV, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"/preview?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<td>bob</td>")
	assert.NotContains(t, body, "<td>cid</td>")
	assert.Contains(t, body, "showing the first 2 of 3 rows")

	req := httptest.NewRequest(http.MethodGet, "/api/tables/"+sum.Table.ID+"/preview", nil)
	req.Header.Set("Accept", "application/json")
	rec = do(t, s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var p core.Preview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, []string{"id", "customer", "amount"}, p.Header)
	assert.Len(t, p.Rows, 3)
	assert.False(t, p.Truncated)
}

func TestMerge(t *testing.T) {
	s := testServer(t, nil)
	a := upload(t, s, "a.csv", "id;v\n1;a\n2;b\n", map[string]string{"key": "id"})
	b := upload(t, s, "b.csv", "id;v;w\n2;B;x\n3;c;y\n", nil)

	body, err := json.Marshal(MergeRequest{IDs: []string{a.Table.ID, b.Table.ID}})
	require.NoError(t, err)
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/merge", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var info core.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "merge", info.Source)
	assert.Equal(t, 3, info.Rows)
	assert.Len(t, info.Columns, 3)

	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader(`{"ids":[],"extra":1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodPost, "/api/merge", strings.NewReader(`{"ids":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportPostgresNotConfigured(t *testing.T) {
	s := testServer(t, nil)
	sum := upload(t, s, "orders.csv", ordersCSV, nil)

	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/tables/"+sum.Table.ID+"/export/postgres",
		strings.NewReader(`{"table":"public.orders"}`)))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	s := testServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "k1,k2"})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/tables", nil)
	req.Header.Set("X-API-Key", "k2")
	rec = do(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := testServer(t, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "2"})

	for i := 0; i < 2; i++ {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	// Another client has its own budget.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.9.9.9:4000"
	rec = do(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	s := testServer(t, map[string]string{"RATE_LIMIT_ENABLED": "false"})
	rl := s.newRateLimiter(1, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrTableNotFound, http.StatusNotFound},
		{core.ErrUnknownProfile, http.StatusBadRequest},
		{core.ErrTooManyLoads, http.StatusServiceUnavailable},
		{core.ErrStoreFull, http.StatusServiceUnavailable},
		{badRequest{err: errNoFile}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
