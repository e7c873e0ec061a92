package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/mapcoord/internal/coord"
	"github.com/annel0/mapcoord/internal/destination"
	"github.com/annel0/mapcoord/internal/journal"
	"github.com/annel0/mapcoord/internal/metrics"
	"github.com/annel0/mapcoord/internal/problems"
	"github.com/annel0/mapcoord/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, strict bool) *RestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	j, err := journal.New(nil, nil, journal.Config{})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	codec := metrics.NewCodec(metrics.NewCodecMetrics(reg))
	list := problems.NewList(nil, nil)
	svc := destination.NewService(storage.NewMemoryDestinationRepo(),
		destination.Config{Strict: strict},
		destination.Deps{Journal: j, Problems: list, Codec: codec})

	return NewRestServer(Config{Service: svc, Codec: codec, Problems: list, Registry: reg})
}

func do(t *testing.T, rs *RestServer, method, path, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	rs.Handler().ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestEncodeDecode(t *testing.T) {
	rs := newTestServer(t, false)

	t.Run("relative zero", func(t *testing.T) {
		w, resp := do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"relative","x":0,"y":0,"z":0}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out EncodeResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Equal(t, uint32(0x80020008), out.Packed)
		assert.Equal(t, "0x80020008", out.Hex)
		assert.False(t, out.Wrapped)
	})

	t.Run("absolute wraps", func(t *testing.T) {
		w, resp := do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"abs","x":40960,"y":24576,"z":0}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out EncodeResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Equal(t, uint32(0), out.Packed)
		assert.Equal(t, coord.New(24576, 24576, 0), out.Position)
		assert.True(t, out.Wrapped)
	})

	t.Run("strict per request", func(t *testing.T) {
		w, resp := do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"absolute","x":40960,"y":24576,"z":0,"strict":true}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.False(t, resp.Success)
	})

	t.Run("decode hex", func(t *testing.T) {
		w, resp := do(t, rs, http.MethodPost, "/api/coord/decode", `{"mode":"absolute","hex":"0xFFFFFFFF"}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out EncodeResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Equal(t, coord.New(40959, 40959, 15), out.Position)
	})

	t.Run("decode packed", func(t *testing.T) {
		w, resp := do(t, rs, http.MethodPost, "/api/coord/decode", `{"mode":"relative","packed":2147614728}`)
		require.Equal(t, http.StatusOK, w.Code)
		var out EncodeResponse
		require.NoError(t, json.Unmarshal(resp.Data, &out))
		assert.Equal(t, coord.New(0, 0, 0), out.Position)
	})

	t.Run("bad mode", func(t *testing.T) {
		w, _ := do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"polar","x":1}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("decode without word", func(t *testing.T) {
		w, _ := do(t, rs, http.MethodPost, "/api/coord/decode", `{"mode":"relative"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDomainAndParse(t *testing.T) {
	rs := newTestServer(t, false)

	w, resp := do(t, rs, http.MethodGet, "/api/coord/domain/relative", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d coord.Domain
	require.NoError(t, json.Unmarshal(resp.Data, &d))
	assert.Equal(t, coord.New(-8192, -8192, -8), d.Min)
	assert.Equal(t, coord.New(8191, 8191, 7), d.Max)

	w, resp = do(t, rs, http.MethodPost, "/api/coord/parse", `{"text":"(30000, 31000, 2)"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var pos coord.Position
	require.NoError(t, json.Unmarshal(resp.Data, &pos))
	assert.Equal(t, coord.New(30000, 31000, 2), pos)

	w, _ = do(t, rs, http.MethodPost, "/api/coord/parse", `{"text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSectorCenter(t *testing.T) {
	rs := newTestServer(t, false)

	w, resp := do(t, rs, http.MethodGet, "/api/coord/sector/1000/999/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out EncodeResponse
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	assert.Equal(t, coord.New(32016, 31984, 7), out.Position)
	assert.Equal(t, uint32(coord.PackAbsolute(out.Position)), out.Packed)
	assert.False(t, out.Wrapped)

	w, _ = do(t, rs, http.MethodGet, "/api/coord/sector/a/1/1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDestinationLifecycle(t *testing.T) {
	rs := newTestServer(t, false)

	w, _ := do(t, rs, http.MethodGet, "/api/destinations/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, rs, http.MethodPut, "/api/destinations/5", `{"x":30000,"y":30000,"z":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, rs, http.MethodPost, "/api/destinations/5/move", `{"x":10,"y":-10,"z":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	var row DestinationRow
	require.NoError(t, json.Unmarshal(resp.Data, &row))
	assert.Equal(t, coord.New(30010, 29990, 3), row.Position)
	assert.Equal(t, coord.PackAbsolute(row.Position).String(), row.Packed)

	w, resp = do(t, rs, http.MethodPost, "/api/destinations/5/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &row))
	assert.Equal(t, coord.New(30000, 30000, 1), row.Position)

	w, _ = do(t, rs, http.MethodPost, "/api/destinations/5/undo", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, rs, http.MethodPost, "/api/destinations/shift", `{"x":1,"y":1,"z":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = do(t, rs, http.MethodGet, "/api/destinations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []DestinationRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, coord.New(30001, 30001, 1), rows[0].Position)

	w, _ = do(t, rs, http.MethodDelete, "/api/destinations/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = do(t, rs, http.MethodDelete, "/api/destinations/5", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, rs, http.MethodGet, "/api/destinations/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, rs, http.MethodGet, "/api/destinations/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStrictServerRejects(t *testing.T) {
	rs := newTestServer(t, true)

	w, _ := do(t, rs, http.MethodPut, "/api/destinations/1", `{"x":0,"y":0,"z":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"relative","x":8192,"y":0,"z":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestProblemsEndpoint(t *testing.T) {
	rs := newTestServer(t, false)
	rs.problems.Insert(problems.SeverityWarning, problems.FromXYZ(30000, 30001, 2), "Unreachable teleport")

	w, resp := do(t, rs, http.MethodGet, "/api/problems", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rows []ProblemRow
	require.NoError(t, json.Unmarshal(resp.Data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Warning", rows[0].Severity)
	assert.Equal(t, "(30000,30001,2)", rows[0].Source)
	assert.Equal(t, "Unreachable teleport", rows[0].Message)
}

func TestHealthAndMetrics(t *testing.T) {
	rs := newTestServer(t, false)

	w, _ := do(t, rs, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-Id"))

	do(t, rs, http.MethodPost, "/api/coord/encode", `{"mode":"relative","x":1,"y":1,"z":1}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	rs.Handler().ServeHTTP(mw, req)
	require.Equal(t, http.StatusOK, mw.Code)
	body := mw.Body.String()
	assert.Contains(t, body, `mapcoord_codec_pack_total{mode="relative"} 1`)
	assert.Contains(t, body, "mapcoord_http_request_duration_seconds")
}
