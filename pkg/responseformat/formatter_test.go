package responseformat

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	RouteID string `json:"route_id"`
	Count   int    `json:"count"`
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/routes", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusCreated, payload{RouteID: "R1", Count: 3}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, ContentTypeJSON, rec.Header().Get("Content-Type"))
	var got payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, payload{RouteID: "R1", Count: 3}, got)
}

func TestWriteResponseMsgPackUsesJSONTags(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/routes?format=msgpack", nil)

	require.NoError(t, NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{RouteID: "R1", Count: 3}))

	assert.Equal(t, ContentTypeMsgPack, rec.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "R1", got["route_id"])
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, NewFormatter().WriteError(rec, req, http.StatusBadRequest, "no routes selected", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no routes selected"}`, rec.Body.String())
}
