package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/push-pool-client/poolClient/errors"
	"github.com/pushchain/push-pool-client/poolClient/ledger"
)

func newTestServer(t *testing.T) (*Server, *MockPoolClient) {
	t.Helper()
	client := NewMockPoolClient(t)
	return NewServer(client, zerolog.New(zerolog.NewTestWriter(t)), 0), client
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	server := &Server{
		logger: logger,
	}

	t.Run("Health check returns OK", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		server.handleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "OK", w.Body.String())
	})
}

func TestHandleSlots(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/slots", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp struct {
		Data []ledger.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "getOperators", resp.Data[0].SlotName)

	w = serve(s, http.MethodGet, "/api/v1/slots/getOperators", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"as_of_height":6`)

	w = serve(s, http.MethodGet, "/api/v1/slots/getValidators", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleEvents(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/events/PubKeyDeposited", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp EventsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, uint64(6), resp.MaxHeight)
	assert.Equal(t, uint64(8), resp.Head)
	assert.Equal(t, uint(1), resp.Events[1].SequenceInBlock)

	w = serve(s, http.MethodGet, "/api/v1/events/PubKeyDeposited?from_height=6", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	w = serve(s, http.MethodGet, "/api/v1/events/PubKeyDeposited?from_height=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(s, http.MethodGet, "/api/v1/events/Unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSubmitCommand(t *testing.T) {
	s, client := newTestServer(t)

	w := serve(s, http.MethodPost, "/api/v1/commands", `{"target_slot":"operators","parameters":["[1,2]"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ref-2", resp.Ref)
	assert.Equal(t, ledger.OutcomeSubmitted, resp.Outcome.Status)
	assert.Equal(t, "0xdef", resp.Outcome.RequestID)
	require.Len(t, client.submitted, 1)
	assert.Equal(t, []any{"[1,2]"}, client.submitted[0].Parameters)

	w = serve(s, http.MethodPost, "/api/v1/commands", `{"target_slot":"operators","parameters":[[18446744073709551617]]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, client.submitted, 2)
	assert.Equal(t, []any{[]any{json.Number("18446744073709551617")}}, client.submitted[1].Parameters)

	testCases := []struct {
		name string
		body string
	}{
		{"not json", `not-json`},
		{"unknown field", `{"target_slot":"operators","method":"x"}`},
		{"missing target", `{"parameters":["1"]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(s, http.MethodPost, "/api/v1/commands", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
	assert.Len(t, client.submitted, 2)

	client.submitErr = errors.NewSubmissionError("", "no signing identity configured", nil)
	w = serve(s, http.MethodPost, "/api/v1/commands", `{"target_slot":"operators","parameters":["[1]"]}`)
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ledger.OutcomeFailed, resp.Outcome.Status)
	assert.Contains(t, resp.Outcome.Reason, "no signing identity configured")
}

func TestHandleCommandStatus(t *testing.T) {
	s, _ := newTestServer(t)

	w := serve(s, http.MethodGet, "/api/v1/commands/ref-1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "updateOperators", resp.Method)
	assert.Equal(t, ledger.OutcomeConfirmed, resp.Outcome.Status)
	assert.Equal(t, uint64(7), resp.Outcome.BlockHeight)
	assert.NotNil(t, resp.CreatedAt)

	w = serve(s, http.MethodGet, "/api/v1/commands/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(s, http.MethodGet, "/api/v1/commands", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "updateOperators")
}
