package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Answer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Find failed logins", req["question"])
		assert.Equal(t, "security", req["domain"])

		json.NewEncoder(w).Encode(map[string]any{
			"sql":            "SELECT * FROM login_events",
			"results":        []map[string]any{{"user_id": "u-1"}},
			"insight":        "One account affected.",
			"recommendation": "Lock the account.",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	answer, err := client.Answer(context.Background(), "Find failed logins", "security")

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM login_events", answer.SQL)
	require.Len(t, answer.Results, 1)
	assert.Equal(t, "u-1", answer.Results[0]["user_id"])
	assert.Equal(t, "One account affected.", answer.Insight)
}

func TestClient_Answer_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	answer, err := client.Answer(context.Background(), "q", "security")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Nil(t, answer)
}

func TestClient_Answer_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)

	answer, err := client.Answer(context.Background(), "q", "security")

	assert.Error(t, err)
	assert.Nil(t, answer)
}

func TestClient_Answer_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	_, err := client.Answer(context.Background(), "q", "security")

	assert.Error(t, err)
}
