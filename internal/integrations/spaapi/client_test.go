package spaapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spa-chat-widget/internal/domain"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type fakeGetter struct {
	val    string
	err    error
	onCall func()
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	return f.val, f.err
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)

	_, err = NewClient("not a url")
	require.Error(t, err)

	_, err = NewClient("http://localhost:5000", WithTokenParameter(&fakeGetter{}, " "))
	require.Error(t, err)

	c, err := NewClient("http://localhost:5000/")
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5000", c.baseURL)
	require.False(t, c.Authenticated())
}

func TestEndpointURL(t *testing.T) {
	require.Equal(t, "http://x/api/locations", endpointURL("http://x/", locationsPath))
	require.Equal(t, "http://x/base/api/health", endpointURL("http://x/base", healthPath))
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func TestChat_PublicEndpoint(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, publicChatPath, r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"response": "Here are our services:",
			"actions": []map[string]any{{
				"type":     "show_services",
				"services": []map[string]any{{"id": 1, "name": "Massage", "duration": 60, "price": 80}},
			}},
		})
	})

	out, err := c.Chat(context.Background(), ChatRequest{
		Message:   "What services do you offer?",
		SpaID:     "default",
		SessionID: "sess-1",
		ConversationHistory: []domain.HistoryEntry{
			{Content: "Hello", IsUser: true},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Here are our services:", out.Reply())
	require.Len(t, out.Actions, 1)
	require.Equal(t, domain.ActionShowServices, out.Actions[0].Type)
	require.Equal(t, "Massage", out.Actions[0].Services[0].Name)

	require.Equal(t, "What services do you offer?", got.Message)
	require.Equal(t, "default", got.SpaID)
	require.Equal(t, "sess-1", got.SessionID)
	require.Equal(t, []domain.HistoryEntry{{Content: "Hello", IsUser: true}}, got.ConversationHistory)
}

func TestChat_EmptyHistoryIsSentAsArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		require.JSONEq(t, `[]`, string(raw["conversation_history"]))
		writeJSON(t, w, http.StatusOK, map[string]any{"message": "ok"})
	})

	out, err := c.Chat(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "ok", out.Reply())
}

func TestChat_AuthenticatedEndpointUsesCachedToken(t *testing.T) {
	calls := 0
	g := &fakeGetter{val: `{"token":"tok-1"}`, onCall: func() { calls++ }}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, chatbotPath, r.URL.Path)
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{"response": "hi", "session_id": "srv-1"})
	}, WithTokenParameter(g, "/spa/api-token"))

	require.True(t, c.Authenticated())
	for i := 0; i < 3; i++ {
		out, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
		require.NoError(t, err)
		require.Equal(t, "srv-1", out.SessionID)
	}
	require.Equal(t, 1, calls, "token must be fetched once per client")
}

func TestChat_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", status)
		})
		_, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, statusErr.Body, "nope")
	}
}

func TestChat_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":`))
	})
	_, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestChat_RejectsEmptyMessage(t *testing.T) {
	c, err := NewClient("http://localhost:5000")
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), ChatRequest{Message: "  "})
	require.Error(t, err)
}

func TestChatResponse_Reply(t *testing.T) {
	require.Equal(t, "a", ChatResponse{Response: "a", Message: "b"}.Reply())
	require.Equal(t, "b", ChatResponse{Message: "b"}.Reply())
	require.Empty(t, ChatResponse{}.Reply())
}

// ---------------------------------------------------------------------------
// Booking endpoints
// ---------------------------------------------------------------------------

func TestLocations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, locationsPath, r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"locations": []map[string]any{{"id": 7, "name": "Downtown", "city": "Austin", "is_primary": true}},
		})
	})
	locs, err := c.Locations(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Location{{ID: 7, Name: "Downtown", City: "Austin", IsPrimary: true}}, locs)
}

func TestAvailableSlots_ScopesQuery(t *testing.T) {
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, availabilityPath, r.URL.Path)
		require.Equal(t, "2026-10-20T00:00:00Z", r.URL.Query().Get("date"))
		require.Equal(t, "1", r.URL.Query().Get("service_id"))
		require.Equal(t, "7", r.URL.Query().Get("location_id"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"slots": []map[string]any{{"time": "10:00", "duration": 60, "service": "Massage", "service_id": 1, "location_id": 7}},
		})
	})
	slots, err := c.AvailableSlots(context.Background(), date, 1, 7)
	require.NoError(t, err)
	require.Equal(t, []domain.Slot{{Time: "10:00", Duration: 60, Service: "Massage", ServiceID: 1, LocationID: 7}}, slots)
}

func TestCreateAppointment(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, appointmentsPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(t, w, http.StatusCreated, map[string]any{"id": 42})
	})
	err := c.CreateAppointment(context.Background(), AppointmentRequest{
		ServiceID:  1,
		LocationID: 7,
		Datetime:   "2026-10-20T10:00",
		ClientInfo: domain.ClientInfo{Name: "Ada", Email: "ada@example.com", Phone: "555-123-4567"},
	})
	require.NoError(t, err)
	require.Equal(t, float64(1), got["service_id"])
	require.Equal(t, float64(7), got["location_id"])
	require.Equal(t, "2026-10-20T10:00", got["datetime"])
	require.Equal(t, "Ada", got["name"])
	require.Equal(t, "ada@example.com", got["email"])
	require.NotContains(t, got, "notes")
}

func TestCreateAppointment_UnexpectedSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	err := c.CreateAppointment(context.Background(), AppointmentRequest{ServiceID: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 202")
}

func TestStoreConversationAndPing(t *testing.T) {
	var stored conversationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case conversationPath:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&stored))
			w.WriteHeader(http.StatusCreated)
		case healthPath:
			writeJSON(t, w, http.StatusOK, map[string]any{"status": "healthy"})
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, c.StoreConversation(context.Background(), "spa-1", []domain.Message{
		{ID: "1", Content: "Hello", IsUser: true},
		{ID: "2", Content: "Hi there!"},
	}))
	require.Equal(t, "spa-1", stored.SpaID)
	require.Len(t, stored.Messages, 2)
	require.True(t, stored.Messages[0].IsUser)

	require.NoError(t, c.Ping(context.Background()))
}

// ---------------------------------------------------------------------------
// fetchToken
// ---------------------------------------------------------------------------

func TestFetchToken(t *testing.T) {
	tok, err := fetchToken(context.Background(), &fakeGetter{val: `{"token":"abc"}`}, "/spa/api-token")
	require.NoError(t, err)
	require.Equal(t, "abc", tok)

	_, err = fetchToken(context.Background(), &fakeGetter{val: `{"other":"x"}`}, "/spa/api-token")
	require.ErrorContains(t, err, "API token is empty")

	_, err = fetchToken(context.Background(), &fakeGetter{val: `{"broken`}, "/spa/api-token")
	require.ErrorContains(t, err, "unmarshal")

	_, err = fetchToken(context.Background(), &fakeGetter{err: errors.New("ssm unavailable")}, "/spa/api-token")
	require.ErrorContains(t, err, "ssm unavailable")

	_, err = fetchToken(context.Background(), nil, "/spa/api-token")
	require.Error(t, err)
}

func TestTokenFailureSurfacesOnRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("request must not be sent without a token")
	}, WithTokenParameter(&fakeGetter{err: errors.New("denied")}, "/spa/api-token"))

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.ErrorContains(t, err, "denied")
}

type flakyGetter struct {
	errs  []error
	val   string
	calls int
}

func (f *flakyGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.val, nil
}

func TestTokenFetchRecoversAfterFailure(t *testing.T) {
	g := &flakyGetter{errs: []error{errors.New("ssm throttled")}, val: `{"token":"tok"}`}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{"response": "hi"})
	}, WithTokenParameter(g, "/spa/api-token"))

	_, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.ErrorContains(t, err, "ssm throttled")

	for i := 0; i < 2; i++ {
		out, err := c.Chat(context.Background(), ChatRequest{Message: "hello"})
		require.NoError(t, err)
		require.Equal(t, "hi", out.Reply())
	}
	require.Equal(t, 2, g.calls, "a successful token is kept")
}

func TestTokenFetchHonorsEachCallersContext(t *testing.T) {
	g := &flakyGetter{errs: []error{context.Canceled}, val: `{"token":"tok"}`}
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"response": "hi"})
	}, WithTokenParameter(g, "/spa/api-token"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Chat(ctx, ChatRequest{Message: "hello"})
	require.Error(t, err)

	_, err = c.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
}

func TestPing_DoesNotNeedToken(t *testing.T) {
	g := &flakyGetter{errs: []error{errors.New("ssm throttled"), errors.New("ssm throttled")}}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, healthPath, r.URL.Path)
		require.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}, WithTokenParameter(g, "/spa/api-token"))

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Ping(context.Background()))
	require.Zero(t, g.calls)
}
