package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/movie-diary/internal/platform/auth"
	"github.com/example/movie-diary/internal/platform/signing"
	"github.com/example/movie-diary/services/chat/internal/chat"
	"github.com/example/movie-diary/services/chat/internal/hub"
	"github.com/example/movie-diary/services/chat/internal/store"
)

// withTestUser stands in for auth.RequireUser: the X-Test-User header becomes the user id.
func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get("X-Test-User"); uid != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(t *testing.T, nc *nats.Conn) (chi.Router, *signing.Signer) {
	t.Helper()
	svc := chat.New(store.NewInMemoryStore(), nc, nil, nil)
	signer := signing.New("test-secret")
	h := hub.New(nc, svc, hub.Options{})

	r := chi.NewRouter()
	r.Get("/v1/chat/ws", Socket(signer, h))
	r.Group(func(r chi.Router) {
		r.Use(withTestUser)
		r.Post("/v1/chat/tickets", IssueTicket(signer))
		r.Post("/v1/chat/messages", SendMessage(svc, zap.NewNop()))
		r.Get("/v1/chat/messages/{user_id}", History(svc))
	})
	return r, signer
}

func do(r http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestSendAndHistory(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/v1/chat/messages", "ana", map[string]any{"receiver_id": "bob", "body": "  hola  "})
	require.Equal(t, http.StatusCreated, rec.Code)
	var m store.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, "hola", m.Body)
	assert.NotEmpty(t, m.ID)

	rec = do(r, http.MethodPost, "/v1/chat/messages", "bob", map[string]any{"receiver_id": "ana", "body": "que tal"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(r, http.MethodGet, "/v1/chat/messages/ana", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Items, 2)
	assert.Equal(t, "hola", hist.Items[0].Body)
	assert.Equal(t, "que tal", hist.Items[1].Body)

	rec = do(r, http.MethodGet, "/v1/chat/messages/carla", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestSendRejections(t *testing.T) {
	r, _ := newTestRouter(t, nil)

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"self", map[string]any{"receiver_id": "ana", "body": "me"}, "SELF_MESSAGE"},
		{"blank", map[string]any{"receiver_id": "bob", "body": "   "}, "EMPTY_MESSAGE"},
		{"subject token", map[string]any{"receiver_id": "bob.*", "body": "x"}, "INVALID_USER_ID"},
		{"missing body", map[string]any{"receiver_id": "bob"}, "VALIDATION_FAILED"},
		{"too long", map[string]any{"receiver_id": "bob", "body": strings.Repeat("a", 2001)}, "VALIDATION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, "/v1/chat/messages", "ana", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec := do(r, http.MethodPost, "/v1/chat/messages", "", map[string]any{"receiver_id": "bob", "body": "x"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTicketScopedToChat(t *testing.T) {
	r, signer := newTestRouter(t, nil)

	rec := do(r, http.MethodPost, "/v1/chat/tickets", "ana", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp ticketResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 60, resp.ExpiresIn)

	uid, err := signer.Check(resp.Ticket, TicketScope)
	require.NoError(t, err)
	assert.Equal(t, "ana", uid)

	_, err = signer.Check(resp.Ticket, "download")
	assert.Error(t, err)
}

func TestSocketRequiresTicket(t *testing.T) {
	r, signer := newTestRouter(t, nil)

	rec := do(r, http.MethodGet, "/v1/chat/ws", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_TICKET", errorCode(t, rec))

	other := signer.Issue("ana", "download", time.Minute)
	rec = do(r, http.MethodGet, "/v1/chat/ws?ticket="+url.QueryEscape(other), "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSocketReceivesMessages(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second))
	t.Cleanup(ns.Shutdown)
	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	r, signer := newTestRouter(t, nc)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ticket := signer.Issue("me", TicketScope, time.Minute)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws?with=ana&ticket=" + url.QueryEscape(ticket)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	type frame struct {
		Type    string         `json:"type"`
		With    string         `json:"with"`
		Message *store.Message `json:"message"`
	}
	read := func() frame {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}

	opened := read()
	assert.Equal(t, "opened", opened.Type)
	assert.Equal(t, "ana", opened.With)

	rec := do(r, http.MethodPost, "/v1/chat/messages", "ana", map[string]any{"receiver_id": "me", "body": "hola"})
	require.Equal(t, http.StatusCreated, rec.Code)

	got := read()
	assert.Equal(t, "message", got.Type)
	require.NotNil(t, got.Message)
	assert.Equal(t, "hola", got.Message.Body)
}
