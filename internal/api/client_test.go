package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"novacore.dev/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	client, err := New(srv.URL,
		WithHTTPClient(srv.Client()),
		WithCredentialStore(store),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, store
}

func TestLoginSavesCredential(t *testing.T) {
	var gotBody loginRequest
	var gotClientID string
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/auth/login" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotClientID = r.Header.Get("X-Client-ID")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"token": "tok-123",
			"user": map[string]any{
				"id":           "u1",
				"display_name": "Marie Dubois",
				"role":         "hr-admin",
			},
		})
	}))

	identity, err := client.Login(context.Background(), "marie@acme.test", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if identity.ID != "u1" || identity.Role != session.RoleHRAdmin {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if gotBody.Email != "marie@acme.test" || gotBody.Password != "hunter2" {
		t.Fatalf("unexpected login body: %+v", gotBody)
	}
	if gotClientID == "" {
		t.Fatalf("X-Client-ID header missing")
	}

	cred, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("credential not persisted: ok=%v err=%v", ok, err)
	}
	if cred.Token != "tok-123" || cred.UserID != "u1" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
	if client.Token() != "tok-123" {
		t.Fatalf("Token() = %q", client.Token())
	}
}

func TestLoginFailureCarriesBackendMessage(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "account locked"})
	}))

	_, err := client.Login(context.Background(), "marie@acme.test", "wrong")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.UserMessage() != "account locked" {
		t.Fatalf("UserMessage = %q", apiErr.UserMessage())
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("failed login must not persist a credential")
	}
}

func TestRequestsCarryBearerToken(t *testing.T) {
	var gotAuth string
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(identityPayload{ID: "u1", DisplayName: "Marie", Role: "manager"})
	}))
	if err := store.Save(Credential{Token: "tok-xyz"}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	identity, err := client.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if gotAuth != "Bearer tok-xyz" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if identity.Role != session.RoleManager {
		t.Fatalf("unexpected role %q", identity.Role)
	}
}

func TestCurrentUserRejectsUnknownRole(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(identityPayload{ID: "u1", Role: "superuser"})
	}))
	if _, err := client.CurrentUser(context.Background()); err == nil {
		t.Fatalf("expected unknown role to fail decoding")
	}
}

func TestLogoutClearsCredentialEvenWhenRemoteFails(t *testing.T) {
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if err := store.Save(Credential{Token: "tok"}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}

	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatalf("credential must be cleared regardless of the remote outcome")
	}
	// Second logout with nothing persisted is a no-op.
	if err := client.Logout(context.Background()); err != nil {
		t.Fatalf("repeated Logout: %v", err)
	}
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	_, err := client.GetCompany(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	type call struct{ method, path string }
	var calls []call
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.EscapedPath()})
		switch r.URL.Path {
		case "/v1/notifications":
			if r.Method == http.MethodGet {
				w.Write([]byte(`[{"id":"n1","title":"hello"},{"id":"n2","title":"world","read":true}]`))
				return
			}
		case "/v1/notifications/unread-count":
			w.Write([]byte(`{"count":7}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	ctx := context.Background()

	list, err := client.ListNotifications(ctx)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 2 || list[0].ID != "n1" || !list[1].Read {
		t.Fatalf("unexpected list: %+v", list)
	}

	count, err := client.UnreadCount(ctx)
	if err != nil || count != 7 {
		t.Fatalf("UnreadCount = %d, %v", count, err)
	}
	if err := client.MarkRead(ctx, "n 1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := client.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if err := client.DeleteNotification(ctx, "n2"); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}

	want := []call{
		{http.MethodGet, "/v1/notifications"},
		{http.MethodGet, "/v1/notifications/unread-count"},
		{http.MethodPost, "/v1/notifications/n%201/read"},
		{http.MethodPost, "/v1/notifications/read-all"},
		{http.MethodDelete, "/v1/notifications/n2"},
	}
	if len(calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %+v", len(calls), len(want), calls)
	}
	for i, c := range calls {
		if c != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, c, want[i])
		}
	}
}

func TestIsAuthenticated(t *testing.T) {
	client, store := newTestClient(t, http.NotFoundHandler())

	if client.IsAuthenticated() {
		t.Fatalf("no credential must not authenticate")
	}

	store.Save(Credential{Token: signedToken(t, time.Now().Add(time.Hour))})
	if !client.IsAuthenticated() {
		t.Fatalf("live token must authenticate")
	}

	store.Save(Credential{Token: signedToken(t, time.Now().Add(-time.Hour))})
	if client.IsAuthenticated() {
		t.Fatalf("expired token must not authenticate")
	}
}
