package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemyard/gemyard/pkg/auth"
	"github.com/gemyard/gemyard/pkg/gems"
	"github.com/gemyard/gemyard/pkg/middleware"
)

const (
	aliceKey = "alice-key"
	bobKey   = "bob-key"
)

type handlerFixture struct {
	router  *mux.Router
	store   *MemoryStore
	catalog *gems.MemoryStore
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	catalog := gems.NewMemoryStore()
	publishGem(t, catalog, "rails", "7.1.0")

	keyring := auth.NewStaticKeyring()
	keyring.Add(aliceKey, &auth.User{ID: 1, Handle: "alice"})
	keyring.Add(bobKey, &auth.User{ID: 2, Handle: "bob"})

	store := NewMemoryStore()
	logger := testLogger()
	handler := NewHandler(
		NewRegistry(store, logger, nil),
		NewResolver(catalog),
		NewDeliverer(catalog, logger, nil, DeliveryConfig{}),
		logger,
	)

	router := mux.NewRouter()
	authed := router.PathPrefix("/api/v1").Subrouter()
	authed.Use(middleware.NewAPIKeyMiddleware(keyring).Handler)
	handler.Register(authed)

	return &handlerFixture{router: router, store: store, catalog: catalog}
}

func (f *handlerFixture) do(t *testing.T, method, path, key string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()

	// Form bodies are only parsed for POST/PUT/PATCH; DELETE carries its
	// params in the query string.
	var body io.Reader
	if params != nil && method == http.MethodDelete {
		path += "?" + params.Encode()
	} else if params != nil {
		body = strings.NewReader(params.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if key != "" {
		req.Header.Set("Authorization", key)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func hookForm(gemName, hookURL string) url.Values {
	return url.Values{"gem_name": {gemName}, "url": {hookURL}}
}

func TestHandler_Create(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "Successfully created webhook for rails to https://example.com/hook", resp.Body.String())
}

func TestHandler_Create_Global(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("*", "https://example.com/hook"))
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, "Successfully created webhook for all gems to https://example.com/hook", resp.Body.String())
}

func TestHandler_Create_UnknownGem(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("nokogiri", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "This gem could not be found.", resp.Body.String())
}

func TestHandler_Create_Duplicate(t *testing.T) {
	f := newHandlerFixture(t)

	first := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://example.com/hook"))
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "https://example.com/hook has already been registered for rails", second.Body.String())
}

func TestHandler_Create_InvalidURL(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "not-a-url"))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandler_Create_Unauthenticated(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks", "", hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Access Denied. Please sign up for an account.", resp.Body.String())
}

func TestHandler_Index_OnlyOwnHooks(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://alice.example.com")).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("*", "https://alice.example.com")).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", bobKey, hookForm("rails", "https://bob.example.com")).Code)

	resp := f.do(t, http.MethodGet, "/api/v1/web_hooks", aliceKey, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var hooks []hookResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &hooks))
	require.Len(t, hooks, 2)
	assert.Equal(t, "rails", hooks[0].GemName)
	assert.Equal(t, "all gems", hooks[1].GemName)
	assert.Equal(t, "https://alice.example.com", hooks[0].URL)
}

func TestHandler_Index_Empty(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodGet, "/api/v1/web_hooks", aliceKey, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, "[]", resp.Body.String())
}

func TestHandler_Remove(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://example.com/hook")).Code)

	resp := f.do(t, http.MethodDelete, "/api/v1/web_hooks/remove", aliceKey, hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Successfully removed webhook for rails to https://example.com/hook", resp.Body.String())

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestHandler_Remove_NotRegistered(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/v1/web_hooks/remove", aliceKey, hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "No such webhook exists under your account.", resp.Body.String())
}

func TestHandler_Remove_OtherUsersHook(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("rails", "https://example.com/hook")).Code)

	resp := f.do(t, http.MethodDelete, "/api/v1/web_hooks/remove", bobKey, hookForm("rails", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "No such webhook exists under your account.", resp.Body.String())

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHandler_Remove_OtherUsersGlobalHook(t *testing.T) {
	f := newHandlerFixture(t)

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/web_hooks", aliceKey, hookForm("*", "https://example.com/hook")).Code)

	resp := f.do(t, http.MethodDelete, "/api/v1/web_hooks/remove", bobKey, hookForm("*", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "No such webhook exists under your account.", resp.Body.String())

	// Alice's global hook survives and is still retrievable.
	hook, err := f.store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, hook.Target.IsGlobal())
	assert.Equal(t, int64(1), hook.UserID)
}

func TestHandler_Remove_UnknownGem(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodDelete, "/api/v1/web_hooks/remove", aliceKey, hookForm("nokogiri", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "This gem could not be found.", resp.Body.String())
}

func TestHandler_Fire(t *testing.T) {
	f := newHandlerFixture(t)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks/fire", aliceKey, hookForm("rails", endpoint.URL))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Successfully deployed webhook for rails to "+endpoint.URL, resp.Body.String())
}

func TestHandler_Fire_GlobalDisplaysAllGems(t *testing.T) {
	f := newHandlerFixture(t)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks/fire", aliceKey, hookForm("*", endpoint.URL))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Successfully deployed webhook for all gems to "+endpoint.URL, resp.Body.String())
}

func TestHandler_Fire_EndpointFailure(t *testing.T) {
	f := newHandlerFixture(t)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer endpoint.Close()

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks/fire", aliceKey, hookForm("rails", endpoint.URL))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "There was a problem deploying webhook for rails to "+endpoint.URL, resp.Body.String())
}

func TestHandler_Fire_DoesNotRequireRegisteredHook(t *testing.T) {
	f := newHandlerFixture(t)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks/fire", aliceKey, hookForm("rails", endpoint.URL))
	assert.Equal(t, http.StatusOK, resp.Code)

	count, err := f.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestHandler_Fire_UnknownGem(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/web_hooks/fire", aliceKey, hookForm("nokogiri", "https://example.com/hook"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "This gem could not be found.", resp.Body.String())
}

func TestHandler_MissingParams(t *testing.T) {
	f := newHandlerFixture(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/web_hooks"},
		{http.MethodDelete, "/api/v1/web_hooks/remove"},
		{http.MethodPost, "/api/v1/web_hooks/fire"},
	} {
		resp := f.do(t, tc.method, tc.path, aliceKey, url.Values{"url": {"https://example.com/hook"}})
		assert.Equal(t, http.StatusBadRequest, resp.Code, tc.path)
	}
}
