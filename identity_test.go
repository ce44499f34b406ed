package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParseIdentity(t *testing.T) {
	cfg := testConfig()
	id := Identity{ID: "abc", Name: "Alice"}

	token, err := signIdentity(cfg, id, time.Now())
	require.NoError(t, err)

	got, err := parseIdentity(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseIdentityRejectsForgeries(t *testing.T) {
	cfg := testConfig()
	token, err := signIdentity(cfg, Identity{ID: "abc", Name: "Alice"}, time.Now())
	require.NoError(t, err)

	other := testConfig()
	other.sessionSecret = strings.Repeat("x", minSecretLength)
	_, err = parseIdentity(other, token)
	assert.Error(t, err, "wrong key")

	expired, err := signIdentity(cfg, Identity{ID: "abc"}, time.Now().Add(-2*sessionLifetime))
	require.NoError(t, err)
	_, err = parseIdentity(cfg, expired)
	assert.Error(t, err, "expired")

	_, err = parseIdentity(cfg, "not-a-token")
	assert.Error(t, err)
}

func TestCleanName(t *testing.T) {
	name, err := cleanName("  Bob  ")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	_, err = cleanName("   ")
	assert.ErrorIs(t, err, errInvalidName)

	_, err = cleanName(strings.Repeat("n", maxNameLength+1))
	assert.ErrorIs(t, err, errInvalidName)
}

func TestSessionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/session", "application/json", strings.NewReader(`{"name":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var first Identity
	cookie := postJSON(t, srv.URL+"/api/session", nil, `{"name":"Alice"}`, http.StatusOK, &first)
	require.NotNil(t, cookie)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "Alice", first.Name)

	var renamed Identity
	postJSON(t, srv.URL+"/api/session", cookie, `{"name":"Alicia"}`, http.StatusOK, &renamed)
	assert.Equal(t, first.ID, renamed.ID, "renaming keeps the identity")
	assert.Equal(t, "Alicia", renamed.Name)

	var me Identity
	getJSON(t, srv.URL+"/api/session", cookie, http.StatusOK, &me)
	assert.Equal(t, first.ID, me.ID)
}

func TestRequireIdentity(t *testing.T) {
	cfg := testConfig()

	called := false
	h := requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id Identity) {
		called = true
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil), nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}
