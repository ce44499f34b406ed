/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

const (
	sessionCookieName = "askbox_session"
	sessionIssuer     = "askbox"
	sessionLifetime   = 30 * 24 * time.Hour
	maxNameLength     = 40
	maxBodySize       = 4 << 10
)

var (
	errNoSession   = errors.New("no session")
	errInvalidName = errors.New("name must be between 1 and 40 characters")
)

// Identity is the verified player identity carried by the session cookie.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type sessionClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func randomSecret() (string, error) {
	buf := make([]byte, minSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func signIdentity(cfg *Config, id Identity, now time.Time) (string, error) {
	claims := sessionClaims{
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionLifetime)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.sessionSecret))
}

func parseIdentity(cfg *Config, token string) (Identity, error) {
	claims := &sessionClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.sessionSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, err
	}

	if claims.Subject == "" {
		return Identity{}, errNoSession
	}

	return Identity{ID: claims.Subject, Name: claims.Name}, nil
}

func identityFromRequest(cfg *Config, r *http.Request) (Identity, error) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return Identity{}, errNoSession
	}

	return parseIdentity(cfg, c.Value)
}

func setSessionCookie(cfg *Config, w http.ResponseWriter, id Identity) error {
	now := time.Now()

	token, err := signIdentity(cfg, id, now)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     cfg.prefix + "/",
		Expires:  now.Add(sessionLifetime),
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return "", errInvalidName
	}
	return name, nil
}

// decodeBody reads a small JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// serveCreateSession names the caller, keeping their identity if they
// already have one.
func serveCreateSession(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(cfg, w, http.StatusBadRequest, "malformed request body")
			return
		}

		name, err := cleanName(body.Name)
		if err != nil {
			writeError(cfg, w, http.StatusBadRequest, err.Error())
			return
		}

		id, err := identityFromRequest(cfg, r)
		if err != nil {
			id = Identity{ID: uuid.NewString()}
			logf(cfg, "ROOMS: New identity %s for %s", id.ID, realIP(r))
		}
		id.Name = name

		if err := setSessionCookie(cfg, w, id); err != nil {
			writeError(cfg, w, http.StatusInternalServerError, "unable to create session")
			return
		}

		writeJSON(cfg, w, http.StatusOK, id)
	}
}

func serveSession(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, err := identityFromRequest(cfg, r)
		if err != nil {
			writeError(cfg, w, http.StatusUnauthorized, "no session")
			return
		}

		writeJSON(cfg, w, http.StatusOK, id)
	}
}

// requireIdentity rejects requests without a valid session cookie.
func requireIdentity(cfg *Config, next func(http.ResponseWriter, *http.Request, httprouter.Params, Identity)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := identityFromRequest(cfg, r)
		if err != nil {
			writeError(cfg, w, http.StatusUnauthorized, "sign in with POST "+cfg.prefix+"/api/session first")
			return
		}

		next(w, r, ps, id)
	}
}

func registerSession(cfg *Config, mux *httprouter.Router) {
	mux.POST(cfg.prefix+"/api/session", serveCreateSession(cfg))
	mux.GET(cfg.prefix+"/api/session", serveSession(cfg))
}
