package main

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/askbox/games"
	"github.com/Seednode/askbox/store"
)

const (
	maxRoomNameLength = 60
	qrSize            = 320 // mobile-friendly size
)

// RoomView is the response for a single room. Roster and asker are only
// present once someone has connected to the room since startup.
type RoomView struct {
	Code   string              `json:"code"`
	Name   string              `json:"name"`
	Role   games.Role          `json:"role"`
	Live   bool                `json:"live"`
	Roster []games.RosterEntry `json:"roster,omitempty"`
	Asker  *games.AskerView    `json:"asker,omitempty"`
}

func roomName(name string, id Identity) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return id.Name + "'s room"
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return string([]rune(name)[:maxRoomNameLength])
	}
	return name
}

func serveCreateRoom(cfg *Config, st *store.Store) httprouter.Handle {
	return requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id Identity) {
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(cfg, w, http.StatusBadRequest, "malformed request body")
			return
		}

		room, err := st.CreateRoom(r.Context(), id.ID, id.Name, roomName(body.Name, id))
		if err != nil {
			logf(cfg, "ERROR: Creating room for %s: %v", id.ID, err)
			writeError(cfg, w, http.StatusInternalServerError, "unable to create room")
			return
		}

		logf(cfg, "ROOMS: Created room %s for %s", room.Code, id.ID)

		writeJSON(cfg, w, http.StatusCreated, room)
	})
}

func serveListRooms(cfg *Config, st *store.Store) httprouter.Handle {
	return requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params, id Identity) {
		rooms, err := st.RoomsFor(r.Context(), id.ID)
		if err != nil {
			logf(cfg, "ERROR: Listing rooms for %s: %v", id.ID, err)
			writeError(cfg, w, http.StatusInternalServerError, "unable to list rooms")
			return
		}

		writeJSON(cfg, w, http.StatusOK, rooms)
	})
}

func serveJoinRoom(cfg *Config, st *store.Store) httprouter.Handle {
	return requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		code := games.NormalizeCode(ps.ByName("code"))

		member, err := st.AddMember(r.Context(), code, id.ID, id.Name)
		switch {
		case errors.Is(err, store.ErrRoomNotFound):
			writeError(cfg, w, http.StatusNotFound, "room not found")
			return
		case err != nil:
			logf(cfg, "ERROR: Adding %s to %s: %v", id.ID, code, err)
			writeError(cfg, w, http.StatusInternalServerError, "unable to join room")
			return
		}

		logf(cfg, "ROOMS: %s is a member of %s as %s", id.ID, code, member.Role)

		writeJSON(cfg, w, http.StatusOK, member)
	})
}

func serveRoom(cfg *Config, st *store.Store, gw *games.Gateway) httprouter.Handle {
	return requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		code := games.NormalizeCode(ps.ByName("code"))

		m, err := st.CheckMembership(r.Context(), id.ID, code)
		if err != nil {
			logf(cfg, "ERROR: Checking %s in %s: %v", id.ID, code, err)
			writeError(cfg, w, http.StatusInternalServerError, "unable to load room")
			return
		}
		if !m.IsMember {
			writeError(cfg, w, http.StatusForbidden, "not a member of this room")
			return
		}

		view := RoomView{Code: code, Name: m.RoomName, Role: m.Role}

		if room, ok := gw.Rooms().Lookup(code); ok {
			view.Live = true
			view.Roster = room.Roster()
			view.Asker = room.Asker()
		}

		writeJSON(cfg, w, http.StatusOK, view)
	})
}

// serveQR generates a PNG QR code for the room URL, for sharing at the table.
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := games.NormalizeCode(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/rooms/" + code

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func registerRooms(cfg *Config, st *store.Store, gw *games.Gateway, mux *httprouter.Router) {
	mux.POST(cfg.prefix+"/api/rooms", serveCreateRoom(cfg, st))
	mux.GET(cfg.prefix+"/api/rooms", serveListRooms(cfg, st))
	mux.GET(cfg.prefix+"/api/rooms/:code", serveRoom(cfg, st, gw))
	mux.POST(cfg.prefix+"/api/rooms/:code/join", serveJoinRoom(cfg, st))

	mux.GET(cfg.prefix+"/rooms/:code", serveRoomPage(cfg))
	mux.GET(cfg.prefix+"/rooms/:code/ws", serveSocket(cfg, gw))
	mux.GET(cfg.prefix+"/rooms/:code/qr", serveQR(cfg))
}
