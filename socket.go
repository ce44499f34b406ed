/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/time/rate"

	"github.com/Seednode/askbox/games"
)

const (
	sendBuffer     = 32
	maxMessageSize = 4 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveSocket attaches the caller to the room named in the path. Every
// message after that is an action in that room.
func serveSocket(cfg *Config, gw *games.Gateway) httprouter.Handle {
	return requireIdentity(cfg, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, id Identity) {
		code := games.NormalizeCode(ps.ByName("code"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SOCKET: Upgrade for %s failed: %v", realIP(r), err)
			return
		}

		client := games.NewClient(id.ID, id.Name, sendBuffer)

		go writePump(conn, client)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res := gw.Join(ctx, client, code)
		cancel()

		if !res.Accepted {
			logf(cfg, "SOCKET: %s refused from %s: %s", id.ID, code, res)
			// writePump flushes the rejection, then closes the connection
			client.Close()
			return
		}

		logf(cfg, "SOCKET: %s connected to %s from %s", id.ID, code, realIP(r))

		readPump(cfg, conn, gw, client)
	})
}

func readPump(cfg *Config, conn *websocket.Conn, gw *games.Gateway, c *games.Client) {
	defer func() {
		gw.Leave(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.messageRate), cfg.messageBurst)

	for {
		var msg games.ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		if !limiter.Allow() {
			logf(cfg, "SOCKET: Dropped %s from %s, rate limited", msg.Type, c.Identity())
			continue
		}

		gw.Dispatch(context.Background(), c, msg)
	}
}

func writePump(conn *websocket.Conn, c *games.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
