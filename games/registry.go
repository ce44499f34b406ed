/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry holds one Room per code, so each code is its own isolated session.
type Registry struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	idleTimeout time.Duration
	newID       func() string
}

// NewRegistry creates an empty registry. An idleTimeout of zero keeps
// rooms for the lifetime of the process.
func NewRegistry(idleTimeout time.Duration) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		idleTimeout: idleTimeout,
		newID:       uuid.NewString,
	}
}

func (rg *Registry) GetOrCreate(code string) *Room {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if room, ok := rg.rooms[code]; ok {
		return room
	}

	room := newRoom(code, rg.newID)
	rg.rooms[code] = room
	return room
}

func (rg *Registry) Lookup(code string) (*Room, bool) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	room, ok := rg.rooms[code]
	return room, ok
}

func (rg *Registry) Len() int {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return len(rg.rooms)
}

// Evict drops the room and disconnects its clients. Scores and round
// state for that code are gone afterwards.
func (rg *Registry) Evict(code string) bool {
	rg.mu.Lock()
	room, ok := rg.rooms[code]
	delete(rg.rooms, code)
	rg.mu.Unlock()

	if ok {
		room.closeAll()
	}
	return ok
}

// Reap evicts rooms with no attached clients whose last activity is
// before cutoff, returning their codes.
func (rg *Registry) Reap(cutoff time.Time) []string {
	var reaped []*Room
	var codes []string

	rg.mu.Lock()
	for code, room := range rg.rooms {
		room.mu.Lock()
		idle := len(room.clients) == 0 && room.lastActive.Before(cutoff)
		room.mu.Unlock()

		if idle {
			delete(rg.rooms, code)
			reaped = append(reaped, room)
			codes = append(codes, code)
		}
	}
	rg.mu.Unlock()

	for _, room := range reaped {
		room.closeAll()
	}

	return codes
}

// Run periodically reaps idle rooms until ctx is done. It returns
// immediately when no idle timeout is configured.
func (rg *Registry) Run(ctx context.Context, logf Logger) {
	if rg.idleTimeout <= 0 {
		return
	}
	if logf == nil {
		logf = nopLogger
	}

	ticker := time.NewTicker(rg.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, code := range rg.Reap(now.Add(-rg.idleTimeout)) {
				logf("Evicted idle room %s", code)
			}
		}
	}
}
