/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Seednode/askbox/games"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	codeLength  = 6
	codeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxAttempts = 16
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrBadDriver    = errors.New("unsupported database type")
	ErrCodeSpace    = errors.New("could not allocate a free room code")
)

type Room struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Member struct {
	RoomCode    string     `json:"room_code"`
	Identity    string     `json:"identity"`
	DisplayName string     `json:"display_name"`
	Role        games.Role `json:"role"`
	JoinedAt    time.Time  `json:"joined_at"`
}

// RoomSummary is one entry of an identity's room list.
type RoomSummary struct {
	Code string     `json:"code"`
	Name string     `json:"name"`
	Role games.Role `json:"role"`
}

// Store keeps rooms and their members. It implements games.MembershipChecker.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer, and ":memory:" is per connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{db: db, driver: driver}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRoom allocates a fresh code and makes ownerID its owner.
func (s *Store) CreateRoom(ctx context.Context, ownerID, ownerName, name string) (Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	code, err := s.freeCode(ctx, tx)
	if err != nil {
		return Room{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO rooms (code, name, owner_id, created_at) VALUES (?, ?, ?, ?)`),
		code, name, ownerID, now.Unix())
	if err != nil {
		return Room{}, fmt.Errorf("failed to insert room: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO members (room_code, identity, display_name, role, joined_at) VALUES (?, ?, ?, ?, ?)`),
		code, ownerID, ownerName, string(games.RoleOwner), now.Unix())
	if err != nil {
		return Room{}, fmt.Errorf("failed to insert owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Room{}, fmt.Errorf("failed to commit room: %w", err)
	}

	return Room{Code: code, Name: name, OwnerID: ownerID, CreatedAt: now}, nil
}

func (s *Store) freeCode(ctx context.Context, tx *sql.Tx) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return "", err
		}

		var exists int
		err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM rooms WHERE code = ?`), code).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
	}
	return "", ErrCodeSpace
}

// randomCode draws from codeLetters without modulo bias.
func randomCode(n int) (string, error) {
	const max = byte(255 - (256 % len(codeLetters)))

	out := make([]byte, 0, n)
	buf := make([]byte, n*2)

	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}

		for _, b := range buf {
			if b <= max {
				out = append(out, codeLetters[int(b)%len(codeLetters)])
				if len(out) == n {
					break
				}
			}
		}
	}

	return string(out), nil
}

func (s *Store) GetRoom(ctx context.Context, code string) (Room, error) {
	var (
		r       Room
		created int64
	)

	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT code, name, owner_id, created_at FROM rooms WHERE code = ?`), code,
	).Scan(&r.Code, &r.Name, &r.OwnerID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("failed to load room: %w", err)
	}

	r.CreatedAt = time.Unix(created, 0).UTC()
	return r, nil
}

// AddMember registers identity as a player. Existing members, including the
// owner, keep their role and original join time.
func (s *Store) AddMember(ctx context.Context, code, identity, displayName string) (Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Member{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM rooms WHERE code = ?`), code).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrRoomNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("failed to load room: %w", err)
	}

	m, err := s.member(ctx, tx, code, identity)
	switch {
	case err == nil:
		if displayName != "" && displayName != m.DisplayName {
			_, err = tx.ExecContext(ctx,
				s.rebind(`UPDATE members SET display_name = ? WHERE room_code = ? AND identity = ?`),
				displayName, code, identity)
			if err != nil {
				return Member{}, fmt.Errorf("failed to rename member: %w", err)
			}
			m.DisplayName = displayName
		}
	case errors.Is(err, sql.ErrNoRows):
		now := time.Now().UTC().Truncate(time.Second)
		m = Member{
			RoomCode:    code,
			Identity:    identity,
			DisplayName: displayName,
			Role:        games.RolePlayer,
			JoinedAt:    now,
		}
		_, err = tx.ExecContext(ctx,
			s.rebind(`INSERT INTO members (room_code, identity, display_name, role, joined_at) VALUES (?, ?, ?, ?, ?)`),
			code, identity, displayName, string(m.Role), now.Unix())
		if err != nil {
			return Member{}, fmt.Errorf("failed to insert member: %w", err)
		}
	default:
		return Member{}, err
	}

	if err := tx.Commit(); err != nil {
		return Member{}, fmt.Errorf("failed to commit member: %w", err)
	}

	return m, nil
}

func (s *Store) member(ctx context.Context, tx *sql.Tx, code, identity string) (Member, error) {
	var (
		m      Member
		role   string
		joined int64
	)

	err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT room_code, identity, display_name, role, joined_at FROM members WHERE room_code = ? AND identity = ?`),
		code, identity,
	).Scan(&m.RoomCode, &m.Identity, &m.DisplayName, &role, &joined)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, err
		}
		return Member{}, fmt.Errorf("failed to load member: %w", err)
	}

	m.Role = games.Role(role)
	m.JoinedAt = time.Unix(joined, 0).UTC()
	return m, nil
}

// CheckMembership answers the gateway's join check. Unknown rooms and
// non-members are reported as IsMember=false, not as errors.
func (s *Store) CheckMembership(ctx context.Context, identity, code string) (games.Membership, error) {
	var (
		m    games.Membership
		role string
	)

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT r.name, m.role, m.display_name
		FROM members m
		JOIN rooms r ON r.code = m.room_code
		WHERE m.room_code = ? AND m.identity = ?`),
		code, identity,
	).Scan(&m.RoomName, &role, &m.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return games.Membership{}, nil
	}
	if err != nil {
		return games.Membership{}, fmt.Errorf("failed to check membership: %w", err)
	}

	m.IsMember = true
	m.Role = games.Role(role)
	return m, nil
}

// RoomsFor lists the rooms identity belongs to, newest first.
func (s *Store) RoomsFor(ctx context.Context, identity string) ([]RoomSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT r.code, r.name, m.role
		FROM members m
		JOIN rooms r ON r.code = m.room_code
		WHERE m.identity = ?
		ORDER BY r.created_at DESC, r.code`),
		identity)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	out := []RoomSummary{}
	for rows.Next() {
		var (
			rs   RoomSummary
			role string
		)
		if err := rows.Scan(&rs.Code, &rs.Name, &role); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rs.Role = games.Role(role)
		out = append(out, rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	return out, nil
}
