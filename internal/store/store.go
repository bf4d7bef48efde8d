// Package store persists murmur's durable state: safe-word slots, the
// enrolled voice-print reference, and the contact list. It is a thin
// SQLite layer with plain get/set semantics and read-after-write
// consistency within a single process.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/murmur-app/murmur/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// settingVoicePrint is the settings key holding the enrolled voice-print
// reference returned by the speaker service.
const settingVoicePrint = "voice_print"

const schema = `
CREATE TABLE IF NOT EXISTS safe_words (
	slot      TEXT PRIMARY KEY,
	phrase    TEXT NOT NULL,
	audio_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS contacts (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	phone    TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store wraps a SQLite database. All methods are safe for concurrent use;
// database/sql serialises access to the single connection the sqlite driver
// hands out.
type Store struct {
	db *sql.DB
}

// Open opens (and if necessary creates) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SafeWord returns the safe word stored in the given slot, or ErrNotFound
// when the slot is empty.
func (s *Store) SafeWord(ctx context.Context, slot types.Slot) (types.SafeWord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phrase, audio_ref FROM safe_words WHERE slot = ?`, string(slot))

	sw := types.SafeWord{Slot: slot}
	err := row.Scan(&sw.Phrase, &sw.AudioRef)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SafeWord{}, ErrNotFound
	}
	if err != nil {
		return types.SafeWord{}, fmt.Errorf("read safe word %q: %w", slot, err)
	}
	return sw, nil
}

// SafeWords returns the safe words for all slots that currently hold one,
// in slot precedence order.
func (s *Store) SafeWords(ctx context.Context) ([]types.SafeWord, error) {
	var out []types.SafeWord
	for _, slot := range types.Slots() {
		sw, err := s.SafeWord(ctx, slot)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sw)
	}
	return out, nil
}

// SetSafeWord writes (or overwrites) the safe word for sw.Slot.
func (s *Store) SetSafeWord(ctx context.Context, sw types.SafeWord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO safe_words (slot, phrase, audio_ref) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET phrase = excluded.phrase, audio_ref = excluded.audio_ref`,
		string(sw.Slot), sw.Phrase, sw.AudioRef)
	if err != nil {
		return fmt.Errorf("write safe word %q: %w", sw.Slot, err)
	}
	return nil
}

// ClearSafeWord removes the safe word in the given slot. Clearing an empty
// slot is a no-op.
func (s *Store) ClearSafeWord(ctx context.Context, slot types.Slot) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM safe_words WHERE slot = ?`, string(slot))
	if err != nil {
		return fmt.Errorf("clear safe word %q: %w", slot, err)
	}
	return nil
}

// VoicePrint returns the enrolled voice-print reference, or ErrNotFound when
// no enrollment has completed.
func (s *Store) VoicePrint(ctx context.Context) (string, error) {
	return s.setting(ctx, settingVoicePrint)
}

// SetVoicePrint stores the voice-print reference returned by a successful
// enrollment.
func (s *Store) SetVoicePrint(ctx context.Context, ref string) error {
	return s.setSetting(ctx, settingVoicePrint, ref)
}

// ClearVoicePrint removes the enrolled voice-print reference.
func (s *Store) ClearVoicePrint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ?`, settingVoicePrint)
	if err != nil {
		return fmt.Errorf("clear voice print: %w", err)
	}
	return nil
}

// Contacts returns all stored contacts ordered by name.
func (s *Store) Contacts(ctx context.Context) ([]types.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, priority FROM contacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []types.Contact
	for rows.Next() {
		var c types.Contact
		var prio string
		if err := rows.Scan(&c.ID, &c.Name, &c.PhoneNumber, &prio); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.Priority = types.Priority(prio)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ContactsByPriority returns the contacts assigned the given priority.
func (s *Store) ContactsByPriority(ctx context.Context, p types.Priority) ([]types.Contact, error) {
	all, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Contact
	for _, c := range all {
		if c.Priority == p {
			out = append(out, c)
		}
	}
	return out, nil
}

// HasPrioritizedContact reports whether at least one contact carries a
// non-empty priority.
func (s *Store) HasPrioritizedContact(ctx context.Context) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE priority != ''`)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("count prioritized contacts: %w", err)
	}
	return n > 0, nil
}

// PutContact inserts or updates a contact by ID.
func (s *Store) PutContact(ctx context.Context, c types.Contact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, phone, priority) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, phone = excluded.phone, priority = excluded.priority`,
		c.ID, c.Name, c.PhoneNumber, string(c.Priority))
	if err != nil {
		return fmt.Errorf("write contact %q: %w", c.ID, err)
	}
	return nil
}

// DeleteContact removes a contact by ID. Deleting a missing contact is a
// no-op.
func (s *Store) DeleteContact(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete contact %q: %w", id, err)
	}
	return nil
}

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key)
	var v string
	err := row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read setting %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}
