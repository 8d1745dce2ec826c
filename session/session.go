// Package session implements the Owner/Reloadable role split: a Session
// carries the id_prefix every NamedRegion name is built from, and knows how
// to construct the typed/channel handles that hang off it.
package session

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"hotreload/channel"
	"hotreload/internal/fieldname"
	"hotreload/typed"
)

// Role distinguishes the long-lived process holding OS/window resources
// (Owner) from the process rebuilt and restarted on every source change
// (Reloadable).
type Role int

const (
	Owner Role = iota
	Reloadable
)

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Reloadable:
		return "reloadable"
	default:
		return fmt.Sprintf("session.Role(%d)", int(r))
	}
}

// maxIDPrefixLen matches spec §6's CLI surface: id_prefix is a string
// beginning with "/", at most 31 bytes. Only the prefix is checked here;
// the full identifier (prefix + field name) must itself stay under
// region's 32-byte ceiling, which region.Create/Open enforce, so a prefix
// at this maximum leaves no room for any field name.
const maxIDPrefixLen = 31

var (
	// ErrArgumentMissing indicates the reloadable process was started
	// without the positional CLI arguments this framework requires.
	ErrArgumentMissing = errors.New("session: required CLI argument missing")
	// ErrArgumentMalformed indicates a CLI argument was present but did not
	// parse (e.g. id_prefix didn't start with "/").
	ErrArgumentMalformed = errors.New("session: CLI argument malformed")
)

// watcher is the subset of *supervisor.Supervisor that Session needs in
// order to kill it on Close, kept as an interface so this package doesn't
// import supervisor (which would be a needless dependency edge the other
// way: supervisor never needs a Session).
type watcher interface {
	Kill() error
}

// Session is the Owner- or Reloadable-side handle used to derive every
// NamedRegion identifier for one hot-reload run.
type Session struct {
	role     Role
	idPrefix string
	watcher  watcher
}

// NewOwner starts a fresh Owner-side session with a freshly generated
// id_prefix: "/" followed by the first 8 bytes (16 hex digits) of a random
// v4 UUID, comfortably under maxIDPrefixLen.
func NewOwner() (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("session: generate id_prefix: %w", err)
	}
	idPrefix := "/" + hex.EncodeToString(id[:8])
	return &Session{role: Owner, idPrefix: idPrefix}, nil
}

// NewReloadable constructs a Reloadable-side session. Its id_prefix comes
// from positional CLI argument 1, unless a local-run slot (see
// localrun.go) has one staged — local-run mode has no separate process, so
// there is no argv to read.
func NewReloadable() (*Session, error) {
	if idPrefix, _, ok := localRunArgs(); ok {
		return newReloadableWithPrefix(idPrefix)
	}
	if len(os.Args) < 2 {
		return nil, fmt.Errorf("session: %w: id_prefix (argv[1])", ErrArgumentMissing)
	}
	return newReloadableWithPrefix(os.Args[1])
}

func newReloadableWithPrefix(idPrefix string) (*Session, error) {
	if err := validateIDPrefix(idPrefix); err != nil {
		return nil, fmt.Errorf("session: %w: %v", ErrArgumentMalformed, err)
	}
	return &Session{role: Reloadable, idPrefix: idPrefix}, nil
}

func validateIDPrefix(idPrefix string) error {
	if idPrefix == "" || idPrefix[0] != '/' {
		return fmt.Errorf("id_prefix %q must start with \"/\"", idPrefix)
	}
	if len(idPrefix) > maxIDPrefixLen {
		return fmt.Errorf("id_prefix %q exceeds %d bytes", idPrefix, maxIDPrefixLen)
	}
	return nil
}

// Role reports whether this is the Owner or Reloadable side.
func (s *Session) Role() Role { return s.role }

// IDPrefix returns the prefix every field identifier in this run is built
// from.
func (s *Session) IDPrefix() string { return s.idPrefix }

func (s *Session) fieldIdentifier(name string) (string, error) {
	if err := fieldname.Validate(name); err != nil {
		return "", fmt.Errorf("session: field %q: %w", name, err)
	}
	return s.idPrefix + name, nil
}

// Value constructs a typed.Region[T] for the named field: created if this
// is the Owner session, opened otherwise.
func Value[T any](s *Session, name string) (*typed.Region[T], error) {
	identifier, err := s.fieldIdentifier(name)
	if err != nil {
		return nil, err
	}
	return typed.Value[T](s.role == Owner, identifier)
}

// Slice constructs a typed.Slice[T] of the given length for the named
// field: created if this is the Owner session, opened otherwise.
func Slice[T any](s *Session, name string, length int) (*typed.Slice[T], error) {
	identifier, err := s.fieldIdentifier(name)
	if err != nil {
		return nil, err
	}
	return typed.NewSlice[T](s.role == Owner, identifier, length)
}

// Channel constructs a channel.SharedChannel[T] for the named field:
// created if this is the Owner session, opened otherwise.
func Channel[T any](s *Session, name string) (*channel.SharedChannel[T], error) {
	identifier, err := s.fieldIdentifier(name)
	if err != nil {
		return nil, err
	}
	return channel.New[T](s.role == Owner, identifier)
}

// SetWatcher records the Supervisor this (Owner) session should kill on
// Close. schema.Owner calls this once it has started the watcher.
func (s *Session) SetWatcher(w watcher) { s.watcher = w }

// Close implements spec §4.5's Drop semantics: on the Owner side, if a
// watcher handle is held, kill it and ignore the error — the watcher (and
// its current child) may already be gone.
func (s *Session) Close() error {
	if s.role == Owner && s.watcher != nil {
		_ = s.watcher.Kill()
	}
	return nil
}
