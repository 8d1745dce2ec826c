// Package schema is the declarative-binding layer described in spec.md
// §4.7: application code describes its shared fields once as a Setup
// function and gets matching Owner/Reloadable constructors for free,
// without any macro or code-generation step. Go has no compile-time
// reflection over a field list the way the original implementation's macro
// does, so this is the "pure runtime equivalent ... a builder that accepts
// field descriptors" the spec explicitly allows: Setup is just a plain Go
// closure that calls Value/Slice/Channel in whatever order the application
// wants, against a *Builder that already knows whether it's creating or
// opening each field's region.
package schema

import (
	"fmt"
	"os"

	"hotreload/channel"
	"hotreload/session"
	"hotreload/supervisor"
	"hotreload/typed"
)

// Setup populates application-owned state from b. It runs once on the
// Owner side (creating regions) and once on the Reloadable side (opening
// the same regions) — the two runs are required to call Value/Slice/
// Channel with the same field names, types, and (for slices) lengths, so
// that both sides resolve to identical identifiers and sizes (spec §8).
type Setup func(b *Builder) error

// Builder is the bound state object spec §4.7 describes: one Session plus
// whatever typed handles Setup attaches to it.
type Builder struct {
	sess *session.Session
	args any
}

// Session returns the underlying Session.
func (b *Builder) Session() *session.Session { return b.sess }

// Args returns the deserialized arguments value passed to Owner (or
// decoded from the CLI/local-run slot by Reloadable). Callers type-assert
// it back to their concrete arguments type before using it to compute
// slice lengths.
func (b *Builder) Args() any { return b.args }

// Value constructs a typed.Region[T] for the named field.
func Value[T any](b *Builder, name string) (*typed.Region[T], error) {
	return session.Value[T](b.sess, name)
}

// Slice constructs a typed.Slice[T] of the given length for the named
// field. length is expected to be computed by the caller from b.Args() —
// that computation *is* spec §4.7's length_expr, just expressed as
// ordinary Go rather than a declared expression the framework evaluates.
func Slice[T any](b *Builder, name string, length int) (*typed.Slice[T], error) {
	return session.Slice[T](b.sess, name, length)
}

// Channel constructs a channel.SharedChannel[T] for the named field.
func Channel[T any](b *Builder, name string) (*channel.SharedChannel[T], error) {
	return session.Channel[T](b.sess, name)
}

// Close releases the Session (and, on the Owner side, kills the watcher).
func (b *Builder) Close() error { return b.sess.Close() }

// Owner implements spec §4.7's owner(args): creates Session(Owner),
// evaluates setup (creating each region), then starts the Supervisor with
// projectName and args, serialized across the CLI boundary the watcher and
// the eventual Reloadable process both understand.
func Owner[Args any](watcherPath, projectName string, args Args, setup Setup) (*Builder, error) {
	sess, err := session.NewOwner()
	if err != nil {
		return nil, err
	}

	b := &Builder{sess: sess, args: args}
	if err := setup(b); err != nil {
		sess.Close()
		return nil, fmt.Errorf("schema: owner setup: %w", err)
	}

	blob, err := supervisor.SerializeArgs(args)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("schema: serialize args: %w", err)
	}

	sup, err := supervisor.Start(watcherPath, projectName, sess.IDPrefix(), blob)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("schema: start watcher: %w", err)
	}
	sess.SetWatcher(sup)

	return b, nil
}

// Reloadable implements spec §4.7's reloadable(): reads args from CLI
// argument 2 (or the local-run slot, when running in-process — see
// session.RunLocal), deserializes them, creates Session(Reloadable), then
// evaluates the same setup (opening each region).
func Reloadable[Args any](setup Setup) (*Builder, Args, error) {
	var zero Args

	blob, err := argsBlob()
	if err != nil {
		return nil, zero, err
	}

	args, err := supervisor.DeserializeArgs[Args](blob)
	if err != nil {
		return nil, zero, fmt.Errorf("schema: %w: %v", session.ErrArgumentMalformed, err)
	}

	sess, err := session.NewReloadable()
	if err != nil {
		return nil, zero, err
	}

	b := &Builder{sess: sess, args: args}
	if err := setup(b); err != nil {
		sess.Close()
		return nil, zero, fmt.Errorf("schema: reloadable setup: %w", err)
	}

	return b, args, nil
}

func argsBlob() (string, error) {
	if blob, ok := session.LocalRunArgsBlob(); ok {
		return blob, nil
	}
	if len(os.Args) < 3 {
		return "", fmt.Errorf("schema: %w: serialized_args (argv[2])", session.ErrArgumentMissing)
	}
	return os.Args[2], nil
}
