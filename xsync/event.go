package xsync

import "fmt"

// EventHeaderSize reports how many bytes of buf an event constructed by
// CreateEvent/OpenEvent consumes starting at its offset. See MutexHeaderSize
// for why this is a function rather than a constant.
func EventHeaderSize() uintptr { return eventHeaderSize() }

// CreateEvent constructs a new Event, initially Clear. manualReset matches
// spec.md §4.3: a manual-reset event stays Signaled until explicitly Set
// back to Clear, rather than auto-clearing for the first waiter it wakes.
func CreateEvent(name string, buf []byte, offset uintptr, manualReset bool) (*Event, error) {
	if err := checkHeaderFits(buf, offset, eventHeaderSize(), "event"); err != nil {
		return nil, err
	}
	impl, err := createEventImpl(name, buf, offset, manualReset)
	if err != nil {
		return nil, fmt.Errorf("xsync: create event %q: %w", name, err)
	}
	return &Event{impl: impl}, nil
}

// OpenEvent attaches to an Event previously constructed with CreateEvent,
// without reinitializing its state.
func OpenEvent(name string, buf []byte, offset uintptr, manualReset bool) (*Event, error) {
	if err := checkHeaderFits(buf, offset, eventHeaderSize(), "event"); err != nil {
		return nil, err
	}
	impl, err := openEventImpl(name, buf, offset, manualReset)
	if err != nil {
		return nil, fmt.Errorf("xsync: open event %q: %w", name, err)
	}
	return &Event{impl: impl}, nil
}

// CreateOrOpenEvent is CreateEvent if isOwner, OpenEvent otherwise.
func CreateOrOpenEvent(isOwner bool, name string, buf []byte, offset uintptr, manualReset bool) (*Event, error) {
	if isOwner {
		return CreateEvent(name, buf, offset, manualReset)
	}
	return OpenEvent(name, buf, offset, manualReset)
}
