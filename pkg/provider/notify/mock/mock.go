// Package mock provides a test double for the notify.Dispatcher interface.
package mock

import (
	"context"
	"sync"

	"github.com/murmur-app/murmur/pkg/provider/notify"
	"github.com/murmur-app/murmur/pkg/types"
)

// DispatchCall records a single invocation of Dispatcher.Dispatch.
type DispatchCall struct {
	Slot     types.Slot
	Contacts []types.Contact
	Location *types.Location
}

// Dispatcher is a mock implementation of notify.Dispatcher.
type Dispatcher struct {
	mu sync.Mutex

	// Err, if non-nil, is returned as the error from Dispatch.
	Err error

	// Calls records every call to Dispatch.
	Calls []DispatchCall
}

// Ensure Dispatcher implements notify.Dispatcher at compile time.
var _ notify.Dispatcher = (*Dispatcher)(nil)

// Dispatch records the call and returns the scripted error.
func (d *Dispatcher) Dispatch(_ context.Context, slot types.Slot, contacts []types.Contact, location *types.Location) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, DispatchCall{Slot: slot, Contacts: contacts, Location: location})
	return d.Err
}

// CallCount returns the number of recorded Dispatch calls. Thread-safe.
func (d *Dispatcher) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Calls)
}

// LastCall returns the most recent call, or a zero value when none exist.
func (d *Dispatcher) LastCall() DispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Calls) == 0 {
		return DispatchCall{}
	}
	return d.Calls[len(d.Calls)-1]
}
