/*
DESCRIPTION
  device.go provides Device, the contract shared by every piece of
  hardware (and the simulator that substitutes for it): cameras, wavefront
  correctors, wavefront sensors, and the telescope mount. It replaces the
  teacher's deep AVDevice hierarchy with a single narrow interface plus a
  Status struct, giving the loop engine exactly the capability set it
  needs without cross-hierarchy downcasts.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package device provides the Device contract implemented by every
// hardware-backed component of the control loop, plus a process-wide
// registry used by the session layer to resolve devices by name.
package device

import (
	"fmt"
	"sync"
)

// Device is the minimum contract every hardware-backed component
// satisfies: a name for registry and protocol addressing, lifecycle
// control, and a health snapshot. Components add their own richer
// interfaces (Camera, WFC, WFS, Telescope) on top of this.
type Device interface {
	// Name returns the device's registry name, used for protocol
	// sub-addressing and cross-device lookups (WFS naming its paired WFC,
	// for instance) by stable string rather than a long-lived pointer.
	Name() string

	// Start begins whatever background activity the device needs (a
	// capture thread, a hardware handshake). Start is idempotent.
	Start() error

	// Stop halts background activity and releases hardware. Cameras warm
	// cooled sensors before a real Stop returns.
	Stop() error

	// Status reports the device's current health for "get status".
	Status() Status
}

// Status is the supplemental per-device health snapshot read from
// original_source's devices.cc and surfaced over "get status" beyond the
// bare running/not-running flag.
type Status struct {
	Online     bool
	Name       string
	Type       string
	ErrorCount int
}

// MultiError collects the errors produced while validating a single
// configuration call: several fields may be bad or defaulted at once, and
// the caller wants to see all of them.
type MultiError []error

func (me MultiError) Error() string {
	if len(me) == 0 {
		panic("device: invalid use of MultiError")
	}
	return fmt.Sprintf("%v", []error(me))
}

// Registry is a process-wide, concurrency-safe name -> Device map backing
// "get devices" and reverse lookup. Devices are owned by the registry;
// other components refer to each other by name (resolved at use time)
// rather than holding long-lived back-pointers, per the spec's
// cyclic-reference redesign note.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds d under its own Name(). It fails if that name is already
// present.
func (r *Registry) Register(d Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if _, ok := r.devices[name]; ok {
		return fmt.Errorf("device: %q already registered", name)
	}
	r.devices[name] = d
	return nil
}

// Unregister removes name from the registry. Called explicitly at
// shutdown; never implicitly by device failure.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, name)
}

// Lookup resolves name to its Device, or ok=false if none is registered.
func (r *Registry) Lookup(name string) (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[name]
	return d, ok
}

// Names returns every registered device name, for "get devices".
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.devices))
	for n := range r.devices {
		names = append(names, n)
	}
	return names
}
