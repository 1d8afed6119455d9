// Package device binds the capture pipeline to the host's sound system:
// system audio from a PulseAudio sink monitor, the microphone through
// miniaudio, and the probes behind permission checks and device listing.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Role is whether a device produces or consumes audio.
type Role int

const (
	// RoleInput is a capture device such as a microphone.
	RoleInput Role = iota
	// RoleOutput is a playback sink whose monitor can be recorded.
	RoleOutput
)

// String returns "input" or "output".
func (r Role) String() string {
	if r == RoleOutput {
		return "output"
	}
	return "input"
}

// Info describes one device.
type Info struct {
	ID      string
	Name    string
	Role    Role
	Class   Class
	Default bool
}

// Inventory is the result of listing devices.
type Inventory struct {
	Outputs []Info // system audio targets
	Inputs  []Info // microphones first, virtual devices last
}

// probe is a device query that may hit the sound server.
type probe func(ctx context.Context) ([]Info, error)

// Lister enumerates sinks and capture devices.
type Lister struct {
	outputs probe
	inputs  probe
}

// NewLister lists outputs through p and inputs through miniaudio.
func NewLister(p *PulseProvider) *Lister {
	return &Lister{outputs: p.outputs, inputs: inputs}
}

// List queries outputs and inputs concurrently. A failing side is reported in
// the returned error while the other side is still filled in.
func (l *Lister) List(ctx context.Context) (Inventory, error) {
	var (
		inv           Inventory
		outErr, inErr error
		g             errgroup.Group
	)
	g.Go(func() error {
		inv.Outputs, outErr = l.outputs(ctx)
		return nil
	})
	g.Go(func() error {
		inv.Inputs, inErr = l.inputs(ctx)
		return nil
	})
	_ = g.Wait()

	SortInputs(inv.Inputs)
	var errs []error
	if outErr != nil {
		errs = append(errs, fmt.Errorf("outputs: %w", outErr))
	}
	if inErr != nil {
		errs = append(errs, fmt.Errorf("inputs: %w", inErr))
	}
	return inv, errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Permissions
// ---------------------------------------------------------------------------

// PermissionsOption configures Permissions.
type PermissionsOption func(*Permissions)

// WithPermissionsLogger sets the logger.
func WithPermissionsLogger(l zerolog.Logger) PermissionsOption {
	return func(p *Permissions) {
		p.logger = l.With().Str("component", "permissions").Logger()
	}
}

// Permissions reports whether each source can be captured. On Linux there is
// no consent prompt; a source is "granted" when its device is reachable.
type Permissions struct {
	system func(ctx context.Context) error
	mic    probe
	logger zerolog.Logger
}

// NewPermissions probes system audio through p and the microphone through miniaudio.
func NewPermissions(p *PulseProvider, opts ...PermissionsOption) *Permissions {
	perm := &Permissions{
		system: p.defaultSinkReachable,
		mic:    inputs,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(perm)
	}
	return perm
}

// CheckAllPermissions runs both probes concurrently.
func (p *Permissions) CheckAllPermissions(ctx context.Context) (screenOK, micOK bool) {
	var g errgroup.Group
	g.Go(func() error {
		if err := p.system(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("system audio unavailable")
			return nil
		}
		screenOK = true
		return nil
	})
	g.Go(func() error {
		devs, err := p.mic(ctx)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Msg("microphone unavailable")
		case len(devs) == 0:
			p.logger.Warn().Err(ErrNoDevice).Msg("microphone unavailable")
		default:
			micOK = true
		}
		return nil
	})
	_ = g.Wait()
	return screenOK, micOK
}
