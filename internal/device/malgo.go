package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// malgoDevice owns a miniaudio context and the device opened in it.
type malgoDevice struct {
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func (d *malgoDevice) Start() error { return d.dev.Start() }
func (d *malgoDevice) Stop() error  { return d.dev.Stop() }

func (d *malgoDevice) Uninit() {
	d.dev.Uninit()
	_ = d.ctx.Uninit()
	d.ctx.Free()
}

// initContext opens a miniaudio context with logging discarded.
func initContext() (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return ctx, nil
}

func releaseContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// openMalgoDevice opens a float32 capture device.
func openMalgoDevice(cfg inputConfig, onData func([]byte), onStop func()) (inputDevice, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = uint32(cfg.Format.Channels)
	devCfg.SampleRate = uint32(cfg.Format.SampleRate)
	devCfg.Alsa.NoMMap = 1

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		releaseContext(ctx)
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	if len(infos) == 0 {
		releaseContext(ctx)
		return nil, ErrNoDevice
	}
	candidates := make([]Info, len(infos))
	for i, info := range infos {
		candidates[i] = inputInfo(info)
	}
	idx, err := selectInput(candidates, cfg.DeviceName)
	if err != nil {
		releaseContext(ctx)
		return nil, err
	}
	if idx >= 0 {
		devCfg.Capture.DeviceID = infos[idx].ID.Pointer()
	}

	dev, err := malgo.InitDevice(ctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) { onData(in) },
		Stop: onStop,
	})
	if err != nil {
		releaseContext(ctx)
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	return &malgoDevice{ctx: ctx, dev: dev}, nil
}

func inputInfo(info malgo.DeviceInfo) Info {
	name := info.Name()
	return Info{
		ID:      info.ID.String(),
		Name:    name,
		Role:    RoleInput,
		Class:   Classify(name),
		Default: info.IsDefault != 0,
	}
}

// selectInput picks the device to open: the first whose name contains want,
// otherwise the default unless it is virtual, otherwise the best-ranked real
// device. -1 means let the backend use its default.
func selectInput(devices []Info, want string) (int, error) {
	if want != "" {
		w := strings.ToLower(want)
		for i, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), w) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("%w: no input matches %q", ErrNoDevice, want)
	}

	best := -1
	for i, d := range devices {
		if d.Class == ClassVirtual {
			continue
		}
		if d.Default {
			return i, nil
		}
		if best < 0 || d.Class < devices[best].Class {
			best = i
		}
	}
	return best, nil
}

// inputs lists capture devices.
func inputs(_ context.Context) ([]Info, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer releaseContext(ctx)

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate capture devices: %w", err)
	}
	out := make([]Info, 0, len(infos))
	for _, info := range infos {
		out = append(out, inputInfo(info))
	}
	return out, nil
}
