package cast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	ErrNoDevices      = errors.New("no cast devices found")
	ErrDeviceNotFound = errors.New("cast device not found")
	ErrNotReady       = errors.New("cast device not ready")
	ErrLost           = errors.New("cast device connection lost")
)

// Listener receives notifications from a bound device. Calls arrive on a
// goroutine owned by the cast library and must not block.
type Listener interface {
	NewMediaStatus(MediaStatus)
	NewCastStatus(CastStatus)
}

// Device is a connected source device.
type Device interface {
	Info() DeviceInfo
	State() State
	// CastStatus returns the receiver status observed when the device became ready.
	CastStatus() CastStatus
	// Check confirms the device still answers, moving it to StateLost if not.
	Check(ctx context.Context) error
	Close() error
}

// Connector discovers and connects cast devices.
type Connector interface {
	Discover(ctx context.Context) ([]DeviceInfo, error)
	// Connect dials the device, registers l and blocks until the device is ready.
	Connect(ctx context.Context, info DeviceInfo, l Listener) (Device, error)
}

// BindConfig selects the source device.
type BindConfig struct {
	Name             string
	Host             string
	Port             int
	DiscoveryTimeout time.Duration
}

// Bind selects exactly one device and connects to it. A configured host skips
// discovery entirely.
func Bind(ctx context.Context, c Connector, cfg BindConfig, l Listener, logger *slog.Logger) (Device, error) {
	var target DeviceInfo

	if cfg.Host != "" {
		target = DeviceInfo{Name: cfg.Name, Host: cfg.Host, Port: cfg.Port}
		logger.Info("connecting to device by host", "host", cfg.Host, "port", cfg.Port)
	} else {
		dctx := ctx
		if cfg.DiscoveryTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, cfg.DiscoveryTimeout)
			defer cancel()
		}

		devices, err := c.Discover(dctx)
		if err != nil {
			return nil, fmt.Errorf("discover: %w", err)
		}

		if len(devices) == 0 {
			return nil, ErrNoDevices
		}

		found := false
		for _, d := range devices {
			logger.Info("found device", "name", d.Name, "host", d.Host, "model", d.Model)
			if !found && d.Name == cfg.Name {
				target = d
				found = true
			}
		}

		if !found {
			return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, cfg.Name)
		}
	}

	dev, err := c.Connect(ctx, target, l)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target.Host, err)
	}

	if dev.State() != StateReady {
		_ = dev.Close()
		return nil, ErrNotReady
	}

	info := dev.Info()
	logger.Info("device ready", "name", info.Name, "host", info.Host, "uuid", info.UUID, "cast_status", dev.CastStatus())

	return dev, nil
}
