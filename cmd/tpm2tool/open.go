package main

import (
	"fmt"

	"github.com/microsoft/TSS.MSR-sub003/internal/config"
	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport/simulator"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport/tcp"
)

// openTPM opens the configured transport.
func (a *app) openTPM() (*tpm2.TPM, error) {
	var dev transport.Device
	switch a.cfg.Transport {
	case config.TransportTCP:
		t, err := tcp.Open(tcp.Config{
			CommandAddress:  a.cfg.CommandAddress,
			PlatformAddress: a.cfg.PlatformAddress,
			Logger:          a.log,
		})
		if err != nil {
			return nil, err
		}
		if err := t.SetLocality(a.cfg.Locality); err != nil {
			t.Close()
			return nil, err
		}
		dev = t
	case config.TransportSimulator:
		sim, err := simulator.OpenSimulator()
		if err != nil {
			return nil, fmt.Errorf("starting simulator: %w", err)
		}
		dev = sim
	default:
		d, err := openLocal(a.cfg.Transport, a.cfg.Device)
		if err != nil {
			return nil, err
		}
		dev = d
	}
	a.log.WithField("transport", a.cfg.Transport).Debug("opened TPM")
	return tpm2.New(dev, tpm2.WithLogger(a.log)), nil
}
