// Package simulator provides access to a local simulator for TPM testing.
package simulator

import (
	"fmt"

	"github.com/google/go-tpm-tools/simulator"

	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
)

// TPM is an in-process simulator. It implements transport.Device and
// transport.PowerController; only PowerCycle and locality 0 are supported.
type TPM struct {
	transport.Device
	sim *simulator.Simulator
}

var _ transport.PowerController = (*TPM)(nil)

// OpenSimulator starts and opens a TPM simulator. The simulator is already
// started up when it is returned.
func OpenSimulator() (*TPM, error) {
	sim, err := simulator.Get()
	if err != nil {
		return nil, err
	}
	return &TPM{Device: transport.FromReadWriteCloser(sim), sim: sim}, nil
}

// PowerCycle reboots the simulator and starts it up again.
func (t *TPM) PowerCycle() error {
	return t.sim.Reset()
}

// PowerOn implements transport.PowerController.
func (t *TPM) PowerOn() error { return transport.ErrNotImplemented }

// PowerOff implements transport.PowerController.
func (t *TPM) PowerOff() error { return transport.ErrNotImplemented }

// SetLocality implements transport.PowerController.
func (t *TPM) SetLocality(locality uint8) error {
	if locality != 0 {
		return fmt.Errorf("%w: locality %d", transport.ErrNotImplemented, locality)
	}
	return nil
}
