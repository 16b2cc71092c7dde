// Package transport defines the byte-level interface between the command
// dispatcher and a TPM, along with adapters for common device shapes.
package transport

import (
	"errors"
	"io"

	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// ErrNotImplemented is returned by transports for capabilities they lack.
var ErrNotImplemented = errors.New("transport: not implemented by this device")

// Device carries one TPM command at a time. DispatchCommand sends a fully
// encoded command; once ResponseReady reports true, GetResponse returns the
// complete response.
type Device interface {
	DispatchCommand(cmd []byte) error
	ResponseReady() bool
	GetResponse() ([]byte, error)
	Close() error
}

// PowerController is implemented by devices, typically simulators, that
// expose platform power and locality controls.
type PowerController interface {
	PowerOn() error
	PowerOff() error
	PowerCycle() error
	SetLocality(locality uint8) error
}

// Power returns the power controls of dev, or a controller whose methods
// all return ErrNotImplemented.
func Power(dev Device) PowerController {
	if pc, ok := dev.(PowerController); ok {
		return pc
	}
	return noPower{}
}

type noPower struct{}

func (noPower) PowerOn() error          { return ErrNotImplemented }
func (noPower) PowerOff() error         { return ErrNotImplemented }
func (noPower) PowerCycle() error       { return ErrNotImplemented }
func (noPower) SetLocality(uint8) error { return ErrNotImplemented }

// streamDevice adapts a stream where each written command is answered by a
// single read.
type streamDevice struct {
	rwc     io.ReadWriteCloser
	rsp     []byte
	err     error
	pending bool
}

// FromReadWriteCloser returns a Device that exchanges commands over rwc.
// The exchange happens in DispatchCommand, so the response is ready as soon
// as it returns.
func FromReadWriteCloser(rwc io.ReadWriteCloser) Device {
	return &streamDevice{rwc: rwc}
}

// DispatchCommand implements Device.
func (d *streamDevice) DispatchCommand(cmd []byte) error {
	if d.pending {
		return errors.New("transport: previous response was not collected")
	}
	d.rsp, d.err = tpmutil.RunCommandRaw(d.rwc, cmd)
	d.pending = true
	return nil
}

// ResponseReady implements Device.
func (d *streamDevice) ResponseReady() bool { return d.pending }

// GetResponse implements Device.
func (d *streamDevice) GetResponse() ([]byte, error) {
	if !d.pending {
		return nil, errors.New("transport: no command in flight")
	}
	rsp, err := d.rsp, d.err
	d.rsp, d.err, d.pending = nil, nil, false
	return rsp, err
}

// Close implements Device.
func (d *streamDevice) Close() error { return d.rwc.Close() }
