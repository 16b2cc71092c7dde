//go:build linux

// Package linuxtpm provides access to a physical TPM device via the device file.
package linuxtpm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

var (
	// ErrFileIsNotDevice indicates that the TPM file mode was not a device.
	ErrFileIsNotDevice = errors.New("TPM file is not a device")
	// ErrNotInFlight indicates GetResponse was called with no command sent.
	ErrNotInFlight = errors.New("no command in flight")
	// ErrInFlight indicates DispatchCommand was called before the previous
	// response was collected.
	ErrInFlight = errors.New("previous response was not collected")
)

// Open opens the TPM device file at the given path, typically /dev/tpm0
// or the resource-managed /dev/tpmrm0.
func Open(path string) (transport.Device, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrFileIsNotDevice, fi.Mode().String(), path)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	return newDevice(f, f, f), nil
}

// device drives a character device that accepts a command with one write
// and becomes readable once the response is available.
type device struct {
	in      *os.File
	out     io.Writer
	closer  io.Closer
	pending bool
}

func newDevice(in *os.File, out io.Writer, closer io.Closer) *device {
	return &device{in: in, out: out, closer: closer}
}

// DispatchCommand implements transport.Device.
func (d *device) DispatchCommand(cmd []byte) error {
	if d.pending {
		return ErrInFlight
	}
	if _, err := d.out.Write(cmd); err != nil {
		return err
	}
	d.pending = true
	return nil
}

// ResponseReady implements transport.Device.
func (d *device) ResponseReady() bool {
	return d.pending && tpmutil.Readable(d.in)
}

// GetResponse implements transport.Device. It blocks until the response is
// available.
func (d *device) GetResponse() ([]byte, error) {
	if !d.pending {
		return nil, ErrNotInFlight
	}
	d.pending = false
	if err := tpmutil.WaitReadable(d.in); err != nil {
		return nil, err
	}
	rsp := make([]byte, tpmutil.MaxResponse)
	n, err := d.in.Read(rsp)
	if err != nil {
		return nil, err
	}
	return rsp[:n], nil
}

// Close implements transport.Device.
func (d *device) Close() error { return d.closer.Close() }
