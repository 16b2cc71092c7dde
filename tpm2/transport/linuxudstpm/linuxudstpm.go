//go:build !windows

// Package linuxudstpm provides access to a TPM device via a Unix domain socket.
package linuxudstpm

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

var (
	// ErrFileIsNotSocket indicates that the TPM file is not a socket.
	ErrFileIsNotSocket = errors.New("TPM file is not a socket")
	// ErrMustCallDispatchThenGet indicates that commands and responses were
	// not exchanged in the expected alternating sequence.
	ErrMustCallDispatchThenGet = errors.New("must call DispatchCommand then GetResponse in an alternating sequence")
)

// Open opens the TPM socket at the given path.
func Open(path string) (transport.Device, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return nil, fmt.Errorf("%w: %s (%s)", ErrFileIsNotSocket, fi.Mode().String(), path)
	}
	return newEmulator(path, net.Dial), nil
}

// dialer abstracts the net.Dial call so test code can provide its own net.Conn
// implementation.
type dialer func(network, path string) (net.Conn, error)

// emulator manages connections with a TPM emulator over a Unix domain
// socket. These emulators often operate in a write/read/disconnect
// sequence, so DispatchCommand always connects and GetResponse always
// closes. emulator is not thread safe.
type emulator struct {
	path   string
	conn   net.Conn
	dialer dialer
}

func newEmulator(path string, d dialer) *emulator {
	return &emulator{path: path, dialer: d}
}

// DispatchCommand implements transport.Device.
func (e *emulator) DispatchCommand(cmd []byte) error {
	if e.conn != nil {
		return ErrMustCallDispatchThenGet
	}
	conn, err := e.dialer("unix", e.path)
	if err != nil {
		return err
	}
	if _, err := conn.Write(cmd); err != nil {
		conn.Close()
		return err
	}
	e.conn = conn
	return nil
}

// ResponseReady implements transport.Device. The response is read with a
// blocking call, so it is reported ready as soon as a command is in flight.
func (e *emulator) ResponseReady() bool { return e.conn != nil }

// GetResponse implements transport.Device.
func (e *emulator) GetResponse() ([]byte, error) {
	if e.conn == nil {
		return nil, ErrMustCallDispatchThenGet
	}
	defer func() {
		e.conn.Close()
		e.conn = nil
	}()
	rsp := make([]byte, tpmutil.MaxResponse)
	n, err := e.conn.Read(rsp)
	if err != nil {
		return nil, err
	}
	return rsp[:n], nil
}

// Close implements transport.Device.
func (e *emulator) Close() error {
	if e.conn == nil {
		// This is an expected possible state, e.g., if someone sent the TPM a command and didn't read the response.
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
