// Package tcp implements a Device and PowerController for a TPM simulator
// that speaks the reference simulator's TCP protocol.
package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// regularCommand is a command sent on the command port.
type regularCommand uint32

const (
	tpmSendCommand regularCommand = 8
	tpmSessionEnd  regularCommand = 20
)

func (c regularCommand) String() string {
	switch c {
	case tpmSendCommand:
		return "TPM_SEND_COMMAND"
	case tpmSessionEnd:
		return "TPM_SESSION_END"
	default:
		return fmt.Sprintf("regularCommand(%d)", uint32(c))
	}
}

// platformCommand is a command sent on the platform port.
type platformCommand uint32

const (
	platformPowerOn  platformCommand = 1
	platformPowerOff platformCommand = 2
	platformNVOn     platformCommand = 11
	platformReset    platformCommand = 17
	platformEnd      platformCommand = 20
)

func (c platformCommand) String() string {
	switch c {
	case platformPowerOn:
		return "TPM_SIGNAL_POWER_ON"
	case platformPowerOff:
		return "TPM_SIGNAL_POWER_OFF"
	case platformNVOn:
		return "TPM_SIGNAL_NV_ON"
	case platformReset:
		return "TPM_SIGNAL_RESET"
	case platformEnd:
		return "TPM_SESSION_END"
	default:
		return fmt.Sprintf("platformCommand(%d)", uint32(c))
	}
}

// maxResponse bounds the response size the simulator may announce.
const maxResponse = 4096

var (
	// ErrPlatformFailed indicates that a platform command returned a
	// nonzero status.
	ErrPlatformFailed = errors.New("platform command failed")
	// ErrTPMFailed indicates that the simulator returned a nonzero
	// trailing status after a command.
	ErrTPMFailed = errors.New("TPM command failed")
	// ErrResponseTooBig indicates that the simulator announced a response
	// larger than maxResponse.
	ErrResponseTooBig = errors.New("response too big")
	// ErrTransport indicates a failure to talk to the simulator.
	ErrTransport = errors.New("transport error")
	// ErrEmptyResponse indicates an empty response, which the simulator
	// sends when it is powered off.
	ErrEmptyResponse = errors.New("empty response (is the TPM powered on?)")
	// ErrBusy indicates that a command was dispatched before the previous
	// response was collected.
	ErrBusy = errors.New("previous response was not collected")
)

// Config holds the simulator addresses.
type Config struct {
	// CommandAddress is the command port, e.g. "localhost:2321".
	CommandAddress string
	// PlatformAddress is the platform port, e.g. "localhost:2322".
	PlatformAddress string
	// Logger receives per-exchange debug traces. It may be nil.
	Logger logrus.FieldLogger
}

// TPM is a connection to a simulator. It implements transport.Device and
// transport.PowerController.
type TPM struct {
	cmd      net.Conn
	plat     net.Conn
	locality uint8
	log      logrus.FieldLogger

	rsp     []byte
	err     error
	pending bool
}

var (
	_ transport.Device          = (*TPM)(nil)
	_ transport.PowerController = (*TPM)(nil)
)

// Open dials both simulator ports.
func Open(config Config) (*TPM, error) {
	cmd, err := net.Dial("tcp", config.CommandAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing command port %s: %v", ErrTransport, config.CommandAddress, err)
	}
	plat, err := net.Dial("tcp", config.PlatformAddress)
	if err != nil {
		cmd.Close()
		return nil, fmt.Errorf("%w: dialing platform port %s: %v", ErrTransport, config.PlatformAddress, err)
	}
	return newTPM(cmd, plat, config.Logger), nil
}

func newTPM(cmd, plat net.Conn, log logrus.FieldLogger) *TPM {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &TPM{cmd: cmd, plat: plat, log: log.WithField("transport", "tcp")}
}

// DispatchCommand implements transport.Device. The exchange completes
// before it returns.
func (t *TPM) DispatchCommand(cmd []byte) error {
	if t.pending {
		return ErrBusy
	}
	t.rsp, t.err = t.send(cmd)
	t.pending = true
	return nil
}

// ResponseReady implements transport.Device.
func (t *TPM) ResponseReady() bool { return t.pending }

// GetResponse implements transport.Device.
func (t *TPM) GetResponse() ([]byte, error) {
	if !t.pending {
		return nil, fmt.Errorf("%w: no command in flight", ErrTransport)
	}
	rsp, err := t.rsp, t.err
	t.rsp, t.err, t.pending = nil, nil, false
	return rsp, err
}

// send frames cmd as {TPM_SEND_COMMAND, locality, len, cmd} and reads back
// {len, rsp, status}.
func (t *TPM) send(cmd []byte) ([]byte, error) {
	out := tpmutil.NewBuffer(9 + len(cmd))
	out.WriteU32(uint32(tpmSendCommand))
	out.WriteU8(t.locality)
	out.WriteSized(tpmutil.Size32, cmd)
	if err := out.Err(); err != nil {
		return nil, err
	}
	if _, err := t.cmd.Write(out.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: writing command: %v", ErrTransport, err)
	}

	rspLen, err := readU32(t.cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response length: %v", ErrTransport, err)
	}
	if rspLen > maxResponse {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooBig, rspLen)
	}
	rsp := make([]byte, rspLen)
	if _, err := io.ReadFull(t.cmd, rsp); err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}
	status, err := readU32(t.cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: reading status: %v", ErrTransport, err)
	}
	t.log.WithFields(logrus.Fields{"locality": t.locality, "cmd": len(cmd), "rsp": rspLen}).Debug("exchanged command")
	if status != 0 {
		return nil, fmt.Errorf("%w: status 0x%x", ErrTPMFailed, status)
	}
	if rspLen == 0 {
		return nil, ErrEmptyResponse
	}
	return rsp, nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	in := tpmutil.NewReader(b[:])
	return in.ReadU32(), nil
}

func (t *TPM) platform(cmd platformCommand) error {
	out := tpmutil.NewBuffer(4)
	out.WriteU32(uint32(cmd))
	if _, err := t.plat.Write(out.Bytes()); err != nil {
		return fmt.Errorf("%w: writing %v: %v", ErrTransport, cmd, err)
	}
	status, err := readU32(t.plat)
	if err != nil {
		return fmt.Errorf("%w: reading %v status: %v", ErrTransport, cmd, err)
	}
	t.log.WithField("signal", cmd).Debug("platform command")
	if status != 0 {
		return fmt.Errorf("%w: %v returned 0x%x", ErrPlatformFailed, cmd, status)
	}
	return nil
}

// PowerOn powers the simulator on and enables its NV memory.
func (t *TPM) PowerOn() error {
	if err := t.platform(platformPowerOn); err != nil {
		return err
	}
	return t.platform(platformNVOn)
}

// PowerOff powers the simulator off.
func (t *TPM) PowerOff() error {
	return t.platform(platformPowerOff)
}

// PowerCycle powers the simulator off and on again. The TPM must be started
// up afterwards.
func (t *TPM) PowerCycle() error {
	if err := t.PowerOff(); err != nil {
		return err
	}
	return t.PowerOn()
}

// Reset signals a platform reset without removing power.
func (t *TPM) Reset() error {
	return t.platform(platformReset)
}

// SetLocality sets the locality sent with subsequent commands.
func (t *TPM) SetLocality(locality uint8) error {
	if locality > 4 {
		return fmt.Errorf("%w: locality %d", ErrTransport, locality)
	}
	t.locality = locality
	return nil
}

// Close ends both sessions with the simulator and closes the connections.
func (t *TPM) Close() error {
	end := func(c net.Conn, code uint32) error {
		out := tpmutil.NewBuffer(4)
		out.WriteU32(code)
		_, werr := c.Write(out.Bytes())
		if cerr := c.Close(); werr == nil {
			werr = cerr
		}
		return werr
	}
	errCmd := end(t.cmd, uint32(tpmSessionEnd))
	errPlat := end(t.plat, uint32(platformEnd))
	if errCmd != nil {
		return errCmd
	}
	return errPlat
}
