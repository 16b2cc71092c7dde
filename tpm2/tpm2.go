// Package tpm2 implements the TPM 2.0 command protocol: command and response
// framing, authorization areas, response code policy, and the
// cryptographic primitives used to protect secrets for a TPM.
package tpm2

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// maxSessions bounds the authorization area of a single command.
const maxSessions = 3

// pollInterval is how often a device is asked whether its response is ready.
const pollInterval = time.Millisecond

// TPM dispatches commands to a single Device. It is safe for concurrent
// use; exchanges with the Device are serialized.
type TPM struct {
	mu  sync.Mutex
	dev transport.Device
	log logrus.FieldLogger
}

// Option configures a TPM.
type Option func(*TPM)

// WithLogger sets the logger used for per-command debug traces.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *TPM) { t.log = l }
}

// New returns a TPM that dispatches commands to dev.
func New(dev transport.Device, opts ...Option) *TPM {
	t := &TPM{dev: dev}
	for _, o := range opts {
		o(t)
	}
	if t.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		t.log = l
	}
	return t
}

// Close closes the underlying Device.
func (t *TPM) Close() error {
	return t.dev.Close()
}

// Device returns the underlying Device.
func (t *TPM) Device() transport.Device { return t.dev }

// Call describes one command invocation.
type Call struct {
	Code TPMCC
	// Handles is the handle area, in order. The first NumAuth handles
	// require authorization.
	Handles []AuthHandle
	NumAuth int
	// Request marshals the parameter area. It may be nil.
	Request tpmutil.Marshaler
	// Response unmarshals the parameter area. It may be nil for commands
	// without response parameters.
	Response tpmutil.Unmarshaler
	// OutHandle receives the handle returned ahead of the parameters, for
	// commands that return one.
	OutHandle *TPMHandle
}

// Result is the outcome of a dispatched command.
type Result struct {
	// Code is the decoded response code.
	Code TPMRC
	// Raw is the response code as returned by the TPM.
	Raw TPMRC
	// Sessions holds the authorization responses, one per session sent.
	Sessions []TPMSAuthResponse
}

// Succeeded reports whether the TPM returned TPM_RC_SUCCESS.
func (r *Result) Succeeded() bool { return r.Code == TPMRCSuccess }

type callOptions struct {
	sessions []Session
	allowed  []TPMRC
	suppress bool
}

// CallOption modifies a single Dispatch.
type CallOption func(*callOptions)

// WithSessions supplies explicit sessions. Session i is used for
// authorization slot i; sessions beyond the authorized handles are appended
// to the authorization area.
func WithSessions(s ...Session) CallOption {
	return func(o *callOptions) { o.sessions = append(o.sessions, s...) }
}

// AllowErrors lists response codes that complete the call without an
// error. Listing only failure codes makes success an error.
func AllowErrors(rcs ...TPMRC) CallOption {
	return func(o *callOptions) {
		for _, rc := range rcs {
			o.allowed = append(o.allowed, rc.Decode())
		}
	}
}

// SuppressErrors makes any response code complete the call without an
// error. The code is reported in the Result.
func SuppressErrors() CallOption {
	return func(o *callOptions) { o.suppress = true }
}

func (o *callOptions) allows(rc TPMRC) bool {
	for _, a := range o.allowed {
		if a == rc {
			return true
		}
	}
	return false
}

// Dispatch performs one command exchange. Busy responses (TPM_RC_RETRY) are
// resubmitted until the TPM accepts the command or ctx is done.
func (t *TPM) Dispatch(ctx context.Context, call Call, opts ...CallOption) (*Result, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	cmd, tag, nSess, err := cmdBuild(call, o.sessions)
	if err != nil {
		return nil, fmt.Errorf("encoding %v: %w", call.Code, err)
	}
	log := t.log.WithField("command", call.Code)

	t.mu.Lock()
	defer t.mu.Unlock()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rsp, err := t.exchange(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", call.Code, err)
		}
		rspTag, raw, body, err := rspHeader(rsp)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", call.Code, err)
		}
		rc := raw.Decode()
		log.WithFields(logrus.Fields{"rc": raw, "attempt": attempt}).Debug("response received")
		if rc == TPMRCRetry {
			continue
		}

		res := &Result{Code: rc, Raw: raw}
		if rc != TPMRCSuccess {
			if o.suppress || o.allows(rc) {
				return res, nil
			}
			return res, &TPMError{Command: call.Code, Code: rc, Raw: raw}
		}
		if len(o.allowed) > 0 && !o.allows(TPMRCSuccess) && !o.suppress {
			return res, &UnexpectedSuccessError{Command: call.Code, Expected: o.allowed}
		}
		if rspTag != tag {
			return nil, fmt.Errorf("%v: %w: response tag %v for request tag %v", call.Code, ErrInvalidResponse, rspTag, tag)
		}
		if res.Sessions, err = rspBody(call, tag, nSess, body); err != nil {
			return nil, fmt.Errorf("%v: %w", call.Code, err)
		}
		return res, nil
	}
}

// exchange sends cmd and waits for the response.
func (t *TPM) exchange(ctx context.Context, cmd []byte) ([]byte, error) {
	if err := t.dev.DispatchCommand(cmd); err != nil {
		return nil, fmt.Errorf("sending command: %w", err)
	}
	for !t.dev.ResponseReady() {
		select {
		case <-ctx.Done():
			// Collect the response so the device is ready for the next
			// command.
			_, _ = t.dev.GetResponse()
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	rsp, err := t.dev.GetResponse()
	if err != nil {
		return nil, fmt.Errorf("receiving response: %w", err)
	}
	return rsp, nil
}

// cmdBuild encodes a command. It returns the command bytes, the header tag
// and the number of sessions in the authorization area.
func cmdBuild(call Call, explicit []Session) ([]byte, TPMST, int, error) {
	if call.NumAuth < 0 || call.NumAuth > len(call.Handles) {
		return nil, 0, 0, fmt.Errorf("%d authorized handles out of %d", call.NumAuth, len(call.Handles))
	}
	sess := cmdAuths(call, explicit)
	if len(sess) > maxSessions {
		return nil, 0, 0, fmt.Errorf("%d sessions exceed the limit of %d", len(sess), maxSessions)
	}
	tag := TPMSTNoSessions
	if len(sess) > 0 {
		tag = TPMSTSessions
	}

	body := tpmutil.NewBuffer(0)
	for _, h := range call.Handles {
		body.WriteU32(uint32(h.Handle))
	}
	if len(sess) > 0 {
		body.BeginSized(tpmutil.Size32)
		for _, s := range sess {
			s.TPMMarshal(body)
		}
		body.EndSized()
	}
	if call.Request != nil {
		call.Request.TPMMarshal(body)
	}
	if err := body.Err(); err != nil {
		return nil, 0, 0, err
	}

	hdr, err := tpmutil.CommandHeader(tpmutil.Tag(tag), len(body.Bytes()), tpmutil.Command(call.Code))
	if err != nil {
		return nil, 0, 0, err
	}
	return append(hdr, body.Bytes()...), tag, len(sess), nil
}

// cmdAuths returns the authorization area: explicit session i or a password
// session for each authorized handle, followed by any extra explicit
// sessions.
func cmdAuths(call Call, explicit []Session) []Session {
	var sess []Session
	for i := 0; i < call.NumAuth; i++ {
		if i < len(explicit) {
			sess = append(sess, explicit[i])
			continue
		}
		sess = append(sess, slotSession(call.Handles[i]))
	}
	if len(explicit) > call.NumAuth {
		sess = append(sess, explicit[call.NumAuth:]...)
	}
	return sess
}

// rspHeader validates the response header and returns its tag, raw
// response code, and the bytes that follow it.
func rspHeader(rsp []byte) (TPMST, TPMRC, []byte, error) {
	tag, size, rc, err := tpmutil.ResponseHeader(rsp)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if int(size) != len(rsp) {
		return 0, 0, nil, fmt.Errorf("%w: header declares %d bytes, got %d", ErrInvalidResponse, size, len(rsp))
	}
	return TPMST(tag), TPMRC(rc), rsp[10:], nil
}

// rspBody decodes the handle, parameter and session areas of a successful
// response.
func rspBody(call Call, tag TPMST, nSess int, body []byte) ([]TPMSAuthResponse, error) {
	in := tpmutil.NewReader(body)
	if call.OutHandle != nil {
		*call.OutHandle = TPMHandle(in.ReadU32())
	}

	// Without sessions the rest of the response is the parameter area.
	if tag == TPMSTSessions {
		in.PushSized(tpmutil.Size32)
	}
	if call.Response != nil {
		call.Response.TPMUnmarshal(in)
	} else if tag == TPMSTSessions && in.RemainingSized() != 0 {
		in.Failf("%d bytes of unexpected response parameters", in.RemainingSized())
	}
	if tag == TPMSTSessions {
		in.PopSized()
	}

	var sess []TPMSAuthResponse
	if tag == TPMSTSessions {
		sess = make([]TPMSAuthResponse, nSess)
		for i := range sess {
			sess[i].TPMUnmarshal(in)
		}
	}
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if in.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidResponse, in.Len())
	}
	return sess, nil
}
