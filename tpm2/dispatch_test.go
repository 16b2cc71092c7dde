package tpm2

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// fakeDevice replays canned responses and records the commands it was sent.
type fakeDevice struct {
	cmds       [][]byte
	rsps       [][]byte
	pending    []byte
	neverReady bool
	closed     bool
}

func (d *fakeDevice) DispatchCommand(cmd []byte) error {
	d.cmds = append(d.cmds, append([]byte(nil), cmd...))
	if len(d.rsps) == 0 {
		return errors.New("no response queued")
	}
	d.pending, d.rsps = d.rsps[0], d.rsps[1:]
	return nil
}

func (d *fakeDevice) ResponseReady() bool { return !d.neverReady }

func (d *fakeDevice) GetResponse() ([]byte, error) {
	rsp := d.pending
	d.pending = nil
	return rsp, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

// response frames a response with the given tag, code and body.
func response(tag TPMST, rc TPMRC, body []byte) []byte {
	out := tpmutil.NewBuffer(10 + len(body))
	out.WriteU16(uint16(tag))
	out.WriteU32(uint32(10 + len(body)))
	out.WriteU32(uint32(rc))
	out.WriteBytes(body)
	return out.Bytes()
}

// sessionBody lays out a response body for a command with nAuth sessions:
// optional handle, parameter size, parameters and one empty auth response
// per session.
func sessionBody(t *testing.T, outHandle *TPMHandle, params []byte, nAuth int) []byte {
	t.Helper()
	out := tpmutil.NewBuffer(0)
	if outHandle != nil {
		out.WriteU32(uint32(*outHandle))
	}
	out.WriteU32(uint32(len(params)))
	out.WriteBytes(params)
	for i := 0; i < nAuth; i++ {
		TPMSAuthResponse{Attributes: TPMASessionContinueSession}.TPMMarshal(out)
	}
	if err := out.Err(); err != nil {
		t.Fatalf("building response: %v", err)
	}
	return out.Bytes()
}

func mustMarshal(t *testing.T, ms ...tpmutil.Marshaler) []byte {
	t.Helper()
	b, err := tpmutil.Marshal(ms...)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

// sentSessions parses the authorization area of a command with nHandles
// handles.
func sentSessions(t *testing.T, cmd []byte, nHandles int) (TPMST, []Session) {
	t.Helper()
	in := tpmutil.NewReader(cmd)
	tag := TPMST(in.ReadU16())
	in.ReadU32()
	in.ReadU32()
	for i := 0; i < nHandles; i++ {
		in.ReadU32()
	}
	if tag != TPMSTSessions {
		return tag, nil
	}
	var sess []Session
	in.PushSized(tpmutil.Size32)
	for in.RemainingSized() > 0 && in.Err() == nil {
		var s Session
		s.TPMUnmarshal(in)
		sess = append(sess, s)
	}
	in.PopSized()
	if err := in.Err(); err != nil {
		t.Fatalf("parsing command: %v", err)
	}
	return tag, sess
}

func TestDispatchPasswordSessions(t *testing.T) {
	certInfo := TPM2BDigest{Buffer: []byte("secret")}
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTSessions, TPMRCSuccess, sessionBody(t, nil, mustMarshal(t, certInfo), 2)),
	}}
	tpm := New(dev)

	rsp, err := ActivateCredential{
		ActivateHandle: NewAuthHandle(0x80000001, []byte("first")),
		KeyHandle:      NewAuthHandle(0x80000002, []byte("second")),
		CredentialBlob: TPM2BIDObject{Buffer: []byte{1, 2, 3}},
		Secret:         TPM2BEncryptedSecret{Buffer: []byte{4, 5}},
	}.Execute(context.Background(), tpm)
	if err != nil {
		t.Fatalf("ActivateCredential: %v", err)
	}
	if !bytes.Equal(rsp.CertInfo.Buffer, certInfo.Buffer) {
		t.Errorf("CertInfo = %x, want %x", rsp.CertInfo.Buffer, certInfo.Buffer)
	}
	if len(rsp.Sessions) != 2 {
		t.Errorf("got %d auth responses, want 2", len(rsp.Sessions))
	}

	tag, sess := sentSessions(t, dev.cmds[0], 2)
	if tag != TPMSTSessions {
		t.Fatalf("command tag = %v, want %v", tag, TPMSTSessions)
	}
	want := []Session{PasswordSession([]byte("first")), PasswordSession([]byte("second"))}
	if diff := cmp.Diff(want, sess); diff != "" {
		t.Errorf("sessions differ (-want +got):\n%v", diff)
	}
}

func TestDispatchCommandLayout(t *testing.T) {
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTSessions, TPMRCSuccess, sessionBody(t, nil, nil, 1)),
	}}
	if _, err := (EvictControl{
		Auth:             NewAuthHandle(TPMRHOwner, []byte("pw")),
		ObjectHandle:     0x80000001,
		PersistentHandle: 0x81000001,
	}).Execute(context.Background(), New(dev)); err != nil {
		t.Fatalf("EvictControl: %v", err)
	}

	want := []byte{
		0x80, 0x02, // TPM_ST_SESSIONS
		0x00, 0x00, 0x00, 0x25, // size
		0x00, 0x00, 0x01, 0x20, // TPM_CC_EvictControl
		0x40, 0x00, 0x00, 0x01, // owner
		0x80, 0x00, 0x00, 0x01, // object
		0x00, 0x00, 0x00, 0x0b, // authorization size
		0x40, 0x00, 0x00, 0x09, // TPM_RS_PW
		0x00, 0x00, // nonce
		0x01,       // continueSession
		0x00, 0x02, 'p', 'w', // password
		0x81, 0x00, 0x00, 0x01, // persistent handle
	}
	if diff := cmp.Diff(want, dev.cmds[0]); diff != "" {
		t.Errorf("command differs (-want +got):\n%v", diff)
	}
}

func TestDispatchNoSessions(t *testing.T) {
	random := TPM2BDigest{Buffer: []byte{0xde, 0xad, 0xbe, 0xef}}
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTNoSessions, TPMRCSuccess, mustMarshal(t, random)),
	}}
	rsp, err := GetRandom{BytesRequested: 4}.Execute(context.Background(), New(dev))
	if err != nil {
		t.Fatalf("GetRandom: %v", err)
	}
	if !bytes.Equal(rsp.RandomBytes.Buffer, random.Buffer) {
		t.Errorf("RandomBytes = %x, want %x", rsp.RandomBytes.Buffer, random.Buffer)
	}
	want := []byte{0x80, 0x01, 0, 0, 0, 0x0c, 0, 0, 0x01, 0x7b, 0, 4}
	if diff := cmp.Diff(want, dev.cmds[0]); diff != "" {
		t.Errorf("command differs (-want +got):\n%v", diff)
	}
}

func TestDispatchPolicySessionSlot(t *testing.T) {
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTSessions, TPMRCSuccess, sessionBody(t, nil, mustMarshal(t, TPM2BDigest{}), 2)),
	}}
	_, err := ActivateCredential{
		ActivateHandle: NewAuthHandle(0x03000000, []byte("ignored")),
		KeyHandle:      NewAuthHandle(0x80000002, []byte("key")),
	}.Execute(context.Background(), New(dev))
	if err != nil {
		t.Fatalf("ActivateCredential: %v", err)
	}
	_, sess := sentSessions(t, dev.cmds[0], 2)
	want := []Session{PasswordSession(nil), PasswordSession([]byte("key"))}
	if diff := cmp.Diff(want, sess); diff != "" {
		t.Errorf("sessions differ (-want +got):\n%v", diff)
	}
}

func TestDispatchExplicitSessions(t *testing.T) {
	hmacSession := Session{
		Handle:     0x02000000,
		Nonce:      TPM2BNonce{Buffer: []byte{1, 2, 3, 4}},
		Attributes: TPMASessionContinueSession,
		Auth:       TPM2BAuth{Buffer: []byte{5, 6}},
	}
	audit := Session{Handle: 0x02000001, Attributes: TPMASessionAudit}

	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTSessions, TPMRCSuccess, sessionBody(t, nil, nil, 2)),
	}}
	rsp, err := EvictControl{
		Auth:             NewAuthHandle(TPMRHOwner, []byte("unused")),
		ObjectHandle:     0x80000001,
		PersistentHandle: 0x81000001,
	}.Execute(context.Background(), New(dev), WithSessions(hmacSession, audit))
	if err != nil {
		t.Fatalf("EvictControl: %v", err)
	}
	if len(rsp.Sessions) != 2 {
		t.Errorf("got %d auth responses, want 2", len(rsp.Sessions))
	}
	_, sess := sentSessions(t, dev.cmds[0], 2)
	if diff := cmp.Diff([]Session{hmacSession, audit}, sess); diff != "" {
		t.Errorf("sessions differ (-want +got):\n%v", diff)
	}
}

func TestDispatchTooManySessions(t *testing.T) {
	dev := &fakeDevice{}
	s := PasswordSession(nil)
	_, err := Startup{StartupType: TPMSUClear}.Execute(context.Background(), New(dev), WithSessions(s, s, s, s))
	if err == nil {
		t.Fatal("Startup with 4 sessions succeeded")
	}
	if len(dev.cmds) != 0 {
		t.Errorf("%d commands sent, want 0", len(dev.cmds))
	}
}

func TestDispatchErrorPolicy(t *testing.T) {
	tests := []struct {
		name     string
		rc       TPMRC
		opts     []CallOption
		wantErr  bool
		wantCode TPMRC
	}{
		{
			name:     "failure",
			rc:       TPMRCInitialize,
			wantErr:  true,
			wantCode: TPMRCInitialize,
		},
		{
			name:     "failure suppressed",
			rc:       TPMRCInitialize,
			opts:     []CallOption{SuppressErrors()},
			wantCode: TPMRCInitialize,
		},
		{
			name:     "failure allowed",
			rc:       TPMRCInitialize,
			opts:     []CallOption{AllowErrors(TPMRCInitialize)},
			wantCode: TPMRCInitialize,
		},
		{
			name:     "other failure allowed",
			rc:       TPMRCInitialize,
			opts:     []CallOption{AllowErrors(TPMRCValue)},
			wantErr:  true,
			wantCode: TPMRCInitialize,
		},
		{
			name:     "format one failure allowed",
			rc:       TPMRCValue + rcP + 0x100,
			opts:     []CallOption{AllowErrors(TPMRCValue)},
			wantCode: TPMRCValue,
		},
		{
			name:     "unexpected success",
			rc:       TPMRCSuccess,
			opts:     []CallOption{AllowErrors(TPMRCInitialize)},
			wantErr:  true,
			wantCode: TPMRCSuccess,
		},
		{
			name:     "success allowed",
			rc:       TPMRCSuccess,
			opts:     []CallOption{AllowErrors(TPMRCInitialize, TPMRCSuccess)},
			wantCode: TPMRCSuccess,
		},
		{
			name:     "success suppressed",
			rc:       TPMRCSuccess,
			opts:     []CallOption{AllowErrors(TPMRCInitialize), SuppressErrors()},
			wantCode: TPMRCSuccess,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := &fakeDevice{rsps: [][]byte{response(TPMSTNoSessions, test.rc, nil)}}
			res, err := Startup{StartupType: TPMSUClear}.Execute(context.Background(), New(dev), test.opts...)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("Startup() error = %v, want error %v", err, test.wantErr)
			}
			if res == nil {
				t.Fatal("Startup() returned no result")
			}
			if res.Code != test.wantCode {
				t.Errorf("Code = %v, want %v", res.Code, test.wantCode)
			}
			if res.Raw != test.rc {
				t.Errorf("Raw = %v, want %v", res.Raw, test.rc)
			}
		})
	}
}

func TestDispatchTPMError(t *testing.T) {
	raw := TPMRCBadAuth + rcS + 0x100
	dev := &fakeDevice{rsps: [][]byte{response(TPMSTSessions, raw, nil)}}
	_, err := EvictControl{Auth: NewAuthHandle(TPMRHOwner, nil)}.Execute(context.Background(), New(dev))

	var tpmErr *TPMError
	if !errors.As(err, &tpmErr) {
		t.Fatalf("error %v is not a *TPMError", err)
	}
	if tpmErr.Command != TPMCCEvictControl {
		t.Errorf("Command = %v, want %v", tpmErr.Command, TPMCCEvictControl)
	}
	if tpmErr.Code != TPMRCBadAuth || tpmErr.Raw != raw {
		t.Errorf("Code, Raw = %v, %v; want %v, %v", tpmErr.Code, tpmErr.Raw, TPMRCBadAuth, raw)
	}
	if !errors.Is(err, TPMRCBadAuth) {
		t.Errorf("errors.Is(%v, TPMRCBadAuth) = false", err)
	}
	if errors.Is(err, TPMRCAuthFail) {
		t.Errorf("errors.Is(%v, TPMRCAuthFail) = true", err)
	}
}

func TestDispatchUnexpectedSuccess(t *testing.T) {
	dev := &fakeDevice{rsps: [][]byte{response(TPMSTNoSessions, TPMRCSuccess, nil)}}
	_, err := Startup{}.Execute(context.Background(), New(dev), AllowErrors(TPMRCInitialize))
	var unexpected *UnexpectedSuccessError
	if !errors.As(err, &unexpected) {
		t.Fatalf("error %v is not an *UnexpectedSuccessError", err)
	}
	if diff := cmp.Diff([]TPMRC{TPMRCInitialize}, unexpected.Expected); diff != "" {
		t.Errorf("Expected differs (-want +got):\n%v", diff)
	}
}

func TestDispatchRetry(t *testing.T) {
	random := TPM2BDigest{Buffer: []byte{1, 2}}
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTNoSessions, TPMRCRetry, nil),
		response(TPMSTNoSessions, TPMRCRetry, nil),
		response(TPMSTNoSessions, TPMRCSuccess, mustMarshal(t, random)),
	}}
	rsp, err := GetRandom{BytesRequested: 2}.Execute(context.Background(), New(dev))
	if err != nil {
		t.Fatalf("GetRandom: %v", err)
	}
	if !bytes.Equal(rsp.RandomBytes.Buffer, random.Buffer) {
		t.Errorf("RandomBytes = %x, want %x", rsp.RandomBytes.Buffer, random.Buffer)
	}
	if len(dev.cmds) != 3 {
		t.Fatalf("%d commands sent, want 3", len(dev.cmds))
	}
	for i := 1; i < len(dev.cmds); i++ {
		if !bytes.Equal(dev.cmds[i], dev.cmds[0]) {
			t.Errorf("attempt %d sent %x, want %x", i+1, dev.cmds[i], dev.cmds[0])
		}
	}
}

func TestDispatchNVRateNotRetried(t *testing.T) {
	dev := &fakeDevice{rsps: [][]byte{response(TPMSTNoSessions, TPMRCNVRate, nil)}}
	_, err := Startup{}.Execute(context.Background(), New(dev))
	if !errors.Is(err, TPMRCNVRate) {
		t.Errorf("Startup() error = %v, want TPM_RC_NV_RATE", err)
	}
	if len(dev.cmds) != 1 {
		t.Errorf("%d commands sent, want 1", len(dev.cmds))
	}
}

func TestDispatchInvalidResponse(t *testing.T) {
	short := response(TPMSTNoSessions, TPMRCSuccess, nil)
	short[5]++ // declared size one larger than the response
	trailing := response(TPMSTNoSessions, TPMRCSuccess, []byte{0})
	tests := []struct {
		name string
		rsp  []byte
	}{
		{"size mismatch", short},
		{"truncated header", []byte{0x80, 0x01, 0, 0}},
		{"tag mismatch", response(TPMSTSessions, TPMRCSuccess, sessionBody(t, nil, nil, 0))},
		{"unexpected parameters", trailing},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dev := &fakeDevice{rsps: [][]byte{test.rsp}}
			_, err := Startup{}.Execute(context.Background(), New(dev))
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("Startup() error = %v, want %v", err, ErrInvalidResponse)
			}
		})
	}
}

func TestDispatchTruncatedParameters(t *testing.T) {
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTNoSessions, TPMRCSuccess, []byte{0, 8, 1, 2}),
	}}
	_, err := GetRandom{BytesRequested: 8}.Execute(context.Background(), New(dev))
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("GetRandom() error = %v, want %v", err, ErrInvalidResponse)
	}
}

func TestDispatchOutHandle(t *testing.T) {
	objHandle := TPMHandle(0x80000005)
	name := TPM2BName{Buffer: []byte{0, 0x0b, 9, 9}}
	dev := &fakeDevice{rsps: [][]byte{
		response(TPMSTSessions, TPMRCSuccess, sessionBody(t, &objHandle, mustMarshal(t, name), 1)),
	}}
	rsp, err := Load{
		ParentHandle: NewAuthHandle(0x81000001, nil),
		InPrivate:    TPM2BPrivate{Buffer: []byte{1}},
		InPublic:     New2BPublic(&RSASRKTemplate),
	}.Execute(context.Background(), New(dev))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := dev.cmds[0][10:14]; !bytes.Equal(got, []byte{0x81, 0, 0, 0x01}) {
		t.Errorf("parent handle sent = %x, want 81000001", got)
	}
	if rsp.ObjectHandle != objHandle {
		t.Errorf("ObjectHandle = %v, want %v", rsp.ObjectHandle, objHandle)
	}
	if !bytes.Equal(rsp.Name.Buffer, name.Buffer) {
		t.Errorf("Name = %x, want %x", rsp.Name.Buffer, name.Buffer)
	}
}

func TestDispatchCanceled(t *testing.T) {
	t.Run("before sending", func(t *testing.T) {
		dev := &fakeDevice{rsps: [][]byte{response(TPMSTNoSessions, TPMRCSuccess, nil)}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := (Startup{}).Execute(ctx, New(dev)); !errors.Is(err, context.Canceled) {
			t.Errorf("Startup() error = %v, want %v", err, context.Canceled)
		}
		if len(dev.cmds) != 0 {
			t.Errorf("%d commands sent, want 0", len(dev.cmds))
		}
	})
	t.Run("while waiting", func(t *testing.T) {
		dev := &fakeDevice{
			rsps:       [][]byte{response(TPMSTNoSessions, TPMRCSuccess, nil)},
			neverReady: true,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := (Startup{}).Execute(ctx, New(dev)); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Startup() error = %v, want %v", err, context.DeadlineExceeded)
		}
		if dev.pending != nil {
			t.Error("pending response was not collected")
		}
	})
}

func TestClose(t *testing.T) {
	dev := &fakeDevice{}
	if err := New(dev).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !dev.closed {
		t.Error("device was not closed")
	}
}
