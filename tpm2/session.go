package tpm2

import "github.com/microsoft/TSS.MSR-sub003/tpmutil"

// Session is a TPMS_AUTH_COMMAND: one entry of a command's authorization
// area. HMAC and policy sessions are passed through as given; their nonces
// and HMACs are computed by the caller.
type Session struct {
	Handle     TPMHandle
	Nonce      TPM2BNonce
	Attributes TPMASession
	Auth       TPM2BAuth
}

// PasswordSession returns a password authorization carrying auth in the
// clear.
func PasswordSession(auth []byte) Session {
	return Session{
		Handle:     TPMRSPW,
		Attributes: TPMASessionContinueSession,
		Auth:       TPM2BAuth{Buffer: auth},
	}
}

// TPMMarshal implements tpmutil.Marshaler.
func (s Session) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU32(uint32(s.Handle))
	s.Nonce.TPMMarshal(out)
	out.WriteU8(uint8(s.Attributes))
	s.Auth.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *Session) TPMUnmarshal(in *tpmutil.Buffer) {
	s.Handle = TPMHandle(in.ReadU32())
	s.Nonce.TPMUnmarshal(in)
	s.Attributes = TPMASession(in.ReadU8())
	s.Auth.TPMUnmarshal(in)
}

// slotSession is the session synthesized for an authorization slot that the
// caller did not provide a session for.
func slotSession(h AuthHandle) Session {
	if h.Handle.Type() == TPMHTPolicySession {
		return PasswordSession(nil)
	}
	return PasswordSession(h.Auth)
}

// TPMSAuthResponse represents a TPMS_AUTH_RESPONSE.
type TPMSAuthResponse struct {
	Nonce      TPM2BNonce
	Attributes TPMASession
	HMAC       TPM2BAuth
}

// TPMMarshal implements tpmutil.Marshaler.
func (r TPMSAuthResponse) TPMMarshal(out *tpmutil.Buffer) {
	r.Nonce.TPMMarshal(out)
	out.WriteU8(uint8(r.Attributes))
	r.HMAC.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *TPMSAuthResponse) TPMUnmarshal(in *tpmutil.Buffer) {
	r.Nonce.TPMUnmarshal(in)
	r.Attributes = TPMASession(in.ReadU8())
	r.HMAC.TPMUnmarshal(in)
}
