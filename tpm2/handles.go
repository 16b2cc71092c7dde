package tpm2

import (
	"encoding/binary"
	"fmt"
)

// TPMHandle represents a TPM_HANDLE.
type TPMHandle uint32

// TPMHT represents a TPM_HT handle type, the top byte of a handle.
type TPMHT uint8

// Handle types.
const (
	TPMHTPCR           TPMHT = 0x00
	TPMHTNVIndex       TPMHT = 0x01
	TPMHTHMACSession   TPMHT = 0x02
	TPMHTPolicySession TPMHT = 0x03
	TPMHTPermanent     TPMHT = 0x40
	TPMHTTransient     TPMHT = 0x80
	TPMHTPersistent    TPMHT = 0x81
)

var htNames = map[TPMHT]string{
	TPMHTPCR:           "PCR",
	TPMHTNVIndex:       "NV_INDEX",
	TPMHTHMACSession:   "HMAC_SESSION",
	TPMHTPolicySession: "POLICY_SESSION",
	TPMHTPermanent:     "PERMANENT",
	TPMHTTransient:     "TRANSIENT",
	TPMHTPersistent:    "PERSISTENT",
}

func (h TPMHT) String() string { return enumString(h, htNames) }

// Known reports whether h is a named handle type.
func (h TPMHT) Known() bool {
	_, ok := htNames[h]
	return ok
}

// Permanent handles.
const (
	TPMRHOwner       TPMHandle = 0x40000001
	TPMRHNull        TPMHandle = 0x40000007
	TPMRSPW          TPMHandle = 0x40000009
	TPMRHLockout     TPMHandle = 0x4000000A
	TPMRHEndorsement TPMHandle = 0x4000000B
	TPMRHPlatform    TPMHandle = 0x4000000C
)

// Type returns the handle type encoded in the top byte of h.
func (h TPMHandle) Type() TPMHT { return TPMHT(h >> 24) }

// KnownName returns the Name of h when it can be computed from the handle
// value alone, which is the case for PCRs, sessions and permanent handles.
// For objects and NV indices the Name is a digest and nil is returned.
func (h TPMHandle) KnownName() []byte {
	switch h.Type() {
	case TPMHTPCR, TPMHTHMACSession, TPMHTPolicySession, TPMHTPermanent:
		var name [4]byte
		binary.BigEndian.PutUint32(name[:], uint32(h))
		return name[:]
	}
	return nil
}

func (h TPMHandle) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}

// AuthHandle is a handle together with the authorization value used when a
// command needs authorization for it. Callers set Auth before dispatching.
type AuthHandle struct {
	Handle TPMHandle
	// Name is the cached Name of the entity, if known.
	Name []byte
	Auth []byte
}

// NewAuthHandle returns an AuthHandle for h with the given authorization
// value. The Name is filled in when it follows from the handle value.
func NewAuthHandle(h TPMHandle, auth []byte) AuthHandle {
	return AuthHandle{Handle: h, Name: h.KnownName(), Auth: auth}
}
