package tpm2

import (
	"errors"
	"fmt"
)

// ErrInvalidResponse is wrapped by every error caused by a malformed
// response from the TPM.
var ErrInvalidResponse = errors.New("tpm2: invalid response")

// TPMRC represents a TPM_RC response code. Constants are given in decoded
// form, without parameter, handle or session numbers.
type TPMRC uint32

// Response code format bits.
const (
	rcVer1    TPMRC = 0x100
	rcFmt1    TPMRC = 0x080
	rcWarn    TPMRC = 0x900
	rcVendor  TPMRC = 0x400
	rcP       TPMRC = 0x040
	rcS       TPMRC = 0x800
	rcN       TPMRC = 0xF00
	rcFmt1Err TPMRC = 0x03F
	rcFmt0Err TPMRC = 0x07F
)

// Response codes.
const (
	TPMRCSuccess TPMRC = 0x000

	// Format 0 errors.
	TPMRCInitialize      = rcVer1 + 0x000
	TPMRCFailure         = rcVer1 + 0x001
	TPMRCSequence        = rcVer1 + 0x003
	TPMRCPrivate         = rcVer1 + 0x00B
	TPMRCHMAC            = rcVer1 + 0x019
	TPMRCDisabled        = rcVer1 + 0x020
	TPMRCExclusive       = rcVer1 + 0x021
	TPMRCAuthType        = rcVer1 + 0x024
	TPMRCAuthMissing     = rcVer1 + 0x025
	TPMRCPolicy          = rcVer1 + 0x026
	TPMRCPCR             = rcVer1 + 0x027
	TPMRCPCRChanged      = rcVer1 + 0x028
	TPMRCUpgrade         = rcVer1 + 0x02D
	TPMRCTooManyContexts = rcVer1 + 0x02E
	TPMRCAuthUnavailable = rcVer1 + 0x02F
	TPMRCReboot          = rcVer1 + 0x030
	TPMRCUnbalanced      = rcVer1 + 0x031
	TPMRCCommandSize     = rcVer1 + 0x042
	TPMRCCommandCode     = rcVer1 + 0x043
	TPMRCAuthSize        = rcVer1 + 0x044
	TPMRCAuthContext     = rcVer1 + 0x045
	TPMRCNVRange         = rcVer1 + 0x046
	TPMRCNVSize          = rcVer1 + 0x047
	TPMRCNVLocked        = rcVer1 + 0x048
	TPMRCNVAuthorization = rcVer1 + 0x049
	TPMRCNVUninitialized = rcVer1 + 0x04A
	TPMRCNVSpace         = rcVer1 + 0x04B
	TPMRCNVDefined       = rcVer1 + 0x04C
	TPMRCBadContext      = rcVer1 + 0x050
	TPMRCCPHash          = rcVer1 + 0x051
	TPMRCParent          = rcVer1 + 0x052
	TPMRCNeedsTest       = rcVer1 + 0x053
	TPMRCNoResult        = rcVer1 + 0x054
	TPMRCSensitive       = rcVer1 + 0x055

	// Format 1 errors.
	TPMRCAsymmetric   = rcFmt1 + 0x001
	TPMRCAttributes   = rcFmt1 + 0x002
	TPMRCHash         = rcFmt1 + 0x003
	TPMRCValue        = rcFmt1 + 0x004
	TPMRCHierarchy    = rcFmt1 + 0x005
	TPMRCKeySize      = rcFmt1 + 0x007
	TPMRCMGF          = rcFmt1 + 0x008
	TPMRCMode         = rcFmt1 + 0x009
	TPMRCType         = rcFmt1 + 0x00A
	TPMRCHandle       = rcFmt1 + 0x00B
	TPMRCKDF          = rcFmt1 + 0x00C
	TPMRCRange        = rcFmt1 + 0x00D
	TPMRCAuthFail     = rcFmt1 + 0x00E
	TPMRCNonce        = rcFmt1 + 0x00F
	TPMRCPP           = rcFmt1 + 0x010
	TPMRCScheme       = rcFmt1 + 0x012
	TPMRCSize         = rcFmt1 + 0x015
	TPMRCSymmetric    = rcFmt1 + 0x016
	TPMRCTag          = rcFmt1 + 0x017
	TPMRCSelector     = rcFmt1 + 0x018
	TPMRCInsufficient = rcFmt1 + 0x01A
	TPMRCSignature    = rcFmt1 + 0x01B
	TPMRCKey          = rcFmt1 + 0x01C
	TPMRCPolicyFail   = rcFmt1 + 0x01D
	TPMRCIntegrity    = rcFmt1 + 0x01F
	TPMRCTicket       = rcFmt1 + 0x020
	TPMRCReservedBits = rcFmt1 + 0x021
	TPMRCBadAuth      = rcFmt1 + 0x022
	TPMRCExpired      = rcFmt1 + 0x023
	TPMRCPolicyCC     = rcFmt1 + 0x024
	TPMRCBinding      = rcFmt1 + 0x025
	TPMRCCurve        = rcFmt1 + 0x026
	TPMRCECCPoint     = rcFmt1 + 0x027

	// Warnings.
	TPMRCContextGap     = rcWarn + 0x001
	TPMRCObjectMemory   = rcWarn + 0x002
	TPMRCSessionMemory  = rcWarn + 0x003
	TPMRCMemory         = rcWarn + 0x004
	TPMRCSessionHandles = rcWarn + 0x005
	TPMRCObjectHandles  = rcWarn + 0x006
	TPMRCLocality       = rcWarn + 0x007
	TPMRCYielded        = rcWarn + 0x008
	TPMRCCanceled       = rcWarn + 0x009
	TPMRCTesting        = rcWarn + 0x00A
	TPMRCReferenceH0    = rcWarn + 0x010
	TPMRCReferenceS0    = rcWarn + 0x018
	TPMRCNVRate         = rcWarn + 0x020
	TPMRCLockout        = rcWarn + 0x021
	TPMRCRetry          = rcWarn + 0x022
	TPMRCNVUnavailable  = rcWarn + 0x023
)

type rcInfo struct {
	name string
	msg  string
}

var rcTable = map[TPMRC]rcInfo{
	TPMRCSuccess: {"TPM_RC_SUCCESS", "success"},

	TPMRCInitialize:      {"TPM_RC_INITIALIZE", "TPM not initialized by TPM2_Startup or already initialized"},
	TPMRCFailure:         {"TPM_RC_FAILURE", "commands not being accepted because of a TPM failure"},
	TPMRCSequence:        {"TPM_RC_SEQUENCE", "improper use of a sequence handle"},
	TPMRCPrivate:         {"TPM_RC_PRIVATE", "not currently used"},
	TPMRCHMAC:            {"TPM_RC_HMAC", "not currently used"},
	TPMRCDisabled:        {"TPM_RC_DISABLED", "the command is disabled"},
	TPMRCExclusive:       {"TPM_RC_EXCLUSIVE", "command failed because audit sequence required exclusivity"},
	TPMRCAuthType:        {"TPM_RC_AUTH_TYPE", "authorization handle is not correct for command"},
	TPMRCAuthMissing:     {"TPM_RC_AUTH_MISSING", "command requires an authorization session for handle and it is not present"},
	TPMRCPolicy:          {"TPM_RC_POLICY", "policy failure in math operation or an invalid authPolicy value"},
	TPMRCPCR:             {"TPM_RC_PCR", "PCR check fail"},
	TPMRCPCRChanged:      {"TPM_RC_PCR_CHANGED", "PCR have changed since checked"},
	TPMRCUpgrade:         {"TPM_RC_UPGRADE", "TPM is in field upgrade mode unless called via TPM2_FieldUpgradeData(), then it is not in field upgrade mode"},
	TPMRCTooManyContexts: {"TPM_RC_TOO_MANY_CONTEXTS", "context ID counter is at maximum"},
	TPMRCAuthUnavailable: {"TPM_RC_AUTH_UNAVAILABLE", "authValue or authPolicy is not available for selected entity"},
	TPMRCReboot:          {"TPM_RC_REBOOT", "a _TPM_Init and Startup(CLEAR) is required before the TPM can resume operation"},
	TPMRCUnbalanced:      {"TPM_RC_UNBALANCED", "the protection algorithms (hash and symmetric) are not reasonably balanced"},
	TPMRCCommandSize:     {"TPM_RC_COMMAND_SIZE", "command commandSize value is inconsistent with contents of the command buffer"},
	TPMRCCommandCode:     {"TPM_RC_COMMAND_CODE", "command code not supported"},
	TPMRCAuthSize:        {"TPM_RC_AUTHSIZE", "the value of authorizationSize is out of range or the number of octets in the Authorization Area is greater than required"},
	TPMRCAuthContext:     {"TPM_RC_AUTH_CONTEXT", "use of an authorization session with a context command or another command that cannot have an authorization session"},
	TPMRCNVRange:         {"TPM_RC_NV_RANGE", "NV offset+size is out of range"},
	TPMRCNVSize:          {"TPM_RC_NV_SIZE", "requested allocation size is larger than allowed"},
	TPMRCNVLocked:        {"TPM_RC_NV_LOCKED", "NV access locked"},
	TPMRCNVAuthorization: {"TPM_RC_NV_AUTHORIZATION", "NV access authorization fails in command actions"},
	TPMRCNVUninitialized: {"TPM_RC_NV_UNINITIALIZED", "an NV Index is used before being initialized or the state saved by TPM2_Shutdown(STATE) could not be restored"},
	TPMRCNVSpace:         {"TPM_RC_NV_SPACE", "insufficient space for NV allocation"},
	TPMRCNVDefined:       {"TPM_RC_NV_DEFINED", "NV Index or persistent object already defined"},
	TPMRCBadContext:      {"TPM_RC_BAD_CONTEXT", "context in TPM2_ContextLoad() is not valid"},
	TPMRCCPHash:          {"TPM_RC_CPHASH", "cpHash value already set or not correct for use"},
	TPMRCParent:          {"TPM_RC_PARENT", "handle for parent is not a valid parent"},
	TPMRCNeedsTest:       {"TPM_RC_NEEDS_TEST", "some function needs testing"},
	TPMRCNoResult:        {"TPM_RC_NO_RESULT", "an internal function cannot process a request due to an unspecified problem"},
	TPMRCSensitive:       {"TPM_RC_SENSITIVE", "the sensitive area did not unmarshal correctly after decryption"},

	TPMRCAsymmetric:   {"TPM_RC_ASYMMETRIC", "asymmetric algorithm not supported or not correct"},
	TPMRCAttributes:   {"TPM_RC_ATTRIBUTES", "inconsistent attributes"},
	TPMRCHash:         {"TPM_RC_HASH", "hash algorithm not supported or not appropriate"},
	TPMRCValue:        {"TPM_RC_VALUE", "value is out of range or is not correct for the context"},
	TPMRCHierarchy:    {"TPM_RC_HIERARCHY", "hierarchy is not enabled or is not correct for the use"},
	TPMRCKeySize:      {"TPM_RC_KEY_SIZE", "key size is not supported"},
	TPMRCMGF:          {"TPM_RC_MGF", "mask generation function not supported"},
	TPMRCMode:         {"TPM_RC_MODE", "mode of operation not supported"},
	TPMRCType:         {"TPM_RC_TYPE", "the type of the value is not appropriate for the use"},
	TPMRCHandle:       {"TPM_RC_HANDLE", "the handle is not correct for the use"},
	TPMRCKDF:          {"TPM_RC_KDF", "unsupported key derivation function or function not appropriate for use"},
	TPMRCRange:        {"TPM_RC_RANGE", "value was out of allowed range"},
	TPMRCAuthFail:     {"TPM_RC_AUTH_FAIL", "the authorization HMAC check failed and DA counter incremented"},
	TPMRCNonce:        {"TPM_RC_NONCE", "invalid nonce size or nonce value mismatch"},
	TPMRCPP:           {"TPM_RC_PP", "authorization requires assertion of PP"},
	TPMRCScheme:       {"TPM_RC_SCHEME", "unsupported or incompatible scheme"},
	TPMRCSize:         {"TPM_RC_SIZE", "structure is the wrong size"},
	TPMRCSymmetric:    {"TPM_RC_SYMMETRIC", "unsupported symmetric algorithm or key size, or not appropriate for instance"},
	TPMRCTag:          {"TPM_RC_TAG", "incorrect structure tag"},
	TPMRCSelector:     {"TPM_RC_SELECTOR", "union selector is incorrect"},
	TPMRCInsufficient: {"TPM_RC_INSUFFICIENT", "the TPM was unable to unmarshal a value because there were not enough octets in the input buffer"},
	TPMRCSignature:    {"TPM_RC_SIGNATURE", "the signature is not valid"},
	TPMRCKey:          {"TPM_RC_KEY", "key fields are not compatible with the selected use"},
	TPMRCPolicyFail:   {"TPM_RC_POLICY_FAIL", "a policy check failed"},
	TPMRCIntegrity:    {"TPM_RC_INTEGRITY", "integrity check failed"},
	TPMRCTicket:       {"TPM_RC_TICKET", "invalid ticket"},
	TPMRCReservedBits: {"TPM_RC_RESERVED_BITS", "reserved bits not set to zero as required"},
	TPMRCBadAuth:      {"TPM_RC_BAD_AUTH", "authorization failure without DA implications"},
	TPMRCExpired:      {"TPM_RC_EXPIRED", "the policy has expired"},
	TPMRCPolicyCC:     {"TPM_RC_POLICY_CC", "the commandCode in the policy is not the commandCode of the command"},
	TPMRCBinding:      {"TPM_RC_BINDING", "public and sensitive portions of an object are not cryptographically bound"},
	TPMRCCurve:        {"TPM_RC_CURVE", "curve not supported"},
	TPMRCECCPoint:     {"TPM_RC_ECC_POINT", "point is not on the required curve"},

	TPMRCContextGap:     {"TPM_RC_CONTEXT_GAP", "gap for context ID is too large"},
	TPMRCObjectMemory:   {"TPM_RC_OBJECT_MEMORY", "out of memory for object contexts"},
	TPMRCSessionMemory:  {"TPM_RC_SESSION_MEMORY", "out of memory for session contexts"},
	TPMRCMemory:         {"TPM_RC_MEMORY", "out of shared object/session memory or need space for internal operations"},
	TPMRCSessionHandles: {"TPM_RC_SESSION_HANDLES", "out of session handles"},
	TPMRCObjectHandles:  {"TPM_RC_OBJECT_HANDLES", "out of object handles"},
	TPMRCLocality:       {"TPM_RC_LOCALITY", "bad locality"},
	TPMRCYielded:        {"TPM_RC_YIELDED", "the TPM has suspended operation on the command; forward progress was made and the command may be retried"},
	TPMRCCanceled:       {"TPM_RC_CANCELED", "the command was canceled"},
	TPMRCTesting:        {"TPM_RC_TESTING", "TPM is performing self-tests"},
	TPMRCReferenceH0:    {"TPM_RC_REFERENCE_H0", "the 1st handle in the handle area references a transient object or session that is not loaded"},
	TPMRCReferenceS0:    {"TPM_RC_REFERENCE_S0", "the 1st authorization session handle references a session that is not loaded"},
	TPMRCNVRate:         {"TPM_RC_NV_RATE", "the TPM is rate-limiting accesses to prevent wearout of NV"},
	TPMRCLockout:        {"TPM_RC_LOCKOUT", "authorizations for objects subject to DA protection are not allowed at this time because the TPM is in DA lockout mode"},
	TPMRCRetry:          {"TPM_RC_RETRY", "the TPM was not able to start the command"},
	TPMRCNVUnavailable:  {"TPM_RC_NV_UNAVAILABLE", "the command may require writing of NV and NV is not current accessible"},
}

// Decode strips the parameter, handle or session number from a raw response
// code.
func (rc TPMRC) Decode() TPMRC {
	if rc&rcFmt1 != 0 {
		return rc & 0xBF
	}
	return rc & 0x97F
}

func (rc TPMRC) String() string {
	if info, ok := rcTable[rc.Decode()]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%x", uint32(rc))
}

// Known reports whether the decoded form of rc is a named response code.
func (rc TPMRC) Known() bool {
	_, ok := rcTable[rc.Decode()]
	return ok
}

// Error implements error so that response codes can be matched with
// errors.Is.
func (rc TPMRC) Error() string { return rc.Describe() }

// IsFormatOne reports whether rc carries a parameter, handle or session
// number.
func (rc TPMRC) IsFormatOne() bool { return rc&rcFmt1 != 0 }

// IsWarning reports whether rc is a format-zero warning.
func (rc TPMRC) IsWarning() bool { return rc&rcFmt1 == 0 && rc&rcWarn == rcWarn }

// Parameter returns the 1-based parameter number rc refers to, or 0.
func (rc TPMRC) Parameter() int {
	if rc&rcFmt1 == 0 || rc&rcP == 0 {
		return 0
	}
	return int((rc & rcN) >> 8)
}

// Handle returns the 1-based handle number rc refers to, or 0.
func (rc TPMRC) Handle() int {
	if rc&rcFmt1 == 0 || rc&rcP != 0 || rc&rcS != 0 {
		return 0
	}
	return int((rc & 0x700) >> 8)
}

// Session returns the 1-based session number rc refers to, or 0.
func (rc TPMRC) Session() int {
	if rc&rcFmt1 == 0 || rc&rcP != 0 || rc&rcS == 0 {
		return 0
	}
	return int((rc & 0x700) >> 8)
}

// Describe returns a human-readable account of a raw or decoded response
// code. The logic follows the "Response Code Evaluation" chart in Part 1 of
// the TPM 2.0 specification.
func (rc TPMRC) Describe() string {
	if rc == TPMRCSuccess {
		return "TPM_RC_SUCCESS"
	}
	if rc&0x180 == 0 { // Bits 7:8 == 0 is a TPM1 error
		return fmt.Sprintf("TPM 1.2 response code 0x%x", uint32(rc))
	}
	if rc&rcFmt1 == 0 && rc&rcVendor != 0 {
		return fmt.Sprintf("vendor response code 0x%x", uint32(rc))
	}
	decoded := rc.Decode()
	info, ok := rcTable[decoded]
	if !ok {
		info = rcInfo{name: fmt.Sprintf("0x%x", uint32(decoded)), msg: "unknown response code"}
	}
	var where string
	switch {
	case rc.Parameter() != 0:
		where = fmt.Sprintf(" (parameter %d)", rc.Parameter())
	case rc.Handle() != 0:
		where = fmt.Sprintf(" (handle %d)", rc.Handle())
	case rc.Session() != 0:
		where = fmt.Sprintf(" (session %d)", rc.Session())
	}
	return fmt.Sprintf("%s%s: %s", info.name, where, info.msg)
}

// TPMError is returned when the TPM completes a command with a response code
// the caller did not allow.
type TPMError struct {
	Command TPMCC
	// Code is the decoded response code.
	Code TPMRC
	// Raw is the response code as returned by the TPM.
	Raw TPMRC
}

func (e *TPMError) Error() string {
	return fmt.Sprintf("%v failed: %s", e.Command, e.Raw.Describe())
}

// Is matches a TPMRC target against the decoded code.
func (e *TPMError) Is(target error) bool {
	rc, ok := target.(TPMRC)
	return ok && rc.Decode() == e.Code
}

// UnexpectedSuccessError is returned when a command succeeds although the
// caller only allowed failure codes.
type UnexpectedSuccessError struct {
	Command  TPMCC
	Expected []TPMRC
}

func (e *UnexpectedSuccessError) Error() string {
	return fmt.Sprintf("%v succeeded, expected one of %v", e.Command, e.Expected)
}
