package tpm2

import (
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		raw     TPMRC
		want    TPMRC
		param   int
		handle  int
		session int
	}{
		{raw: 0x000, want: TPMRCSuccess},
		{raw: 0x100, want: TPMRCInitialize},
		{raw: 0x922, want: TPMRCRetry},
		{raw: 0x923, want: TPMRCNVUnavailable},
		{raw: 0x084, want: TPMRCValue},
		{raw: 0x1c4, want: TPMRCValue, param: 1},
		{raw: 0xfc1, want: TPMRCAsymmetric, param: 15},
		{raw: 0x18b, want: TPMRCHandle, handle: 1},
		{raw: 0x7a3, want: TPMRCExpired, handle: 7},
		{raw: 0x9a2, want: TPMRCBadAuth, session: 1},
		{raw: 0xfa2, want: TPMRCBadAuth, session: 7},
	}
	for _, test := range tests {
		if got := test.raw.Decode(); got != test.want {
			t.Errorf("TPMRC(0x%x).Decode() = 0x%x, want 0x%x", uint32(test.raw), uint32(got), uint32(test.want))
		}
		if got := test.raw.Parameter(); got != test.param {
			t.Errorf("TPMRC(0x%x).Parameter() = %d, want %d", uint32(test.raw), got, test.param)
		}
		if got := test.raw.Handle(); got != test.handle {
			t.Errorf("TPMRC(0x%x).Handle() = %d, want %d", uint32(test.raw), got, test.handle)
		}
		if got := test.raw.Session(); got != test.session {
			t.Errorf("TPMRC(0x%x).Session() = %d, want %d", uint32(test.raw), got, test.session)
		}
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		rc   TPMRC
		want string
	}{
		{TPMRCSuccess, "TPM_RC_SUCCESS"},
		{0x001, "TPM 1.2 response code 0x1"},
		{0x501, "vendor response code 0x501"},
		{0x100, "TPM_RC_INITIALIZE: "},
		{0x922, "TPM_RC_RETRY: "},
		{0x1c4, "TPM_RC_VALUE (parameter 1): "},
		{0x18b, "TPM_RC_HANDLE (handle 1): "},
		{0x9a2, "TPM_RC_BAD_AUTH (session 1): "},
		{0x17f, "0x17f: unknown response code"},
	}
	for _, test := range tests {
		if got := test.rc.Describe(); !strings.HasPrefix(got, test.want) {
			t.Errorf("TPMRC(0x%x).Describe() = %q, want prefix %q", uint32(test.rc), got, test.want)
		}
	}
}

func TestRCClassification(t *testing.T) {
	if !TPMRCRetry.IsWarning() || TPMRCInitialize.IsWarning() || TPMRCValue.IsWarning() {
		t.Error("IsWarning misclassifies TPM_RC_RETRY, TPM_RC_INITIALIZE or TPM_RC_VALUE")
	}
	if !TPMRCValue.IsFormatOne() || TPMRCRetry.IsFormatOne() {
		t.Error("IsFormatOne misclassifies TPM_RC_VALUE or TPM_RC_RETRY")
	}
	if got := TPMRC(0x9a2).String(); got != "TPM_RC_BAD_AUTH" {
		t.Errorf("String() = %q, want TPM_RC_BAD_AUTH", got)
	}
	if TPMRC(0x17f).Known() {
		t.Error("TPMRC(0x17f).Known() = true")
	}
}

func TestTPMErrorIs(t *testing.T) {
	var err error = &TPMError{Command: TPMCCLoad, Code: TPMRCIntegrity, Raw: TPMRCIntegrity + rcP + 0x100}
	if !errors.Is(err, TPMRCIntegrity) {
		t.Error("errors.Is(err, TPMRCIntegrity) = false")
	}
	if !errors.Is(err, TPMRCIntegrity+rcP+0x200) {
		t.Error("errors.Is does not match a raw code with another parameter number")
	}
	if errors.Is(err, TPMRCSize) {
		t.Error("errors.Is(err, TPMRCSize) = true")
	}
	if msg := err.Error(); !strings.Contains(msg, "TPM_RC_INTEGRITY (parameter 1)") {
		t.Errorf("Error() = %q, want it to name the code and parameter", msg)
	}
}
