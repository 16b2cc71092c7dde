// Package testhelper provides some helper code for TPM transport tests.
package testhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport"
)

// RunTest checks that the connection to the given TPM seems to be working.
func RunTest(t *testing.T, skipErrs []error, open func() (transport.Device, error)) {
	t.Helper()
	skip := func(err error) {
		for _, skipErr := range skipErrs {
			if errors.Is(err, skipErr) {
				t.Skipf("%v", err)
			}
		}
	}

	dev, err := open()
	skip(err)
	if err != nil {
		t.Fatalf("Failed to open TPM: %v", err)
	}
	tpm := tpm2.New(dev)
	defer func() {
		if err := tpm.Close(); err != nil {
			t.Fatalf("tpm.Close() = %v", err)
		}
	}()

	// Ask for a few random bytes as a basic consistency check.
	rnd, err := tpm2.GetRandom{BytesRequested: 8}.Execute(context.Background(), tpm)
	skip(err)
	if err != nil {
		t.Fatalf("GetRandom() = %v", err)
	}
	if len(rnd.RandomBytes.Buffer) != 8 {
		t.Fatalf("GetRandom() returned %d bytes, want 8", len(rnd.RandomBytes.Buffer))
	}
	t.Logf("Random bytes: %x", rnd.RandomBytes.Buffer)
}
