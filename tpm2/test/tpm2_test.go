// Package tpm2test exercises the command layer against the TPM simulator.
package tpm2test

import (
	"context"
	"testing"

	. "github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/transport/simulator"
)

func openTPM(t *testing.T) *TPM {
	t.Helper()
	sim, err := simulator.OpenSimulator()
	if err != nil {
		t.Fatalf("could not connect to TPM simulator: %v", err)
	}
	thetpm := New(sim)
	t.Cleanup(func() {
		if err := thetpm.Close(); err != nil {
			t.Errorf("could not close TPM simulator: %v", err)
		}
	})
	return thetpm
}

// createPrimary creates a primary key under hierarchy and flushes it when
// the test ends.
func createPrimary(t *testing.T, thetpm *TPM, hierarchy TPMHandle, template TPMTPublic) *CreatePrimaryResponse {
	t.Helper()
	rsp, err := CreatePrimary{
		PrimaryHandle: NewAuthHandle(hierarchy, nil),
		InPublic:      New2BPublic(&template),
	}.Execute(context.Background(), thetpm)
	if err != nil {
		t.Fatalf("could not create primary key under %v: %v", hierarchy, err)
	}
	t.Cleanup(func() { flush(t, thetpm, rsp.ObjectHandle) })
	return rsp
}

func flush(t *testing.T, thetpm *TPM, h TPMHandle) {
	t.Helper()
	if _, err := (FlushContext{FlushHandle: h}).Execute(context.Background(), thetpm); err != nil {
		t.Errorf("could not flush %v: %v", h, err)
	}
}
