package tpm2test

import (
	"bytes"
	"context"
	"testing"

	. "github.com/microsoft/TSS.MSR-sub003/tpm2"
)

func TestEvictControl(t *testing.T) {
	thetpm := openTPM(t)
	ctx := context.Background()
	srk := createPrimary(t, thetpm, TPMRHOwner, RSASRKTemplate)

	const persistent TPMHandle = 0x81000100
	_, err := EvictControl{
		Auth:             NewAuthHandle(TPMRHOwner, nil),
		ObjectHandle:     srk.ObjectHandle,
		PersistentHandle: persistent,
	}.Execute(ctx, thetpm)
	if err != nil {
		t.Fatalf("could not persist SRK: %v", err)
	}

	rp, err := ReadPublic{ObjectHandle: persistent}.Execute(ctx, thetpm)
	if err != nil {
		t.Fatalf("could not read persisted SRK: %v", err)
	}
	if !bytes.Equal(rp.Name.Buffer, srk.Name.Buffer) {
		t.Errorf("persisted name = %x, want %x", rp.Name.Buffer, srk.Name.Buffer)
	}

	_, err = EvictControl{
		Auth:             NewAuthHandle(TPMRHOwner, nil),
		ObjectHandle:     persistent,
		PersistentHandle: persistent,
	}.Execute(ctx, thetpm)
	if err != nil {
		t.Fatalf("could not evict persisted SRK: %v", err)
	}
	if _, err := (ReadPublic{ObjectHandle: persistent}).Execute(ctx, thetpm); err == nil {
		t.Error("ReadPublic of an evicted handle succeeded")
	}
}
