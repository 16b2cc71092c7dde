package tpm2test

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	. "github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpm2/duplication"
)

// This test checks that the TPM imports a duplication blob built in
// software, with and without an inner wrapper, and that the loaded object
// has the expected name.
func TestImportDuplicationBlob(t *testing.T) {
	thetpm := openTPM(t)
	ctx := context.Background()
	srk := createPrimary(t, thetpm, TPMRHOwner, RSASRKTemplate)
	parent := AuthHandle{Handle: srk.ObjectHandle, Name: srk.Name.Buffer}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub, sens := duplication.FromRSAKey(key, []byte("imported"))
	wantName, err := ObjectName(pub)
	if err != nil {
		t.Fatalf("ObjectName: %v", err)
	}

	for _, test := range []struct {
		name string
		opts []duplication.Option
	}{
		{name: "outer wrapper only"},
		{
			name: "inner wrapper",
			opts: []duplication.Option{duplication.WithInnerWrapper(TPMTSymDef{Algorithm: TPMAlgAES, KeyBits: 128, Mode: TPMAlgCFB})},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			blob, err := duplication.Create(&srk.OutPublic.PublicArea, pub, sens, test.opts...)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			imported, err := blob.Import(parent, pub).Execute(ctx, thetpm)
			if err != nil {
				t.Fatalf("could not import: %v", err)
			}

			loaded, err := Load{
				ParentHandle: parent,
				InPrivate:    imported.OutPrivate,
				InPublic:     New2BPublic(pub),
			}.Execute(ctx, thetpm)
			if err != nil {
				t.Fatalf("could not load imported key: %v", err)
			}
			defer flush(t, thetpm, loaded.ObjectHandle)
			if !bytes.Equal(loaded.Name.Buffer, wantName.Buffer) {
				t.Errorf("loaded name = %x, want %x", loaded.Name.Buffer, wantName.Buffer)
			}

			rp, err := ReadPublic{ObjectHandle: loaded.ObjectHandle}.Execute(ctx, thetpm)
			if err != nil {
				t.Fatalf("ReadPublic: %v", err)
			}
			got, err := rp.OutPublic.PublicArea.Unique.RSA()
			if err != nil {
				t.Fatalf("Unique.RSA: %v", err)
			}
			if !bytes.Equal(got.Buffer, key.PublicKey.N.Bytes()) {
				t.Error("loaded key has a different modulus")
			}
		})
	}
}

// A blob prepared for one parent must not import under another.
func TestImportWrongParent(t *testing.T) {
	thetpm := openTPM(t)
	ctx := context.Background()
	srk := createPrimary(t, thetpm, TPMRHOwner, RSASRKTemplate)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	otherParent := RSASRKTemplate
	otherParent.Unique = NewTPMUPublicID(TPMAlgRSA, &TPM2BPublicKeyRSA{Buffer: other.PublicKey.N.Bytes()})

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub, sens := duplication.FromRSAKey(key, nil)
	blob, err := duplication.Create(&otherParent, pub, sens)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := blob.Import(AuthHandle{Handle: srk.ObjectHandle}, pub).Execute(ctx, thetpm); err == nil {
		t.Error("Import under the wrong parent succeeded")
	}
}
