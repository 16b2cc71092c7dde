package credactivation

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

type zeroReader struct{}

func (zeroReader) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = 0
	}
	return len(b), nil
}

func ekPublic(t *testing.T, bits int, nameAlg tpm2.TPMIAlgHash) (*rsa.PrivateKey, *tpm2.TPMTPublic) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := tpm2.RSAEKTemplate
	pub.NameAlg = nameAlg
	pub.Unique = tpm2.NewTPMUPublicID(tpm2.TPMAlgRSA, &tpm2.TPM2BPublicKeyRSA{Buffer: priv.PublicKey.N.Bytes()})
	return priv, &pub
}

var testName = tpm2.TPM2BName{Buffer: append([]byte{0x00, 0x0b}, bytes.Repeat([]byte{0x5a}, 32)...)}

func TestRoundTrip(t *testing.T) {
	for _, nameAlg := range []tpm2.TPMIAlgHash{tpm2.TPMAlgSHA1, tpm2.TPMAlgSHA256} {
		t.Run(nameAlg.String(), func(t *testing.T) {
			priv, pub := ekPublic(t, 2048, nameAlg)
			secret := []byte("credential secret")

			cred, err := Generate(pub, testName, secret)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			h, _ := nameAlg.Hash()
			if got := len(cred.IDObject.IntegrityHMAC.Buffer); got != h.Size() {
				t.Errorf("integrity HMAC is %d bytes, want %d", got, h.Size())
			}
			if got, want := len(cred.IDObject.EncIdentity), 2+len(secret); got != want {
				t.Errorf("encrypted identity is %d bytes, want %d", got, want)
			}
			got, err := Recover(priv, pub, testName, cred)
			if err != nil {
				t.Fatalf("Recover: %v", err)
			}
			if !bytes.Equal(got, secret) {
				t.Errorf("Recover() = %q, want %q", got, secret)
			}
		})
	}
}

func TestTamper(t *testing.T) {
	priv, pub := ekPublic(t, 2048, tpm2.TPMAlgSHA256)
	cred, err := Generate(pub, testName, bytes.Repeat([]byte{0x11}, 32))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, field := range []struct {
		name string
		buf  []byte
	}{
		{"integrity HMAC", cred.IDObject.IntegrityHMAC.Buffer},
		{"encrypted identity", cred.IDObject.EncIdentity},
	} {
		for i := range field.buf {
			field.buf[i] ^= 0x80
			if _, err := Recover(priv, pub, testName, cred); !errors.Is(err, tpm2.ErrIntegrity) {
				t.Errorf("%s byte %d flipped: Recover() error = %v, want %v", field.name, i, err, tpm2.ErrIntegrity)
			}
			field.buf[i] ^= 0x80
		}
	}

	for i := range testName.Buffer {
		name := tpm2.TPM2BName{Buffer: append([]byte(nil), testName.Buffer...)}
		name.Buffer[i] ^= 0x01
		if _, err := Recover(priv, pub, name, cred); !errors.Is(err, tpm2.ErrIntegrity) {
			t.Errorf("name byte %d flipped: Recover() error = %v, want %v", i, err, tpm2.ErrIntegrity)
		}
	}

	if _, err := Recover(priv, pub, testName, cred); err != nil {
		t.Errorf("Recover after restoring the credential: %v", err)
	}
}

func TestDeterministicWithRand(t *testing.T) {
	priv, pub := ekPublic(t, 2048, tpm2.TPMAlgSHA256)
	secret := []byte("secret")
	a, err := Generate(pub, testName, secret, WithRand(zeroReader{}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(pub, testName, secret, WithRand(zeroReader{}))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// The seed, and so the wrapped credential, depends only on the reader.
	if !bytes.Equal(a.IDObject.EncIdentity, b.IDObject.EncIdentity) ||
		!bytes.Equal(a.IDObject.IntegrityHMAC.Buffer, b.IDObject.IntegrityHMAC.Buffer) {
		t.Error("credentials generated from the same reader differ")
	}
	seed, err := tpm2.DecryptOAEP(priv, tpm2.TPMAlgSHA256, a.EncryptedSecret.Buffer, tpm2.IdentityLabel)
	if err != nil {
		t.Fatalf("DecryptOAEP: %v", err)
	}
	if !bytes.Equal(seed, make([]byte, 32)) {
		t.Errorf("seed = %x, want 32 zero bytes", seed)
	}
}

func TestMarshal(t *testing.T) {
	_, pub := ekPublic(t, 2048, tpm2.TPMAlgSHA256)
	cred, err := Generate(pub, testName, []byte("secret"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	idObject, encSecret, err := cred.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var blob tpm2.TPM2BIDObject
	var secret tpm2.TPM2BEncryptedSecret
	if err := tpmutil.Unmarshal(append(idObject, encSecret...), &blob, &secret); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	parsed, err := tpm2.ParseIDObject(blob)
	if err != nil {
		t.Fatalf("ParseIDObject: %v", err)
	}
	if !bytes.Equal(parsed.EncIdentity, cred.IDObject.EncIdentity) {
		t.Errorf("EncIdentity = %x, want %x", parsed.EncIdentity, cred.IDObject.EncIdentity)
	}
	if !bytes.Equal(secret.Buffer, cred.EncryptedSecret.Buffer) {
		t.Error("encrypted secret does not round trip")
	}

	cmd, err := cred.Command()
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	if !bytes.Equal(cmd.CredentialBlob.Buffer, blob.Buffer) {
		t.Errorf("CredentialBlob = %x, want %x", cmd.CredentialBlob.Buffer, blob.Buffer)
	}
}

func TestGenerateErrors(t *testing.T) {
	_, pub := ekPublic(t, 2048, tpm2.TPMAlgSHA256)
	if _, err := Generate(pub, testName, make([]byte, 33)); err == nil {
		t.Error("Generate with a 33 byte secret and SHA-256 succeeded")
	}

	noSym := *pub
	parms, err := noSym.Parameters.RSADetail()
	if err != nil {
		t.Fatalf("RSADetail: %v", err)
	}
	p := *parms
	p.Symmetric = tpm2.TPMTSymDefObject{Algorithm: tpm2.TPMAlgAES, KeyBits: 128, Mode: tpm2.TPMAlgCBC}
	noSym.Parameters = tpm2.NewTPMUPublicParms(tpm2.TPMAlgRSA, &p)
	if _, err := Generate(&noSym, testName, []byte("s")); !errors.Is(err, tpm2.ErrUnsupportedAlgorithm) {
		t.Errorf("Generate with AES-CBC: error = %v, want %v", err, tpm2.ErrUnsupportedAlgorithm)
	}

	ecc := tpm2.ECCEKTemplate
	if _, err := Generate(&ecc, testName, []byte("s")); !errors.Is(err, tpm2.ErrUnsupportedKeyType) {
		t.Errorf("Generate with an ECC key: error = %v, want %v", err, tpm2.ErrUnsupportedKeyType)
	}
}
