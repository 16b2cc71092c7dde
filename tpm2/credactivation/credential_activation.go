// Package credactivation creates credentials that only the TPM holding a
// given key can recover with TPM2_ActivateCredential.
package credactivation

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

type options struct {
	rand io.Reader
}

// Option configures Generate.
type Option func(*options)

// WithRand sets the source of the seed and the OAEP padding. The default
// is crypto/rand.Reader.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

// Credential is the output of Generate: the encrypted credential and the
// seed it was protected under, encrypted to the key.
type Credential struct {
	IDObject        tpm2.TPMSIDObject
	EncryptedSecret tpm2.TPM2BEncryptedSecret
}

// Marshal returns the TPM2B_ID_OBJECT and TPM2B_ENCRYPTED_SECRET encodings
// of c, as passed to TPM2_ActivateCredential.
func (c *Credential) Marshal() (idObject, encSecret []byte, err error) {
	blob, err := c.IDObject.Wrap()
	if err != nil {
		return nil, nil, fmt.Errorf("encoding IDObject: %w", err)
	}
	if idObject, err = tpmutil.Marshal(blob); err != nil {
		return nil, nil, fmt.Errorf("packing IDObject: %w", err)
	}
	if encSecret, err = tpmutil.Marshal(c.EncryptedSecret); err != nil {
		return nil, nil, fmt.Errorf("packing encSecret: %w", err)
	}
	return idObject, encSecret, nil
}

// Command returns an ActivateCredential command carrying c. The caller
// fills in the handles.
func (c *Credential) Command() (tpm2.ActivateCredential, error) {
	blob, err := c.IDObject.Wrap()
	if err != nil {
		return tpm2.ActivateCredential{}, fmt.Errorf("encoding IDObject: %w", err)
	}
	return tpm2.ActivateCredential{CredentialBlob: blob, Secret: c.EncryptedSecret}, nil
}

// Generate protects secret for the TPM holding the private half of pub, so
// that TPM2_ActivateCredential on the object called name releases it.
// The secret must not be longer than the digest size of pub's name
// algorithm. A 32 byte secret with a SHA-256 key is a safe default.
//
// This implements Credential Protection as defined in section 24 of the TPM
// specification revision 2 part 1. Only RSA keys with an AES-CFB symmetric
// definition are supported.
func Generate(pub *tpm2.TPMTPublic, name tpm2.TPM2BName, secret []byte, opts ...Option) (*Credential, error) {
	o := options{rand: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}

	k, err := tpm2.NewProtectionKey(pub)
	if err != nil {
		return nil, err
	}
	h, err := k.NameAlg.Hash()
	if err != nil {
		return nil, err
	}
	if len(secret) > h.Size() {
		return nil, fmt.Errorf("secret of %d bytes exceeds the %d byte digest of %v", len(secret), h.Size(), k.NameAlg)
	}

	// The seed is as long as a digest of the name algorithm.
	// See annex B, section 10.4 of the TPM specification revision 2 part 1.
	seed, encSeed, err := k.EncryptSeed(o.rand, h.Size(), tpm2.IdentityLabel)
	if err != nil {
		return nil, err
	}

	cv, err := tpmutil.Pack(secret)
	if err != nil {
		return nil, fmt.Errorf("generating cv (TPM2B_Digest): %w", err)
	}
	wrapped, err := k.OuterWrap(seed, name.Buffer, cv)
	if err != nil {
		return nil, fmt.Errorf("wrapping credential: %w", err)
	}

	var id tpm2.TPMSIDObject
	if err := tpmutil.Unmarshal(wrapped, &id); err != nil {
		return nil, fmt.Errorf("encoding IDObject: %w", err)
	}
	return &Credential{IDObject: id, EncryptedSecret: encSeed}, nil
}

// Recover performs the TPM side of credential activation in software: it
// decrypts the seed with priv, verifies the integrity HMAC against name and
// returns the secret.
func Recover(priv *rsa.PrivateKey, pub *tpm2.TPMTPublic, name tpm2.TPM2BName, cred *Credential) ([]byte, error) {
	k, err := tpm2.NewProtectionKey(pub)
	if err != nil {
		return nil, err
	}
	seed, err := k.DecryptSeed(priv, cred.EncryptedSecret, tpm2.IdentityLabel)
	if err != nil {
		return nil, err
	}
	wrapped, err := tpmutil.Marshal(cred.IDObject)
	if err != nil {
		return nil, fmt.Errorf("encoding IDObject: %w", err)
	}
	cv, err := k.OuterUnwrap(seed, name.Buffer, wrapped)
	if err != nil {
		return nil, err
	}
	var secret []byte
	read, err := tpmutil.Unpack(cv, &secret)
	if err != nil {
		return nil, fmt.Errorf("decoding cv (TPM2B_Digest): %w", err)
	}
	if read != len(cv) {
		return nil, fmt.Errorf("%w: %d trailing bytes after credential", tpm2.ErrIntegrity, len(cv)-read)
	}
	return secret, nil
}
