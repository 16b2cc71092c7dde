// Package duplication builds duplication blobs that a TPM can import with
// TPM2_Import under a given new parent, without the object ever having been
// loaded on a TPM.
package duplication

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"github.com/microsoft/TSS.MSR-sub003/tpm2"
	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

type options struct {
	rand  io.Reader
	inner tpm2.TPMTSymDef
}

// Option configures Create.
type Option func(*options)

// WithRand sets the source of the inner wrapper key, the outer seed and the
// OAEP padding. The default is crypto/rand.Reader.
func WithRand(r io.Reader) Option {
	return func(o *options) { o.rand = r }
}

// WithInnerWrapper encrypts the sensitive area under a fresh key with def,
// which must be AES in CFB mode, before applying the outer wrapper. The key
// is returned in Blob.InnerWrapperKey.
func WithInnerWrapper(def tpm2.TPMTSymDef) Option {
	return func(o *options) { o.inner = def }
}

// Blob is a duplicated object.
type Blob struct {
	Duplicate     tpm2.TPM2BPrivate
	EncryptedSeed tpm2.TPM2BEncryptedSecret
	// InnerWrapperKey is empty when no inner wrapper was applied.
	InnerWrapperKey tpm2.TPM2BData
	// Symmetric is the inner wrapper definition, TPM_ALG_NULL when none.
	Symmetric tpm2.TPMTSymDef
}

// Import returns the TPM2_Import command for b under parent.
func (b *Blob) Import(parent tpm2.AuthHandle, public *tpm2.TPMTPublic) tpm2.Import {
	return tpm2.Import{
		ParentHandle:  parent,
		EncryptionKey: b.InnerWrapperKey,
		ObjectPublic:  tpm2.New2BPublic(public),
		Duplicate:     b.Duplicate,
		InSymSeed:     b.EncryptedSeed,
		Symmetric:     b.Symmetric,
	}
}

// Create duplicates the object with the given public and sensitive areas to
// newParent, following section 23.3 of the TPM specification revision 2
// part 1. newParent must be an RSA key with an AES-CFB symmetric
// definition.
func Create(newParent, public *tpm2.TPMTPublic, sensitive *tpm2.TPMTSensitive, opts ...Option) (*Blob, error) {
	o := options{
		rand:  rand.Reader,
		inner: tpm2.TPMTSymDef{Algorithm: tpm2.TPMAlgNull},
	}
	for _, opt := range opts {
		opt(&o)
	}

	k, err := tpm2.NewProtectionKey(newParent)
	if err != nil {
		return nil, fmt.Errorf("new parent: %w", err)
	}
	name, err := tpm2.ObjectName(public)
	if err != nil {
		return nil, fmt.Errorf("computing object name: %w", err)
	}
	sens, err := tpmutil.Marshal(tpm2.TPM2BSensitive{SensitiveArea: sensitive})
	if err != nil {
		return nil, fmt.Errorf("encoding sensitive area: %w", err)
	}

	blob := &Blob{Symmetric: o.inner}
	if o.inner.Algorithm != tpm2.TPMAlgNull {
		bits, err := tpm2.SymKeyBits(o.inner)
		if err != nil {
			return nil, fmt.Errorf("inner wrapper: %w", err)
		}
		key := make([]byte, bits/8)
		if _, err := io.ReadFull(o.rand, key); err != nil {
			return nil, fmt.Errorf("generating inner wrapper key: %w", err)
		}
		if sens, err = innerWrap(public.NameAlg, key, name.Buffer, sens); err != nil {
			return nil, err
		}
		blob.InnerWrapperKey = tpm2.TPM2BData{Buffer: key}
	}

	seed, encSeed, err := k.EncryptSeed(o.rand, k.SymBits/8, tpm2.DuplicateLabel)
	if err != nil {
		return nil, err
	}
	dup, err := k.OuterWrap(seed, name.Buffer, sens)
	if err != nil {
		return nil, fmt.Errorf("outer wrapper: %w", err)
	}
	blob.Duplicate = tpm2.TPM2BPrivate{Buffer: dup}
	blob.EncryptedSeed = encSeed
	return blob, nil
}

// Unwrap performs the TPM side of TPM2_Import in software: it decrypts the
// seed with priv, removes both wrappers, checks their integrity and returns
// the sensitive area.
func Unwrap(priv *rsa.PrivateKey, newParent, public *tpm2.TPMTPublic, blob *Blob) (*tpm2.TPMTSensitive, error) {
	k, err := tpm2.NewProtectionKey(newParent)
	if err != nil {
		return nil, fmt.Errorf("new parent: %w", err)
	}
	name, err := tpm2.ObjectName(public)
	if err != nil {
		return nil, fmt.Errorf("computing object name: %w", err)
	}
	seed, err := k.DecryptSeed(priv, blob.EncryptedSeed, tpm2.DuplicateLabel)
	if err != nil {
		return nil, err
	}
	sens, err := k.OuterUnwrap(seed, name.Buffer, blob.Duplicate.Buffer)
	if err != nil {
		return nil, err
	}
	if blob.Symmetric.Algorithm != tpm2.TPMAlgNull {
		if _, err := tpm2.SymKeyBits(blob.Symmetric); err != nil {
			return nil, fmt.Errorf("inner wrapper: %w", err)
		}
		if sens, err = innerUnwrap(public.NameAlg, blob.InnerWrapperKey.Buffer, name.Buffer, sens); err != nil {
			return nil, err
		}
	}

	var s tpm2.TPM2BSensitive
	if err := tpmutil.Unmarshal(sens, &s); err != nil {
		return nil, fmt.Errorf("decoding sensitive area: %w", err)
	}
	if s.SensitiveArea == nil {
		return nil, fmt.Errorf("%w: empty sensitive area", tpm2.ErrIntegrity)
	}
	return s.SensitiveArea, nil
}

// innerWrap returns CFB(key, TPM2B(H(sens || name)) || sens).
func innerWrap(nameAlg tpm2.TPMIAlgHash, key, name, sens []byte) ([]byte, error) {
	integrity, err := tpm2.Digest(nameAlg, sens, name)
	if err != nil {
		return nil, fmt.Errorf("computing inner integrity: %w", err)
	}
	plain, err := tpmutil.Marshal(tpm2.TPM2BDigest{Buffer: integrity}, tpmutil.RawBytes(sens))
	if err != nil {
		return nil, err
	}
	return tpm2.EncryptCFB(key, nil, plain)
}

func innerUnwrap(nameAlg tpm2.TPMIAlgHash, key, name, wrapped []byte) ([]byte, error) {
	plain, err := tpm2.DecryptCFB(key, nil, wrapped)
	if err != nil {
		return nil, fmt.Errorf("inner wrapper: %w", err)
	}
	in := tpmutil.NewReader(plain)
	var integrity tpm2.TPM2BDigest
	integrity.TPMUnmarshal(in)
	sens := in.ReadBytes(in.Len())
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("%w: parsing inner wrapper: %v", tpm2.ErrIntegrity, err)
	}
	want, err := tpm2.Digest(nameAlg, sens, name)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(integrity.Buffer, want) {
		return nil, fmt.Errorf("%w: inner integrity mismatch", tpm2.ErrIntegrity)
	}
	return sens, nil
}

// FromRSAKey returns the public and sensitive areas of an importable
// RSA signing key holding priv.
func FromRSAKey(priv *rsa.PrivateKey, auth []byte) (*tpm2.TPMTPublic, *tpm2.TPMTSensitive) {
	exp := uint32(priv.PublicKey.E)
	if exp == 65537 {
		exp = 0
	}
	pub := &tpm2.TPMTPublic{
		Type:             tpm2.TPMAlgRSA,
		NameAlg:          tpm2.TPMAlgSHA256,
		ObjectAttributes: tpm2.TPMAObjectSignEncrypt | tpm2.TPMAObjectUserWithAuth,
		Parameters: tpm2.NewTPMUPublicParms(tpm2.TPMAlgRSA, &tpm2.TPMSRSAParms{
			Symmetric: tpm2.TPMTSymDefObject{Algorithm: tpm2.TPMAlgNull},
			Scheme:    tpm2.TPMTRSAScheme{Scheme: tpm2.TPMAlgRSASSA, HashAlg: tpm2.TPMAlgSHA256},
			KeyBits:   uint16(priv.PublicKey.N.BitLen()),
			Exponent:  exp,
		}),
		Unique: tpm2.NewTPMUPublicID(tpm2.TPMAlgRSA, &tpm2.TPM2BPublicKeyRSA{Buffer: priv.PublicKey.N.Bytes()}),
	}
	sens := &tpm2.TPMTSensitive{
		SensitiveType: tpm2.TPMAlgRSA,
		AuthValue:     tpm2.TPM2BAuth{Buffer: auth},
		Sensitive:     tpm2.TPM2B{Buffer: priv.Primes[0].Bytes()},
	}
	return pub, sens
}
