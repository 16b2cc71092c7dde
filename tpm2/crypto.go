package tpm2

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"math/big"

	// Register the hash implementations used by Hash.
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

var (
	// ErrUnsupportedAlgorithm is returned for hash, symmetric or scheme
	// algorithms outside the supported set.
	ErrUnsupportedAlgorithm = errors.New("tpm2: unsupported algorithm")
	// ErrUnsupportedKeyType is returned when a key of a type other than RSA
	// is used to protect a secret.
	ErrUnsupportedKeyType = errors.New("tpm2: unsupported key type")
	// ErrIntegrity is returned when an integrity HMAC or digest does not
	// match.
	ErrIntegrity = errors.New("tpm2: integrity check failed")
)

// Labels used by the secret-protection protocols.
const (
	IdentityLabel  = "IDENTITY"
	DuplicateLabel = "DUPLICATE"
	IntegrityLabel = "INTEGRITY"
	StorageLabel   = "STORAGE"
)

// Hash returns the crypto.Hash for a hash algorithm.
func (a TPMAlgID) Hash() (crypto.Hash, error) {
	switch a {
	case TPMAlgSHA1:
		return crypto.SHA1, nil
	case TPMAlgSHA256:
		return crypto.SHA256, nil
	case TPMAlgSHA384:
		return crypto.SHA384, nil
	case TPMAlgSHA512:
		return crypto.SHA512, nil
	}
	return 0, fmt.Errorf("%w: hash algorithm %v", ErrUnsupportedAlgorithm, a)
}

// HMAC computes the HMAC of data under key with the given hash algorithm.
func HMAC(hashAlg TPMIAlgHash, key []byte, data ...[]byte) ([]byte, error) {
	h, err := hashAlg.Hash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(h.New, key)
	for _, d := range data {
		mac.Write(d)
	}
	return mac.Sum(nil), nil
}

// Digest hashes data with the given hash algorithm.
func Digest(hashAlg TPMIAlgHash, data ...[]byte) ([]byte, error) {
	h, err := hashAlg.Hash()
	if err != nil {
		return nil, err
	}
	hh := h.New()
	for _, d := range data {
		hh.Write(d)
	}
	return hh.Sum(nil), nil
}

// RSAPub converts a TPM RSA public key into one recognized by the rsa package.
func RSAPub(parms *TPMSRSAParms, pub *TPM2BPublicKeyRSA) (*rsa.PublicKey, error) {
	if len(pub.Buffer) == 0 {
		return nil, errors.New("empty RSA modulus")
	}
	result := rsa.PublicKey{
		N: new(big.Int).SetBytes(pub.Buffer),
		E: int(parms.Exponent),
	}
	// TPM considers 65537 to be the default RSA public exponent, and 0 in
	// the parms indicates so.
	if result.E == 0 {
		result.E = 65537
	}
	return &result, nil
}

// ObjectName returns the Name of an object: its name algorithm followed by
// the digest of its marshalled public area.
func ObjectName(pub *TPMTPublic) (TPM2BName, error) {
	area, err := tpmutil.Marshal(pub)
	if err != nil {
		return TPM2BName{}, fmt.Errorf("marshalling public area: %w", err)
	}
	digest, err := Digest(pub.NameAlg, area)
	if err != nil {
		return TPM2BName{}, err
	}
	name := tpmutil.NewBuffer(2 + len(digest))
	name.WriteU16(uint16(pub.NameAlg))
	name.WriteBytes(digest)
	return TPM2BName{Buffer: name.Bytes()}, nil
}

// EncryptOAEP encrypts data to pub with RSA-OAEP. The label is passed as a
// NUL-terminated string as required by Part 1, section 4.6.
func EncryptOAEP(rnd io.Reader, pub *rsa.PublicKey, hashAlg TPMIAlgHash, data []byte, label string) ([]byte, error) {
	h, err := hashAlg.Hash()
	if err != nil {
		return nil, err
	}
	return rsa.EncryptOAEP(h.New(), rnd, pub, data, []byte(label+"\x00"))
}

// DecryptOAEP reverses EncryptOAEP.
func DecryptOAEP(priv *rsa.PrivateKey, hashAlg TPMIAlgHash, ciphertext []byte, label string) ([]byte, error) {
	h, err := hashAlg.Hash()
	if err != nil {
		return nil, err
	}
	return rsa.DecryptOAEP(h.New(), nil, priv, ciphertext, []byte(label+"\x00"))
}

func cfbStream(key, iv []byte, encrypt bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to get aes cipher: %w", err)
	}
	if iv == nil {
		iv = make([]byte, block.BlockSize())
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("invalid IV length %d", len(iv))
	}
	if encrypt {
		return cipher.NewCFBEncrypter(block, iv), nil
	}
	return cipher.NewCFBDecrypter(block, iv), nil
}

// EncryptCFB encrypts data with AES in CFB mode. A nil iv means an all-zero
// IV.
func EncryptCFB(key, iv, data []byte) ([]byte, error) {
	s, err := cfbStream(key, iv, true)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	s.XORKeyStream(out, data)
	return out, nil
}

// DecryptCFB reverses EncryptCFB.
func DecryptCFB(key, iv, data []byte) ([]byte, error) {
	s, err := cfbStream(key, iv, false)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	s.XORKeyStream(out, data)
	return out, nil
}

// SymKeyBits validates that def is AES in CFB mode and returns its key size.
func SymKeyBits(def TPMTSymDefObject) (int, error) {
	if def.Algorithm != TPMAlgAES {
		return 0, fmt.Errorf("%w: symmetric algorithm %v", ErrUnsupportedAlgorithm, def.Algorithm)
	}
	if def.Mode != TPMAlgCFB {
		return 0, fmt.Errorf("%w: symmetric mode %v", ErrUnsupportedAlgorithm, def.Mode)
	}
	switch def.KeyBits {
	case 128, 192, 256:
		return int(def.KeyBits), nil
	}
	return 0, fmt.Errorf("%w: AES key size %d", ErrUnsupportedAlgorithm, def.KeyBits)
}

// ProtectionKey is the software view of an RSA storage or endorsement key
// used to protect secrets for a TPM.
type ProtectionKey struct {
	Public *rsa.PublicKey
	// NameAlg hashes the seed encryption, the KDFs and the integrity HMAC.
	NameAlg TPMIAlgHash
	// SymBits is the key size of the key's AES-CFB symmetric definition.
	SymBits int
}

// NewProtectionKey extracts the parameters needed to protect a secret for
// pub. Only RSA keys with an AES-CFB symmetric definition are supported.
func NewProtectionKey(pub *TPMTPublic) (*ProtectionKey, error) {
	if pub.Type != TPMAlgRSA {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKeyType, pub.Type)
	}
	parms, err := pub.Parameters.RSADetail()
	if err != nil {
		return nil, err
	}
	unique, err := pub.Unique.RSA()
	if err != nil {
		return nil, err
	}
	rsaPub, err := RSAPub(parms, unique)
	if err != nil {
		return nil, err
	}
	if _, err := pub.NameAlg.Hash(); err != nil {
		return nil, err
	}
	bits, err := SymKeyBits(parms.Symmetric)
	if err != nil {
		return nil, err
	}
	// A restricted decryption key has no scheme of its own. The TPM
	// decrypts secrets with OAEP over the name algorithm.
	if parms.Scheme.Scheme != TPMAlgNull {
		return nil, fmt.Errorf("%w: RSA scheme %v on a protection key", ErrUnsupportedAlgorithm, parms.Scheme.Scheme)
	}
	return &ProtectionKey{
		Public:  rsaPub,
		NameAlg: pub.NameAlg,
		SymBits: bits,
	}, nil
}

// EncryptSeed fills a seed of size bytes from rnd and encrypts it to k
// under label.
func (k *ProtectionKey) EncryptSeed(rnd io.Reader, size int, label string) (seed []byte, encSeed TPM2BEncryptedSecret, err error) {
	seed = make([]byte, size)
	if _, err := io.ReadFull(rnd, seed); err != nil {
		return nil, TPM2BEncryptedSecret{}, fmt.Errorf("generating seed: %w", err)
	}
	enc, err := EncryptOAEP(rnd, k.Public, k.NameAlg, seed, label)
	if err != nil {
		return nil, TPM2BEncryptedSecret{}, fmt.Errorf("encrypting seed: %w", err)
	}
	return seed, TPM2BEncryptedSecret{Buffer: enc}, nil
}

// DecryptSeed recovers a seed encrypted by EncryptSeed. priv must be the
// private half of k.
func (k *ProtectionKey) DecryptSeed(priv *rsa.PrivateKey, encSeed TPM2BEncryptedSecret, label string) ([]byte, error) {
	seed, err := DecryptOAEP(priv, k.NameAlg, encSeed.Buffer, label)
	if err != nil {
		return nil, fmt.Errorf("decrypting seed: %w", err)
	}
	return seed, nil
}

// OuterWrap applies the outer protection shared by credentials and
// duplication blobs: data is encrypted under KDFa(STORAGE, name) and an
// HMAC under KDFa(INTEGRITY) is computed over the ciphertext and name. The
// result is TPM2B(hmac) || ciphertext.
func (k *ProtectionKey) OuterWrap(seed, name, data []byte) ([]byte, error) {
	symKey, err := KDFa(k.NameAlg, seed, StorageLabel, name, nil, k.SymBits)
	if err != nil {
		return nil, err
	}
	enc, err := EncryptCFB(symKey, nil, data)
	if err != nil {
		return nil, err
	}
	integrity, err := k.integrity(seed, enc, name)
	if err != nil {
		return nil, err
	}
	out := tpmutil.NewBuffer(0)
	TPM2BDigest{Buffer: integrity}.TPMMarshal(out)
	out.WriteBytes(enc)
	return out.Bytes(), out.Err()
}

// OuterUnwrap verifies and decrypts the output of OuterWrap.
func (k *ProtectionKey) OuterUnwrap(seed, name, wrapped []byte) ([]byte, error) {
	in := tpmutil.NewReader(wrapped)
	var tag TPM2BDigest
	tag.TPMUnmarshal(in)
	enc := in.ReadBytes(in.Len())
	if err := in.Err(); err != nil {
		return nil, fmt.Errorf("parsing outer wrapper: %w", err)
	}
	want, err := k.integrity(seed, enc, name)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(tag.Buffer, want) {
		return nil, fmt.Errorf("%w: outer HMAC mismatch", ErrIntegrity)
	}
	symKey, err := KDFa(k.NameAlg, seed, StorageLabel, name, nil, k.SymBits)
	if err != nil {
		return nil, err
	}
	return DecryptCFB(symKey, nil, enc)
}

func (k *ProtectionKey) integrity(seed, enc, name []byte) ([]byte, error) {
	h, err := k.NameAlg.Hash()
	if err != nil {
		return nil, err
	}
	hmacKey, err := KDFa(k.NameAlg, seed, IntegrityLabel, nil, nil, 8*h.Size())
	if err != nil {
		return nil, err
	}
	return HMAC(k.NameAlg, hmacKey, enc, name)
}
