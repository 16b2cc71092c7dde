package tpm2

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"math/big"
)

// KDFa implements TPM 2.0's default key derivation function, as defined in
// section 11.4.9.2 of the TPM revision 2 specification part 1.
//
// The blocks HMAC(key, BE32(i) || label || 0x00 || contextU || contextV ||
// BE32(bits)) are concatenated and shifted right so that exactly bits bits
// remain, returned big-endian in (bits+7)/8 bytes.
func KDFa(hashAlg TPMIAlgHash, key []byte, label string, contextU, contextV []byte, bits int) ([]byte, error) {
	if bits <= 0 {
		return nil, fmt.Errorf("KDFa: invalid output length %d bits", bits)
	}
	h, err := hashAlg.Hash()
	if err != nil {
		return nil, err
	}
	blockBits := 8 * h.Size()
	n := (bits + blockBits - 1) / blockBits

	var counter, size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(bits))
	out := make([]byte, 0, n*h.Size())
	for i := 1; i <= n; i++ {
		mac := hmac.New(h.New, key)
		binary.BigEndian.PutUint32(counter[:], uint32(i))
		mac.Write(counter[:])
		mac.Write([]byte(label))
		mac.Write([]byte{0}) // Terminating null character for C-string.
		mac.Write(contextU)
		mac.Write(contextV)
		mac.Write(size[:])
		out = mac.Sum(out)
	}

	outLen := (bits + 7) / 8
	shift := n*blockBits - bits
	if shift%8 == 0 {
		return out[:outLen], nil
	}
	v := new(big.Int).SetBytes(out)
	v.Rsh(v, uint(shift))
	return v.FillBytes(make([]byte, outLen)), nil
}
