// Copyright (c) 2018, Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tpm2

import (
	"errors"
	"fmt"

	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// ErrWrongSelector is returned by union accessors when the union holds a
// different member.
var ErrWrongSelector = errors.New("tpm2: union selector does not match the requested member")

// TPM2B is a byte buffer with a 16-bit size prefix.
type TPM2B struct {
	Buffer []byte
}

// TPMMarshal implements tpmutil.Marshaler.
func (b TPM2B) TPMMarshal(out *tpmutil.Buffer) { out.WriteSized(tpmutil.Size16, b.Buffer) }

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (b *TPM2B) TPMUnmarshal(in *tpmutil.Buffer) { b.Buffer = in.ReadSized(tpmutil.Size16) }

// Sized byte buffers. They share the TPM2B encoding.
type (
	TPM2BDigest          = TPM2B
	TPM2BData            = TPM2B
	TPM2BNonce           = TPM2B
	TPM2BAuth            = TPM2B
	TPM2BName            = TPM2B
	TPM2BPrivate         = TPM2B
	TPM2BEncryptedSecret = TPM2B
	TPM2BPublicKeyRSA    = TPM2B
	TPM2BPrivateKeyRSA   = TPM2B
	TPM2BECCParameter    = TPM2B
	TPM2BSensitiveData   = TPM2B
	TPM2BSymKey          = TPM2B
	TPM2BIDObject        = TPM2B
	TPM2BCreationData    = TPM2B
	TPM2BMaxBuffer       = TPM2B
)

// TPMTSymDefObject represents a TPMT_SYM_DEF_OBJECT.
type TPMTSymDefObject struct {
	Algorithm TPMAlgID
	// KeyBits holds the key size, or the hash algorithm when Algorithm is
	// XOR.
	KeyBits uint16
	Mode    TPMAlgID
}

// TPMTSymDef represents a TPMT_SYM_DEF. It shares the encoding of
// TPMT_SYM_DEF_OBJECT.
type TPMTSymDef = TPMTSymDefObject

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTSymDefObject) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.Algorithm))
	switch s.Algorithm {
	case TPMAlgNull:
	case TPMAlgXOR:
		out.WriteU16(s.KeyBits)
	default:
		out.WriteU16(s.KeyBits)
		out.WriteU16(uint16(s.Mode))
	}
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTSymDefObject) TPMUnmarshal(in *tpmutil.Buffer) {
	*s = TPMTSymDefObject{Algorithm: TPMAlgID(in.ReadU16())}
	switch s.Algorithm {
	case TPMAlgNull:
	case TPMAlgXOR:
		s.KeyBits = in.ReadU16()
	default:
		s.KeyBits = in.ReadU16()
		s.Mode = TPMAlgID(in.ReadU16())
	}
}

// TPMTRSAScheme represents a TPMT_RSA_SCHEME.
type TPMTRSAScheme struct {
	Scheme  TPMAlgID
	HashAlg TPMIAlgHash
}

func schemeHasHash(scheme TPMAlgID) bool {
	return scheme != TPMAlgNull && scheme != TPMAlgRSAES
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTRSAScheme) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.Scheme))
	if schemeHasHash(s.Scheme) {
		out.WriteU16(uint16(s.HashAlg))
	}
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTRSAScheme) TPMUnmarshal(in *tpmutil.Buffer) {
	*s = TPMTRSAScheme{Scheme: TPMAlgID(in.ReadU16())}
	if schemeHasHash(s.Scheme) {
		s.HashAlg = TPMAlgID(in.ReadU16())
	}
}

// TPMTECCScheme represents a TPMT_ECC_SCHEME.
type TPMTECCScheme struct {
	Scheme  TPMAlgID
	HashAlg TPMIAlgHash
	// Count is only encoded for ECDAA.
	Count uint16
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTECCScheme) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.Scheme))
	if s.Scheme == TPMAlgNull {
		return
	}
	out.WriteU16(uint16(s.HashAlg))
	if s.Scheme == TPMAlgECDAA {
		out.WriteU16(s.Count)
	}
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTECCScheme) TPMUnmarshal(in *tpmutil.Buffer) {
	*s = TPMTECCScheme{Scheme: TPMAlgID(in.ReadU16())}
	if s.Scheme == TPMAlgNull {
		return
	}
	s.HashAlg = TPMAlgID(in.ReadU16())
	if s.Scheme == TPMAlgECDAA {
		s.Count = in.ReadU16()
	}
}

// TPMTKDFScheme represents a TPMT_KDF_SCHEME.
type TPMTKDFScheme struct {
	Scheme  TPMAlgID
	HashAlg TPMIAlgHash
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTKDFScheme) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.Scheme))
	if s.Scheme != TPMAlgNull {
		out.WriteU16(uint16(s.HashAlg))
	}
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTKDFScheme) TPMUnmarshal(in *tpmutil.Buffer) {
	*s = TPMTKDFScheme{Scheme: TPMAlgID(in.ReadU16())}
	if s.Scheme != TPMAlgNull {
		s.HashAlg = TPMAlgID(in.ReadU16())
	}
}

// TPMTKeyedHashScheme represents a TPMT_KEYEDHASH_SCHEME.
type TPMTKeyedHashScheme struct {
	Scheme  TPMAlgID
	HashAlg TPMIAlgHash
	// KDF is only encoded for XOR.
	KDF TPMAlgID
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTKeyedHashScheme) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.Scheme))
	switch s.Scheme {
	case TPMAlgHMAC:
		out.WriteU16(uint16(s.HashAlg))
	case TPMAlgXOR:
		out.WriteU16(uint16(s.HashAlg))
		out.WriteU16(uint16(s.KDF))
	}
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTKeyedHashScheme) TPMUnmarshal(in *tpmutil.Buffer) {
	*s = TPMTKeyedHashScheme{Scheme: TPMAlgID(in.ReadU16())}
	switch s.Scheme {
	case TPMAlgHMAC:
		s.HashAlg = TPMAlgID(in.ReadU16())
	case TPMAlgXOR:
		s.HashAlg = TPMAlgID(in.ReadU16())
		s.KDF = TPMAlgID(in.ReadU16())
	}
}

// TPMSRSAParms represents a TPMS_RSA_PARMS.
type TPMSRSAParms struct {
	Symmetric TPMTSymDefObject
	Scheme    TPMTRSAScheme
	KeyBits   uint16
	// Exponent of zero means the default exponent 65537.
	Exponent uint32
}

// TPMSECCParms represents a TPMS_ECC_PARMS.
type TPMSECCParms struct {
	Symmetric TPMTSymDefObject
	Scheme    TPMTECCScheme
	CurveID   TPMECCCurve
	KDF       TPMTKDFScheme
}

// TPMSKeyedHashParms represents a TPMS_KEYEDHASH_PARMS.
type TPMSKeyedHashParms struct {
	Scheme TPMTKeyedHashScheme
}

// TPMSSymCipherParms represents a TPMS_SYMCIPHER_PARMS.
type TPMSSymCipherParms struct {
	Sym TPMTSymDefObject
}

// PublicParmsContents is the set of members of TPMU_PUBLIC_PARMS.
type PublicParmsContents interface {
	*TPMSRSAParms | *TPMSECCParms | *TPMSKeyedHashParms | *TPMSSymCipherParms
}

// TPMUPublicParms represents a TPMU_PUBLIC_PARMS, tagged by the object type.
type TPMUPublicParms struct {
	selector  TPMAlgID
	rsa       *TPMSRSAParms
	ecc       *TPMSECCParms
	keyedHash *TPMSKeyedHashParms
	symCipher *TPMSSymCipherParms
}

// NewTPMUPublicParms returns a TPMUPublicParms holding contents under
// selector.
func NewTPMUPublicParms[C PublicParmsContents](selector TPMAlgID, contents C) TPMUPublicParms {
	u := TPMUPublicParms{selector: selector}
	switch c := any(contents).(type) {
	case *TPMSRSAParms:
		u.rsa = c
	case *TPMSECCParms:
		u.ecc = c
	case *TPMSKeyedHashParms:
		u.keyedHash = c
	case *TPMSSymCipherParms:
		u.symCipher = c
	}
	return u
}

// Selector returns the object type the union was built for.
func (u *TPMUPublicParms) Selector() TPMAlgID { return u.selector }

// RSADetail returns the RSA parameters.
func (u *TPMUPublicParms) RSADetail() (*TPMSRSAParms, error) {
	if u.selector != TPMAlgRSA || u.rsa == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgRSA)
	}
	return u.rsa, nil
}

// ECCDetail returns the ECC parameters.
func (u *TPMUPublicParms) ECCDetail() (*TPMSECCParms, error) {
	if u.selector != TPMAlgECC || u.ecc == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgECC)
	}
	return u.ecc, nil
}

// KeyedHashDetail returns the keyed hash parameters.
func (u *TPMUPublicParms) KeyedHashDetail() (*TPMSKeyedHashParms, error) {
	if u.selector != TPMAlgKeyedHash || u.keyedHash == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgKeyedHash)
	}
	return u.keyedHash, nil
}

// SymDetail returns the symmetric cipher parameters.
func (u *TPMUPublicParms) SymDetail() (*TPMSSymCipherParms, error) {
	if u.selector != TPMAlgSymCipher || u.symCipher == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgSymCipher)
	}
	return u.symCipher, nil
}

func (u *TPMUPublicParms) marshal(out *tpmutil.Buffer, selector TPMAlgID) {
	if u.selector != selector {
		out.Failf("tpm2: public parameters for %v in an object of type %v", u.selector, selector)
		return
	}
	switch {
	case selector == TPMAlgRSA && u.rsa != nil:
		u.rsa.Symmetric.TPMMarshal(out)
		u.rsa.Scheme.TPMMarshal(out)
		out.WriteU16(u.rsa.KeyBits)
		out.WriteU32(u.rsa.Exponent)
	case selector == TPMAlgECC && u.ecc != nil:
		u.ecc.Symmetric.TPMMarshal(out)
		u.ecc.Scheme.TPMMarshal(out)
		out.WriteU16(uint16(u.ecc.CurveID))
		u.ecc.KDF.TPMMarshal(out)
	case selector == TPMAlgKeyedHash && u.keyedHash != nil:
		u.keyedHash.Scheme.TPMMarshal(out)
	case selector == TPMAlgSymCipher && u.symCipher != nil:
		u.symCipher.Sym.TPMMarshal(out)
	default:
		out.Failf("tpm2: no public parameters for object type %v", selector)
	}
}

func (u *TPMUPublicParms) unmarshal(in *tpmutil.Buffer, selector TPMAlgID) {
	*u = TPMUPublicParms{selector: selector}
	switch selector {
	case TPMAlgRSA:
		var p TPMSRSAParms
		p.Symmetric.TPMUnmarshal(in)
		p.Scheme.TPMUnmarshal(in)
		p.KeyBits = in.ReadU16()
		p.Exponent = in.ReadU32()
		u.rsa = &p
	case TPMAlgECC:
		var p TPMSECCParms
		p.Symmetric.TPMUnmarshal(in)
		p.Scheme.TPMUnmarshal(in)
		p.CurveID = TPMECCCurve(in.ReadU16())
		p.KDF.TPMUnmarshal(in)
		u.ecc = &p
	case TPMAlgKeyedHash:
		var p TPMSKeyedHashParms
		p.Scheme.TPMUnmarshal(in)
		u.keyedHash = &p
	case TPMAlgSymCipher:
		var p TPMSSymCipherParms
		p.Sym.TPMUnmarshal(in)
		u.symCipher = &p
	default:
		in.Failf("tpm2: unknown object type %v", selector)
	}
}

// TPMSECCPoint represents a TPMS_ECC_POINT.
type TPMSECCPoint struct {
	X TPM2BECCParameter
	Y TPM2BECCParameter
}

// PublicIDContents is the set of members of TPMU_PUBLIC_ID.
type PublicIDContents interface {
	*TPM2BPublicKeyRSA | *TPMSECCPoint
}

// TPMUPublicID represents a TPMU_PUBLIC_ID, tagged by the object type. The
// keyed hash and symmetric cipher members are digests and share the RSA
// member's TPM2B encoding.
type TPMUPublicID struct {
	selector TPMAlgID
	buf      *TPM2B
	ecc      *TPMSECCPoint
}

// NewTPMUPublicID returns a TPMUPublicID holding contents under selector.
func NewTPMUPublicID[C PublicIDContents](selector TPMAlgID, contents C) TPMUPublicID {
	u := TPMUPublicID{selector: selector}
	switch c := any(contents).(type) {
	case *TPM2B:
		u.buf = c
	case *TPMSECCPoint:
		u.ecc = c
	}
	return u
}

// RSA returns the RSA modulus.
func (u *TPMUPublicID) RSA() (*TPM2BPublicKeyRSA, error) {
	if u.selector != TPMAlgRSA || u.buf == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgRSA)
	}
	return u.buf, nil
}

// ECC returns the ECC public point.
func (u *TPMUPublicID) ECC() (*TPMSECCPoint, error) {
	if u.selector != TPMAlgECC || u.ecc == nil {
		return nil, fmt.Errorf("%w: have %v, want %v", ErrWrongSelector, u.selector, TPMAlgECC)
	}
	return u.ecc, nil
}

// Digest returns the unique digest of a keyed hash or symmetric cipher
// object.
func (u *TPMUPublicID) Digest() (*TPM2BDigest, error) {
	if (u.selector != TPMAlgKeyedHash && u.selector != TPMAlgSymCipher) || u.buf == nil {
		return nil, fmt.Errorf("%w: have %v, want a digest member", ErrWrongSelector, u.selector)
	}
	return u.buf, nil
}

func (u *TPMUPublicID) marshal(out *tpmutil.Buffer, selector TPMAlgID) {
	if u.selector != selector {
		out.Failf("tpm2: unique identifier for %v in an object of type %v", u.selector, selector)
		return
	}
	switch selector {
	case TPMAlgRSA, TPMAlgKeyedHash, TPMAlgSymCipher:
		if u.buf == nil {
			out.WriteU16(0)
			return
		}
		u.buf.TPMMarshal(out)
	case TPMAlgECC:
		if u.ecc == nil {
			out.WriteU16(0)
			out.WriteU16(0)
			return
		}
		u.ecc.X.TPMMarshal(out)
		u.ecc.Y.TPMMarshal(out)
	default:
		out.Failf("tpm2: no unique identifier for object type %v", selector)
	}
}

func (u *TPMUPublicID) unmarshal(in *tpmutil.Buffer, selector TPMAlgID) {
	*u = TPMUPublicID{selector: selector}
	switch selector {
	case TPMAlgRSA, TPMAlgKeyedHash, TPMAlgSymCipher:
		var b TPM2B
		b.TPMUnmarshal(in)
		u.buf = &b
	case TPMAlgECC:
		var p TPMSECCPoint
		p.X.TPMUnmarshal(in)
		p.Y.TPMUnmarshal(in)
		u.ecc = &p
	default:
		in.Failf("tpm2: unknown object type %v", selector)
	}
}

// TPMTPublic represents a TPMT_PUBLIC.
type TPMTPublic struct {
	Type             TPMAlgID
	NameAlg          TPMIAlgHash
	ObjectAttributes TPMAObject
	AuthPolicy       TPM2BDigest
	Parameters       TPMUPublicParms
	Unique           TPMUPublicID
}

// TPMMarshal implements tpmutil.Marshaler.
func (p TPMTPublic) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(p.Type))
	out.WriteU16(uint16(p.NameAlg))
	out.WriteU32(uint32(p.ObjectAttributes))
	p.AuthPolicy.TPMMarshal(out)
	p.Parameters.marshal(out, p.Type)
	p.Unique.marshal(out, p.Type)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (p *TPMTPublic) TPMUnmarshal(in *tpmutil.Buffer) {
	p.Type = TPMAlgID(in.ReadU16())
	p.NameAlg = TPMAlgID(in.ReadU16())
	p.ObjectAttributes = TPMAObject(in.ReadU32())
	p.AuthPolicy.TPMUnmarshal(in)
	p.Parameters.unmarshal(in, p.Type)
	p.Unique.unmarshal(in, p.Type)
}

// TPM2BPublic represents a TPM2B_PUBLIC.
type TPM2BPublic struct {
	PublicArea TPMTPublic
}

// New2BPublic wraps pub in a TPM2BPublic.
func New2BPublic(pub *TPMTPublic) TPM2BPublic {
	return TPM2BPublic{PublicArea: *pub}
}

// TPMMarshal implements tpmutil.Marshaler.
func (p TPM2BPublic) TPMMarshal(out *tpmutil.Buffer) {
	out.BeginSized(tpmutil.Size16)
	p.PublicArea.TPMMarshal(out)
	out.EndSized()
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (p *TPM2BPublic) TPMUnmarshal(in *tpmutil.Buffer) {
	in.PushSized(tpmutil.Size16)
	p.PublicArea.TPMUnmarshal(in)
	in.PopSized()
}

// TPMTSensitive represents a TPMT_SENSITIVE. Every member of
// TPMU_SENSITIVE_COMPOSITE is a TPM2B, so the selected member is kept as
// raw bytes.
type TPMTSensitive struct {
	SensitiveType TPMAlgID
	AuthValue     TPM2BAuth
	SeedValue     TPM2BDigest
	Sensitive     TPM2B
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPMTSensitive) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(s.SensitiveType))
	s.AuthValue.TPMMarshal(out)
	s.SeedValue.TPMMarshal(out)
	s.Sensitive.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPMTSensitive) TPMUnmarshal(in *tpmutil.Buffer) {
	s.SensitiveType = TPMAlgID(in.ReadU16())
	s.AuthValue.TPMUnmarshal(in)
	s.SeedValue.TPMUnmarshal(in)
	s.Sensitive.TPMUnmarshal(in)
}

// TPM2BSensitive represents a TPM2B_SENSITIVE. A nil SensitiveArea encodes
// as an empty buffer.
type TPM2BSensitive struct {
	SensitiveArea *TPMTSensitive
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPM2BSensitive) TPMMarshal(out *tpmutil.Buffer) {
	out.BeginSized(tpmutil.Size16)
	if s.SensitiveArea != nil {
		s.SensitiveArea.TPMMarshal(out)
	}
	out.EndSized()
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (s *TPM2BSensitive) TPMUnmarshal(in *tpmutil.Buffer) {
	s.SensitiveArea = nil
	if n := in.PushSized(tpmutil.Size16); n > 0 {
		s.SensitiveArea = new(TPMTSensitive)
		s.SensitiveArea.TPMUnmarshal(in)
	}
	in.PopSized()
}

// TPMSSensitiveCreate represents a TPMS_SENSITIVE_CREATE.
type TPMSSensitiveCreate struct {
	UserAuth TPM2BAuth
	Data     TPM2BSensitiveData
}

// TPM2BSensitiveCreate represents a TPM2B_SENSITIVE_CREATE.
type TPM2BSensitiveCreate struct {
	Sensitive TPMSSensitiveCreate
}

// TPMMarshal implements tpmutil.Marshaler.
func (s TPM2BSensitiveCreate) TPMMarshal(out *tpmutil.Buffer) {
	out.BeginSized(tpmutil.Size16)
	s.Sensitive.UserAuth.TPMMarshal(out)
	s.Sensitive.Data.TPMMarshal(out)
	out.EndSized()
}

// TPMSIDObject represents a TPMS_ID_OBJECT, the payload of a credential
// blob.
type TPMSIDObject struct {
	IntegrityHMAC TPM2BDigest
	// EncIdentity is not size-prefixed; it runs to the end of the enclosing
	// TPM2B_ID_OBJECT.
	EncIdentity []byte
}

// TPMMarshal implements tpmutil.Marshaler.
func (o TPMSIDObject) TPMMarshal(out *tpmutil.Buffer) {
	o.IntegrityHMAC.TPMMarshal(out)
	out.WriteBytes(o.EncIdentity)
}

// TPMUnmarshal implements tpmutil.Unmarshaler. It consumes the rest of the
// innermost sized structure, or the rest of the buffer.
func (o *TPMSIDObject) TPMUnmarshal(in *tpmutil.Buffer) {
	o.IntegrityHMAC.TPMUnmarshal(in)
	o.EncIdentity = in.ReadBytes(in.RemainingSized())
}

// Wrap encodes o as a TPM2B_ID_OBJECT.
func (o TPMSIDObject) Wrap() (TPM2BIDObject, error) {
	b, err := tpmutil.Marshal(o)
	if err != nil {
		return TPM2BIDObject{}, err
	}
	return TPM2BIDObject{Buffer: b}, nil
}

// ParseIDObject decodes the TPMS_ID_OBJECT carried in a TPM2B_ID_OBJECT.
func ParseIDObject(b TPM2BIDObject) (*TPMSIDObject, error) {
	var o TPMSIDObject
	if err := tpmutil.Unmarshal(b.Buffer, &o); err != nil {
		return nil, fmt.Errorf("parsing TPMS_ID_OBJECT: %w", err)
	}
	return &o, nil
}

// TPMSPCRSelection represents a TPMS_PCR_SELECTION.
type TPMSPCRSelection struct {
	Hash      TPMIAlgHash
	PCRSelect []byte
}

// TPMLPCRSelection represents a TPML_PCR_SELECTION.
type TPMLPCRSelection struct {
	PCRSelections []TPMSPCRSelection
}

// maxPCRSelections bounds the number of banks accepted when decoding.
const maxPCRSelections = 16

// TPMMarshal implements tpmutil.Marshaler.
func (l TPMLPCRSelection) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteList(len(l.PCRSelections), func(i int) {
		s := l.PCRSelections[i]
		out.WriteU16(uint16(s.Hash))
		out.WriteSized(tpmutil.Size8, s.PCRSelect)
	})
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (l *TPMLPCRSelection) TPMUnmarshal(in *tpmutil.Buffer) {
	l.PCRSelections = nil
	in.ReadList(maxPCRSelections, func(int) {
		var s TPMSPCRSelection
		s.Hash = TPMAlgID(in.ReadU16())
		s.PCRSelect = in.ReadSized(tpmutil.Size8)
		l.PCRSelections = append(l.PCRSelections, s)
	})
}

// TPMTTKCreation represents a TPMT_TK_CREATION.
type TPMTTKCreation struct {
	Tag       TPMST
	Hierarchy TPMHandle
	Digest    TPM2BDigest
}

// TPMMarshal implements tpmutil.Marshaler.
func (t TPMTTKCreation) TPMMarshal(out *tpmutil.Buffer) {
	out.WriteU16(uint16(t.Tag))
	out.WriteU32(uint32(t.Hierarchy))
	t.Digest.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (t *TPMTTKCreation) TPMUnmarshal(in *tpmutil.Buffer) {
	t.Tag = TPMST(in.ReadU16())
	t.Hierarchy = TPMHandle(in.ReadU32())
	t.Digest.TPMUnmarshal(in)
}
