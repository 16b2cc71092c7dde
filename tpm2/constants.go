// Copyright (c) 2014, Google Inc. All rights reserved.
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

import "fmt"

// enumValue is the set of raw integer types used by TPM enumerations.
type enumValue interface {
	~uint8 | ~uint16 | ~uint32
}

// enumString renders v by name when it is in names and as raw hex otherwise.
func enumString[T enumValue](v T, names map[T]string) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("0x%x", uint32(v))
}

// TPMAlgID represents a TPM_ALG_ID.
type TPMAlgID uint16

// TPMIAlgHash represents a TPMI_ALG_HASH.
type TPMIAlgHash = TPMAlgID

// Algorithm IDs.
const (
	TPMAlgRSA          TPMAlgID = 0x0001
	TPMAlgSHA1         TPMAlgID = 0x0004
	TPMAlgHMAC         TPMAlgID = 0x0005
	TPMAlgAES          TPMAlgID = 0x0006
	TPMAlgKeyedHash    TPMAlgID = 0x0008
	TPMAlgXOR          TPMAlgID = 0x000A
	TPMAlgSHA256       TPMAlgID = 0x000B
	TPMAlgSHA384       TPMAlgID = 0x000C
	TPMAlgSHA512       TPMAlgID = 0x000D
	TPMAlgNull         TPMAlgID = 0x0010
	TPMAlgRSASSA       TPMAlgID = 0x0014
	TPMAlgRSAES        TPMAlgID = 0x0015
	TPMAlgRSAPSS       TPMAlgID = 0x0016
	TPMAlgOAEP         TPMAlgID = 0x0017
	TPMAlgECDSA        TPMAlgID = 0x0018
	TPMAlgECDH         TPMAlgID = 0x0019
	TPMAlgECDAA        TPMAlgID = 0x001A
	TPMAlgECSchnorr    TPMAlgID = 0x001C
	TPMAlgKDF1SP800108 TPMAlgID = 0x0022
	TPMAlgECC          TPMAlgID = 0x0023
	TPMAlgSymCipher    TPMAlgID = 0x0025
	TPMAlgCTR          TPMAlgID = 0x0040
	TPMAlgOFB          TPMAlgID = 0x0041
	TPMAlgCBC          TPMAlgID = 0x0042
	TPMAlgCFB          TPMAlgID = 0x0043
	TPMAlgECB          TPMAlgID = 0x0044
)

var algNames = map[TPMAlgID]string{
	TPMAlgRSA:          "RSA",
	TPMAlgSHA1:         "SHA1",
	TPMAlgHMAC:         "HMAC",
	TPMAlgAES:          "AES",
	TPMAlgKeyedHash:    "KEYEDHASH",
	TPMAlgXOR:          "XOR",
	TPMAlgSHA256:       "SHA256",
	TPMAlgSHA384:       "SHA384",
	TPMAlgSHA512:       "SHA512",
	TPMAlgNull:         "NULL",
	TPMAlgRSASSA:       "RSASSA",
	TPMAlgRSAES:        "RSAES",
	TPMAlgRSAPSS:       "RSAPSS",
	TPMAlgOAEP:         "OAEP",
	TPMAlgECDSA:        "ECDSA",
	TPMAlgECDH:         "ECDH",
	TPMAlgECDAA:        "ECDAA",
	TPMAlgECSchnorr:    "ECSCHNORR",
	TPMAlgKDF1SP800108: "KDF1_SP800_108",
	TPMAlgECC:          "ECC",
	TPMAlgSymCipher:    "SYMCIPHER",
	TPMAlgCTR:          "CTR",
	TPMAlgOFB:          "OFB",
	TPMAlgCBC:          "CBC",
	TPMAlgCFB:          "CFB",
	TPMAlgECB:          "ECB",
}

func (a TPMAlgID) String() string { return enumString(a, algNames) }

// Known reports whether a is a named algorithm.
func (a TPMAlgID) Known() bool {
	_, ok := algNames[a]
	return ok
}

// TPMECCCurve represents a TPM_ECC_CURVE.
type TPMECCCurve uint16

// ECC curves.
const (
	TPMECCNone     TPMECCCurve = 0x0000
	TPMECCNistP192 TPMECCCurve = 0x0001
	TPMECCNistP224 TPMECCCurve = 0x0002
	TPMECCNistP256 TPMECCCurve = 0x0003
	TPMECCNistP384 TPMECCCurve = 0x0004
	TPMECCNistP521 TPMECCCurve = 0x0005
)

var curveNames = map[TPMECCCurve]string{
	TPMECCNone:     "NONE",
	TPMECCNistP192: "NIST_P192",
	TPMECCNistP224: "NIST_P224",
	TPMECCNistP256: "NIST_P256",
	TPMECCNistP384: "NIST_P384",
	TPMECCNistP521: "NIST_P521",
}

func (c TPMECCCurve) String() string { return enumString(c, curveNames) }

// Known reports whether c is a named curve.
func (c TPMECCCurve) Known() bool {
	_, ok := curveNames[c]
	return ok
}

// TPMCC represents a TPM_CC.
type TPMCC uint32

// Command codes.
const (
	TPMCCEvictControl        TPMCC = 0x00000120
	TPMCCHierarchyChangeAuth TPMCC = 0x00000129
	TPMCCCreatePrimary       TPMCC = 0x00000131
	TPMCCCreate              TPMCC = 0x00000153
	TPMCCImport              TPMCC = 0x00000156
	TPMCCLoad                TPMCC = 0x00000157
	TPMCCStartup             TPMCC = 0x00000144
	TPMCCShutdown            TPMCC = 0x00000145
	TPMCCStirRandom          TPMCC = 0x00000146
	TPMCCActivateCredential  TPMCC = 0x00000147
	TPMCCDuplicate           TPMCC = 0x0000014B
	TPMCCFlushContext        TPMCC = 0x00000165
	TPMCCLoadExternal        TPMCC = 0x00000167
	TPMCCMakeCredential      TPMCC = 0x00000168
	TPMCCReadPublic          TPMCC = 0x00000173
	TPMCCStartAuthSession    TPMCC = 0x00000176
	TPMCCGetCapability       TPMCC = 0x0000017A
	TPMCCGetRandom           TPMCC = 0x0000017B
)

var ccNames = map[TPMCC]string{
	TPMCCEvictControl:        "TPM2_EvictControl",
	TPMCCHierarchyChangeAuth: "TPM2_HierarchyChangeAuth",
	TPMCCCreatePrimary:       "TPM2_CreatePrimary",
	TPMCCCreate:              "TPM2_Create",
	TPMCCImport:              "TPM2_Import",
	TPMCCLoad:                "TPM2_Load",
	TPMCCStartup:             "TPM2_Startup",
	TPMCCShutdown:            "TPM2_Shutdown",
	TPMCCStirRandom:          "TPM2_StirRandom",
	TPMCCActivateCredential:  "TPM2_ActivateCredential",
	TPMCCDuplicate:           "TPM2_Duplicate",
	TPMCCFlushContext:        "TPM2_FlushContext",
	TPMCCLoadExternal:        "TPM2_LoadExternal",
	TPMCCMakeCredential:      "TPM2_MakeCredential",
	TPMCCReadPublic:          "TPM2_ReadPublic",
	TPMCCStartAuthSession:    "TPM2_StartAuthSession",
	TPMCCGetCapability:       "TPM2_GetCapability",
	TPMCCGetRandom:           "TPM2_GetRandom",
}

func (c TPMCC) String() string { return enumString(c, ccNames) }

// Known reports whether c is a named command code.
func (c TPMCC) Known() bool {
	_, ok := ccNames[c]
	return ok
}

// TPMST represents a TPM_ST structure tag.
type TPMST uint16

// Structure tags.
const (
	TPMSTNull       TPMST = 0x8000
	TPMSTNoSessions TPMST = 0x8001
	TPMSTSessions   TPMST = 0x8002
	TPMSTCreation   TPMST = 0x8021
	TPMSTHashCheck  TPMST = 0x8024
)

var stNames = map[TPMST]string{
	TPMSTNull:       "TPM_ST_NULL",
	TPMSTNoSessions: "TPM_ST_NO_SESSIONS",
	TPMSTSessions:   "TPM_ST_SESSIONS",
	TPMSTCreation:   "TPM_ST_CREATION",
	TPMSTHashCheck:  "TPM_ST_HASHCHECK",
}

func (s TPMST) String() string { return enumString(s, stNames) }

// Known reports whether s is a named structure tag.
func (s TPMST) Known() bool {
	_, ok := stNames[s]
	return ok
}

// TPMSU represents a TPM_SU startup or shutdown type.
type TPMSU uint16

// Startup types.
const (
	TPMSUClear TPMSU = 0x0000
	TPMSUState TPMSU = 0x0001
)

var suNames = map[TPMSU]string{
	TPMSUClear: "TPM_SU_CLEAR",
	TPMSUState: "TPM_SU_STATE",
}

func (s TPMSU) String() string { return enumString(s, suNames) }

// Known reports whether s is a named startup type.
func (s TPMSU) Known() bool {
	_, ok := suNames[s]
	return ok
}

// TPMAObject represents TPMA_OBJECT attribute bits.
type TPMAObject uint32

// Object attributes.
const (
	TPMAObjectFixedTPM             TPMAObject = 0x00000002
	TPMAObjectSTClear              TPMAObject = 0x00000004
	TPMAObjectFixedParent          TPMAObject = 0x00000010
	TPMAObjectSensitiveDataOrigin  TPMAObject = 0x00000020
	TPMAObjectUserWithAuth         TPMAObject = 0x00000040
	TPMAObjectAdminWithPolicy      TPMAObject = 0x00000080
	TPMAObjectNoDA                 TPMAObject = 0x00000400
	TPMAObjectEncryptedDuplication TPMAObject = 0x00000800
	TPMAObjectRestricted           TPMAObject = 0x00010000
	TPMAObjectDecrypt              TPMAObject = 0x00020000
	TPMAObjectSignEncrypt          TPMAObject = 0x00040000

	// TPMAObjectStorageDefault is the attribute set of a restricted
	// decryption parent.
	TPMAObjectStorageDefault = TPMAObjectDecrypt | TPMAObjectRestricted | TPMAObjectFixedTPM |
		TPMAObjectFixedParent | TPMAObjectSensitiveDataOrigin | TPMAObjectUserWithAuth
)

var objectAttrNames = []struct {
	bit  TPMAObject
	name string
}{
	{TPMAObjectFixedTPM, "fixedTPM"},
	{TPMAObjectSTClear, "stClear"},
	{TPMAObjectFixedParent, "fixedParent"},
	{TPMAObjectSensitiveDataOrigin, "sensitiveDataOrigin"},
	{TPMAObjectUserWithAuth, "userWithAuth"},
	{TPMAObjectAdminWithPolicy, "adminWithPolicy"},
	{TPMAObjectNoDA, "noDA"},
	{TPMAObjectEncryptedDuplication, "encryptedDuplication"},
	{TPMAObjectRestricted, "restricted"},
	{TPMAObjectDecrypt, "decrypt"},
	{TPMAObjectSignEncrypt, "sign"},
}

func (a TPMAObject) String() string {
	var s string
	rest := a
	for _, n := range objectAttrNames {
		if a&n.bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += n.name
		rest &^= n.bit
	}
	if rest != 0 {
		if s != "" {
			s += "|"
		}
		s += fmt.Sprintf("0x%x", uint32(rest))
	}
	if s == "" {
		return "0"
	}
	return s
}

// Known reports whether every set bit of a is a named attribute.
func (a TPMAObject) Known() bool {
	for _, n := range objectAttrNames {
		a &^= n.bit
	}
	return a == 0
}

// TPMASession represents TPMA_SESSION attribute bits.
type TPMASession uint8

// Session attributes.
const (
	TPMASessionContinueSession TPMASession = 0x01
	TPMASessionAuditExclusive  TPMASession = 0x02
	TPMASessionAuditReset      TPMASession = 0x04
	TPMASessionDecrypt         TPMASession = 0x20
	TPMASessionEncrypt         TPMASession = 0x40
	TPMASessionAudit           TPMASession = 0x80
)
