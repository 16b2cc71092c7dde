package tpm2

import (
	"context"

	"github.com/microsoft/TSS.MSR-sub003/tpmutil"
)

// Each command type marshals its own parameter area; handles travel in the
// Call. Response types embed the Result of the exchange, so that a response
// code admitted by AllowErrors or SuppressErrors can be inspected. Their
// other fields are only set when the command succeeded.

func handle(h TPMHandle) AuthHandle { return AuthHandle{Handle: h} }

// Startup is TPM2_Startup.
type Startup struct {
	StartupType TPMSU
}

// TPMMarshal implements tpmutil.Marshaler.
func (c Startup) TPMMarshal(out *tpmutil.Buffer) { out.WriteU16(uint16(c.StartupType)) }

// Execute executes the command.
func (c Startup) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{Code: TPMCCStartup, Request: c}, opts...)
}

// Shutdown is TPM2_Shutdown.
type Shutdown struct {
	ShutdownType TPMSU
}

// TPMMarshal implements tpmutil.Marshaler.
func (c Shutdown) TPMMarshal(out *tpmutil.Buffer) { out.WriteU16(uint16(c.ShutdownType)) }

// Execute executes the command.
func (c Shutdown) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{Code: TPMCCShutdown, Request: c}, opts...)
}

// GetRandom is TPM2_GetRandom.
type GetRandom struct {
	BytesRequested uint16
}

// GetRandomResponse is the response from TPM2_GetRandom.
type GetRandomResponse struct {
	Result
	RandomBytes TPM2BDigest
}

// TPMMarshal implements tpmutil.Marshaler.
func (c GetRandom) TPMMarshal(out *tpmutil.Buffer) { out.WriteU16(c.BytesRequested) }

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *GetRandomResponse) TPMUnmarshal(in *tpmutil.Buffer) { r.RandomBytes.TPMUnmarshal(in) }

// Execute executes the command.
func (c GetRandom) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*GetRandomResponse, error) {
	var rsp GetRandomResponse
	res, err := t.Dispatch(ctx, Call{Code: TPMCCGetRandom, Request: c, Response: &rsp}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// StirRandom is TPM2_StirRandom.
type StirRandom struct {
	InData TPM2BSensitiveData
}

// TPMMarshal implements tpmutil.Marshaler.
func (c StirRandom) TPMMarshal(out *tpmutil.Buffer) { c.InData.TPMMarshal(out) }

// Execute executes the command.
func (c StirRandom) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{Code: TPMCCStirRandom, Request: c}, opts...)
}

// FlushContext is TPM2_FlushContext. The handle is a parameter, not part of
// the handle area.
type FlushContext struct {
	FlushHandle TPMHandle
}

// TPMMarshal implements tpmutil.Marshaler.
func (c FlushContext) TPMMarshal(out *tpmutil.Buffer) { out.WriteU32(uint32(c.FlushHandle)) }

// Execute executes the command.
func (c FlushContext) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{Code: TPMCCFlushContext, Request: c}, opts...)
}

// ReadPublic is TPM2_ReadPublic.
type ReadPublic struct {
	ObjectHandle TPMHandle
}

// ReadPublicResponse is the response from TPM2_ReadPublic.
type ReadPublicResponse struct {
	Result
	OutPublic     TPM2BPublic
	Name          TPM2BName
	QualifiedName TPM2BName
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *ReadPublicResponse) TPMUnmarshal(in *tpmutil.Buffer) {
	r.OutPublic.TPMUnmarshal(in)
	r.Name.TPMUnmarshal(in)
	r.QualifiedName.TPMUnmarshal(in)
}

// Execute executes the command.
func (c ReadPublic) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*ReadPublicResponse, error) {
	var rsp ReadPublicResponse
	res, err := t.Dispatch(ctx, Call{
		Code:     TPMCCReadPublic,
		Handles:  []AuthHandle{handle(c.ObjectHandle)},
		Response: &rsp,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// CreatePrimary is TPM2_CreatePrimary.
type CreatePrimary struct {
	PrimaryHandle AuthHandle
	InSensitive   TPM2BSensitiveCreate
	InPublic      TPM2BPublic
	OutsideInfo   TPM2BData
	CreationPCR   TPMLPCRSelection
}

// CreatePrimaryResponse is the response from TPM2_CreatePrimary.
type CreatePrimaryResponse struct {
	Result
	ObjectHandle   TPMHandle
	OutPublic      TPM2BPublic
	CreationData   TPM2BCreationData
	CreationHash   TPM2BDigest
	CreationTicket TPMTTKCreation
	Name           TPM2BName
}

// TPMMarshal implements tpmutil.Marshaler.
func (c CreatePrimary) TPMMarshal(out *tpmutil.Buffer) {
	c.InSensitive.TPMMarshal(out)
	c.InPublic.TPMMarshal(out)
	c.OutsideInfo.TPMMarshal(out)
	c.CreationPCR.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *CreatePrimaryResponse) TPMUnmarshal(in *tpmutil.Buffer) {
	r.OutPublic.TPMUnmarshal(in)
	r.CreationData.TPMUnmarshal(in)
	r.CreationHash.TPMUnmarshal(in)
	r.CreationTicket.TPMUnmarshal(in)
	r.Name.TPMUnmarshal(in)
}

// Execute executes the command.
func (c CreatePrimary) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*CreatePrimaryResponse, error) {
	var rsp CreatePrimaryResponse
	res, err := t.Dispatch(ctx, Call{
		Code:      TPMCCCreatePrimary,
		Handles:   []AuthHandle{c.PrimaryHandle},
		NumAuth:   1,
		Request:   c,
		Response:  &rsp,
		OutHandle: &rsp.ObjectHandle,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// Load is TPM2_Load.
type Load struct {
	ParentHandle AuthHandle
	InPrivate    TPM2BPrivate
	InPublic     TPM2BPublic
}

// LoadResponse is the response from TPM2_Load and TPM2_LoadExternal.
type LoadResponse struct {
	Result
	ObjectHandle TPMHandle
	Name         TPM2BName
}

// TPMMarshal implements tpmutil.Marshaler.
func (c Load) TPMMarshal(out *tpmutil.Buffer) {
	c.InPrivate.TPMMarshal(out)
	c.InPublic.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *LoadResponse) TPMUnmarshal(in *tpmutil.Buffer) { r.Name.TPMUnmarshal(in) }

func loadCall(ctx context.Context, t *TPM, call Call, opts []CallOption) (*LoadResponse, error) {
	var rsp LoadResponse
	call.Response = &rsp
	call.OutHandle = &rsp.ObjectHandle
	res, err := t.Dispatch(ctx, call, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// Execute executes the command.
func (c Load) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*LoadResponse, error) {
	return loadCall(ctx, t, Call{
		Code:    TPMCCLoad,
		Handles: []AuthHandle{c.ParentHandle},
		NumAuth: 1,
		Request: c,
	}, opts)
}

// LoadExternal is TPM2_LoadExternal. A nil InPrivate.SensitiveArea loads
// only the public area.
type LoadExternal struct {
	InPrivate TPM2BSensitive
	InPublic  TPM2BPublic
	Hierarchy TPMHandle
}

// TPMMarshal implements tpmutil.Marshaler.
func (c LoadExternal) TPMMarshal(out *tpmutil.Buffer) {
	c.InPrivate.TPMMarshal(out)
	c.InPublic.TPMMarshal(out)
	out.WriteU32(uint32(c.Hierarchy))
}

// Execute executes the command.
func (c LoadExternal) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*LoadResponse, error) {
	return loadCall(ctx, t, Call{Code: TPMCCLoadExternal, Request: c}, opts)
}

// MakeCredential is TPM2_MakeCredential.
type MakeCredential struct {
	Handle     TPMHandle
	Credential TPM2BDigest
	ObjectName TPM2BName
}

// MakeCredentialResponse is the response from TPM2_MakeCredential.
type MakeCredentialResponse struct {
	Result
	CredentialBlob TPM2BIDObject
	Secret         TPM2BEncryptedSecret
}

// TPMMarshal implements tpmutil.Marshaler.
func (c MakeCredential) TPMMarshal(out *tpmutil.Buffer) {
	c.Credential.TPMMarshal(out)
	c.ObjectName.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *MakeCredentialResponse) TPMUnmarshal(in *tpmutil.Buffer) {
	r.CredentialBlob.TPMUnmarshal(in)
	r.Secret.TPMUnmarshal(in)
}

// Execute executes the command.
func (c MakeCredential) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*MakeCredentialResponse, error) {
	var rsp MakeCredentialResponse
	res, err := t.Dispatch(ctx, Call{
		Code:     TPMCCMakeCredential,
		Handles:  []AuthHandle{handle(c.Handle)},
		Request:  c,
		Response: &rsp,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// ActivateCredential is TPM2_ActivateCredential.
type ActivateCredential struct {
	ActivateHandle AuthHandle
	KeyHandle      AuthHandle
	CredentialBlob TPM2BIDObject
	Secret         TPM2BEncryptedSecret
}

// ActivateCredentialResponse is the response from TPM2_ActivateCredential.
type ActivateCredentialResponse struct {
	Result
	CertInfo TPM2BDigest
}

// TPMMarshal implements tpmutil.Marshaler.
func (c ActivateCredential) TPMMarshal(out *tpmutil.Buffer) {
	c.CredentialBlob.TPMMarshal(out)
	c.Secret.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *ActivateCredentialResponse) TPMUnmarshal(in *tpmutil.Buffer) { r.CertInfo.TPMUnmarshal(in) }

// Execute executes the command.
func (c ActivateCredential) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*ActivateCredentialResponse, error) {
	var rsp ActivateCredentialResponse
	res, err := t.Dispatch(ctx, Call{
		Code:     TPMCCActivateCredential,
		Handles:  []AuthHandle{c.ActivateHandle, c.KeyHandle},
		NumAuth:  2,
		Request:  c,
		Response: &rsp,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// Duplicate is TPM2_Duplicate.
type Duplicate struct {
	ObjectHandle    AuthHandle
	NewParentHandle TPMHandle
	EncryptionKeyIn TPM2BData
	Symmetric       TPMTSymDefObject
}

// DuplicateResponse is the response from TPM2_Duplicate.
type DuplicateResponse struct {
	Result
	EncryptionKeyOut TPM2BData
	Duplicate        TPM2BPrivate
	OutSymSeed       TPM2BEncryptedSecret
}

// TPMMarshal implements tpmutil.Marshaler.
func (c Duplicate) TPMMarshal(out *tpmutil.Buffer) {
	c.EncryptionKeyIn.TPMMarshal(out)
	c.Symmetric.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *DuplicateResponse) TPMUnmarshal(in *tpmutil.Buffer) {
	r.EncryptionKeyOut.TPMUnmarshal(in)
	r.Duplicate.TPMUnmarshal(in)
	r.OutSymSeed.TPMUnmarshal(in)
}

// Execute executes the command.
func (c Duplicate) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*DuplicateResponse, error) {
	var rsp DuplicateResponse
	res, err := t.Dispatch(ctx, Call{
		Code:     TPMCCDuplicate,
		Handles:  []AuthHandle{c.ObjectHandle, handle(c.NewParentHandle)},
		NumAuth:  1,
		Request:  c,
		Response: &rsp,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// Import is TPM2_Import.
type Import struct {
	ParentHandle  AuthHandle
	EncryptionKey TPM2BData
	ObjectPublic  TPM2BPublic
	Duplicate     TPM2BPrivate
	InSymSeed     TPM2BEncryptedSecret
	Symmetric     TPMTSymDefObject
}

// ImportResponse is the response from TPM2_Import.
type ImportResponse struct {
	Result
	OutPrivate TPM2BPrivate
}

// TPMMarshal implements tpmutil.Marshaler.
func (c Import) TPMMarshal(out *tpmutil.Buffer) {
	c.EncryptionKey.TPMMarshal(out)
	c.ObjectPublic.TPMMarshal(out)
	c.Duplicate.TPMMarshal(out)
	c.InSymSeed.TPMMarshal(out)
	c.Symmetric.TPMMarshal(out)
}

// TPMUnmarshal implements tpmutil.Unmarshaler.
func (r *ImportResponse) TPMUnmarshal(in *tpmutil.Buffer) { r.OutPrivate.TPMUnmarshal(in) }

// Execute executes the command.
func (c Import) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*ImportResponse, error) {
	var rsp ImportResponse
	res, err := t.Dispatch(ctx, Call{
		Code:     TPMCCImport,
		Handles:  []AuthHandle{c.ParentHandle},
		NumAuth:  1,
		Request:  c,
		Response: &rsp,
	}, opts...)
	if err != nil {
		return nil, err
	}
	rsp.Result = *res
	return &rsp, nil
}

// EvictControl is TPM2_EvictControl.
type EvictControl struct {
	Auth             AuthHandle
	ObjectHandle     TPMHandle
	PersistentHandle TPMHandle
}

// TPMMarshal implements tpmutil.Marshaler.
func (c EvictControl) TPMMarshal(out *tpmutil.Buffer) { out.WriteU32(uint32(c.PersistentHandle)) }

// Execute executes the command.
func (c EvictControl) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{
		Code:    TPMCCEvictControl,
		Handles: []AuthHandle{c.Auth, handle(c.ObjectHandle)},
		NumAuth: 1,
		Request: c,
	}, opts...)
}

// HierarchyChangeAuth is TPM2_HierarchyChangeAuth.
type HierarchyChangeAuth struct {
	AuthHandle AuthHandle
	NewAuth    TPM2BAuth
}

// TPMMarshal implements tpmutil.Marshaler.
func (c HierarchyChangeAuth) TPMMarshal(out *tpmutil.Buffer) { c.NewAuth.TPMMarshal(out) }

// Execute executes the command.
func (c HierarchyChangeAuth) Execute(ctx context.Context, t *TPM, opts ...CallOption) (*Result, error) {
	return t.Dispatch(ctx, Call{
		Code:    TPMCCHierarchyChangeAuth,
		Handles: []AuthHandle{c.AuthHandle},
		NumAuth: 1,
		Request: c,
	}, opts...)
}
