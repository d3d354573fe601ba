package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/gin-gonic/gin"

	"eri/internal/domain"
	"eri/internal/infra/crypto"
	"eri/internal/log"
	"eri/internal/usecase"
)

const (
	routeCertificatesSign   = "certificates:sign"
	routeCertificatesCreate = "certificates:create"
	routeCertificatesVerify = "certificates:verify"
)

type verifyRequest struct {
	domain.CertificateInput
	// Certificate carries the QR payload form, {certificate, signature}.
	// It takes precedence over the flattened fields.
	Certificate *domain.CertificateInput `json:"certificate,omitempty"`
	Signature   string                   `json:"signature"`
	Signer      string                   `json:"signer,omitempty"`
	Variant     string                   `json:"variant,omitempty"`
}

func (r verifyRequest) certificate() domain.CertificateInput {
	if r.Certificate != nil {
		return *r.Certificate
	}
	return r.CertificateInput
}

type registerRequest struct {
	Name string `json:"name"`
}

type signResponse struct {
	Signature string                   `json:"signature"`
	Signer    string                   `json:"signer"`
	Digest    string                   `json:"digest"`
	ChainID   string                   `json:"chain_id,omitempty"`
	Policy    *domain.PolicyEvaluation `json:"policy,omitempty"`
}

type createResponse struct {
	signResponse
	Certificate domain.CertificateInput `json:"certificate"`
	TypedData   apitypes.TypedData      `json:"display_typed_data"`
	QRPayload   json.RawMessage         `json:"qr_payload"`
	QRCodePNG   string                  `json:"qr_code_png_base64,omitempty"`
}

type verdictResponse struct {
	Outcome           domain.Outcome             `json:"outcome"`
	Valid             bool                       `json:"valid"`
	Variant           domain.VerificationVariant `json:"variant"`
	Reason            string                     `json:"reason,omitempty"`
	RejectReason      domain.RejectReason        `json:"reject_reason,omitempty"`
	Digest            string                     `json:"digest,omitempty"`
	ClaimedOwner      string                     `json:"claimed_owner,omitempty"`
	RecoveredSigner   string                     `json:"recovered_signer,omitempty"`
	RegisteredAddress string                     `json:"registered_address,omitempty"`
}

type registrationResponse struct {
	Name                 string `json:"name"`
	ManufacturerAddress  string `json:"manufacturer_address"`
	ManufacturerContract string `json:"manufacturer_contract"`
	TxHash               string `json:"tx_hash"`
	BlockNumber          uint64 `json:"block_number"`
}

type lookupResponse struct {
	Address             string `json:"address"`
	ManufacturerAddress string `json:"manufacturer_address"`
	Registered          bool   `json:"registered"`
}

type auditVerifyResponse struct {
	Status string `json:"status"`
	Events int    `json:"events"`
}

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (s *Server) handleSign(c *gin.Context) {
	if s.signUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeCertificatesSign) {
		return
	}
	var in domain.CertificateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	res, err := s.signUC.Execute(c.Request.Context(), usecase.SignCertificateRequest{
		Certificate: in,
		Actor:       clientActor(c),
	})
	if err != nil {
		writePolicyAwareError(c, err, res.Policy)
		return
	}
	c.JSON(http.StatusOK, s.buildSignResponse(res))
}

func (s *Server) handleCreate(c *gin.Context) {
	if s.createUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeCertificatesCreate) {
		return
	}
	var in domain.CertificateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	res, err := s.createUC.Execute(c.Request.Context(), usecase.SignCertificateRequest{
		Certificate: in,
		Actor:       clientActor(c),
	})
	if err != nil {
		writePolicyAwareError(c, err, res.Policy)
		return
	}
	out := createResponse{
		signResponse: s.buildSignResponse(res.SignCertificateResult),
		Certificate:  res.Certificate.Input(),
		TypedData:    res.TypedData,
		QRPayload:    json.RawMessage(res.QRPayload),
	}
	if len(res.QRCodePNG) > 0 {
		out.QRCodePNG = base64.StdEncoding.EncodeToString(res.QRCodePNG)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleVerify(c *gin.Context) {
	s.verify(c, "")
}

func (s *Server) handleVerifyVariant(variant domain.VerificationVariant) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.verify(c, variant)
	}
}

func (s *Server) verify(c *gin.Context, variant domain.VerificationVariant) {
	if s.verifyUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	if !s.enforceRateLimit(c, routeCertificatesVerify) {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if variant == "" {
		variant = domain.VerificationVariant(strings.ToLower(strings.TrimSpace(req.Variant)))
	}
	verdict := s.verifyUC.Execute(c.Request.Context(), usecase.VerifyCertificateRequest{
		Variant:     variant,
		Certificate: req.certificate(),
		Signature:   req.Signature,
		Signer:      req.Signer,
		Actor:       clientActor(c),
	})
	c.JSON(verdictStatus(verdict), buildVerdictResponse(verdict))
}

func (s *Server) handleRegisterManufacturer(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.registerUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	registration, err := s.registerUC.Execute(c.Request.Context(), usecase.RegisterManufacturerRequest{
		Name:  req.Name,
		Actor: adminActor(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, registrationResponse{
		Name:                 registration.Name,
		ManufacturerAddress:  formatAddress(registration.ManufacturerAddress),
		ManufacturerContract: formatAddress(registration.ManufacturerContract),
		TxHash:               registration.TxHash.Hex(),
		BlockNumber:          registration.BlockNumber,
	})
}

func (s *Server) handleLookupManufacturer(c *gin.Context) {
	if s.lookupUC == nil {
		writeError(c, domain.ErrNotFound)
		return
	}
	account := c.Param("address")
	registered, err := s.lookupUC.Execute(c.Request.Context(), account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookupResponse{
		Address:             strings.ToLower(strings.TrimSpace(account)),
		ManufacturerAddress: formatAddress(registered),
		Registered:          registered != (common.Address{}),
	})
}

func (s *Server) handleVerifyAuditChain(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if s.auditRepo == nil {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "audit log is disabled")
		return
	}
	count, err := usecase.VerifyAuditChain(c.Request.Context(), s.auditRepo)
	if err != nil {
		log.Errorw("audit chain verification failed", "error", err)
		writeErrorCode(c, http.StatusConflict, "AUDIT_CHAIN_INVALID", err.Error())
		return
	}
	c.JSON(http.StatusOK, auditVerifyResponse{Status: "ok", Events: count})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		switch c.Request.URL.Path {
		case "/v1/" + routeCertificatesSign:
			s.handleSign(c)
			return
		case "/v1/" + routeCertificatesCreate:
			s.handleCreate(c)
			return
		case "/v1/" + routeCertificatesVerify:
			s.handleVerify(c)
			return
		}
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) buildSignResponse(res usecase.SignCertificateResult) signResponse {
	out := signResponse{
		Signature: crypto.FormatSignature(res.Signature),
		Signer:    formatAddress(res.Signer),
		Digest:    res.Digest.Hex(),
		Policy:    res.Policy,
	}
	if s.chainID != nil {
		out.ChainID = s.chainID.String()
	}
	return out
}

func buildVerdictResponse(v domain.Verdict) verdictResponse {
	out := verdictResponse{
		Outcome:      v.Outcome,
		Valid:        v.Valid(),
		Variant:      v.Variant,
		Reason:       v.Reason,
		RejectReason: v.RejectReason,
	}
	if v.Digest != (common.Hash{}) {
		out.Digest = v.Digest.Hex()
	}
	if v.ClaimedOwner != (common.Address{}) {
		out.ClaimedOwner = formatAddress(v.ClaimedOwner)
	}
	if v.RecoveredSigner != nil {
		out.RecoveredSigner = formatAddress(*v.RecoveredSigner)
	}
	if v.RegisteredAddress != nil {
		out.RegisteredAddress = formatAddress(*v.RegisteredAddress)
	}
	return out
}

// verdictStatus reports completed checks as 200 whatever their outcome.
func verdictStatus(v domain.Verdict) int {
	if !v.Rejected() {
		return http.StatusOK
	}
	status, _ := errorStatus(v.Err())
	return status
}

func clientActor(c *gin.Context) usecase.Actor {
	return usecase.Actor{Type: domain.AuditActorClient, ID: c.ClientIP()}
}

func adminActor() usecase.Actor {
	return usecase.Actor{Type: domain.AuditActorAdminAPIKey, ID: "admin-key"}
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func writePolicyAwareError(c *gin.Context, err error, eval *domain.PolicyEvaluation) {
	if eval == nil || !errors.Is(err, domain.ErrPolicyDenied) {
		writeError(c, err)
		return
	}
	status, code := errorStatus(err)
	c.JSON(status, errorResponse{
		Code:    code,
		Message: err.Error(),
		Details: map[string]any{
			"bundle_id":   eval.BundleID,
			"bundle_hash": eval.BundleHash,
			"deny":        eval.Result.Deny,
		},
	})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest, string(domain.RejectMalformedInput)
	case errors.Is(err, domain.ErrBadSignatureFormat):
		return http.StatusBadRequest, string(domain.RejectBadSignatureFormat)
	case errors.Is(err, domain.ErrRecoveryFailed):
		return http.StatusBadRequest, string(domain.RejectRecoveryFailed)
	case errors.Is(err, domain.ErrTransactionFailed):
		return http.StatusBadRequest, "TRANSACTION_FAILED"
	case errors.Is(err, domain.ErrPolicyDenied):
		return http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrRegistryUnavailable):
		return http.StatusInternalServerError, string(domain.RejectRegistryUnavailable)
	case errors.Is(err, domain.ErrConfig), errors.Is(err, domain.ErrInvalidDomain):
		return http.StatusInternalServerError, string(domain.RejectConfigError)
	case errors.Is(err, domain.ErrEncoding):
		return http.StatusInternalServerError, "ENCODING_ERROR"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// serverErrorMessages replace the error text of 5xx responses. Upstream node
// and database errors stay in the log.
var serverErrorMessages = map[string]string{
	string(domain.RejectRegistryUnavailable): "registry unavailable",
	string(domain.RejectConfigError):         "service misconfigured",
	"ENCODING_ERROR":                         "encoding failed",
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status < http.StatusInternalServerError {
		writeErrorCode(c, status, code, err.Error())
		return
	}
	log.Errorw("request failed", "path", c.FullPath(), "code", code, "error", err)
	message, ok := serverErrorMessages[code]
	if !ok {
		message = "internal error"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
