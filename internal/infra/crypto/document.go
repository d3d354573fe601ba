package crypto

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"eri/internal/domain"
)

// TypedDataDocument renders the certificate and domain in the eth_signTypedData
// JSON layout for display.
//
// The document is not a signing request. The domain separator matches
// DomainSeparator, but wallets hash string[] per element (an empty array as
// keccak256 of no bytes) while Encode commits metadata as
// keccak256(abi.encode(string[])). A wallet signature over this document never
// verifies against Encode, for any metadata. Signatures come from the service.
func TypedDataDocument(cert domain.Certificate, d domain.TypedDataDomain) apitypes.TypedData {
	domainFields := []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}
	typedDomain := apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		VerifyingContract: strings.ToLower(d.VerifyingContract.Hex()),
	}
	if d.ChainID != nil {
		typedDomain.ChainId = (*math.HexOrDecimal256)(new(big.Int).Set(d.ChainID))
	}
	if d.Salt != nil {
		domainFields = append(domainFields, apitypes.Type{Name: "salt", Type: "bytes32"})
		typedDomain.Salt = hexutil.Encode(d.Salt[:])
	}

	metadata := make([]interface{}, len(cert.Metadata))
	for i, item := range cert.Metadata {
		metadata[i] = item
	}
	date := "0"
	if cert.Date != nil {
		date = cert.Date.String()
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainFields,
			CertificatePrimary: {
				{Name: "name", Type: "string"},
				{Name: "uniqueId", Type: "string"},
				{Name: "serial", Type: "string"},
				{Name: "date", Type: "uint256"},
				{Name: "owner", Type: "address"},
				{Name: "metadata", Type: "string[]"},
			},
		},
		PrimaryType: CertificatePrimary,
		Domain:      typedDomain,
		Message: apitypes.TypedDataMessage{
			"name":     cert.Name,
			"uniqueId": cert.UniqueID,
			"serial":   cert.Serial,
			"date":     date,
			"owner":    strings.ToLower(cert.Owner.Hex()),
			"metadata": metadata,
		},
	}
}
