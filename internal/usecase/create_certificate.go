package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"eri/internal/domain"
)

// QRPayload is the content encoded into a certificate QR code. A holder
// presents it back to the verify endpoint unchanged.
type QRPayload struct {
	Certificate domain.CertificateInput `json:"certificate"`
	Signature   string                  `json:"signature"`
}

type CreateCertificateResult struct {
	SignCertificateResult
	TypedData apitypes.TypedData
	QRPayload []byte
	QRCodePNG []byte
}

// CreateCertificate signs a certificate and packages it for distribution.
type CreateCertificate struct {
	Sign *SignCertificate
	QR   QRRenderer
}

func (uc *CreateCertificate) Execute(ctx context.Context, req SignCertificateRequest) (CreateCertificateResult, error) {
	if uc.Sign == nil || uc.Sign.Crypto == nil {
		return CreateCertificateResult{}, fmt.Errorf("%w: certificate creation is not configured", domain.ErrConfig)
	}
	signed, err := uc.Sign.Execute(ctx, req)
	if err != nil {
		return CreateCertificateResult{}, err
	}

	payload, err := json.Marshal(QRPayload{
		Certificate: signed.Certificate.Input(),
		Signature:   uc.Sign.Crypto.FormatSignature(signed.Signature),
	})
	if err != nil {
		return CreateCertificateResult{}, fmt.Errorf("%w: qr payload: %v", domain.ErrEncoding, err)
	}
	out := CreateCertificateResult{
		SignCertificateResult: signed,
		TypedData:             uc.Sign.Crypto.TypedData(signed.Certificate),
		QRPayload:             payload,
	}
	if uc.QR != nil {
		png, err := uc.QR.PNG(payload)
		if err != nil {
			return CreateCertificateResult{}, fmt.Errorf("%w: qr code: %v", domain.ErrEncoding, err)
		}
		out.QRCodePNG = png
	}
	return out, nil
}
