package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"eri/internal/config"
	"eri/internal/domain"
	cryptoinfra "eri/internal/infra/crypto"
	"eri/internal/infra/keys/soft"
	"eri/internal/infra/qrcode"
	"eri/pkg/client"
)

type domainFlags struct {
	chainID  string
	contract string
	name     string
	version  string
}

func (d *domainFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&d.chainID, "chain-id", os.Getenv("CHAIN_ID"), "chain id (default $CHAIN_ID)")
	fs.StringVar(&d.contract, "contract", os.Getenv("CONTRACT_ADDRESS"), "verifying contract address (default $CONTRACT_ADDRESS)")
	fs.StringVar(&d.name, "domain-name", config.DefaultDomainName, "EIP-712 domain name")
	fs.StringVar(&d.version, "domain-version", config.DefaultDomainVersion, "EIP-712 domain version")
}

func (d *domainFlags) service() (*cryptoinfra.Service, error) {
	cfg := config.Config{ContractAddress: d.contract, ChainID: d.chainID}
	contract, err := cfg.VerifyingContract()
	if err != nil {
		return nil, err
	}
	chainID, err := cfg.ExpectedChainID()
	if err != nil {
		return nil, err
	}
	if chainID == nil {
		return nil, errors.New("--chain-id is required")
	}
	return cryptoinfra.NewService(domain.TypedDataDomain{
		Name:              d.name,
		Version:           d.version,
		ChainID:           chainID,
		VerifyingContract: contract,
	})
}

func readCertificate(path string) (domain.CertificateInput, error) {
	if path == "" {
		return domain.CertificateInput{}, errors.New("--cert is required")
	}
	raw, err := readInput(path)
	if err != nil {
		return domain.CertificateInput{}, fmt.Errorf("read certificate: %w", err)
	}
	var in domain.CertificateInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return domain.CertificateInput{}, fmt.Errorf("decode certificate: %w", err)
	}
	return in, nil
}

type digestOutput struct {
	Digest          string `json:"digest"`
	DomainSeparator string `json:"domain_separator"`
	StructHash      string `json:"struct_hash"`
	ChainID         string `json:"chain_id"`
}

func runDigest(args []string) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var certPath string
	var outPath string
	var df domainFlags
	fs.StringVar(&certPath, "cert", "", "certificate JSON file (- for stdin)")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	df.register(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	svc, cert, code := loadCertificate(certPath, &df)
	if svc == nil {
		return code
	}
	digest, err := svc.Digest(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		return 1
	}
	structHash, err := cryptoinfra.StructHash(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "struct hash: %v\n", err)
		return 1
	}

	out := digestOutput{
		Digest:          digest.Hex(),
		DomainSeparator: svc.DomainSeparator().Hex(),
		StructHash:      structHash.Hex(),
		ChainID:         svc.DomainDescriptor().ChainID.String(),
	}
	if err := writeJSON(outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runTypedData(args []string) int {
	fs := flag.NewFlagSet("typed-data", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var certPath string
	var outPath string
	var df domainFlags
	fs.StringVar(&certPath, "cert", "", "certificate JSON file (- for stdin)")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	df.register(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	svc, cert, code := loadCertificate(certPath, &df)
	if svc == nil {
		return code
	}
	if err := writeJSON(outPath, svc.TypedData(cert)); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

type signOutput struct {
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	Digest    string `json:"digest"`
}

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var certPath string
	var keyEnv string
	var outPath string
	var df domainFlags
	fs.StringVar(&certPath, "cert", "", "certificate JSON file (- for stdin)")
	fs.StringVar(&keyEnv, "key-env", "PRIVATE_KEY", "environment variable holding the hex signing key")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	df.register(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	keyHex := os.Getenv(keyEnv)
	if strings.TrimSpace(keyHex) == "" {
		fmt.Fprintf(os.Stderr, "sign requires a key in $%s\n", keyEnv)
		return 1
	}
	keys, err := soft.NewManagerFromHex(keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load key from $%s: %v\n", keyEnv, err)
		return 1
	}

	svc, cert, code := loadCertificate(certPath, &df)
	if svc == nil {
		return code
	}
	digest, err := svc.Digest(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		return 1
	}
	sig, err := keys.SignDigest(context.Background(), digest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		return 1
	}

	out := signOutput{
		Signature: svc.FormatSignature(sig),
		Signer:    strings.ToLower(keys.Address().Hex()),
		Digest:    digest.Hex(),
	}
	if err := writeJSON(outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

type recoverOutput struct {
	Signer       string `json:"signer"`
	Digest       string `json:"digest"`
	OwnerMatches bool   `json:"owner_matches"`
}

func runRecover(args []string) int {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var certPath string
	var signature string
	var outPath string
	var df domainFlags
	fs.StringVar(&certPath, "cert", "", "certificate JSON file (- for stdin)")
	fs.StringVar(&signature, "signature", "", "0x-prefixed 65 byte signature")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	df.register(fs)

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if signature == "" {
		fmt.Fprintln(os.Stderr, "recover requires --signature")
		return 1
	}

	svc, cert, code := loadCertificate(certPath, &df)
	if svc == nil {
		return code
	}
	sig, err := svc.ParseSignature(signature)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse signature: %v\n", err)
		return 1
	}
	digest, err := svc.Digest(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		return 1
	}
	signer, err := svc.Recover(digest, sig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recover: %v\n", err)
		return 1
	}

	out := recoverOutput{
		Signer:       strings.ToLower(signer.Hex()),
		Digest:       digest.Hex(),
		OwnerMatches: signer == cert.Owner,
	}
	if err := writeJSON(outPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var certPath string
	var server string
	var signature string
	var signer string
	var variant string
	var timeout time.Duration
	var outPath string
	fs.StringVar(&certPath, "cert", "", "certificate JSON file (- for stdin)")
	fs.StringVar(&server, "server", os.Getenv("ERI_SERVER"), "service base url (default $ERI_SERVER)")
	fs.StringVar(&signature, "signature", "", "0x-prefixed 65 byte signature")
	fs.StringVar(&signer, "signer", "", "claimed signer for the onchain variant")
	fs.StringVar(&variant, "variant", string(domain.VariantAuthenticity), "authenticity or onchain")
	fs.DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if server == "" {
		fmt.Fprintln(os.Stderr, "verify requires --server")
		return 1
	}

	in, err := readCertificate(certPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	c, err := client.New(server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	verdict, err := c.Verify(ctx, client.VerifyRequest{
		Certificate: client.Certificate{
			Name:     in.Name,
			UniqueID: in.UniqueID,
			Serial:   in.Serial,
			Date:     in.Date,
			Owner:    in.Owner,
			Metadata: in.Metadata,
		},
		Signature: signature,
		Signer:    signer,
		Variant:   variant,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		return 1
	}
	if err := writeJSON(outPath, verdict); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if !verdict.Valid {
		return 2
	}
	return 0
}

type qrInput struct {
	Certificate json.RawMessage `json:"certificate"`
	Signature   string          `json:"signature"`
}

func runQR(args []string) int {
	fs := flag.NewFlagSet("qr", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var outPath string
	var size int
	fs.StringVar(&inPath, "in", "", "QR payload JSON {certificate, signature} (- for stdin)")
	fs.StringVar(&outPath, "out", "", "output PNG path")
	fs.IntVar(&size, "size", qrcode.DefaultSize, "image size in pixels")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "qr requires --in and --out")
		return 1
	}

	raw, err := readInput(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read payload: %v\n", err)
		return 1
	}
	var payload qrInput
	if err := json.Unmarshal(raw, &payload); err != nil {
		fmt.Fprintf(os.Stderr, "decode payload: %v\n", err)
		return 1
	}
	if len(payload.Certificate) == 0 || payload.Signature == "" {
		fmt.Fprintln(os.Stderr, "payload must carry certificate and signature")
		return 1
	}
	if _, err := cryptoinfra.ParseSignature(payload.Signature); err != nil {
		fmt.Fprintf(os.Stderr, "parse signature: %v\n", err)
		return 1
	}
	compact, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode payload: %v\n", err)
		return 1
	}

	renderer, err := qrcode.NewRenderer(size)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	png, err := renderer.PNG(compact)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := os.WriteFile(outPath, png, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

// loadCertificate returns a nil service and an exit code on failure.
func loadCertificate(path string, df *domainFlags) (*cryptoinfra.Service, domain.Certificate, int) {
	in, err := readCertificate(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, domain.Certificate{}, 1
	}
	cert, err := in.ToCertificate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "certificate: %v\n", err)
		return nil, domain.Certificate{}, 1
	}
	svc, err := df.service()
	if err != nil {
		fmt.Fprintf(os.Stderr, "domain: %v\n", err)
		return nil, domain.Certificate{}, 1
	}
	return svc, cert, 0
}
