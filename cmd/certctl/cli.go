package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "digest":
		return runDigest(args[2:])
	case "typed-data":
		return runTypedData(args[2:])
	case "sign":
		return runSign(args[2:])
	case "recover":
		return runRecover(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "qr":
		return runQR(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "certctl"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	domainFlags := "--chain-id <id> --contract <address> [--domain-name <name>] [--domain-version <version>]"
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s digest --cert <file|-> %s [--out <file>]\n", name, domainFlags)
	fmt.Fprintf(os.Stderr, "  %s typed-data --cert <file|-> %s [--out <file>]   (display only)\n", name, domainFlags)
	fmt.Fprintf(os.Stderr, "  %s sign --cert <file|-> %s [--key-env <name>] [--out <file>]\n", name, domainFlags)
	fmt.Fprintf(os.Stderr, "  %s recover --cert <file|-> --signature <hex> %s [--out <file>]\n", name, domainFlags)
	fmt.Fprintf(os.Stderr, "  %s verify --cert <file|-> --server <url> [--signature <hex>] [--signer <address>] [--variant authenticity|onchain] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s qr --in <payload.json|-> --out <file.png> [--size <pixels>]\n", name)
}
