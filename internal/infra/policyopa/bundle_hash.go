package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// bundleHashPayload is hashed as JSON. Files are sorted by path and struct
// fields encode in declaration order, so the encoding is stable.
type bundleHashPayload struct {
	Files []bundleHashFile `json:"files"`
}

type bundleHashFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHashFromPath hashes the rego modules and data documents of a
// bundle directory. Editor droppings and archives are ignored.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(bundlePath), ".")
}

func ComputeBundleHashFromFS(fsys fs.FS, root string) (string, error) {
	files, err := collectBundleFiles(fsys, root)
	if err != nil {
		return "", err
	}
	encoded, err := json.Marshal(bundleHashPayload{Files: files})
	if err != nil {
		return "", err
	}
	return sha256Hex(encoded), nil
}

func collectBundleFiles(fsys fs.FS, root string) ([]bundleHashFile, error) {
	files := []bundleHashFile{}
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == "." {
			return nil
		}
		if d.IsDir() {
			if shouldSkipDir(p) {
				return fs.SkipDir
			}
			return nil
		}
		if shouldSkipFile(p) || !isNormativeFile(p) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files = append(files, bundleHashFile{Path: p, SHA256: sha256Hex(data)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func shouldSkipDir(p string) bool {
	base := path.Base(p)
	return base == "__MACOSX" || base == "vendor" || strings.HasPrefix(base, ".")
}

func shouldSkipFile(p string) bool {
	base := path.Base(p)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}
	lower := strings.ToLower(base)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".bundle") || strings.HasSuffix(lower, ".zip")
}

func isNormativeFile(p string) bool {
	base := path.Base(p)
	if base == "data.json" || base == "manifest.json" {
		return true
	}
	return strings.HasSuffix(base, ".rego")
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
