package runner

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// HashAlgorithm names the digest used to compare output files
type HashAlgorithm string

const (
	HashMD5    HashAlgorithm = "md5"
	HashSHA1   HashAlgorithm = "sha1"
	HashSHA256 HashAlgorithm = "sha256"
)

// ValidHashAlgorithms returns the supported digests.
func ValidHashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{HashMD5, HashSHA1, HashSHA256}
}

// ParseHashAlgorithm parses a digest name, empty selects DefaultHashAlgorithm.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultHashAlgorithm, nil
	}
	for _, alg := range ValidHashAlgorithms() {
		if HashAlgorithm(name) == alg {
			return alg, nil
		}
	}
	return "", fmt.Errorf("unknown hash algorithm %q", name)
}

// New returns a fresh hash for the algorithm.
func (a HashAlgorithm) New() hash.Hash {
	switch a {
	case HashSHA1:
		return sha1.New()
	case HashSHA256:
		return sha256.New()
	default:
		return md5.New()
	}
}

// Verification is the outcome of a successful or failed Verify call. CleanupErr
// is reported separately and never replaces the verdict.
type Verification struct {
	Actual     string
	CleanupErr error
}

// Verifier hashes output files and compares them to the expected digest.
type Verifier struct {
	newHash func() hash.Hash
	log     log.Logger
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithHashFunc replaces the digest constructor, e.g. with a fake in tests.
func WithHashFunc(fn func() hash.Hash) VerifierOption {
	return func(v *Verifier) {
		if fn != nil {
			v.newHash = fn
		}
	}
}

// NewVerifier creates a verifier for the given algorithm.
func NewVerifier(alg HashAlgorithm, logger log.Logger, opts ...VerifierOption) *Verifier {
	if logger == nil {
		logger = log.Root()
	}
	v := &Verifier{newHash: alg.New, log: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Digest returns the lower-case hex digest of the file's raw bytes.
func (v *Verifier) Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := v.newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks that path exists and its digest matches expected (hex,
// case-insensitive). The file is removed afterwards whatever the verdict.
func (v *Verifier) Verify(path, expected string) (Verification, error) {
	var res Verification

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, &Error{Kind: KindOutputMissing, Path: path, Detail: "executable produced no output file"}
		}
		return res, &Error{Kind: KindOutputMissing, Path: path, Err: err}
	}

	actual, digestErr := v.Digest(path)
	res.Actual = actual
	res.CleanupErr = RemoveOutput(path)
	if res.CleanupErr != nil {
		v.log.Error("Failed to clean up output", "path", path, "err", res.CleanupErr)
	}

	if digestErr != nil {
		return res, &Error{Kind: KindOutputMissing, Path: path, Detail: "output unreadable", Err: digestErr}
	}

	want := strings.TrimSpace(expected)
	if !strings.EqualFold(want, actual) {
		return res, &Error{Kind: KindHashMismatch, Path: path, Expected: want, Actual: actual}
	}
	return res, nil
}

// RemoveOutput relaxes the permissions of path and deletes it. A missing file
// is not an error. Directories are left untouched.
func RemoveOutput(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil && info.IsDir() {
		return &Error{Kind: KindCleanup, Path: path, Detail: "output path is a directory"}
	}
	if err := os.Chmod(path, relaxedFileMode); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &Error{Kind: KindCleanup, Path: path, Detail: "relaxing permissions", Err: err}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Kind: KindCleanup, Path: path, Detail: "removing file", Err: err}
	}
	return nil
}
