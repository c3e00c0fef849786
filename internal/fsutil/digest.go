package fsutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Digest returns the hex BLAKE3-256 digest and size of a file.
func Digest(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := blake3.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// SameContent reports whether a and b both exist and hold identical bytes.
// A missing file is not an error; it is never the same as anything.
func SameContent(a, b string) (bool, error) {
	for _, p := range []string{a, b} {
		ok, err := Exists(p)
		if err != nil || !ok {
			return false, err
		}
	}
	da, sa, err := Digest(a)
	if err != nil {
		return false, err
	}
	db, sb, err := Digest(b)
	if err != nil {
		return false, err
	}
	return sa == sb && da == db, nil
}
