package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Bytes returns the lowercase hex SHA-256 digest of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// String returns the fingerprint of the literal string s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File returns the fingerprint of a file's contents.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// Tree returns a deterministic fingerprint of a directory tree: every regular
// file's slash-separated relative path and content digest, in sorted order.
// Two trees with identical layout and contents always hash the same, no
// matter where they live on disk.
func Tree(root string) (string, error) {
	type entry struct {
		rel    string
		digest string
	}

	var entries []entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			entries = append(entries, entry{rel: rel, digest: String("symlink:" + target)})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		digest, err := File(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: rel, digest: digest})
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	hasher := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(hasher, "%s\x00%s\n", e.rel, e.digest)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
