package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// MoveFile renames src to dst, falling back to a verified copy and remove
// when the paths sit on different filesystems. Encoded outputs represent
// hours of work, so the cross-device path never trusts an unchecked copy.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// CopyFileVerified copies src to dst, syncs, then re-reads dst from disk and
// compares size and SHA256 against the source stream. dst is removed when
// verification fails.
func CopyFileVerified(src, dst string) error {
	want, size, err := copyHashed(src, dst)
	if err != nil {
		return err
	}
	got, written, err := hashFile(dst)
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("verify copy: %w", err)
	}
	if written != size {
		os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", size, written)
	}
	if !bytes.Equal(want, got) {
		os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// copyHashed streams src into dst and returns the source hash and byte count.
func copyHashed(src, dst string) ([]byte, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, 0, err
	}

	hasher := sha256.New()
	n, err := io.Copy(out, io.TeeReader(in, hasher))
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), n, nil
}

// hashFile hashes path as it exists on disk.
func hashFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return nil, 0, err
	}
	return hasher.Sum(nil), n, nil
}
