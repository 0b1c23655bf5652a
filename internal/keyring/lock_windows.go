//go:build windows

package keyring

import "os"

// lockFile is a no-op on Windows, where Credential Manager is the primary
// backend and the file fallback is rarely used.
func lockFile(_ *os.File) (unlock func(), err error) {
	return func() {}, nil
}
