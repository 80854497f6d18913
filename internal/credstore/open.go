package credstore

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
)

// Open returns the store for backend. path is used by the file backend,
// service by the keyring backend.
func Open(backend, path, service string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		if path == "" {
			path = DefaultPath()
		}
		return NewFileStore(path), nil
	case BackendKeyring:
		return NewKeyringStore(service), nil
	}
	return nil, fmt.Errorf("unknown credential backend %q (want %q or %q)", backend, BackendFile, BackendKeyring)
}
