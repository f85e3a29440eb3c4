//go:build unix

package snapshot

import (
	"fmt"
	"os"
	"syscall"
)

// lockFile берёт эксклюзивный advisory-лок (flock) на файле блокировки.
// Возвращает функцию снятия лока.
func lockFile(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("открытие файла блокировки %s: %w", path, err)
	}

	fd := int(f.Fd()) //nolint:gosec // G115: дескриптор файла помещается в int
	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	return func() error {
		_ = syscall.Flock(fd, syscall.LOCK_UN)
		return f.Close()
	}, nil
}
