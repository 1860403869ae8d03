package util

import (
	"log/slog"
	"os"
)

// CloseFileFunc closes f and logs, rather than returns, a close failure.
// Used in defers on read paths where the data has already been consumed.
func CloseFileFunc(f *os.File) {
	if err := f.Close(); err != nil {
		slog.Warn("util: close file failed", "file", f.Name(), "err", err)
	}
}
