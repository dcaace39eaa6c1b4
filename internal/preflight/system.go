package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// MinDiskSpaceBytes is the free space floor for the data directory.
	MinDiskSpaceBytes = 100 * 1024 * 1024
	// MinFileDescriptors covers the socket, store, log and inbox handles
	// with room for concurrent sweeps.
	MinFileDescriptors = 256
	// MaxSocketPathLen is the portable sun_path limit (104 on macOS).
	MaxSocketPathLen = 104
)

// CheckDataDir creates the data directory if needed and verifies it is
// writable.
func (c *Checker) CheckDataDir(dir string) CheckResult {
	result := CheckResult{Name: "data_dir", Required: true, Details: dir}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create: %v", err)
		return result
	}

	f, err := os.CreateTemp(dir, ".pdfqa-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("not writable: %v", err)
		return result
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}

// CheckDiskSpace requires room for the store plus a few uploads of the
// largest allowed size.
func (c *Checker) CheckDiskSpace(dir string, maxUpload int64) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	minimum := uint64(MinDiskSpaceBytes)
	if need := uint64(max(maxUpload, 0)) * 4; need > minimum {
		minimum = need
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(dir), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	available := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(available), formatBytes(minimum))
	if available < minimum {
		result.Status = StatusFail
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckFileDescriptors checks the soft open-file limit.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to read limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit.Cur, MinFileDescriptors)
	if limit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 1024' before starting the daemon"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckSocketPath rejects socket paths the kernel would truncate.
func (c *Checker) CheckSocketPath(path string) CheckResult {
	result := CheckResult{Name: "socket_path", Required: true, Details: path}

	if n := len(path); n > MaxSocketPathLen {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%d bytes (maximum: %d)", n, MaxSocketPathLen)
		result.Details = "Set daemon.socket_path or PDFQA_DATA_DIR to a shorter path"
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// existingParent walks up from dir to the nearest directory that exists.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

func formatBytes(n uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
