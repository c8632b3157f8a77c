package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/addoodi/yt2audi/internal/log"
)

const dirPermissions = 0o755

// Errors distinguishing transfer failure classes.
var (
	// ErrTransfer is the general transfer failure.
	ErrTransfer = errors.New("transfer failed")

	// ErrInsufficientSpace means the target volume lacks room for a file.
	ErrInsufficientSpace = errors.New("insufficient space on target")
)

// FAT-family filesystems head units understand.
var removableFstypes = map[string]bool{
	"vfat":  true,
	"fat32": true,
	"exfat": true,
	"msdos": true,
}

// Mountpoint prefixes removable media typically appears under.
var removableMountPrefixes = []string{"/media/", "/run/media/", "/Volumes/", "/mnt/usb"}

// Manager discovers removable volumes and copies files onto them. Partition
// and usage lookups are injected so discovery is testable without hardware.
type Manager struct {
	partitions func(all bool) ([]disk.PartitionStat, error)
	usage      func(path string) (*disk.UsageStat, error)
	logger     zerolog.Logger
}

// NewManager creates a transfer manager backed by the host's mount table.
func NewManager() *Manager {
	return &Manager{
		partitions: disk.Partitions,
		usage:      disk.Usage,
		logger:     log.WithComponent("transfer"),
	}
}

// FindTarget returns the volume to copy onto: the preferred path when it
// exists, otherwise the first mounted partition that looks removable.
// Returns false when nothing suitable is mounted.
func (m *Manager) FindTarget(preferred string) (string, bool) {
	if preferred != "" {
		if _, err := os.Stat(preferred); err == nil {
			return preferred, true
		}
		m.logger.Warn().Str("path", preferred).Msg("preferred transfer target not found")
	}

	parts, err := m.partitions(false)
	if err != nil {
		m.logger.Warn().Err(err).Msg("cannot list partitions")
		return "", false
	}
	for _, p := range parts {
		if removableFstypes[strings.ToLower(p.Fstype)] || hasRemovableMount(p.Mountpoint) {
			m.logger.Info().
				Str("mount", p.Mountpoint).
				Str("fstype", p.Fstype).
				Msg("removable volume found")
			return p.Mountpoint, true
		}
	}
	return "", false
}

func hasRemovableMount(mountpoint string) bool {
	for _, prefix := range removableMountPrefixes {
		if strings.HasPrefix(mountpoint, prefix) {
			return true
		}
	}
	return false
}

// CopyAll copies files into target/subdir, checking free space before each
// file. On a mid-batch failure, files already copied stay in place and the
// returned error names the file that failed; the successfully copied paths
// are returned alongside the error.
func (m *Manager) CopyAll(files []string, target, subdir string, deleteOriginal bool) ([]string, error) {
	targetDir := filepath.Join(target, subdir)
	if err := os.MkdirAll(targetDir, dirPermissions); err != nil {
		return nil, fmt.Errorf("%w: cannot create %s: %v", ErrTransfer, targetDir, err)
	}

	var copied []string
	for _, src := range files {
		fi, err := os.Stat(src)
		if err != nil {
			m.logger.Warn().Str("path", src).Msg("source file missing, skipping")
			continue
		}

		if usage, err := m.usage(target); err == nil && usage.Free < uint64(fi.Size()) {
			return copied, fmt.Errorf("%w: %s needs %d bytes, %d free on %s",
				ErrInsufficientSpace, filepath.Base(src), fi.Size(), usage.Free, target)
		}

		dst := filepath.Join(targetDir, filepath.Base(src))
		m.logger.Info().Str("src", src).Str("dst", dst).Msg("copying file")

		if err := copyFile(src, dst); err != nil {
			return copied, fmt.Errorf("%w: %s: %v", ErrTransfer, filepath.Base(src), err)
		}
		copied = append(copied, dst)

		if deleteOriginal {
			if err := os.Remove(src); err != nil {
				m.logger.Warn().Str("path", src).Err(err).Msg("cannot delete original after copy")
			}
		}
	}
	return copied, nil
}

// copyFile copies src to dst and fsyncs before closing, so a yanked USB
// stick holds complete files.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
