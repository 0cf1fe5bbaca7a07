//go:build linux || darwin

package backend

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type statfsReader struct{}

// NewUsageReader returns the statfs(2)-backed UsageReader.
func NewUsageReader() UsageReader {
	return statfsReader{}
}

func (statfsReader) Usage(path string) (FSUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return FSUsage{
		Total: uint64(st.Blocks) * bsize,
		Free:  uint64(st.Bfree) * bsize,
	}, nil
}
