package updater

import "github.com/shirou/gopsutil/v4/disk"

// SpaceChecker reports free bytes on the filesystem holding path.
type SpaceChecker interface {
	Free(path string) (uint64, error)
}

// DiskSpace asks the operating system.
type DiskSpace struct{}

func (DiskSpace) Free(path string) (uint64, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}
