package systeminfo

import (
	"github.com/shirou/gopsutil/v4/host"
)

// Info is the host context stamped into the report header.
type Info struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelArch      string `json:"kernel_arch"`
}

// Collect gathers host identification. Failure degrades to a nil Info; the
// scan never depends on it.
func Collect() (*Info, error) {
	hi, err := host.Info()
	if err != nil {
		return nil, err
	}
	return &Info{
		Hostname:        hi.Hostname,
		OS:              hi.OS,
		Platform:        hi.Platform,
		PlatformVersion: hi.PlatformVersion,
		KernelArch:      hi.KernelArch,
	}, nil
}
