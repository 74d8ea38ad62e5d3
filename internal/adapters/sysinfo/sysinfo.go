// Package sysinfo describes the host an audit ran on.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerGB = 1 << 30

// Descriptor is the system section of a report.
type Descriptor struct {
	Platform       string
	RuntimeVersion string
	CPUCount       int
}

// Hardware carries the details written to measurement log rows.
type Hardware struct {
	CPUModel   string
	CPUCount   int
	RAMTotalGB float64
}

// Describe returns the platform string, Go runtime version and logical CPU count.
// Host lookups that fail fall back to GOOS and GOARCH.
func Describe(ctx context.Context) Descriptor {
	return Descriptor{
		Platform:       Platform(ctx),
		RuntimeVersion: runtime.Version(),
		CPUCount:       runtime.NumCPU(),
	}
}

// Platform formats host info as <os>-<kernel>-<arch>-with-<platform>-<version>.
func Platform(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return runtime.GOOS + "-" + runtime.GOARCH
	}
	return formatPlatform(info)
}

func formatPlatform(info *host.InfoStat) string {
	osName := info.OS
	if osName == "" {
		osName = runtime.GOOS
	}
	arch := info.KernelArch
	if arch == "" {
		arch = runtime.GOARCH
	}
	parts := []string{capitalize(osName)}
	if info.KernelVersion != "" {
		parts = append(parts, info.KernelVersion)
	}
	parts = append(parts, arch)
	s := strings.Join(parts, "-")
	if info.Platform != "" {
		s += "-with-" + info.Platform
		if info.PlatformVersion != "" {
			s += "-" + info.PlatformVersion
		}
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DescribeHardware collects CPU model and memory size. Missing values stay zero.
func DescribeHardware(ctx context.Context) Hardware {
	hw := Hardware{CPUCount: runtime.NumCPU()}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		hw.CPUModel = strings.TrimSpace(infos[0].ModelName)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		hw.RAMTotalGB = float64(vm.Total) / bytesPerGB
	}
	return hw
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (%d cpus)", d.Platform, d.RuntimeVersion, d.CPUCount)
}
