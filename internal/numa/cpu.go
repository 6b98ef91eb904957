package numa

import (
	"github.com/klauspost/cpuid/v2"
)

// CPUInfo summarizes the processor for the startup log line.
type CPUInfo struct {
	Brand          string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	L3CacheBytes   int
	Features       []string
}

// DescribeCPU reports the processor the engine runs on.
func DescribeCPU() CPUInfo {
	info := CPUInfo{
		Brand:          cpuid.CPU.BrandName,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
		L3CacheBytes:   cpuid.CPU.Cache.L3,
	}
	for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
		if cpuid.CPU.Supports(f) {
			info.Features = append(info.Features, f.String())
		}
	}
	return info
}
