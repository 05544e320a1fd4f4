package types

import (
	"fmt"
	"os"

	"cosmossdk.io/math"
	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML layout of a device catalog seed file.
//
//	profiles:
//	  - device_type: smartphone
//	    class: mobile
//	    min_stake: "1000000"
//	    ...
type catalogFile struct {
	Profiles []catalogEntry `yaml:"profiles"`
}

type catalogEntry struct {
	DeviceType         string `yaml:"device_type"`
	Class              string `yaml:"class"`
	MinStake           string `yaml:"min_stake"`
	MinCpuCores        uint32 `yaml:"min_cpu_cores"`
	MinRamGb           uint32 `yaml:"min_ram_gb"`
	MinStorageGb       uint32 `yaml:"min_storage_gb"`
	MinBandwidthMbps   uint32 `yaml:"min_bandwidth_mbps"`
	MaxConcurrentTasks uint32 `yaml:"max_concurrent_tasks"`
	SupportsBatch      bool   `yaml:"supports_batch"`
	SupportsGpu        bool   `yaml:"supports_gpu"`
	LowLatency         bool   `yaml:"low_latency"`
	PowerEfficiency    uint32 `yaml:"power_efficiency"`
	Reliability        uint32 `yaml:"reliability"`
}

// LoadCatalog reads device profiles from a YAML file.
func LoadCatalog(path string) ([]DeviceProfile, error) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(bz)
}

// ParseCatalog decodes and validates a YAML device catalog.
func ParseCatalog(bz []byte) ([]DeviceProfile, error) {
	var file catalogFile
	if err := yaml.Unmarshal(bz, &file); err != nil {
		return nil, ErrInvalidDeviceProfile.Wrapf("decode catalog: %v", err)
	}

	seen := make(map[string]bool, len(file.Profiles))
	out := make([]DeviceProfile, 0, len(file.Profiles))
	for _, e := range file.Profiles {
		stake, ok := math.NewIntFromString(e.MinStake)
		if !ok {
			return nil, ErrInvalidDeviceProfile.Wrapf("%s: bad min_stake %q", e.DeviceType, e.MinStake)
		}
		p := DeviceProfile{
			DeviceType:         e.DeviceType,
			Class:              DeviceClass(e.Class),
			MinStake:           stake,
			MinCpuCores:        e.MinCpuCores,
			MinRamGb:           e.MinRamGb,
			MinStorageGb:       e.MinStorageGb,
			MinBandwidthMbps:   e.MinBandwidthMbps,
			MaxConcurrentTasks: e.MaxConcurrentTasks,
			SupportsBatch:      e.SupportsBatch,
			SupportsGpu:        e.SupportsGpu,
			LowLatency:         e.LowLatency,
			PowerEfficiency:    e.PowerEfficiency,
			Reliability:        e.Reliability,
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.DeviceType] {
			return nil, ErrInvalidDeviceProfile.Wrapf("duplicate device type %s", p.DeviceType)
		}
		seen[p.DeviceType] = true
		out = append(out, p)
	}
	return out, nil
}

// MarshalCatalog renders profiles in the seed file layout.
func MarshalCatalog(profiles []DeviceProfile) ([]byte, error) {
	file := catalogFile{Profiles: make([]catalogEntry, 0, len(profiles))}
	for _, p := range profiles {
		file.Profiles = append(file.Profiles, catalogEntry{
			DeviceType:         p.DeviceType,
			Class:              string(p.Class),
			MinStake:           p.MinStake.String(),
			MinCpuCores:        p.MinCpuCores,
			MinRamGb:           p.MinRamGb,
			MinStorageGb:       p.MinStorageGb,
			MinBandwidthMbps:   p.MinBandwidthMbps,
			MaxConcurrentTasks: p.MaxConcurrentTasks,
			SupportsBatch:      p.SupportsBatch,
			SupportsGpu:        p.SupportsGpu,
			LowLatency:         p.LowLatency,
			PowerEfficiency:    p.PowerEfficiency,
			Reliability:        p.Reliability,
		})
	}
	return yaml.Marshal(file)
}

// DefaultCatalog is the device catalog shipped with a fresh network.
func DefaultCatalog() []DeviceProfile {
	return []DeviceProfile{
		{
			DeviceType: "smartphone", Class: DeviceClassMobile, MinStake: math.NewInt(1_000_000),
			MinCpuCores: 4, MinRamGb: 3, MinStorageGb: 16, MinBandwidthMbps: 10,
			MaxConcurrentTasks: 1, SupportsBatch: true, LowLatency: false,
			PowerEfficiency: 90, Reliability: 50,
		},
		{
			DeviceType: "tablet", Class: DeviceClassMobile, MinStake: math.NewInt(1_500_000),
			MinCpuCores: 4, MinRamGb: 4, MinStorageGb: 32, MinBandwidthMbps: 10,
			MaxConcurrentTasks: 2, SupportsBatch: true,
			PowerEfficiency: 85, Reliability: 55,
		},
		{
			DeviceType: "single_board", Class: DeviceClassEdge, MinStake: math.NewInt(2_000_000),
			MinCpuCores: 4, MinRamGb: 4, MinStorageGb: 32, MinBandwidthMbps: 50,
			MaxConcurrentTasks: 2, SupportsBatch: true, LowLatency: true,
			PowerEfficiency: 95, Reliability: 70,
		},
		{
			DeviceType: "laptop", Class: DeviceClassEdge, MinStake: math.NewInt(5_000_000),
			MinCpuCores: 4, MinRamGb: 8, MinStorageGb: 128, MinBandwidthMbps: 50,
			MaxConcurrentTasks: 3, SupportsBatch: true, SupportsGpu: true, LowLatency: true,
			PowerEfficiency: 70, Reliability: 70,
		},
		{
			DeviceType: "desktop", Class: DeviceClassEdge, MinStake: math.NewInt(10_000_000),
			MinCpuCores: 8, MinRamGb: 16, MinStorageGb: 256, MinBandwidthMbps: 100,
			MaxConcurrentTasks: 4, SupportsBatch: true, SupportsGpu: true, LowLatency: true,
			PowerEfficiency: 50, Reliability: 80,
		},
		{
			DeviceType: "server", Class: DeviceClassServer, MinStake: math.NewInt(50_000_000),
			MinCpuCores: 16, MinRamGb: 64, MinStorageGb: 1000, MinBandwidthMbps: 1000,
			MaxConcurrentTasks: 16, SupportsBatch: true, SupportsGpu: true, LowLatency: true,
			PowerEfficiency: 40, Reliability: 95,
		},
		{
			DeviceType: "gpu_server", Class: DeviceClassServer, MinStake: math.NewInt(100_000_000),
			MinCpuCores: 16, MinRamGb: 128, MinStorageGb: 2000, MinBandwidthMbps: 1000,
			MaxConcurrentTasks: 8, SupportsBatch: true, SupportsGpu: true, LowLatency: true,
			PowerEfficiency: 30, Reliability: 95,
		},
	}
}
