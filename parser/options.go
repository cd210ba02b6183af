package parser

import (
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxLinks          = 20
	DefaultMaxDirectoryDepth = 256
	DefaultPathCacheSize     = 100000
)

type Options struct {
	// Include short names in Link analysis
	IncludeShortNames bool `yaml:"include_short_names"`

	// Max number of links to retrieve
	MaxLinks int `yaml:"max_links"`

	// Maximum directory depth to anlayze for paths. Deeper chains
	// are reported as cycles.
	MaxDirectoryDepth int `yaml:"max_directory_depth"`

	// These path components will be added in front of each path
	// generated.
	PrefixComponents []string `yaml:"prefix_components"`

	// Disable resolution of USN and I30 paths through the MFT. This
	// is useful when the MFT is large and paths are not needed.
	DisableFullPathResolution bool `yaml:"disable_full_path_resolution"`

	// MFT record size. 0 means take it from the boot sector or
	// detect it from the first entry.
	RecordSize int64 `yaml:"record_size"`

	// Cluster size used to validate run lists. 0 means unknown.
	ClusterSize int64 `yaml:"cluster_size"`

	// Number of concurrent MFT entry decoders.
	Workers int `yaml:"workers"`

	// Abort the parse after this long. 0 means no limit.
	Timeout time.Duration `yaml:"timeout"`

	// Number of resolved paths to memoize.
	PathCacheSize int `yaml:"path_cache_size"`

	// Carve deleted index entries from INDX slack space.
	CarveSlack bool `yaml:"carve_slack"`

	// Skip zero filled gaps in the USN journal instead of stopping
	// at the first zero record length.
	UsnScanAhead bool `yaml:"usn_scan_ahead"`
}

func GetDefaultOptions() Options {
	return Options{
		IncludeShortNames: false,
		MaxLinks:          DefaultMaxLinks,
		MaxDirectoryDepth: DefaultMaxDirectoryDepth,
		Workers:           runtime.NumCPU(),
		PathCacheSize:     DefaultPathCacheSize,
	}
}

// ParseOptionsYAML overlays a YAML document on the default options.
func ParseOptionsYAML(data []byte) (Options, error) {
	result := GetDefaultOptions()
	err := yaml.Unmarshal(data, &result)
	if err != nil {
		return result, err
	}

	if result.MaxDirectoryDepth <= 0 {
		result.MaxDirectoryDepth = DefaultMaxDirectoryDepth
	}
	if result.Workers <= 0 {
		result.Workers = 1
	}
	return result, nil
}
