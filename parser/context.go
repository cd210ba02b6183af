package parser

import (
	"sync"
)

// NTFSContext carries what is known about the volume an artifact came
// from, the parse options and the diagnostics sink. It is created once
// per run and passed to every parser.
type NTFSContext struct {
	Boot *BootSector

	ClusterSize int64
	RecordSize  int64

	mu sync.Mutex

	// Analysis options can be set with SetOptions()
	options Options

	Diagnostics *Diagnostics
}

func NewNTFSContext(options Options) *NTFSContext {
	return &NTFSContext{
		options:     options,
		ClusterSize: options.ClusterSize,
		RecordSize:  options.RecordSize,
		Diagnostics: NewDiagnostics(),
	}
}

func (self *NTFSContext) SetOptions(options Options) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.options = options
}

func (self *NTFSContext) GetOptions() Options {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.options
}

// SetBoot takes cluster and record sizes from a parsed boot sector
// unless the options already fix them.
func (self *NTFSContext) SetBoot(boot *BootSector) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.Boot = boot
	if self.options.ClusterSize == 0 {
		self.ClusterSize = boot.ClusterSize
	}
	if self.options.RecordSize == 0 {
		self.RecordSize = boot.RecordSize
	}
}

// Volume size in clusters or 0 when no boot sector is known.
func (self *NTFSContext) TotalClusters() int64 {
	self.mu.Lock()
	defer self.mu.Unlock()

	if self.Boot == nil {
		return 0
	}
	return self.Boot.TotalClusters
}
