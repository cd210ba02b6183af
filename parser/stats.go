package parser

import (
	"encoding/json"
	"sync"
)

var (
	STATS = Stats{}
)

type Stats struct {
	mu sync.Mutex

	MFT_ENTRY             int
	NTFS_ATTRIBUTE        int
	FixupApplied          int
	FixupMismatch         int
	USN_RECORD            int
	SECURITY_DESCRIPTOR   int
	INDEX_RECORD_ENTRY    int
	PathResolverCacheMiss int
}

func (self *Stats) DebugString() string {
	self.mu.Lock()
	defer self.mu.Unlock()

	serialized, _ := json.MarshalIndent(self, " ", " ")
	return string(serialized)
}

func (self *Stats) Reset() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.MFT_ENTRY = 0
	self.NTFS_ATTRIBUTE = 0
	self.FixupApplied = 0
	self.FixupMismatch = 0
	self.USN_RECORD = 0
	self.SECURITY_DESCRIPTOR = 0
	self.INDEX_RECORD_ENTRY = 0
	self.PathResolverCacheMiss = 0
}

func (self *Stats) Inc_MFT_ENTRY() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.MFT_ENTRY++
}

func (self *Stats) Inc_NTFS_ATTRIBUTE() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.NTFS_ATTRIBUTE++
}

func (self *Stats) Inc_FixupApplied() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.FixupApplied++
}

func (self *Stats) Inc_FixupMismatch() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.FixupMismatch++
}

func (self *Stats) Inc_USN_RECORD() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.USN_RECORD++
}

func (self *Stats) Inc_SECURITY_DESCRIPTOR() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.SECURITY_DESCRIPTOR++
}

func (self *Stats) Inc_INDEX_RECORD_ENTRY() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.INDEX_RECORD_ENTRY++
}

func (self *Stats) Inc_PathResolverCacheMiss() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.PathResolverCacheMiss++
}
