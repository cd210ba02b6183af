// Manage caching of MFT Entry metadata. This is mainly used for path
// traversal calculation.

package parser

import (
	"sync"

	"github.com/Velocidex/ordereddict"
	lru "github.com/hashicorp/golang-lru"
)

type FNSummary struct {
	Name      string
	Namespace FileNameNamespace
	Parent    MftReference
}

type MFTEntrySummary struct {
	Sequence  uint16
	InUse     bool
	IsDir     bool
	Filenames []FNSummary
}

// The name used for display: Win32 > Win32AndDos > POSIX > DOS.
func (self *MFTEntrySummary) Primary() *FNSummary {
	var result *FNSummary
	for idx := range self.Filenames {
		fn := &self.Filenames[idx]
		if result == nil || fn.Namespace.priority() < result.Namespace.priority() {
			result = fn
		}
	}
	return result
}

type cachedPath struct {
	path string
	err  error
}

// PathResolver maps MFT entries to full paths. The summary index is
// built once from a complete MFTResult and never changes; resolved
// paths are memoized in a concurrency safe LRU so the resolver can be
// shared by parallel decoders.
type PathResolver struct {
	options Options

	entries map[uint64]*MFTEntrySummary

	cache *lru.Cache

	mu     sync.Mutex
	hits   int
	misses int
}

func NewPathResolver(mft *MFTResult, options Options) *PathResolver {
	cache_size := options.PathCacheSize
	if cache_size <= 0 {
		cache_size = DefaultPathCacheSize
	}
	if options.MaxDirectoryDepth <= 0 {
		options.MaxDirectoryDepth = DefaultMaxDirectoryDepth
	}

	// Only fails for a non positive size.
	cache, _ := lru.New(cache_size)

	result := &PathResolver{
		options: options,
		entries: make(map[uint64]*MFTEntrySummary, len(mft.Entries)),
		cache:   cache,
	}

	extensions := []*MftEntry{}
	for _, entry := range mft.Entries {
		if entry.IsExtension() {
			extensions = append(extensions, entry)
			continue
		}

		_, pres := result.entries[entry.RecordNumber]
		if pres {
			continue
		}

		summary := &MFTEntrySummary{
			Sequence: entry.SequenceNumber,
			InUse:    entry.InUse(),
			IsDir:    entry.IsDir(),
		}
		for _, fn := range entry.FileNames {
			summary.Filenames = append(summary.Filenames, FNSummary{
				Name:      fn.Name,
				Namespace: fn.Namespace,
				Parent:    fn.Parent,
			})
		}
		result.entries[entry.RecordNumber] = summary
	}

	// Entries with many hard links keep extra $FILE_NAME attributes
	// in extension records.
	for _, entry := range extensions {
		summary, pres := result.entries[entry.BaseRecord.Entry]
		if !pres || summary.Sequence != entry.BaseRecord.Sequence {
			continue
		}

		for _, fn := range entry.FileNames {
			summary.Filenames = append(summary.Filenames, FNSummary{
				Name:      fn.Name,
				Namespace: fn.Namespace,
				Parent:    fn.Parent,
			})
		}
	}

	return result
}

func (self *PathResolver) GetSummary(id uint64) (*MFTEntrySummary, bool) {
	summary, pres := self.entries[id]
	return summary, pres
}

func (self *PathResolver) Stats() *ordereddict.Dict {
	self.mu.Lock()
	defer self.mu.Unlock()

	return ordereddict.NewDict().
		Set("Entries", len(self.entries)).
		Set("CachedPaths", self.cache.Len()).
		Set("Hits", self.hits).
		Set("Misses", self.misses)
}

func (self *PathResolver) getCached(id uint64) (*cachedPath, bool) {
	value, pres := self.cache.Get(id)

	self.mu.Lock()
	defer self.mu.Unlock()

	if pres {
		self.hits++
		return value.(*cachedPath), true
	}
	self.misses++
	STATS.Inc_PathResolverCacheMiss()
	return nil, false
}
