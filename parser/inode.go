package parser

import "fmt"

// InodeFormatter names the attributes of one entry as
// entry-type-id[:name]. Corrupt entries may repeat an attribute id so
// repeats get a #n suffix to keep inodes unique.
type InodeFormatter struct {
	entry uint64
	seen  map[uint64]int
}

func NewInodeFormatter(entry uint64) *InodeFormatter {
	return &InodeFormatter{
		entry: entry,
		seen:  make(map[uint64]int),
	}
}

func (self *InodeFormatter) Inode(
	attr_type AttributeType, attr_id uint16, name string) string {
	inode := fmt.Sprintf("%d-%d-%d", self.entry, uint32(attr_type), attr_id)
	if name != "" {
		inode += ":" + name
	}

	key := uint64(attr_type)<<16 | uint64(attr_id)
	count := self.seen[key]
	self.seen[key] = count + 1
	if count > 0 && name == "" {
		inode += fmt.Sprintf("#%d", count)
	}

	return inode
}
