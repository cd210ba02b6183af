/* An entry may be known by several paths.

   In NTFS A file (MFT Entry) may exist in multiple directories, this
   is called hardlinks. Each link adds a $FILE_NAME attribute to the
   MFT entry pointing at a different parent.

   You can create a hardlink using the fsutils utility:

   C:> fsutil.exe hardlink create C:/users/test/X.txt "C:/users/test/downloads/X.txt"
*/

package parser

// Links returns one path for each $FILE_NAME of the entry. DOS names
// are only included when IncludeShortNames is set. At most MaxLinks
// paths are returned.
func (self *PathResolver) Links(id uint64) []string {
	summary, pres := self.entries[id]
	if !pres {
		return nil
	}

	if id == ROOT_ENTRY {
		path, _ := self.FullPath(id)
		return []string{path}
	}

	result := []string{}
	seen := make(map[string]bool)

	for _, fn := range summary.Filenames {
		if fn.Namespace == NamespaceDOS && !self.options.IncludeShortNames {
			continue
		}

		if self.options.MaxLinks > 0 && len(result) >= self.options.MaxLinks {
			break
		}

		path, _ := self.ResolveChild(fn.Parent, fn.Name)
		if seen[path] {
			continue
		}
		seen[path] = true
		result = append(result, path)
	}

	return result
}
