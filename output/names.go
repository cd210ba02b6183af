package output

import (
	"path/filepath"
	"strings"
)

// DefaultFileName names the output for an artifact: <stem>_<kind>.<ext>
func DefaultFileName(artifact_path, kind, ext string) string {
	base := filepath.Base(artifact_path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "artifact"
	}
	return stem + "_" + kind + "." + strings.TrimPrefix(ext, ".")
}
