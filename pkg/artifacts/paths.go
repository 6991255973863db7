package artifacts

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"
)

// sanitizeBase replaces any character outside [A-Za-z0-9._-] with '_' so
// original filenames cannot escape the artifact root or break tooling.
func sanitizeBase(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// artifactPath builds the deterministic on-disk location for an artifact:
// <root>/<sanitized-base>_<media-id>_<model-key>_<kind>.<ext>
// The model segment is "nomodel" when no model key applies.
func artifactPath(root, originalFileName, mediaID, modelKey string, kind models.ArtifactKind, format string) string {
	base := sanitizeBase(strings.TrimSuffix(originalFileName, filepath.Ext(originalFileName)))
	if base == "" {
		base = "media"
	}
	model := modelKey
	if model == "" {
		model = "nomodel"
	}
	ext := models.ExtensionForFormat(format)
	filename := fmt.Sprintf("%s_%s_%s_%s.%s", base, mediaID, model, kind, ext)
	return filepath.Join(root, filename)
}
