package convert

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/addoodi/yt2audi/internal/model"
)

// Filename limits
const (
	maxFilenameLength = 255
	fallbackStem      = "video"
)

var (
	invalidChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	multiSpace   = regexp.MustCompile(`\s+`)
)

// SanitizeFilename strips characters that are unsafe on FAT32 and Windows,
// drops non-ASCII runes (head units render them as boxes), collapses
// whitespace and trims leading/trailing dots and spaces. Deterministic:
// identical input always yields identical output.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	s := invalidChars.ReplaceAllString(b.String(), "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.Trim(s, ". ")
	if len(s) > maxFilenameLength {
		s = s[:maxFilenameLength-10]
	}
	if s == "" {
		return fallbackStem
	}
	return s
}

// PredictOutputPath computes the output path for a video from its metadata
// and the profile's filename template. Pure function of its inputs: the
// pipeline's pre-check depends on it matching the path Encode will produce.
func (s *Service) PredictOutputPath(meta *model.Metadata, outputDir string) string {
	title := meta.Title
	if title == "" {
		title = fallbackStem
	}
	id := meta.ID
	if id == "" {
		id = "none"
	}
	uploader := meta.Uploader
	if uploader == "" {
		uploader = "unknown"
	}

	name := s.profile.Output.FilenameTemplate
	name = strings.ReplaceAll(name, "{title}", SanitizeFilename(title))
	name = strings.ReplaceAll(name, "{id}", id)
	name = strings.ReplaceAll(name, "{uploader}", SanitizeFilename(uploader))
	name = strings.ReplaceAll(name, "{ext}", s.profile.Output.Container)

	return filepath.Join(outputDir, name)
}
