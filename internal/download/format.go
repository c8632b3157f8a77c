package download

import (
	"fmt"
	"strings"

	"github.com/addoodi/yt2audi/internal/config"
)

// Standard download resolution steps. Downloading far above the conversion
// target just wastes bandwidth and transcode time, so the selector caps
// height at the nearest standard rung above the profile's max.
var standardHeights = []int{480, 720, 1080}

// BuildFormatSelector derives a yt-dlp format string from the profile so the
// downloaded source matches the conversion target instead of defaulting to
// the largest stream available. An explicit format_preference other than
// "auto" is passed through untouched.
func BuildFormatSelector(p *config.Profile) string {
	if pref := p.Download.FormatPreference; pref != "" && pref != "auto" {
		return pref
	}

	maxHeight := downloadHeight(p.Video.MaxHeight)

	// Small fps headroom: 30fps sources are everywhere even when the
	// profile caps at 25.
	maxFPS := p.Video.MaxFPS + 5
	if maxFPS > 60 {
		maxFPS = 60
	}

	maxAudioKbps := p.Audio.BitrateKbps

	codecPref := "vcodec^=avc"
	if p.Video.Codec != "h264" {
		codecPref = "vcodec^=" + p.Video.Codec
	}
	container := p.Output.Container

	video := fmt.Sprintf("bestvideo[height<=%d][fps<=%d][%s][ext=%s]",
		maxHeight, maxFPS, codecPref, container)
	audio := fmt.Sprintf("bestaudio[abr<=%d][acodec^=%s][ext=m4a]",
		maxAudioKbps, p.Audio.Codec)

	// Fallback chain: relax codec, then container, then fps, then take
	// whatever combined format fits, ending at plain best.
	parts := []string{
		video + "+" + audio,
		fmt.Sprintf("bestvideo[height<=%d][fps<=%d][ext=%s]+bestaudio[abr<=%d][ext=m4a]",
			maxHeight, maxFPS, container, maxAudioKbps),
		fmt.Sprintf("bestvideo[height<=%d][fps<=%d]+bestaudio[abr<=%d]",
			maxHeight, maxFPS, maxAudioKbps),
		fmt.Sprintf("bestvideo[height<=%d]+bestaudio", maxHeight),
		fmt.Sprintf("best[height<=%d][ext=%s]", maxHeight, container),
		fmt.Sprintf("best[ext=%s]", container),
		"best",
	}
	return strings.Join(parts, "/")
}

// downloadHeight rounds the profile's max height up to the nearest standard
// resolution rung.
func downloadHeight(maxHeight int) int {
	for _, h := range standardHeights {
		if maxHeight <= h {
			return h
		}
	}
	return maxHeight
}
