package downloader

import (
	"fmt"
	"net/url"
	"strings"

	"go-media-bot/internal/models"
)

// OutputTemplateName is the yt-dlp output template used inside a workspace.
const OutputTemplateName = "%(title)s.%(ext)s"

const (
	mergeOutputFormat = "mp4"

	formatBest    = "bestvideo+bestaudio/best"
	formatReduced = "bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]"

	// Instagram serves variants Telegram clients often cannot play, so force
	// H.264/AAC and re-encode.
	formatInstagramBest    = "bestvideo[vcodec^=avc1]+bestaudio[acodec^=mp4a]/best[ext=mp4]/best"
	formatInstagramReduced = "bestvideo[height<=%[1]d][vcodec^=avc1]+bestaudio[acodec^=mp4a]/best[height<=%[1]d][ext=mp4]/best[height<=%[1]d]"
	instagramPostprocessor = "ffmpeg:-c:v libx264 -preset veryfast -crf 23 -pix_fmt yuv420p -c:a aac -b:a 128k -movflags +faststart"
)

// DefaultReducedHeight caps the resolution of the retry attempt.
const DefaultReducedHeight = 480

// Profile is the set of yt-dlp options for one attempt.
type Profile struct {
	Quality           models.Quality
	Format            string
	MergeOutputFormat string
	ExtraArgs         []string // platform-specific, passed before the URL
}

// IsInstagram reports whether rawURL points at Instagram.
func IsInstagram(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.Contains(strings.ToLower(rawURL), "instagram.com")
	}
	host := strings.ToLower(u.Hostname())
	for _, domain := range []string{"instagram.com", "instagr.am"} {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// BuildProfile picks the format selector for rawURL at the requested quality.
func BuildProfile(rawURL string, quality models.Quality, reducedHeight int) Profile {
	if reducedHeight <= 0 {
		reducedHeight = DefaultReducedHeight
	}
	p := Profile{
		Quality:           quality,
		MergeOutputFormat: mergeOutputFormat,
	}

	instagram := IsInstagram(rawURL)
	switch {
	case instagram && quality == models.QualityReduced:
		p.Format = fmt.Sprintf(formatInstagramReduced, reducedHeight)
	case instagram:
		p.Format = formatInstagramBest
	case quality == models.QualityReduced:
		p.Format = fmt.Sprintf(formatReduced, reducedHeight)
	default:
		p.Format = formatBest
	}
	if instagram {
		p.ExtraArgs = []string{
			"--recode-video", mergeOutputFormat,
			"--postprocessor-args", instagramPostprocessor,
		}
	}
	return p
}
