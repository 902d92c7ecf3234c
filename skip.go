package fetchq

import (
	"path"
	"strings"
)

// MediaCategory groups file types for skip and size rules.
type MediaCategory string

const (
	MediaImage MediaCategory = "image"
	MediaVideo MediaCategory = "video"
	MediaAudio MediaCategory = "audio"
	MediaOther MediaCategory = "other"
)

var mediaExtensions = map[string]MediaCategory{
	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage, ".gif": MediaImage,
	".webp": MediaImage, ".bmp": MediaImage, ".svg": MediaImage, ".avif": MediaImage,
	".tif": MediaImage, ".tiff": MediaImage, ".heic": MediaImage,
	".mp4": MediaVideo, ".mkv": MediaVideo, ".webm": MediaVideo, ".mov": MediaVideo,
	".avi": MediaVideo, ".wmv": MediaVideo, ".m4v": MediaVideo, ".flv": MediaVideo,
	".ts": MediaVideo,
	".mp3": MediaAudio, ".flac": MediaAudio, ".wav": MediaAudio, ".ogg": MediaAudio,
	".m4a": MediaAudio, ".aac": MediaAudio, ".opus": MediaAudio,
}

// CategoryOf returns the media category for a URL or file name.
func CategoryOf(name string) MediaCategory {
	if idx := strings.IndexAny(name, "?#"); idx != -1 {
		name = name[:idx]
	}
	if c, ok := mediaExtensions[strings.ToLower(path.Ext(name))]; ok {
		return c
	}
	return MediaOther
}

// IsMediaURL reports whether the URL points at a known image, video or
// audio file.
func IsMediaURL(rawURL string) bool {
	return CategoryOf(rawURL) != MediaOther
}

// SizeLimit bounds a file size in bytes. Zero means no bound.
type SizeLimit struct {
	Min int64
	Max int64
}

// SkipPolicy decides which downloads are skipped by configuration.
type SkipPolicy struct {
	SkipHosts     []string
	ExcludeImages bool
	ExcludeVideos bool
	ExcludeAudio  bool
	ExcludeOther  bool

	ImageSize SizeLimit
	VideoSize SizeLimit
	OtherSize SizeLimit
}

// Validate returns an error if a size range is inverted.
func (p *SkipPolicy) Validate() error {
	for name, l := range map[string]SizeLimit{"image": p.ImageSize, "video": p.VideoSize, "other": p.OtherSize} {
		if l.Min < 0 || l.Max < 0 {
			return Errorf(EINVALID, "%s size limits must not be negative", name)
		}
		if l.Max > 0 && l.Min > l.Max {
			return Errorf(EINVALID, "%s minimum size exceeds maximum size", name)
		}
	}
	return nil
}

// ShouldSkip reports whether the task is excluded and why.
// Size rules apply only when the task carries an expected size.
func (p *SkipPolicy) ShouldSkip(task DownloadTask) (bool, string) {
	if p == nil {
		return false, ""
	}
	if domain, err := task.DomainKey(); err == nil {
		for _, host := range p.SkipHosts {
			if strings.EqualFold(host, domain.String()) {
				return true, "skipped host"
			}
		}
	}

	category := CategoryOf(task.URL)
	switch {
	case category == MediaImage && p.ExcludeImages,
		category == MediaVideo && p.ExcludeVideos,
		category == MediaAudio && p.ExcludeAudio,
		category == MediaOther && p.ExcludeOther:
		return true, "excluded " + string(category)
	}

	if task.ExpectedSize > 0 {
		limit := p.sizeLimit(category)
		if limit.Min > 0 && task.ExpectedSize < limit.Min {
			return true, string(category) + " below minimum size"
		}
		if limit.Max > 0 && task.ExpectedSize > limit.Max {
			return true, string(category) + " above maximum size"
		}
	}
	return false, ""
}

func (p *SkipPolicy) sizeLimit(c MediaCategory) SizeLimit {
	switch c {
	case MediaImage:
		return p.ImageSize
	case MediaVideo:
		return p.VideoSize
	default:
		// Audio has no dedicated limits.
		return p.OtherSize
	}
}
