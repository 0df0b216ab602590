// Package media handles file-type detection and the ffmpeg steps of the
// pipeline: audio extraction and chapter embedding.
package media

import (
	"path/filepath"
	"strings"
)

// FileType classifies an input file for pipeline routing.
type FileType string

const (
	FileTypeAudio   FileType = "audio"
	FileTypeVideo   FileType = "video"
	FileTypeUnknown FileType = "unknown"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
}

var videoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".webm": true,
}

// DetectFileType classifies a path by extension.
func DetectFileType(path string) FileType {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case audioExtensions[ext]:
		return FileTypeAudio
	case videoExtensions[ext]:
		return FileTypeVideo
	default:
		return FileTypeUnknown
	}
}
