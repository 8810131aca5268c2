package queue

import (
	"path/filepath"
	"strings"
)

var extensionTypes = func() map[string]JobType {
	types := make(map[string]JobType, 40)
	video := []string{
		"mp4", "mkv", "mov", "avi", "webm", "m4v", "ts", "m2ts",
		"mpg", "mpeg", "wmv", "flv", "vob", "3gp",
	}
	image := []string{
		"jpg", "jpeg", "png", "webp", "bmp", "tif", "tiff", "gif",
		"heic", "heif", "avif",
	}
	audio := []string{
		"mp3", "flac", "wav", "m4a", "aac", "ogg", "opus", "wma", "aiff",
	}
	for _, ext := range video {
		types[ext] = JobTypeVideo
	}
	for _, ext := range image {
		types[ext] = JobTypeImage
	}
	for _, ext := range audio {
		types[ext] = JobTypeAudio
	}
	return types
}()

// ClassifyPath maps a file path to its job type by extension. The second
// return is false for extensions no encoder backend handles.
func ClassifyPath(path string) (JobType, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "", false
	}
	jobType, ok := extensionTypes[ext]
	return jobType, ok
}
