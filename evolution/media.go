package evolution

import (
	"net/url"
	"path"
	"strings"
)

// MediaType is the upstream "mediatype" classification of a Media message.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaAudio    MediaType = "audio"
	MediaDocument MediaType = "document"
)

// Valid reports whether t is one of the four upstream classes.
func (t MediaType) Valid() bool {
	switch t {
	case MediaImage, MediaVideo, MediaAudio, MediaDocument:
		return true
	}
	return false
}

var extensionMediaTypes = map[string]MediaType{
	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,
	".gif":  MediaImage,
	".webp": MediaImage,
	".bmp":  MediaImage,
	".mp4":  MediaVideo,
	".mov":  MediaVideo,
	".avi":  MediaVideo,
	".mkv":  MediaVideo,
	".webm": MediaVideo,
	".3gp":  MediaVideo,
	".mp3":  MediaAudio,
	".ogg":  MediaAudio,
	".oga":  MediaAudio,
	".opus": MediaAudio,
	".wav":  MediaAudio,
	".m4a":  MediaAudio,
	".aac":  MediaAudio,
	".amr":  MediaAudio,
}

// DetectMediaType classifies a media URL by its path extension. Query
// strings and fragments are ignored; anything unrecognized is a document.
func DetectMediaType(rawURL string) MediaType {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if t, ok := extensionMediaTypes[strings.ToLower(path.Ext(p))]; ok {
		return t
	}
	return MediaDocument
}

// ClassifyMediaType accepts either a media class ("image") or a MIME type
// ("image/png", "application/pdf") and returns the media class.
func ClassifyMediaType(s string) (MediaType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t := MediaType(s); t.Valid() {
		return t, true
	}

	major, _, ok := strings.Cut(s, "/")
	if !ok || major == "" {
		return "", false
	}
	switch major {
	case "image":
		return MediaImage, true
	case "video":
		return MediaVideo, true
	case "audio":
		return MediaAudio, true
	case "application", "text":
		return MediaDocument, true
	}
	return "", false
}
