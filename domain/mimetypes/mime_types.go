package mimetypes

import (
	"mime"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

type MIME string

const (
	Unknown         MIME = "unknown"
	ApplicationJSON MIME = "application/json"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// Images are the formats accepted as chat photo attachments.
var Images = []MIME{ImagePNG, ImageJPEG, ImageGIF, ImageWEBP}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// DetectImage sniffs data and reports whether it is an accepted image.
func DetectImage(data []byte) (MIME, bool) {
	detected := mimetype.Detect(data).String()
	found, ok := lo.Find(Images, func(m MIME) bool {
		_, match := Matches(detected, m)
		return match
	})
	if !ok {
		return Unknown, false
	}
	return found, true
}

// Extension returns the file extension used when uploading m.
func (m MIME) Extension() string {
	switch m {
	case ImagePNG:
		return ".png"
	case ImageJPEG:
		return ".jpg"
	case ImageGIF:
		return ".gif"
	case ImageWEBP:
		return ".webp"
	default:
		return ""
	}
}
