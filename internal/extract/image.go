package extract

import (
	"encoding/base64"
	"regexp"
)

var (
	imageDataURI = []*regexp.Regexp{
		regexp.MustCompile(`data:image/(jpeg|png|jpg);base64,([A-Za-z0-9+/=]+)`),
		regexp.MustCompile(`!\[.*?\]\(data:image/(jpeg|png|jpg);base64,([A-Za-z0-9+/=]+)\)`),
	}
	// Only payloads of real image size are redacted; short data URIs in
	// example markup stay readable.
	base64Payload = regexp.MustCompile(`(data:image/(?:jpeg|png|jpg);base64,)[A-Za-z0-9+/=]{100,}`)
)

// Image finds the first base64 image data URI in a response and decodes it.
// The returned extension is normalized (jpeg becomes jpg). A payload that
// does not decode as base64 is treated as no image.
func Image(content string) (ext string, data []byte, ok bool) {
	for _, re := range imageDataURI {
		m := re.FindStringSubmatch(content)
		if m == nil {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			continue
		}
		ext = m[1]
		if ext == "jpeg" {
			ext = "jpg"
		}
		return ext, decoded, true
	}
	return "", nil, false
}

// RedactBase64 replaces large inline image payloads with a placeholder so
// persisted JSON records stay human-sized.
func RedactBase64(content string) string {
	return base64Payload.ReplaceAllString(content, "${1}[image data removed]")
}
