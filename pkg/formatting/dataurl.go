package formatting

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidDataURL is returned when a payload is neither a base64 data URL nor bare base64.
var ErrInvalidDataURL = errors.New("invalid data url")

// DecodeDataURL decodes "data:<mime>;base64,<payload>" or bare base64. The
// MIME type comes from the URL prefix, or is sniffed from the bytes.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)

	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", ErrInvalidDataURL
		}
		mime, _, _ = strings.Cut(meta, ";")
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.URLEncoding.DecodeString(s); err != nil {
			return nil, "", ErrInvalidDataURL
		}
	}

	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

// Extension maps an image MIME type to a file extension.
func Extension(mime string) string {
	switch mime {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	default:
		return "bin"
	}
}
