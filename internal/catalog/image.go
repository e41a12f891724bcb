package catalog

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallbackImageMIME = "image/jpeg"

// imageFields are the record fields that may carry an embedded picture, in
// lookup order.
var imageFields = []string{"LargePhoto", "Image", "image", "Photo"}

var errNotAByte = errors.New("value is not a byte")

// DecodeImage turns an embedded image payload into a data URI. It accepts a
// JSON array of byte values, a Node Buffer object ({"type":"Buffer","data":[...]})
// or a base64 string. A missing or empty payload yields "" with no error.
func DecodeImage(payload any) (string, error) {
	raw, err := imageBytes(payload)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	return dataURI(raw), nil
}

func imageBytes(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case []any:
		return byteArray(v)
	case map[string]any:
		if t, ok := v["type"].(string); ok && t != "Buffer" {
			return nil, fmt.Errorf("unsupported image object type %q", t)
		}
		data, ok := v["data"]
		if !ok {
			return nil, errors.New("image object has no data")
		}
		return imageBytes(data)
	case string:
		return base64Bytes(v)
	default:
		return nil, fmt.Errorf("unsupported image payload %T", payload)
	}
}

func byteArray(values []any) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		b, err := toByte(v)
		if err != nil {
			return nil, fmt.Errorf("image byte %d: %w", i, err)
		}
		out[i] = b
	}
	return out, nil
}

func toByte(v any) (byte, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errNotAByte
		}
		f = parsed
	case float64:
		f = n
	case int:
		f = float64(n)
	default:
		return 0, errNotAByte
	}
	if f < 0 || f > 255 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v", errNotAByte, f)
	}
	return byte(f), nil
}

func base64Bytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.Contains(s[:comma], ";base64") {
			return nil, errors.New("image data URI is not base64")
		}
		s = s[comma+1:]
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("image string is not valid base64")
}

// dataURI sniffs the MIME type of raw and encodes it. Bytes that are not a
// recognised image are labelled image/jpeg, the format the API mostly serves.
func dataURI(raw []byte) string {
	mime := fallbackImageMIME
	if m := mimetype.Detect(raw); strings.HasPrefix(m.String(), "image/") {
		mime = m.String()
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
