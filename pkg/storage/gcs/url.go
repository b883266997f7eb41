package gcs

import (
	"net/url"
	"strings"
)

const defaultPublicBase = "https://storage.googleapis.com"

// urlMapper converts between object names and public URLs of one bucket.
type urlMapper struct {
	prefix string
}

func newURLMapper(publicBase, bucket string) urlMapper {
	base := strings.TrimRight(strings.TrimSpace(publicBase), "/")
	if base == "" {
		base = defaultPublicBase
	}
	return urlMapper{prefix: base + "/" + bucket + "/"}
}

func (m urlMapper) toURL(object string) string {
	parts := strings.Split(object, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return m.prefix + strings.Join(parts, "/")
}

func (m urlMapper) toObject(publicURL string) (string, bool) {
	rest, ok := strings.CutPrefix(publicURL, m.prefix)
	if !ok || rest == "" {
		return "", false
	}
	object, err := url.PathUnescape(rest)
	if err != nil || object == "" {
		return "", false
	}
	return object, true
}
