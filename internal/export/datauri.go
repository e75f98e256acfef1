package export

import (
	"fmt"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

const svgMediaType = "image/svg+xml"

// EncodeDataURI wraps serialized SVG in a base64 data URI.
func EncodeDataURI(svg []byte) string {
	return dataurl.New(svg, svgMediaType).String()
}

// DecodeDataURI returns the media type and payload of a data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	du, err := dataurl.DecodeString(uri)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URI: %w", err)
	}
	return du.ContentType(), du.Data, nil
}

func isDataURI(s string) bool {
	return len(s) >= 5 && strings.EqualFold(s[:5], "data:")
}
