package controller

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var errEmptyImage = errors.New("image has no data")

// PreviewURI encodes the file as a data URI the browser can render directly.
// The declared type is used when present, otherwise the type is sniffed.
func PreviewURI(file *ImageFile) (string, error) {
	if file == nil || len(file.Data) == 0 {
		return "", errEmptyImage
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(file.Data).String()
	}
	// parameters such as charset are meaningless for image data
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}

	var b strings.Builder
	b.Grow(len("data:;base64,") + len(contentType) + base64.StdEncoding.EncodedLen(len(file.Data)))
	b.WriteString("data:")
	b.WriteString(contentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(file.Data))
	return b.String(), nil
}
