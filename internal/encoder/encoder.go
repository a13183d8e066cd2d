// Package encoder turns staged image bytes into their transport encoding.
// It performs no size or type validation; rejecting unsupported content is
// the remote collaborator's job.
package encoder

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"

	"studio/internal/domain"
)

const defaultMimeType = "application/octet-stream"

// Encode reads the full byte source and returns a lossless base64 encoding
// with the declared media type. When declaredMime is empty the type is
// sniffed from the leading bytes. A failing source yields a ReadError that
// the caller surfaces as a submission failure.
func Encode(ctx context.Context, name, declaredMime string, r io.Reader) (domain.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.EncodedImage{}, &domain.ReadError{Name: name, Err: err}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.EncodedImage{}, &domain.ReadError{Name: name, Err: err}
	}
	mime := declaredMime
	if mime == "" {
		mime = sniffMimeType(data)
	}
	return domain.EncodedImage{
		Base64Data: base64.StdEncoding.EncodeToString(data),
		MimeType:   mime,
	}, nil
}

func sniffMimeType(data []byte) string {
	if len(data) == 0 {
		return defaultMimeType
	}
	return http.DetectContentType(data)
}
