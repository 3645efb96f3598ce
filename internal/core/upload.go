// AngelaMos | 2026
// upload.go

package core

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

var ErrUploadTooLarge = errors.New("upload too large")

// ReadUpload pulls one multipart file field off r. The content type is
// sniffed from the bytes, not taken from the client. The returned close
// func releases the temporary file.
func ReadUpload(
	w http.ResponseWriter,
	r *http.Request,
	field string,
	maxBytes int64,
) (File, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return File{}, nil, ErrUploadTooLarge
		}
		return File{}, nil, fmt.Errorf("parse upload: %w", ErrInvalidInput)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return File{}, nil, fmt.Errorf("read upload field %q: %w", field, ErrInvalidInput)
	}

	closeFn := func() {
		_ = file.Close() //nolint:errcheck // temp file cleanup
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup
		}
	}

	contentType, err := sniff(file)
	if err != nil {
		closeFn()
		return File{}, nil, fmt.Errorf("sniff upload: %w", err)
	}

	return File{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType,
		Body:        file,
	}, closeFn, nil
}

func sniff(f multipart.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	return mt.String(), nil
}
