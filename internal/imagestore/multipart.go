package imagestore

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	dErrors "farmshield/pkg/domain-errors"
)

// FromMultipart reads one uploaded part into a File and validates it.
func FromMultipart(fh *multipart.FileHeader, maxBytes int64) (File, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return File{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("image exceeds %d bytes", maxBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return File{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable upload")
	}
	defer f.Close()

	limit := maxBytes
	if limit <= 0 {
		limit = fh.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return File{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable upload")
	}
	file := File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}
	if err := Validate(file, maxBytes); err != nil {
		return File{}, err
	}
	return file, nil
}

// ParseForm parses a multipart body capped at maxTotal bytes and returns the
// files under field.
func ParseForm(w http.ResponseWriter, r *http.Request, field string, maxTotal int64) ([]*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTotal)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	return files, nil
}
