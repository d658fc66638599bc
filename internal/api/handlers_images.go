package api

import (
	"errors"
	"net/http"

	"github.com/zysolutions/octodash/internal/images"
	"github.com/zysolutions/octodash/internal/pkg/httputil"
)

// multipartOverhead allows for form boundaries around the file part.
const multipartOverhead = 1 << 20

// UploadImage stores the multipart "file" part and returns its public URL.
//
//	POST /api/images
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		httputil.ServiceUnavailable(w, "image storage not configured")
		return
	}

	maxBytes := h.images.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, images.ErrTooLarge.Error())
			return
		}
		httputil.BadRequest(w, "expected multipart form with a file field")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		httputil.Error(w, http.StatusRequestEntityTooLarge, images.ErrTooLarge.Error())
		return
	}

	img, err := h.images.Upload(r.Context(), userID(r), file)
	switch {
	case errors.Is(err, images.ErrTooLarge):
		httputil.Error(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, images.ErrUnsupportedType):
		httputil.Error(w, http.StatusUnsupportedMediaType, err.Error())
	case err != nil:
		respondSafeError(w, http.StatusBadGateway, err, "image upload failed")
	default:
		httputil.Created(w, img)
	}
}
