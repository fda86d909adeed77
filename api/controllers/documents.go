package controllers

import (
	"mime/multipart"
	"net/http"

	"github.com/angelmondragon/factoring-portal/api/responses"
	"github.com/angelmondragon/factoring-portal/api/validators"
	"github.com/angelmondragon/factoring-portal/internal/fundingrequests"
	pkgerrors "github.com/angelmondragon/factoring-portal/pkg/errors"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
)

const (
	uploadFormField  = "files"
	multipartMemory  = 8 << 20
	maxUploadsPerReq = 10
)

type documentsPayload struct {
	Documents []*fundingrequests.DocumentDTO `json:"documents"`
}

// AttachDocuments accepts a multipart form with one or more "files" parts.
func AttachDocuments(svc fundingrequests.Service, maxBodyBytes int64, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if maxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File[uploadFormField]
		if len(headers) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required"))
			return
		}
		if len(headers) > maxUploadsPerReq {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many files").
				WithDetails(map[string]any{"max": maxUploadsPerReq}))
			return
		}

		uploads := make([]fundingrequests.Upload, 0, len(headers))
		files := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range files {
				_ = f.Close()
			}
		}()
		for _, header := range headers {
			f, err := header.Open()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable file"))
				return
			}
			files = append(files, f)
			uploads = append(uploads, fundingrequests.Upload{FileName: header.Filename, Content: f})
		}

		docs, err := svc.AttachDocuments(r.Context(), actor, requestID, uploads)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]*fundingrequests.DocumentDTO, 0, len(docs))
		for i := range docs {
			out = append(out, fundingrequests.DocumentToDTO(&docs[i]))
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, documentsPayload{Documents: out})
	}
}
