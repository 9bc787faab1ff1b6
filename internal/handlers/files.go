package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

// MaxFilesPerUpload bounds one multipart batch.
const MaxFilesPerUpload = 20

type contentResponse struct {
	ID      string `json:"id"`
	DataURI string `json:"data_uri"`
}

type FileHandler struct {
	responder
	service       services.FileService
	maxUploadSize int64
}

func NewFileHandler(service services.FileService, maxUploadSize int64, logger *utils.Logger) *FileHandler {
	return &FileHandler{responder: responder{logger: logger}, service: service, maxUploadSize: maxUploadSize}
}

// Upload takes a multipart form: a project_id field and one or more files
// fields. A file part may carry its own project_id in a field named
// project_id.<index>, which overrides the batch default.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadSize*MaxFilesPerUpload + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, utils.NewBadRequestError(fmt.Sprintf("Upload exceeds %d bytes", limit)))
			return
		}
		h.respondError(w, utils.NewBadRequestError("Invalid form data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.respondError(w, utils.NewBadRequestError("No files provided"))
		return
	}
	if len(headers) > MaxFilesPerUpload {
		h.respondError(w, utils.NewBadRequestError(fmt.Sprintf("At most %d files per upload", MaxFilesPerUpload)))
		return
	}

	projectID := r.FormValue("project_id")
	req := &models.UploadRequest{RecordID: pathID(r), Files: make([]models.UploadFile, 0, len(headers))}
	for i, fh := range headers {
		pid := projectID
		if own := r.FormValue(fmt.Sprintf("project_id.%d", i)); own != "" {
			pid = own
		}
		if pid == "" {
			h.respondError(w, utils.NewBadRequestError(fmt.Sprintf("%s: project_id is required", fh.Filename)))
			return
		}

		data, err := readPart(fh, h.maxUploadSize)
		if err != nil {
			h.respondError(w, err)
			return
		}
		req.Files = append(req.Files, models.UploadFile{ProjectID: pid, Filename: fh.Filename, Data: data})
	}

	h.logger.Info("File upload attempt", "record_id", req.RecordID, "count", len(req.Files))

	files, err := h.service.Upload(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, files)
}

func readPart(fh *multipart.FileHeader, max int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, utils.NewBadRequestError(fmt.Sprintf("%s: unreadable", fh.Filename))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, utils.WrapInternal("Failed to read file", err)
	}
	if int64(len(data)) > max {
		return nil, utils.NewBadRequestError(fmt.Sprintf("%s: file exceeds %d bytes", fh.Filename, max))
	}
	return data, nil
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.List(r.Context(), pathID(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, files)
}

func (h *FileHandler) Content(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	uri, err := h.service.Content(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, contentResponse{ID: id, DataURI: uri})
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), pathID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	h.noContent(w)
}
