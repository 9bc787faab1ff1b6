package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/extractor"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".docx": extractor.DOCXMime,
}

type FileService interface {
	Upload(ctx context.Context, req *models.UploadRequest) ([]models.CheckupFile, error)
	List(ctx context.Context, recordID string) ([]models.CheckupFile, error)
	// Content returns the stored bytes as a data URI.
	Content(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, id string) error
}

type fileService struct {
	*Deps
}

func NewFileService(d *Deps) FileService {
	return &fileService{Deps: d}
}

// detectMIME trusts a known extension and sniffs the content otherwise.
func detectMIME(filename string, data []byte) string {
	if m, ok := mimeByExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return m
	}
	return mimetype.Detect(data).String()
}

func supportedMIME(m string) bool {
	return strings.HasPrefix(m, "image/") || m == "application/pdf" || m == extractor.DOCXMime || strings.HasPrefix(m, "text/plain")
}

// storedPath lays files out as pictures/<project>/<date>/<id8>_<name>.
func storedPath(projectName, checkupDate, id, filename string) string {
	return path.Join("pictures", safeSegment(projectName), safeSegment(checkupDate),
		id[:8]+"_"+safeSegment(filename))
}

func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// Upload stores every file of the batch or none of them.
func (s *fileService) Upload(ctx context.Context, req *models.UploadRequest) ([]models.CheckupFile, error) {
	if len(req.Files) == 0 {
		return nil, utils.NewBadRequestError("No files uploaded")
	}

	var (
		record   *models.CheckupRecord
		projects = make(map[string]*models.Project)
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if record, err = tx.GetRecord(ctx, req.RecordID); err != nil {
			return err
		}
		if record == nil {
			return utils.NewNotFoundError("Record not found")
		}
		for _, f := range req.Files {
			if _, seen := projects[f.ProjectID]; seen {
				continue
			}
			p, err := tx.GetProject(ctx, f.ProjectID)
			if err != nil {
				return err
			}
			if p == nil {
				return utils.NewNotFoundError(fmt.Sprintf("Project %s not found", f.ProjectID))
			}
			projects[f.ProjectID] = p
		}
		return nil
	})
	if err := s.wrap(err, "Failed to prepare upload", "record_id", req.RecordID); err != nil {
		return nil, err
	}

	// Validate every file before storing any
	files := make([]models.CheckupFile, 0, len(req.Files))
	for _, in := range req.Files {
		if len(in.Data) == 0 {
			return nil, utils.NewBadRequestError(fmt.Sprintf("%s: file is empty", in.Filename))
		}
		if s.Config.MaxUploadSize > 0 && int64(len(in.Data)) > s.Config.MaxUploadSize {
			return nil, utils.NewBadRequestError(fmt.Sprintf("%s: file exceeds %d bytes", in.Filename, s.Config.MaxUploadSize))
		}
		mime := detectMIME(in.Filename, in.Data)
		if !supportedMIME(mime) {
			return nil, utils.NewBadRequestError(fmt.Sprintf("%s: unsupported file type %s", in.Filename, mime))
		}

		id := utils.GenerateID()
		p := projects[in.ProjectID]
		files = append(files, models.CheckupFile{
			ID:               id,
			RecordID:         record.ID,
			ProjectID:        p.ID,
			ProjectName:      p.Name,
			OriginalFilename: in.Filename,
			StoredPath:       storedPath(p.Name, record.CheckupDate, id, in.Filename),
			FileSize:         int64(len(in.Data)),
			MimeType:         mime,
		})
	}

	// Store objects; undo on the first failure
	var written []string
	for i, in := range req.Files {
		f := &files[i]
		if err := s.Storage.Upload(ctx, f.StoredPath, in.Data, f.MimeType); err != nil {
			s.Logger.Error("Failed to store file", "path", f.StoredPath, "error", err)
			s.removeObjects(background(ctx), written)
			return nil, utils.WrapInternal("Failed to store file", err)
		}
		written = append(written, f.StoredPath)
	}

	// Save rows and advance the record
	err = s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		for i := range files {
			if err := tx.CreateFile(ctx, &files[i]); err != nil {
				return err
			}
		}
		current, err := tx.GetRecord(ctx, record.ID)
		if err != nil || current == nil {
			return err
		}
		if next, moved := lifecycle.AfterUpload(current.Status); moved {
			return tx.SetRecordStatus(ctx, record.ID, next)
		}
		return nil
	})
	if err != nil {
		s.removeObjects(background(ctx), written)
		return nil, s.wrap(err, "Failed to save uploaded files", "record_id", record.ID)
	}

	s.Logger.Info("Files uploaded", "record_id", record.ID, "count", len(files))
	return files, nil
}

func (s *fileService) List(ctx context.Context, recordID string) ([]models.CheckupFile, error) {
	var files []models.CheckupFile
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		files, err = tx.ListFiles(ctx, recordID)
		return err
	})
	if err := s.wrap(err, "Failed to list files", "record_id", recordID); err != nil {
		return nil, err
	}
	return files, nil
}

func (s *fileService) Content(ctx context.Context, id string) (string, error) {
	f, err := s.getFile(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := s.Storage.Download(ctx, f.StoredPath)
	if err != nil {
		s.Logger.Error("Failed to read stored file", "file_id", id, "error", err)
		return "", utils.WrapInternal("Failed to read file", err)
	}
	return dataURI(f.MimeType, data), nil
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (s *fileService) getFile(ctx context.Context, id string) (*models.CheckupFile, error) {
	var f *models.CheckupFile
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		f, err = tx.GetFile(ctx, id)
		return err
	})
	if err := s.wrap(err, "Failed to get file", "file_id", id); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, utils.NewNotFoundError("File not found")
	}
	return f, nil
}

func (s *fileService) Delete(ctx context.Context, id string) error {
	var f *models.CheckupFile
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if f, err = tx.GetFile(ctx, id); err != nil {
			return err
		}
		if f == nil {
			return utils.NewNotFoundError("File not found")
		}
		return tx.DeleteFile(ctx, id)
	})
	if err := s.wrap(err, "Failed to delete file", "file_id", id); err != nil {
		return err
	}
	s.removeObjects(ctx, []string{f.StoredPath})
	return nil
}
