package services

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

type RecordService interface {
	List(ctx context.Context) ([]models.CheckupRecord, error)
	Get(ctx context.Context, id string) (*models.CheckupRecord, error)
	Create(ctx context.Context, req *models.CreateRecordRequest) (*models.CheckupRecord, error)
	Update(ctx context.Context, id string, req *models.UpdateRecordRequest) (*models.CheckupRecord, error)
	Delete(ctx context.Context, id string) error
}

type recordService struct {
	*Deps
}

func NewRecordService(d *Deps) RecordService {
	return &recordService{Deps: d}
}

func (s *recordService) List(ctx context.Context) ([]models.CheckupRecord, error) {
	var records []models.CheckupRecord
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		records, err = tx.ListRecords(ctx)
		return err
	})
	if err := s.wrap(err, "Failed to list records"); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *recordService) Get(ctx context.Context, id string) (*models.CheckupRecord, error) {
	var r *models.CheckupRecord
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		r, err = tx.GetRecord(ctx, id)
		return err
	})
	if err := s.wrap(err, "Failed to get record", "record_id", id); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, utils.NewNotFoundError("Record not found")
	}
	return r, nil
}

func (s *recordService) Create(ctx context.Context, req *models.CreateRecordRequest) (*models.CheckupRecord, error) {
	r := &models.CheckupRecord{
		ID:           utils.GenerateID(),
		CheckupDate:  req.CheckupDate,
		Status:       lifecycle.Created(),
		Notes:        req.Notes,
		ProjectNames: []string{},
	}
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		return tx.CreateRecord(ctx, r)
	})
	if err := s.wrap(err, "Failed to create record"); err != nil {
		return nil, err
	}
	s.Logger.Info("Record created", "record_id", r.ID, "checkup_date", r.CheckupDate)
	return r, nil
}

// Update applies a partial edit. A status must be one of the known labels
// but is otherwise written as given.
func (s *recordService) Update(ctx context.Context, id string, req *models.UpdateRecordRequest) (*models.CheckupRecord, error) {
	var status lifecycle.Status
	if req.Status != nil {
		st, err := lifecycle.Parse(*req.Status)
		if err != nil {
			return nil, utils.NewBadRequestError(err.Error())
		}
		status = st
	}

	var r *models.CheckupRecord
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if r, err = tx.GetRecord(ctx, id); err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		if req.CheckupDate != nil {
			r.CheckupDate = *req.CheckupDate
		}
		if req.Notes != nil {
			r.Notes = *req.Notes
		}
		if status != "" {
			r.Status = status
		}
		return tx.UpdateRecord(ctx, r)
	})
	if err := s.wrap(err, "Failed to update record", "record_id", id); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete stops any extraction job of the record, removes it with all its
// dependants, then deletes the stored files.
func (s *recordService) Delete(ctx context.Context, id string) error {
	s.Queue.Cancel(ocrJobKey(id))

	var paths []string
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		paths, err = tx.DeleteRecord(ctx, id)
		return err
	})
	if err := s.wrap(err, "Failed to delete record", "record_id", id); err != nil {
		return err
	}
	s.removeObjects(ctx, paths)
	s.Logger.Info("Record deleted", "record_id", id, "files", len(paths))
	return nil
}
