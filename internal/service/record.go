package service

import (
	"context"
	"errors"
	"fmt"

	"portalapi/internal/attachment"
	"portalapi/internal/logging"
	"portalapi/internal/model"
	"portalapi/internal/repository"
)

var (
	// ErrNoAttachment is returned when clearing an attachment that is not set.
	ErrNoAttachment = fmt.Errorf("%w: no file attached", model.ErrValidation)
	// ErrFileRequired is returned when an upload route receives no file.
	ErrFileRequired = fmt.Errorf("%w: file is required", model.ErrValidation)
)

// RecordService defines the use cases over portal collections. Every record
// it returns has hidden fields removed.
type RecordService interface {
	List(ctx context.Context, c model.Collection) ([]model.Record, error)
	Get(ctx context.Context, c model.Collection, id int64) (model.Record, error)

	// Create stores upload first (when given) and then the record pointing at
	// it. The file is removed again if the record cannot be saved. An empty
	// upload is treated as none.
	Create(ctx context.Context, c model.Collection, fields model.Record, upload *attachment.Upload) (model.Record, error)

	// Update merges fields into the record. With a non-empty upload, the new
	// file replaces the record's previous attachment.
	Update(ctx context.Context, c model.Collection, id int64, fields model.Record, upload *attachment.Upload) (model.Record, error)

	// Delete removes the record, its cascading dependents and its attached
	// file. It returns model.ErrNotFound when no record matched.
	Delete(ctx context.Context, c model.Collection, id int64) error

	// Attach replaces the record's attachment with upload.
	Attach(ctx context.Context, c model.Collection, id int64, upload *attachment.Upload) (model.Record, error)

	// Detach deletes the record's attachment and sets the field to null.
	Detach(ctx context.Context, c model.Collection, id int64) (model.Record, error)

	// QuestionsForExam lists the questions whose exam_id equals examID.
	QuestionsForExam(ctx context.Context, examID int64) ([]model.Record, error)

	// EventsOn lists calendar events whose date equals date exactly.
	EventsOn(ctx context.Context, date string) ([]model.Record, error)
}

type recordService struct {
	repo        repository.Repository
	attachments *attachment.Manager
	log         logging.Logger
}

// NewRecordService constructs a RecordService.
func NewRecordService(repo repository.Repository, attachments *attachment.Manager, log logging.Logger) RecordService {
	return &recordService{repo: repo, attachments: attachments, log: log.With("component", "records")}
}

func (s *recordService) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	recs, err := s.repo.List(ctx, c)
	if err != nil {
		return nil, err
	}
	return publicAll(c, recs), nil
}

func (s *recordService) Get(ctx context.Context, c model.Collection, id int64) (model.Record, error) {
	rec, err := s.repo.Get(ctx, c, id)
	if err != nil {
		return nil, err
	}
	return model.SchemaFor(c).Public(rec), nil
}

func (s *recordService) Create(ctx context.Context, c model.Collection, fields model.Record, upload *attachment.Upload) (model.Record, error) {
	schema := model.SchemaFor(c)
	fields = fields.Clone()
	if fields == nil {
		fields = model.Record{}
	}
	// Attachment fields only ever hold names this service generated.
	if schema.Attachment != "" {
		delete(fields, schema.Attachment)
	}
	if err := schema.Validate(fields); err != nil {
		return nil, err
	}

	var stored string
	if hasContent(upload) && schema.Attachment != "" {
		name, err := s.attachments.Store(ctx, *upload)
		if err != nil {
			return nil, err
		}
		stored = name
		fields[schema.Attachment] = name
	}

	rec, err := s.repo.Create(ctx, c, fields)
	if err != nil {
		if stored != "" {
			s.attachments.Discard(ctx, stored)
		}
		return nil, err
	}
	return schema.Public(rec), nil
}

func (s *recordService) Update(ctx context.Context, c model.Collection, id int64, fields model.Record, upload *attachment.Upload) (model.Record, error) {
	schema := model.SchemaFor(c)
	if !hasContent(upload) || schema.Attachment == "" {
		rec, err := s.repo.Update(ctx, c, id, fields)
		if err != nil {
			return nil, err
		}
		return schema.Public(rec), nil
	}
	return s.withUpload(ctx, c, id, upload, func(rec model.Record) error {
		return schema.Merge(rec, fields)
	})
}

func (s *recordService) Attach(ctx context.Context, c model.Collection, id int64, upload *attachment.Upload) (model.Record, error) {
	if model.SchemaFor(c).Attachment == "" {
		return nil, fmt.Errorf("%w: %s records take no attachments", model.ErrValidation, c)
	}
	if upload == nil {
		return nil, ErrFileRequired
	}
	return s.withUpload(ctx, c, id, upload, nil)
}

// withUpload stores upload, then applies merge and points the record at the
// new file in one repository mutation. A failed mutation removes the new file
// and keeps the old one; the old file goes only once the record is saved.
func (s *recordService) withUpload(ctx context.Context, c model.Collection, id int64, upload *attachment.Upload, merge func(model.Record) error) (model.Record, error) {
	schema := model.SchemaFor(c)

	// Fail fast on unknown ids before writing any bytes.
	if _, err := s.repo.Get(ctx, c, id); err != nil {
		return nil, err
	}

	name, err := s.attachments.Store(ctx, *upload)
	if err != nil {
		if errors.Is(err, attachment.ErrEmptyUpload) {
			return nil, ErrFileRequired
		}
		return nil, err
	}

	var (
		updated  model.Record
		previous string
	)
	err = s.repo.Mutate(ctx, func(doc model.Document) error {
		_, rec := doc.Find(c, id)
		if rec == nil {
			return fmt.Errorf("%w: %s %d", model.ErrNotFound, c, id)
		}
		if merge != nil {
			if err := merge(rec); err != nil {
				return err
			}
		}
		previous = s.attachments.Replace(rec, schema.Attachment, name)
		updated = rec.Clone()
		return nil
	})
	if err != nil {
		s.attachments.Discard(ctx, name)
		return nil, err
	}
	s.attachments.Discard(ctx, previous)
	return schema.Public(updated), nil
}

func (s *recordService) Detach(ctx context.Context, c model.Collection, id int64) (model.Record, error) {
	schema := model.SchemaFor(c)
	if schema.Attachment == "" {
		return nil, fmt.Errorf("%w: %s records take no attachments", model.ErrValidation, c)
	}

	var (
		updated model.Record
		file    string
	)
	err := s.repo.Mutate(ctx, func(doc model.Document) error {
		_, rec := doc.Find(c, id)
		if rec == nil {
			return fmt.Errorf("%w: %s %d", model.ErrNotFound, c, id)
		}
		old, ok := s.attachments.Clear(rec, schema.Attachment)
		if !ok {
			return ErrNoAttachment
		}
		file = old
		updated = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.attachments.Discard(ctx, file)
	return schema.Public(updated), nil
}

func (s *recordService) Delete(ctx context.Context, c model.Collection, id int64) error {
	schema := model.SchemaFor(c)
	if schema.Attachment == "" {
		removed, err := s.repo.Delete(ctx, c, id)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s %d", model.ErrNotFound, c, id)
		}
		return nil
	}

	var (
		removed bool
		file    string
	)
	err := s.repo.Mutate(ctx, func(doc model.Document) error {
		if _, rec := doc.Find(c, id); rec != nil {
			file = rec.String(schema.Attachment)
		}
		removed = repository.DeleteCascade(doc, c, id)
		return nil
	})
	if err != nil {
		return err
	}
	// The reference is gone from the saved document, so the file can go.
	s.attachments.Discard(ctx, file)
	if !removed {
		return fmt.Errorf("%w: %s %d", model.ErrNotFound, c, id)
	}
	return nil
}

func (s *recordService) QuestionsForExam(ctx context.Context, examID int64) ([]model.Record, error) {
	return s.repo.ListWhere(ctx, model.Questions, func(r model.Record) bool {
		ref, ok := model.NormalizeID(r["exam_id"])
		return ok && ref == examID
	})
}

func (s *recordService) EventsOn(ctx context.Context, date string) ([]model.Record, error) {
	return s.repo.ListWhere(ctx, model.Calendar, func(r model.Record) bool {
		return r.String("date") == date
	})
}

// hasContent reports whether an optional upload carries a file. Forms may
// send an empty file part for an optional attachment; that counts as none.
func hasContent(up *attachment.Upload) bool {
	return up != nil && up.Reader != nil && up.Size != 0
}

func publicAll(c model.Collection, recs []model.Record) []model.Record {
	schema := model.SchemaFor(c)
	if len(schema.Hidden) == 0 {
		return recs
	}
	out := make([]model.Record, len(recs))
	for i, rec := range recs {
		out[i] = schema.Public(rec)
	}
	return out
}
