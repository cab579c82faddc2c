package repository

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"portalapi/internal/model"
	"portalapi/internal/store"
)

// DocumentRepository keeps the document in memory after the first load and
// writes the whole document back through the store on every mutation. The
// cached copy is replaced only after a successful save, so a failed save
// leaves the previous state visible.
type DocumentRepository struct {
	mu     sync.Mutex
	store  store.Store
	doc    model.Document
	ids    *model.IDGenerator
	now    func() time.Time
	tracer trace.Tracer
}

// Option customizes a DocumentRepository.
type Option func(*DocumentRepository)

// WithClock sets the time source used for ids and creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *DocumentRepository) {
		r.now = now
		r.ids = model.NewIDGenerator(now)
	}
}

// NewDocumentRepository creates a repository over s.
func NewDocumentRepository(s store.Store, opts ...Option) *DocumentRepository {
	r := &DocumentRepository{
		store:  s,
		now:    time.Now,
		ids:    model.NewIDGenerator(time.Now),
		tracer: otel.Tracer("portalapi/repository"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Repository = (*DocumentRepository)(nil)

func (r *DocumentRepository) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	return r.ListWhere(ctx, c, nil)
}

func (r *DocumentRepository) ListWhere(ctx context.Context, c model.Collection, pred func(model.Record) bool) (out []model.Record, err error) {
	ctx, span := r.start(ctx, "List", c)
	defer func() { finish(span, err) }()

	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	out = make([]model.Record, 0, len(r.doc[c]))
	for _, rec := range r.doc[c] {
		if pred == nil || pred(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *DocumentRepository) Get(ctx context.Context, c model.Collection, id int64) (rec model.Record, err error) {
	ctx, span := r.start(ctx, "Get", c)
	defer func() { finish(span, err) }()

	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	if _, found := r.doc.Find(c, id); found != nil {
		return found.Clone(), nil
	}
	return nil, notFound(c, id)
}

func (r *DocumentRepository) Create(ctx context.Context, c model.Collection, fields model.Record) (created model.Record, err error) {
	ctx, span := r.start(ctx, "Create", c)
	defer func() { finish(span, err) }()

	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}
	schema := model.SchemaFor(c)
	if err := schema.Validate(fields); err != nil {
		return nil, err
	}

	err = r.mutate(ctx, func(doc model.Document) error {
		rec, err := schema.Build(r.ids.Next(), fields, r.now())
		if err != nil {
			return err
		}
		if err := checkUnique(doc, schema, rec); err != nil {
			return err
		}
		if err := checkReferences(doc, schema, rec); err != nil {
			return err
		}
		doc[c] = append(doc[c], rec)
		created = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("portal.record_id", mustID(created)))
	return created, nil
}

func (r *DocumentRepository) Update(ctx context.Context, c model.Collection, id int64, fields model.Record) (updated model.Record, err error) {
	ctx, span := r.start(ctx, "Update", c)
	defer func() { finish(span, err) }()

	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}
	schema := model.SchemaFor(c)

	err = r.mutate(ctx, func(doc model.Document) error {
		_, rec := doc.Find(c, id)
		if rec == nil {
			return notFound(c, id)
		}
		if err := schema.Merge(rec, fields); err != nil {
			return err
		}
		if err := checkUnique(doc, schema, rec); err != nil {
			return err
		}
		if err := checkReferences(doc, schema, rec); err != nil {
			return err
		}
		updated = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, c model.Collection, id int64) (removed bool, err error) {
	ctx, span := r.start(ctx, "Delete", c)
	defer func() { finish(span, err) }()

	if !c.Valid() {
		return false, fmt.Errorf("%w: %q", model.ErrUnknownCollection, c)
	}

	err = r.mutate(ctx, func(doc model.Document) error {
		removed = DeleteCascade(doc, c, id)
		return nil
	})
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("portal.removed", removed))
	return removed, nil
}

func (r *DocumentRepository) Mutate(ctx context.Context, fn func(doc model.Document) error) (err error) {
	ctx, span := r.tracer.Start(ctx, "repository.Mutate")
	defer func() { finish(span, err) }()
	return r.mutate(ctx, fn)
}

// DeleteCascade removes the record of c with the given id from doc together
// with every record whose cascading foreign key points at a removed record.
// It reports whether the record itself existed.
func DeleteCascade(doc model.Document, c model.Collection, id int64) bool {
	idx, _ := doc.Find(c, id)
	if idx < 0 {
		return false
	}
	doc[c] = append(doc[c][:idx:idx], doc[c][idx+1:]...)
	removeDependents(doc, c, id)
	return true
}

func removeDependents(doc model.Document, parent model.Collection, id int64) {
	for _, dep := range model.Dependents(parent) {
		var orphans []int64
		kept := make([]model.Record, 0, len(doc[dep.Collection]))
		for _, rec := range doc[dep.Collection] {
			if ref, ok := model.NormalizeID(rec[dep.Field]); ok && ref == id {
				if childID, ok := rec.ID(); ok {
					orphans = append(orphans, childID)
				}
				continue
			}
			kept = append(kept, rec)
		}
		doc[dep.Collection] = kept
		for _, childID := range orphans {
			removeDependents(doc, dep.Collection, childID)
		}
	}
}

// mutate applies fn to a copy of the cached document and swaps it in once
// the store has accepted it. Callers must not hold r.mu.
func (r *DocumentRepository) mutate(ctx context.Context, fn func(doc model.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.load(ctx); err != nil {
		return err
	}

	work := r.doc.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := r.store.Save(ctx, work); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	r.doc = work
	return nil
}

// load populates the cache on first use. Callers must hold r.mu.
func (r *DocumentRepository) load(ctx context.Context) error {
	if r.doc != nil {
		return nil
	}
	doc, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	r.doc = doc.Normalize()
	r.ids.Observe(r.doc.MaxID())
	return nil
}

func (r *DocumentRepository) start(ctx context.Context, op string, c model.Collection) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "repository."+op,
		trace.WithAttributes(attribute.String("portal.collection", string(c))))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func checkUnique(doc model.Document, schema model.Schema, rec model.Record) error {
	id, _ := rec.ID()
	for _, field := range schema.Unique {
		for _, other := range doc[schema.Collection] {
			if otherID, _ := other.ID(); otherID == id {
				continue
			}
			if sameValue(other[field], rec[field]) {
				return fmt.Errorf("%w: %s %q is taken", model.ErrConflict, field, fmt.Sprint(rec[field]))
			}
		}
	}
	return nil
}

func checkReferences(doc model.Document, schema model.Schema, rec model.Record) error {
	for _, fk := range schema.ForeignKeys {
		ref, ok := model.NormalizeID(rec[fk.Field])
		if !ok {
			return fmt.Errorf("%w: %s must be numeric", model.ErrValidation, fk.Field)
		}
		if _, parent := doc.Find(fk.References, ref); parent == nil {
			return fmt.Errorf("%w: %s %d does not match any %s", model.ErrValidation, fk.Field, ref, fk.References)
		}
	}
	return nil
}

func sameValue(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

func notFound(c model.Collection, id int64) error {
	return fmt.Errorf("%w: %s %d", model.ErrNotFound, c, id)
}

func mustID(rec model.Record) int64 {
	id, _ := rec.ID()
	return id
}
