package model

import (
	"fmt"
	"strings"
	"time"
)

// CreatedAtLayout matches the millisecond ISO-8601 form clients already parse.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// ForeignKey declares that Field holds the id of a record in References.
// When Cascade is set, deleting the referenced record deletes this one too.
type ForeignKey struct {
	Field      string
	References Collection
	Cascade    bool
}

// Dependent is a collection/field pair that points at a parent collection.
type Dependent struct {
	Collection Collection
	Field      string
}

// Schema describes the fields a collection accepts and the constraints the
// repository enforces on it.
type Schema struct {
	Collection Collection
	// Required fields must be present and truthy on create.
	Required []string
	// Optional fields are copied on create when present.
	Optional []string
	// Updatable fields may be overwritten by a partial update.
	Updatable []string
	// Unique fields must not repeat across the collection (exact match).
	Unique []string
	// Defaults fill optional fields that were absent or falsy on create.
	Defaults map[string]any
	// Numeric fields are coerced to int64 on create and update.
	Numeric []string
	// CreatedAt, when set, names a field stamped with the creation time.
	CreatedAt string
	// Attachment, when set, names the field holding a stored file name.
	Attachment string
	// Hidden fields never leave the service layer.
	Hidden      []string
	ForeignKeys []ForeignKey
}

var schemas = map[Collection]Schema{
	Users: {
		Collection: Users,
		Required:   []string{"username", "password"},
		Updatable:  []string{"firstName", "lastName", "email"},
		Unique:     []string{"username"},
		Attachment: "photoPath",
		Hidden:     []string{"password"},
	},
	Assignments: {
		Collection: Assignments,
		Required:   []string{"title", "course", "deadline"},
		Optional:   []string{"image"},
		Updatable:  []string{"title", "course", "deadline"},
		Defaults:   map[string]any{"image": nil},
		Attachment: "image",
	},
	Schedules: {
		Collection: Schedules,
		Required:   []string{"title", "date", "time"},
		Updatable:  []string{"title", "date", "time"},
	},
	Exams: {
		Collection: Exams,
		Required:   []string{"title", "course", "date", "time"},
		Updatable:  []string{"title", "course", "date", "time"},
	},
	Questions: {
		Collection: Questions,
		Required:   []string{"exam_id", "question"},
		Updatable:  []string{"question"},
		Numeric:    []string{"exam_id"},
		ForeignKeys: []ForeignKey{
			{Field: "exam_id", References: Exams, Cascade: true},
		},
	},
	Courses: {
		Collection: Courses,
		Required:   []string{"name", "time", "description", "instructor"},
		Updatable:  []string{"name", "time", "description", "instructor"},
	},
	Forum: {
		Collection: Forum,
		Required:   []string{"content", "user"},
		Updatable:  []string{"content", "user"},
		CreatedAt:  "createdAt",
	},
	Calendar: {
		Collection: Calendar,
		Required:   []string{"date", "title", "user"},
		Optional:   []string{"description"},
		Updatable:  []string{"date", "title", "description", "user"},
		Defaults:   map[string]any{"description": ""},
	},
}

// SchemaFor returns the schema registered for c. Unknown collections get an
// empty schema that accepts nothing.
func SchemaFor(c Collection) Schema {
	if s, ok := schemas[c]; ok {
		return s
	}
	return Schema{Collection: c}
}

// Dependents lists every collection field that cascades from parent.
func Dependents(parent Collection) []Dependent {
	var out []Dependent
	for _, c := range Collections {
		for _, fk := range schemas[c].ForeignKeys {
			if fk.References == parent && fk.Cascade {
				out = append(out, Dependent{Collection: c, Field: fk.Field})
			}
		}
	}
	return out
}

// Validate checks that every required field is present and truthy.
func (s Schema) Validate(fields Record) error {
	var missing []string
	for _, f := range s.Required {
		if !Truthy(fields[f]) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Build assembles a new record from the accepted fields. It does not check
// uniqueness or foreign keys; the repository does that against the document.
func (s Schema) Build(id int64, fields Record, now time.Time) (Record, error) {
	if err := s.Validate(fields); err != nil {
		return nil, err
	}
	rec := Record{"id": id}
	for _, f := range s.Required {
		rec[f] = fields[f]
	}
	for _, f := range s.Optional {
		if v, ok := fields[f]; ok {
			rec[f] = v
		}
	}
	for f, def := range s.Defaults {
		if !Truthy(rec[f]) {
			rec[f] = def
		}
	}
	if err := s.coerce(rec); err != nil {
		return nil, err
	}
	if s.CreatedAt != "" {
		rec[s.CreatedAt] = now.UTC().Format(CreatedAtLayout)
	}
	return rec, nil
}

// Merge overwrites updatable fields of rec with the truthy values in fields.
// Falsy or absent values leave the existing value untouched, so a field can
// never be cleared through an update.
func (s Schema) Merge(rec, fields Record) error {
	patch := Record{}
	for _, f := range s.Updatable {
		if v := fields[f]; Truthy(v) {
			patch[f] = v
		}
	}
	if err := s.coerce(patch); err != nil {
		return err
	}
	for f, v := range patch {
		rec[f] = v
	}
	return nil
}

// Public strips hidden fields from a copy of rec.
func (s Schema) Public(rec Record) Record {
	out := rec.Clone()
	for _, f := range s.Hidden {
		delete(out, f)
	}
	return out
}

func (s Schema) coerce(rec Record) error {
	for _, f := range s.Numeric {
		v, ok := rec[f]
		if !ok {
			continue
		}
		n, ok := NormalizeID(v)
		if !ok {
			return fmt.Errorf("%w: %s must be numeric", ErrValidation, f)
		}
		rec[f] = n
	}
	return nil
}
