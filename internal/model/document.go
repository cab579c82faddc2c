package model

import (
	"fmt"
)

// Collection names one of the fixed top-level keys of the persisted document.
type Collection string

const (
	Users       Collection = "users"
	Assignments Collection = "assignments"
	Schedules   Collection = "schedules"
	Exams       Collection = "exams"
	Questions   Collection = "questions"
	Courses     Collection = "courses"
	Forum       Collection = "forum"
	Calendar    Collection = "calendar"
)

// Collections lists every collection in the order they are created on a fresh document.
var Collections = []Collection{Users, Assignments, Schedules, Exams, Questions, Courses, Forum, Calendar}

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCollection converts a raw name into a Collection.
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Document is the whole persisted state: every collection mapped to its
// records in insertion order.
type Document map[Collection][]Record

// NewDocument returns a document with every collection present and empty.
func NewDocument() Document {
	doc := make(Document, len(Collections))
	for _, c := range Collections {
		doc[c] = []Record{}
	}
	return doc
}

// Normalize backfills missing or null collections with empty sequences so
// that documents written by older versions stay readable.
func (d Document) Normalize() Document {
	if d == nil {
		return NewDocument()
	}
	for _, c := range Collections {
		if d[c] == nil {
			d[c] = []Record{}
		}
	}
	return d
}

// Clone deep-copies the document so that mutations on the copy never leak
// into the original.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for c, records := range d {
		cp := make([]Record, len(records))
		for i, r := range records {
			cp[i] = r.Clone()
		}
		out[c] = cp
	}
	return out
}

// Find returns the index and record with the given id, or -1 and nil.
func (d Document) Find(c Collection, id int64) (int, Record) {
	for i, r := range d[c] {
		if rid, ok := r.ID(); ok && rid == id {
			return i, r
		}
	}
	return -1, nil
}

// MaxID returns the largest record id present in any collection.
func (d Document) MaxID() int64 {
	var max int64
	for _, records := range d {
		for _, r := range records {
			if id, ok := r.ID(); ok && id > max {
				max = id
			}
		}
	}
	return max
}
