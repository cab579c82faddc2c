package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"

	"portalapi/internal/model"
)

// Decode parses a persisted document. Comments and trailing commas left by
// hand edits are tolerated. Numbers are kept as json.Number so that large
// identifiers survive without float rounding.
func Decode(data []byte) (model.Document, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.UseNumber()

	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return doc.Normalize(), nil
}

// Encode renders the document as indented JSON.
func Encode(doc model.Document) ([]byte, error) {
	return json.MarshalIndent(doc.Normalize(), "", "  ")
}
