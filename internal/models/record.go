// Package models defines core data structures for media records, search
// criteria, results, and templates.
package models

import "time"

// MediaRecord is a single indexed media file with its metadata. Records are
// owned by the index: they are created or replaced whole on ingestion events
// and are immutable between updates.
type MediaRecord struct {
	ID             string            `json:"id"`
	FileType       string            `json:"file_type"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Tags           []string          `json:"tags,omitempty"`
	Keywords       []string          `json:"keywords,omitempty"`
	Category       string            `json:"category,omitempty"`
	Mood           string            `json:"mood,omitempty"`
	TechnicalAttrs map[string]string `json:"technical_attrs,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	ModifiedAt     time.Time         `json:"modified_at"`
	FileSizeBytes  int64             `json:"file_size_bytes"`
	Path           string            `json:"path"`
}

// Clone returns a deep copy of the record so snapshot readers never share
// mutable slices or maps with writers.
func (r *MediaRecord) Clone() *MediaRecord {
	cp := *r
	if r.Tags != nil {
		cp.Tags = append([]string(nil), r.Tags...)
	}
	if r.Keywords != nil {
		cp.Keywords = append([]string(nil), r.Keywords...)
	}
	if r.TechnicalAttrs != nil {
		cp.TechnicalAttrs = make(map[string]string, len(r.TechnicalAttrs))
		for k, v := range r.TechnicalAttrs {
			cp.TechnicalAttrs[k] = v
		}
	}
	return &cp
}
