package domain

import "time"

// DocRole describes how a document relates to the rest of the corpus.
type DocRole string

// Recognised document roles.
const (
	DocRoleStandalone  DocRole = "standalone"
	DocRoleOriginal    DocRole = "original"
	DocRoleTranslation DocRole = "translation"
	DocRoleExcerpt     DocRole = "excerpt"
	DocRoleUnknown     DocRole = "unknown"
)

// ValidDocRole reports whether role is one of the recognised values.
func ValidDocRole(role DocRole) bool {
	switch role {
	case DocRoleStandalone, DocRoleOriginal, DocRoleTranslation, DocRoleExcerpt, DocRoleUnknown:
		return true
	}
	return false
}

// Document represents one imported source file.
type Document struct {
	ID           int64          `json:"doc_id"`
	Title        string         `json:"title"`
	Language     string         `json:"language"`
	Role         DocRole        `json:"doc_role"`
	ResourceType string         `json:"resource_type,omitempty"`
	Metadata     map[string]any `json:"meta,omitempty"`
	SourcePath   string         `json:"source_path,omitempty"`
	SourceHash   string         `json:"source_hash,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// DocumentSummary is a listing row: the document plus its line-unit count.
type DocumentSummary struct {
	ID           int64   `json:"doc_id"`
	Title        string  `json:"title"`
	Language     string  `json:"language"`
	Role         DocRole `json:"doc_role"`
	ResourceType string  `json:"resource_type,omitempty"`
	UnitCount    int64   `json:"unit_count"`
}

// DocumentUpdate carries the mutable metadata fields of a document.
// Nil pointers leave the corresponding column untouched.
type DocumentUpdate struct {
	DocID        int64   `json:"doc_id"`
	Title        *string `json:"title,omitempty"`
	Language     *string `json:"language,omitempty"`
	Role         *string `json:"doc_role,omitempty"`
	ResourceType *string `json:"resource_type,omitempty"`
}

// IsEmpty reports whether the update carries no field changes.
func (u DocumentUpdate) IsEmpty() bool {
	return u.Title == nil && u.Language == nil && u.Role == nil && u.ResourceType == nil
}
