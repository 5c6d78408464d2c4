package entity

import "docchat-client/internal/constant"

// Document is read-only reference data owned by the remote store.
type Document struct {
	Id       string
	Metadata map[string]interface{}
}

// Filename returns the metadata filename, if one is recorded.
func (d Document) Filename() (string, bool) {
	if d.Metadata == nil {
		return "", false
	}
	name, ok := d.Metadata[constant.DocumentMetadataName].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
