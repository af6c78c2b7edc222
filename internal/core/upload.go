package core

import "strings"

// UploadRequest is a bill file awaiting analysis by the backend.
type UploadRequest struct {
	FileName string
	Content  []byte
	Category Category
}

// Validate runs the checks that must pass before any network call is made.
func (u UploadRequest) Validate() error {
	if strings.TrimSpace(u.FileName) == "" || len(u.Content) == 0 {
		return ErrMissingFile
	}
	if strings.TrimSpace(string(u.Category)) == "" {
		return ErrMissingCategory
	}
	if !u.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}
