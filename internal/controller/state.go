package controller

import (
	"strings"

	"github.com/example/plantdoc/internal/classifier"
	"github.com/example/plantdoc/internal/diagnosis"
)

// Page identifies which of the two views is active.
type Page string

const (
	PageUpload  Page = "upload"
	PageResults Page = "results"
)

// FailureMessage is the only error text a user ever sees for a failed submission.
const FailureMessage = "Failed to analyze image. Make sure the backend server is running."

// ImageFile is a user-selected image as received from the picker or a drop.
// ContentType is the type declared by the browser and may be empty.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// IsImage reports whether the declared type is an image type.
func (f *ImageFile) IsImage() bool {
	return f != nil && strings.HasPrefix(f.ContentType, "image/")
}

func (f *ImageFile) classifierImage() classifier.Image {
	return classifier.Image{Filename: f.Name, ContentType: f.ContentType, Data: f.Data}
}

// UploadState is everything the views render. Empty strings stand for
// absent values. Result is only set while Page is PageResults.
type UploadState struct {
	Page         Page
	SelectedFile *ImageFile
	PreviewURI   string
	IsLoading    bool
	Result       *diagnosis.Result
	ErrorMessage string
}

// InitialState returns the state a new session starts from.
func InitialState() UploadState {
	return UploadState{Page: PageUpload}
}

// CanSubmit reports whether the submit action is enabled.
func (s UploadState) CanSubmit() bool {
	return s.SelectedFile != nil && !s.IsLoading
}
