package domain

// EncodedImage is the transport-ready form of a staged image: a lossless
// base64 payload plus its declared media type. Instances are constructed
// fresh per submission and not retained after the request settles.
type EncodedImage struct {
	Base64Data string
	MimeType   string
}

// EditResult is the normalized outcome of one successful remote edit call.
// Exactly one of two shapes is produced: an image payload (ImageData or
// ImageURL set, MimeType set) with optional annotation text, or no image at
// all with non-empty Text explaining why the model declined.
type EditResult struct {
	ImageData string
	MimeType  string
	ImageURL  string
	Text      string
}

// HasImage reports whether the remote call produced a renderable image.
func (r *EditResult) HasImage() bool {
	return r != nil && (r.ImageData != "" || r.ImageURL != "")
}
