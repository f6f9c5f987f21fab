package upload

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// AllowedMimeTypes are the declared content types the gate accepts.
var AllowedMimeTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

const msgBadType = "Only JPEG, PNG, GIF, and WebP images are allowed"

// Validate checks the declared size and MIME type of an upload and returns
// human-readable messages; an empty slice means the file may be ingested.
func Validate(f File, maxBytes int64) []string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var errs []string
	if err := validation.Validate(f.Size,
		validation.Max(maxBytes).Error(sizeMessage(maxBytes)),
	); err != nil {
		errs = append(errs, err.Error())
	}

	allowed := make([]interface{}, len(AllowedMimeTypes))
	for i, m := range AllowedMimeTypes {
		allowed[i] = m
	}
	if err := validation.Validate(f.MimeType,
		validation.Required.Error(msgBadType),
		validation.In(allowed...).Error(msgBadType),
	); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

func sizeMessage(maxBytes int64) string {
	const mb = 1024 * 1024
	if maxBytes%mb == 0 {
		return fmt.Sprintf("File size must be less than %dMB", maxBytes/mb)
	}
	return fmt.Sprintf("File size must be less than %d bytes", maxBytes)
}
