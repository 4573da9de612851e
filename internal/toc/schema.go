package toc

import (
	"errors"

	"github.com/jonathan/posh-docset/internal/schemas"
)

func validateDocument(data []byte) error {
	err := schemas.TocDocument.Validate(data)
	if err == nil {
		return nil
	}

	var loadErr *schemas.SchemaLoadError
	if errors.As(err, &loadErr) {
		return &ParseError{Message: "invalid JSON", Cause: err}
	}
	return &ParseError{Message: "unexpected document shape", Cause: err}
}
