package export

import (
	"errors"
	"fmt"
)

// Remediation is appended to raster failures.
const Remediation = "If the diagram contains images, embed them as base64 data URIs " +
	"instead of linking to other sites; external resources cannot be loaded while rasterizing."

var (
	// ErrNoDocument is returned for a request without a document.
	ErrNoDocument = errors.New("no diagram to export")
	// ErrCanvasTooLarge is returned when the scaled canvas exceeds the pixel limit.
	ErrCanvasTooLarge = errors.New("canvas exceeds the maximum pixel count")

	errEmptyCanvas = errors.New("canvas is empty")
)

// DimensionUnresolvedError means no positive finite size could be found for
// the diagram.
type DimensionUnresolvedError struct {
	Reason string
}

func (e *DimensionUnresolvedError) Error() string {
	return "cannot determine original SVG size: " + e.Reason
}

// ImageDecodeError wraps a failure to load the serialized diagram into an
// image.
type ImageDecodeError struct {
	Err error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("failed to load SVG into an image: %v. %s", e.Err, Remediation)
}

func (e *ImageDecodeError) Unwrap() error { return e.Err }

// EncodeError wraps a failure to draw or encode the canvas.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to export PNG: %v. %s", e.Err, Remediation)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// ExternalResourceError names a reference the decoder refused to load.
type ExternalResourceError struct {
	Resource string
}

func (e *ExternalResourceError) Error() string {
	return fmt.Sprintf("SVG references external resource %q", e.Resource)
}
