package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ankek/mermaid-studio/internal/editor"
	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/mermaid"
)

// NoGraphicMessage is shown when an export is requested before a render.
const NoGraphicMessage = "No graphic to export. Render a preview first."

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, maxBytes int64, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(target); err != nil {
		var syntaxErr *json.SyntaxError
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &syntaxErr):
			writeErr(w, http.StatusBadRequest, "BAD_JSON", "request body must be valid JSON")
		case errors.As(err, &maxBytesErr):
			writeErr(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds max size")
		case strings.Contains(err.Error(), "unknown field"):
			writeErr(w, http.StatusBadRequest, "BAD_JSON", "request contains unknown fields")
		default:
			writeErr(w, http.StatusBadRequest, "BAD_JSON", "request body must be valid JSON")
		}
		return err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "BAD_JSON", "request body must contain exactly one JSON object")
		return errors.New("trailing data after JSON object")
	}
	return nil
}

// writeMappedErr translates editor, render and export failures into HTTP
// errors.
func writeMappedErr(w http.ResponseWriter, err error) {
	var (
		renderErr    *mermaid.RenderError
		dimensionErr *export.DimensionUnresolvedError
		decodeErr    *export.ImageDecodeError
		encodeErr    *export.EncodeError
	)
	switch {
	case errors.Is(err, editor.ErrSessionNotFound):
		writeErr(w, http.StatusNotFound, "SESSION_NOT_FOUND", "session could not be found or already closed")
	case errors.Is(err, editor.ErrSessionClosed):
		writeErr(w, http.StatusGone, "SESSION_CLOSED", "session has been closed")
	case errors.Is(err, editor.ErrNoGraphic):
		writeErr(w, http.StatusConflict, "NO_GRAPHIC", NoGraphicMessage)
	case errors.Is(err, editor.ErrExportInProgress):
		writeErr(w, http.StatusConflict, "EXPORT_IN_PROGRESS", "an export is already running for this session")
	case errors.Is(err, editor.ErrUnknownFont):
		writeErr(w, http.StatusBadRequest, "UNKNOWN_FONT", err.Error())
	case errors.As(err, &renderErr):
		writeErr(w, http.StatusUnprocessableEntity, "RENDER_FAILED", editor.RenderErrorPrefix+renderErr.Message)
	case errors.As(err, &dimensionErr):
		writeErr(w, http.StatusUnprocessableEntity, "DIMENSION_UNRESOLVED", dimensionErr.Error())
	case errors.As(err, &decodeErr):
		writeErr(w, http.StatusUnprocessableEntity, "IMAGE_DECODE_FAILED", decodeErr.Error())
	case errors.As(err, &encodeErr):
		writeErr(w, http.StatusUnprocessableEntity, "ENCODE_FAILED", encodeErr.Error())
	case errors.Is(err, export.ErrCanvasTooLarge):
		writeErr(w, http.StatusUnprocessableEntity, "CANVAS_TOO_LARGE", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeErr(w, http.StatusGatewayTimeout, "TIMEOUT", "operation timed out")
	default:
		writeErr(w, http.StatusInternalServerError, "INTERNAL_ERROR", "mermaid studio internal error")
	}
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: message, Status: strconv.Itoa(status)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
