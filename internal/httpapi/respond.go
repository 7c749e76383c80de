package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/edgard/personachat/internal/errors"
	"github.com/edgard/personachat/internal/gemini"
)

const maxBodySize = 1 << 20

// ActionSelectCredential tells the browser to open the credential dialog.
const ActionSelectCredential = "select_credential"

// apiResponse is the envelope of every JSON response.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Action  string `json:"action,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Status: "OK", Data: data})
}

// writeError writes an error envelope. data carries any partial result, e.g.
// the messages a failed turn still appended.
func writeError(w http.ResponseWriter, status int, err error, data any) {
	resp := apiResponse{
		Status:  "ERROR",
		Message: err.Error(),
		Code:    apperrors.Code(err),
		Data:    data,
	}
	if status == http.StatusPreconditionRequired {
		resp.Action = ActionSelectCredential
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps an application error to its HTTP status.
func statusFor(err error) int {
	if gemini.IsCredentialError(err) {
		return http.StatusPreconditionRequired
	}
	switch apperrors.Code(err) {
	case apperrors.CodeBusy:
		return http.StatusConflict
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeMedia, apperrors.CodePollFailed, apperrors.CodePollTimeout:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(w http.ResponseWriter, err error, data any) {
	writeError(w, statusFor(err), err, data)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("request body is empty", nil)
		}
		return apperrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err), nil)
	}
	return nil
}
