package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/edgard/personachat/internal/errors"
)

// Messages shown to the user when the backend rejects the key.
const (
	KeyNotFoundMessage   = "API Key Error: The selected key is invalid or not found. Please try selecting a different key in settings."
	KeyRestrictedMessage = "API Key Error: This website is not authorized to use this key. Please check your API key's 'Website restrictions' in the Google Cloud Console."
)

// IsCredentialError reports whether err means the key is missing, invalid
// or not allowed to call the backend.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperrors.ErrCredentialRequired) {
		return true
	}
	if code, ok := apiErrorCode(err); ok && isCredentialStatus(code) {
		return true
	}
	return credentialMessage(err.Error()) != ""
}

// CredentialMessage returns the user-facing text for a credential error.
func CredentialMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := credentialMessage(err.Error()); msg != "" {
		return msg
	}
	return KeyNotFoundMessage
}

func credentialMessage(s string) string {
	switch {
	case strings.Contains(s, "API_KEY_HTTP_REFERRER_BLOCKED"), strings.Contains(s, "PERMISSION_DENIED"):
		return KeyRestrictedMessage
	case strings.Contains(s, "Requested entity was not found"):
		return KeyNotFoundMessage
	}
	return ""
}

// apiErrorCode extracts the HTTP status of an SDK error. The SDK has returned
// APIError both by value and by pointer across releases.
func apiErrorCode(err error) (int, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return val.Code, true
	}
	return 0, false
}

func isCredentialStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// classify wraps err as a credential error when the backend rejected the key.
// status is an optional HTTP status for errors that did not come from the SDK.
func classify(op string, err error, status ...int) error {
	if err == nil {
		return nil
	}
	credential := IsCredentialError(err)
	for _, s := range status {
		credential = credential || isCredentialStatus(s)
	}
	if credential {
		return apperrors.NewCredentialError(op+" rejected the API key", err)
	}
	return fmt.Errorf("gemini %s failed: %w", op, err)
}
