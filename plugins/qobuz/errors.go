package qobuz

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vitiko98/mopidy-qobuz/backend/platform"
)

const platformName = "qobuz"

// Status taxonomy of the Qobuz API. Every *APIError unwraps to exactly one of these.
var (
	ErrBadRequest     = errors.New("qobuz: bad request")
	ErrAuthentication = errors.New("qobuz: authentication failed")
	ErrNotFound       = errors.New("qobuz: not found")
	ErrRemote         = errors.New("qobuz: unexpected status")

	// ErrInvalidAppID is returned by Login when Qobuz rejects the app id.
	ErrInvalidAppID = errors.New("qobuz: invalid app id")

	// ErrIneligible is returned when the account cannot create playlists.
	ErrIneligible = errors.New("qobuz: account not eligible")
)

// APIError is a non-200 reply from the Qobuz API.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
	kind     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qobuz: %s: status %d: %s", e.Endpoint, e.Status, e.Message)
}

// Unwrap exposes both the qobuz sentinel and the matching platform sentinel.
func (e *APIError) Unwrap() []error {
	errs := []error{e.kind}
	switch {
	case e.kind == ErrAuthentication:
		errs = append(errs, platform.ErrAuthRequired)
	case e.kind == ErrNotFound:
		errs = append(errs, platform.ErrNotFound)
	case e.Status == http.StatusTooManyRequests:
		errs = append(errs, platform.ErrRateLimited)
	case e.Status >= http.StatusInternalServerError:
		errs = append(errs, platform.ErrUnavailable)
	}
	return errs
}

func errorForStatus(endpoint string, status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}
	kind := ErrRemote
	switch status {
	case http.StatusBadRequest:
		kind = ErrBadRequest
	case http.StatusUnauthorized:
		kind = ErrAuthentication
	case http.StatusNotFound:
		kind = ErrNotFound
	}
	return &APIError{Endpoint: endpoint, Status: status, Message: replyMessage(body), kind: kind}
}

func replyMessage(body []byte) string {
	var reply struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &reply); err != nil || strings.TrimSpace(reply.Message) == "" {
		return "No message"
	}
	return reply.Message
}
