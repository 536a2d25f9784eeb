package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shjonescredence/master-shredder-cloudv3/internal/credential"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/provider"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/router"
	"github.com/shjonescredence/master-shredder-cloudv3/internal/translator"
)

// Machine-readable error codes.
const (
	codeInvalidRequest      = "INVALID_REQUEST"
	codeModelNotFound       = "MODEL_NOT_FOUND"
	codeInvalidAPIKey       = "INVALID_API_KEY"
	codeInsufficientQuota   = "INSUFFICIENT_QUOTA"
	codeUserTokensDisabled  = "USER_TOKENS_DISABLED"
	codeCredentialError     = "CREDENTIAL_ERROR"
	codeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	codeChatError           = "CHAT_ERROR"
	codeNotImplemented      = "NOT_IMPLEMENTED"
	codeNotFound            = "NOT_FOUND"
	codeInternal            = "INTERNAL_ERROR"
)

type requestError struct {
	Status  int
	Message string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

func writeError(c echo.Context, status int, message, code string) error {
	return c.JSON(status, translator.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr.Status, reqErr.Message, reqErr.Code)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := codeInvalidRequest
		switch {
		case he.Code == http.StatusNotFound:
			code = codeNotFound
		case he.Code >= http.StatusInternalServerError:
			code = codeInternal
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		_ = writeError(c, he.Code, msg, code)
		return
	}

	slog.Error("unhandled request error", "err", err)
	_ = writeError(c, http.StatusInternalServerError, "internal server error", codeInternal)
}

// toHTTPError maps a core error onto the HTTP status and code reported to callers.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, router.ErrEmptyMessage):
		return requestError{Status: http.StatusBadRequest, Message: "No message provided", Code: codeInvalidRequest}
	case errors.Is(err, credential.ErrInvalidFormat):
		return requestError{Status: http.StatusUnauthorized, Message: "Invalid API key format", Code: codeInvalidAPIKey}
	case errors.Is(err, credential.ErrUserCredentialsDisabled):
		return requestError{Status: http.StatusForbidden, Message: "User-supplied API keys are disabled", Code: codeUserTokensDisabled}
	case errors.Is(err, credential.ErrOperatorUnavailable), errors.Is(err, provider.ErrUnknownBackend):
		return requestError{Status: http.StatusInternalServerError, Message: "No usable API key is available", Code: codeCredentialError}
	}

	switch provider.KindOf(err) {
	case provider.KindInvalidCredential:
		return requestError{Status: http.StatusUnauthorized, Message: "Invalid API key provided", Code: codeInvalidAPIKey}
	case provider.KindInsufficientQuota:
		return requestError{Status: http.StatusPaymentRequired, Message: "Insufficient quota for the provided API key", Code: codeInsufficientQuota}
	case provider.KindModelNotFound:
		return requestError{Status: http.StatusBadRequest, Message: "Model not found or not available for this API key", Code: codeModelNotFound}
	case provider.KindTransient:
		return requestError{Status: http.StatusInternalServerError, Message: "Provider temporarily unavailable", Code: codeProviderUnavailable}
	}

	slog.Error("chat request failed", "reason", errorKind(err))
	return requestError{Status: http.StatusInternalServerError, Message: "Failed to generate response", Code: codeChatError}
}

// validationError maps a failed credential check for /settings/validate-token.
func validationError(err error) error {
	switch provider.KindOf(err) {
	case provider.KindInsufficientQuota:
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "API key is valid but has insufficient quota. Please check your account balance.",
			Code:    codeInsufficientQuota,
		}
	case provider.KindTransient:
		return requestError{
			Status:  http.StatusInternalServerError,
			Message: "Network error connecting to the provider. Please try again.",
			Code:    codeProviderUnavailable,
		}
	}
	return requestError{
		Status:  http.StatusUnauthorized,
		Message: "API key is invalid or has insufficient permissions",
		Code:    codeInvalidAPIKey,
	}
}

// errorKind names err's class without exposing its text, which may quote a credential.
func errorKind(err error) string {
	switch {
	case errors.Is(err, credential.ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, credential.ErrOperatorUnavailable):
		return "operator_unavailable"
	case errors.Is(err, credential.ErrUserCredentialsDisabled):
		return "user_credentials_disabled"
	}
	return provider.KindOf(err).String()
}
