package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/kalinanews/newsroom/auth"
)

// ErrorBody is the JSON envelope for every failed request
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string                    `json:"code"`
	Message string                    `json:"message"`
	Details map[string]any            `json:"details,omitempty"`
	Fields  goerrors.ValidationErrors `json:"fields,omitempty"`
}

// ErrorHandler renders go-errors values with their HTTP status and text
// code. Anything unrecognized is logged and reported as a 500 without
// internals.
func ErrorHandler(logger auth.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = auth.NamedLogger("api")
	}
	return func(c *fiber.Ctx, err error) error {
		status, body := toErrorBody(err)

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		default:
			logger.Debug("request rejected",
				"method", c.Method(),
				"path", c.Path(),
				"code", body.Error.Code,
				"details", print.MaybePrettyJSON(body.Error.Details),
			)
		}

		if status == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}
		return c.Status(status).JSON(body)
	}
}

func toErrorBody(err error) (int, ErrorBody) {
	var ae *goerrors.Error
	if goerrors.As(err, &ae) {
		status := ae.Code
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			return status, internalBody()
		}
		detail := ErrorDetail{Code: ae.TextCode, Message: ae.Message}
		// only validation details are safe to echo back
		if ae.Category == goerrors.CategoryValidation {
			if len(ae.Metadata) > 0 {
				detail.Details = ae.Metadata
			}
			detail.Fields = ae.AllValidationErrors()
		}
		return status, ErrorBody{Error: detail}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, ErrorBody{Error: ErrorDetail{
			Code:    fiberTextCode(fe.Code),
			Message: fe.Message,
		}}
	}

	return http.StatusInternalServerError, internalBody()
}

func internalBody() ErrorBody {
	return ErrorBody{Error: ErrorDetail{
		Code:    auth.TextCodeInternal,
		Message: "internal server error",
	}}
}

func fiberTextCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return auth.TextCodeNotFound
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "BAD_REQUEST"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	}
	if status >= http.StatusInternalServerError {
		return auth.TextCodeInternal
	}
	return http.StatusText(status)
}
