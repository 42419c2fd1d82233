package api

import (
	"encoding/json/v2"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stacksapp/stacks-server/internal/errors"
	"github.com/stacksapp/stacks-server/internal/query"
	"github.com/stacksapp/stacks-server/internal/store"
)

// APIError is the wire shape for every error response. Validation
// failures carry a field-keyed errors object; the search endpoint
// additionally carries a usage example.
type APIError struct {
	status int

	Code    string                 `json:"code,omitempty" doc:"Machine-readable error code"`
	Message string                 `json:"message" doc:"Human-readable error message"`
	Errors  map[string][]string    `json:"errors,omitempty" doc:"Field-keyed validation messages"`
	Example string                 `json:"example,omitempty" doc:"Example of correct usage"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.status }

// WithExample attaches a usage example to the error body.
func WithExample(err error, example string) error {
	if apiErr, ok := err.(*APIError); ok {
		apiErr.Example = example
		return apiErr
	}
	converted := convertError(err)
	converted.Example = example
	return converted
}

// RegisterErrorHandler installs a huma error constructor that maps
// domain and store errors to the API error shape. Huma's own request
// validation failures (422) are remapped to 400 with the field errors
// keyed the same way as service-level validation.
func RegisterErrorHandler() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		// A handler returned a domain or store error wrapped by huma.
		for _, err := range errs {
			if converted := tryConvert(err); converted != nil {
				return converted
			}
		}

		apiErr := &APIError{status: status, Message: msg}

		if status == http.StatusUnprocessableEntity {
			apiErr.status = http.StatusBadRequest
			apiErr.Code = string(errors.CodeValidation)
			apiErr.Message = "Validation failed"
			apiErr.Errors = fieldErrors(errs)
			return apiErr
		}

		apiErr.Code = codeForStatus(status)
		return apiErr
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(errors.CodeNotFound)
	case http.StatusUnauthorized:
		return string(errors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(errors.CodeForbidden)
	case http.StatusConflict:
		return string(errors.CodeAlreadyExists)
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusBadRequest:
		return string(errors.CodeValidation)
	}
	if status >= 500 {
		return string(errors.CodeInternal)
	}
	return ""
}

// tryConvert maps known error types to an APIError, or returns nil.
func tryConvert(err error) *APIError {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		return &APIError{
			status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Errors:  domainErr.Fields,
		}
	}

	var queryErrs query.FieldErrors
	if errors.As(err, &queryErrs) {
		return &APIError{
			status:  http.StatusBadRequest,
			Code:    string(errors.CodeValidation),
			Message: "Validation failed",
			Errors:  queryErrs,
		}
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return &APIError{
			status:  storeErr.HTTPCode(),
			Code:    codeForStatus(storeErr.HTTPCode()),
			Message: storeErr.Message,
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func convertError(err error) *APIError {
	if converted := tryConvert(err); converted != nil {
		return converted
	}
	return &APIError{
		status:  http.StatusInternalServerError,
		Code:    string(errors.CodeInternal),
		Message: err.Error(),
	}
}

// writeErrorJSON writes an error response from a plain chi handler,
// outside of huma's pipeline, using the same wire shape.
func writeErrorJSON(w http.ResponseWriter, err error) {
	apiErr := convertError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.GetStatus())
	json.MarshalWrite(w, apiErr)
}

// fieldErrors flattens huma validation details into the field-keyed
// map. Locations come in as "body.field" or "path.id"; the prefix is
// stripped so the keys match the request's own field names.
func fieldErrors(errs []error) map[string][]string {
	fields := make(map[string][]string)
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) && detail.Location != "" {
			key := detail.Location
			if i := strings.IndexByte(key, '.'); i >= 0 {
				key = key[i+1:]
			}
			fields[key] = append(fields[key], detail.Message)
			continue
		}
		fields["request"] = append(fields["request"], err.Error())
	}
	return fields
}
