package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const maxRequestBody = 1 << 20

var validate = newValidator()

// newValidator reports field errors under their JSON names so responses
// match the request body the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// decodeJSON reads and strictly decodes a request body, then runs struct
// validation on the result. A false return means a response was written.
func (r responder) decodeJSON(ctx context.Context, w http.ResponseWriter, body io.Reader, dst any) bool {
	decoder := json.NewDecoder(io.LimitReader(body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: errBadRequestBody.Error()})
		return false
	}

	if err := validate.StructCtx(ctx, dst); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "the submitted input is invalid",
				Errors:  fieldErrorMap(fieldErrors),
			})
			return false
		}
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Message: errBadRequestBody.Error()})
		return false
	}

	return true
}

func fieldErrorMap(fieldErrors validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		out[fe.Field()] = validationMessage(fe)
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}
