package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warp/contract-admin/contract"
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates its struct tags.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, r, http.StatusBadRequest, "Request body is empty", nil)
			return false
		}
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
				Error:      "Request validation failed",
				Code:       "invalid_request",
				Violations: requestViolations(ve),
			})
			return false
		}
		writeError(w, r, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func requestViolations(errs validator.ValidationErrors) []contract.Violation {
	out := make([]contract.Violation, 0, len(errs))
	for _, e := range errs {
		field := e.Namespace()
		// Drop the root struct name.
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, contract.Violation{
			Field:   field,
			Code:    validationCode(e.Tag()),
			Message: validationMessage(e),
		})
	}
	return out
}

func validationCode(tag string) string {
	if tag == "required" {
		return contract.CodeRequired
	}
	return contract.CodeInvalid
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("Must contain at least %s entries", e.Param())
		}
		return "Must be at least " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
