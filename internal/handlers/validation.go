package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/BradenHooton/medalroll/internal/models"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies; a contact message is at most 1000 runes
const maxBodyBytes = 64 << 10

// Global validator instance (reused across all handlers)
var validate = validator.New()

// ValidateRequest validates a request struct and reports the first failing field
// as a *models.ValidationError
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return &models.ValidationError{
				Field:   jsonFieldName(ve[0]),
				Message: formatValidationError(ve[0]),
			}
		}
		return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}
	return nil
}

// decodeJSON reads a single JSON object from a size-limited body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &models.ValidationError{Field: "body", Message: "request body is required"}
		}
		return &models.ValidationError{Field: "body", Message: "malformed JSON"}
	}
	return nil
}

func jsonFieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "PersonID":
		return "person_id"
	case "Message":
		return "message"
	case "ChallengeToken":
		return "challenge_token"
	case "ChallengeAnswer":
		return "challenge_answer"
	}
	return fe.Field()
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a valid UUID"
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
