package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their JSON names so messages line up with the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Issue is one failed rule on one field. Key is an English format string
// that doubles as the message catalog key.
type Issue struct {
	Field string
	Key   string
	Args  []any
}

// ValidationError collects every issue found on a request.
type ValidationError struct {
	Issues []Issue
}

// NewValidationError builds a ValidationError from hand-written issues,
// used for cross-field rules the struct tags cannot express.
func NewValidationError(issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}

// Add appends an issue.
func (e *ValidationError) Add(field, key string, args ...any) {
	e.Issues = append(e.Issues, Issue{Field: field, Key: key, Args: args})
}

// Empty reports whether no issue was recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Issues) == 0
}

func (e *ValidationError) Error() string {
	fields := e.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", name, fields[name]))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns English messages keyed by field name.
func (e *ValidationError) Fields() map[string]string {
	return e.Localized(language.English)
}

// Localized returns messages keyed by field name in the given language.
// When a field failed more than one rule the first one wins.
func (e *ValidationError) Localized(tag language.Tag) map[string]string {
	p := message.NewPrinter(tag)
	fields := make(map[string]string, len(e.Issues))
	for _, is := range e.Issues {
		if _, seen := fields[is.Field]; seen {
			continue
		}
		fields[is.Field] = p.Sprintf(is.Key, is.Args...)
	}
	return fields
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			ve := &ValidationError{}
			for _, fe := range validationErrors {
				key, args := keyForTag(fe)
				ve.Add(fe.Field(), key, args...)
			}
			return ve
		}
		return err
	}
	return nil
}

func keyForTag(fe validator.FieldError) (string, []any) {
	switch fe.Tag() {
	case "required":
		return MsgRequired, nil
	case "min":
		return MsgMin, []any{fe.Param()}
	case "max":
		return MsgMax, []any{fe.Param()}
	case "gte", "gt":
		return MsgGTE, []any{fe.Param()}
	case "lte", "lt":
		return MsgLTE, []any{fe.Param()}
	case "oneof":
		return MsgOneOf, []any{strings.ReplaceAll(fe.Param(), " ", ", ")}
	case "uuid":
		return MsgUUID, nil
	case "url":
		return MsgURL, nil
	default:
		return MsgRule, []any{fe.Tag()}
	}
}

// DecodeAndValidate decodes the JSON request body into dst and validates it.
func DecodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return Validate(dst)
}
