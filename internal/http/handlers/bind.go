package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError is one per-field entry in a 400 response's details. Field
// names are the wire (json tag) names, not the Go names.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON binds the request body into out and answers the request itself
// on failure. Callers just return when it reports false.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", bindErrorDetails(err, out))
		return false
	}

	return true
}

func bindErrorDetails(err error, out interface{}) interface{} {
	root := structTypeOf(out)

	// binding-tag violations
	var verrs validator.ValidationErrors

	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))

		for _, fe := range verrs {
			rule := fe.Tag()
			param := fe.Param()

			fields = append(fields, FieldError{
				Field:   wireFieldName(root, fe),
				Rule:    rule,
				Param:   param,
				Message: ruleMessage(rule, param),
			})
		}

		return gin.H{"fields": fields}
	}

	var syntaxErr *json.SyntaxError

	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &typeErr) {
		field := wireFieldPath(root, strings.Split(strings.TrimSpace(typeErr.Field), "."))

		if field == "" {
			field = strings.TrimSpace(typeErr.Field)
		}

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
				},
			},
		}
	}

	return gin.H{"reason": err.Error()}
}

func structTypeOf(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

// wireFieldName resolves a validator error's struct namespace
// ("MarkRequest.Entries[0].StudentID") into the json-tag path.
func wireFieldName(root reflect.Type, fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if ns == "" {
		ns = fe.Namespace()
	}

	if ns == "" {
		return fe.Field()
	}

	parts := strings.Split(ns, ".")

	if root != nil && root.Name() != "" && len(parts) > 0 && parts[0] == root.Name() {
		parts = parts[1:]
	}

	if path := wireFieldPath(root, parts); path != "" {
		return path
	}

	return fe.Field()
}

func wireFieldPath(root reflect.Type, parts []string) string {
	current := root
	out := make([]string, 0, len(parts))

	for _, raw := range parts {
		if raw == "" {
			continue
		}

		name, index := splitIndexSuffix(raw)
		wire := name

		var next reflect.Type

		if current != nil {
			for current.Kind() == reflect.Pointer {
				current = current.Elem()
			}

			if current.Kind() == reflect.Struct {
				if sf, ok := current.FieldByName(name); ok {
					wire = jsonTagName(sf)
					next = sf.Type
				}
			}
		}

		out = append(out, wire+index)

		current = elementType(next)
	}

	return strings.Join(out, ".")
}

func splitIndexSuffix(part string) (string, string) {
	if i := strings.Index(part, "["); i != -1 {
		return part[:i], part[i:]
	}

	return part, ""
}

func jsonTagName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")

	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func elementType(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}

	return nil
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "datetime":
		return "must be formatted " + param
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
