package mcpserver

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagecraft/internal/domain"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

func asValidation(err error) (*domain.ValidationError, bool) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// requireArg returns a required string argument.
func requireArg(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", &domain.ValidationError{Fields: []domain.FieldError{{Field: key, Reason: "required"}}}
	}
	return v, nil
}

// propsArg reads a props object. Agents may send it either as an object or
// as a JSON string.
func propsArg(req mcp.CallToolRequest, key string) (domain.Props, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: key, Reason: "required"}}}
	}
	switch v := raw.(type) {
	case map[string]any:
		return domain.Props(v), nil
	case string:
		var p domain.Props
		if err := parseJSON(v, &p); err != nil {
			return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: key, Reason: fmt.Sprintf("invalid JSON: %v", err)}}}
		}
		return p, nil
	default:
		return nil, &domain.ValidationError{Fields: []domain.FieldError{{Field: key, Reason: "must be an object"}}}
	}
}

// indexArg returns the "index" argument, or -1 when it is absent.
func indexArg(req mcp.CallToolRequest) int {
	if _, ok := req.GetArguments()["index"]; !ok {
		return -1
	}
	return req.GetInt("index", -1)
}
