package models

// StringProperty is a JSON-schema string property.
func StringProperty(description string) map[string]any {
	property := map[string]any{"type": "string"}
	if description != "" {
		property["description"] = description
	}
	return property
}

// StringArrayProperty is a JSON-schema array-of-strings property.
func StringArrayProperty(description string) map[string]any {
	property := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	if description != "" {
		property["description"] = description
	}
	return property
}

// ObjectSchema builds an object schema; every name in required must be a key of properties.
func ObjectSchema(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
