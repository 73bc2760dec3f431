package config

// Connector types whose configs carry credentials that must be redacted
// before a config read-out is sent upstream.
const (
	typeCncCloud = "CncCloud"
	typeHTTP     = "Http"
)

// SanitizeEntry returns a copy of the entry with known credential fields
// blanked. Unknown types pass through unchanged (still as a copy).
func SanitizeEntry(e Entry) Entry {
	out := CloneEntry(e)
	if out.Config == nil {
		return out
	}

	switch out.Type {
	case typeCncCloud:
		out.Config["password"] = ""
	case typeHTTP:
		if headers, ok := out.Config["headers"].(map[string]any); ok {
			headers["authorization"] = ""
		}
	}
	return out
}

// SanitizeSection applies SanitizeEntry to every entry of a section.
func SanitizeSection(section map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(section))
	for id, e := range section {
		out[id] = SanitizeEntry(e)
	}
	return out
}
