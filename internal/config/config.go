package config

// Load parses, validates and converts a dashboard file. Each step runs only
// when the previous one succeeded; the returned Result holds the errors of
// the step that failed.
func Load(path string) *Result {
	return finish(ParseFile(path))
}

// LoadString is Load for in-memory content. An empty format is sniffed.
func LoadString(content, format string) *Result {
	return finish(ParseString(content, format))
}

func finish(parsed *ParseResult) *Result {
	result := &Result{
		Data:        parsed.Data,
		ParseErrors: parsed.Errors,
		FilePath:    parsed.FilePath,
		Format:      parsed.Format,
	}
	if !parsed.IsValid() {
		return result
	}

	validation := ValidateConfig(parsed.Data)
	if !validation.Valid {
		result.ValidationErrors = validation.Errors
		return result
	}

	d, errs := ConvertToDashboard(parsed.Data)
	result.ValidationErrors = errs
	result.Dashboard = d
	return result
}
