package preflight

// CheckAPIKey requires a backend API key. The key itself is never printed.
func (c *Checker) CheckAPIKey(key string) CheckResult {
	result := CheckResult{Name: "api_key", Required: true}
	if key == "" {
		result.Status = StatusFail
		result.Message = "not configured"
		result.Details = "Set OPENAI_API_KEY or index.api_key in the config file"
		return result
	}
	result.Status = StatusPass
	result.Message = "configured"
	return result
}

// CheckAssistant warns when no assistant is configured; uploads still work
// but questions cannot be answered.
func (c *Checker) CheckAssistant(id string) CheckResult {
	result := CheckResult{Name: "assistant_id"}
	if id == "" {
		result.Status = StatusWarn
		result.Message = "not configured, questions will fail"
		result.Details = "Set OPENAI_ASSISTANT_ID or index.assistant_id"
		return result
	}
	result.Status = StatusPass
	result.Message = id
	return result
}
