package tools

import (
	stderrors "errors"

	"github.com/casetutor/casetutor/pkg/errors"
)

// ErrorRecord describes a tool invocation failure. Every failed
// InvocationResult carries exactly one record.
type ErrorRecord struct {
	Kind     errors.Code   `json:"kind"`
	Message  string        `json:"message"`
	ToolName string        `json:"tool_name"`
	Details  errors.Fields `json:"details,omitempty"`
}

// InvocationResult is the uniform outcome of Engine.Execute. It is produced
// once per call and never mutated afterwards.
type InvocationResult struct {
	ToolName        string       `json:"tool_name"`
	Success         bool         `json:"success"`
	Cached          bool         `json:"cached"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
	Result          string       `json:"result,omitempty"`
	Error           *ErrorRecord `json:"error,omitempty"`
}

// failure normalizes err into a failed InvocationResult for the named tool.
func failure(name string, elapsedMs int64, err error) InvocationResult {
	rec := &ErrorRecord{
		Kind:     errors.CodeOf(err),
		Message:  err.Error(),
		ToolName: name,
	}
	var e *errors.Error
	if stderrors.As(err, &e) {
		rec.Message = e.Message()
		rec.Details = e.Fields()
	}
	return InvocationResult{
		ToolName:        name,
		Success:         false,
		ExecutionTimeMs: elapsedMs,
		Error:           rec,
	}
}

func success(name string, elapsedMs int64, result string) InvocationResult {
	return InvocationResult{
		ToolName:        name,
		Success:         true,
		ExecutionTimeMs: elapsedMs,
		Result:          result,
	}
}

func cachedResult(name, result string) InvocationResult {
	return InvocationResult{
		ToolName: name,
		Success:  true,
		Cached:   true,
		Result:   result,
	}
}
