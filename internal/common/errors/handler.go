package errors

import (
	"net/http"
)

// Logger is the subset of logger.Logger the error helpers need.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// HTTPStatus maps an error code to the status used by the HTTP layer.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidRequest, ErrCodeInvalidToolArguments, ErrCodeUnknownTemplate:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeConfiguration, ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToolPayload serializes a tool failure as the structured object handed back
// to the reasoning loop. context keys are copied next to the error fields.
func ToolPayload(err error, context map[string]interface{}) map[string]interface{} {
	stdErr := AsStandard(err)
	payload := make(map[string]interface{}, len(context)+2)
	for k, v := range context {
		payload[k] = v
	}
	payload["error"] = stdErr.Error()
	payload["code"] = string(stdErr.Code)
	return payload
}

// LogError logs err with its code and category.
func LogError(log Logger, msg string, err error, fields map[string]interface{}) {
	if log == nil || err == nil {
		return
	}
	stdErr := AsStandard(err)
	out := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
	}
	for k, v := range fields {
		out[k] = v
	}
	log.Error(msg, out)
}
