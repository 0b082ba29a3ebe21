package gateway

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"travelmcp/internal/domain"
)

// maxTimeout caps caller supplied timeouts.
const maxTimeout = 24 * time.Hour

func missingArgument(tool, arg string) error {
	return domain.E(domain.CodeInvalidArgument, tool, fmt.Sprintf("missing required argument: %s", arg), domain.ErrInvalidArgument)
}

// targetArg reads a server name that may also arrive as a JSON number.
func targetArg(tool string, args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", missingArgument(tool, key)
	}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", missingArgument(tool, key)
		}
		return strings.TrimSpace(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return "", domain.E(domain.CodeInvalidArgument, tool, fmt.Sprintf("%s must be a name or an integer PID", key), domain.ErrInvalidArgument)
		}
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	}
	return "", domain.E(domain.CodeInvalidArgument, tool, fmt.Sprintf("%s must be a string", key), domain.ErrInvalidArgument)
}

func boolArg(args map[string]any, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(v)
		return err == nil && parsed
	}
	return false
}

// secondsArg reads a timeout in seconds, falling back when absent or not
// positive and capping it at maxTimeout.
func secondsArg(args map[string]any, key string, fallback time.Duration) time.Duration {
	var seconds float64
	switch v := args[key].(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case int64:
		seconds = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fallback
		}
		seconds = parsed
	default:
		return fallback
	}
	if seconds <= 0 || math.IsNaN(seconds) {
		return fallback
	}
	if seconds >= maxTimeout.Seconds() {
		return maxTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}
