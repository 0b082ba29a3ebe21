package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

const (
	maxResponseBytes = 4 << 20
	maxSampleRunes   = 1000
)

// SerpAPIProbe verifies a SerpAPI key with one small search request.
type SerpAPIProbe struct {
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
}

func NewSerpAPIProbe(endpoint string, logger *zap.Logger) *SerpAPIProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerpAPIProbe{Endpoint: endpoint, Logger: logger.Named("probe")}
}

var _ domain.KeyVerifier = (*SerpAPIProbe)(nil)

// Verify issues GET endpoint?q=example&engine=google&api_key=key. The key is
// accepted when the body is a JSON object without an "error" field.
func (p *SerpAPIProbe) Verify(ctx context.Context, key string, timeout time.Duration) domain.KeyVerification {
	if key == "" {
		return domain.KeyVerification{Error: domain.CredentialSerpAPIKey + " not found"}
	}
	if timeout <= 0 {
		timeout = domain.DefaultVerifyTimeout
	}
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = domain.DefaultSerpAPIEndpoint
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target, err := url.Parse(endpoint)
	if err != nil {
		return domain.KeyVerification{Error: fmt.Sprintf("invalid endpoint: %v", err)}
	}
	query := target.Query()
	query.Set("q", "example")
	query.Set("engine", "google")
	query.Set("api_key", key)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, target.String(), nil)
	if err != nil {
		return domain.KeyVerification{Error: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.KeyVerification{Error: redact(err, key)}
	}
	defer resp.Body.Close()

	out := domain.KeyVerification{HTTPStatus: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		out.Error = fmt.Sprintf("read response: %v", err)
		return out
	}
	out.Sample = sample(body, key)

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Debug("key probe returned non-JSON body", zap.Int("status", resp.StatusCode))
		out.Error = fmt.Sprintf("non-JSON response (HTTP %d)", resp.StatusCode)
		return out
	}
	object, _ := payload.(map[string]any)
	if apiErr, ok := object["error"]; ok {
		out.Error = fmt.Sprint(apiErr)
		return out
	}

	keys := make([]string, 0, len(object))
	for k := range object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out.OK = true
	out.Keys = keys
	return out
}

// sample returns the first maxSampleRunes runes of body with key masked.
func sample(body []byte, key string) string {
	text := strings.ToValidUTF8(string(body), "\uFFFD")
	if key != "" {
		text = strings.ReplaceAll(text, key, "***")
	}
	if utf8.RuneCountInString(text) <= maxSampleRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxSampleRunes])
}

// redact strips the key from transport errors, which embed the request URL.
func redact(err error, key string) string {
	return strings.ReplaceAll(err.Error(), key, "***")
}
