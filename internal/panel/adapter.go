// Package panel abstracts heterogeneous provisioning panel APIs behind a
// uniform usage contract. Each adapter normalizes its panel's response
// shape to a single byte counter before it reaches the engine.
package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/panelmesh/resellerd/internal/util"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRequestTimeout = 20 * time.Second
	maxErrorBodyBytes     = 512
)

// ErrUnsupportedPanel indicates no adapter exists for a panel type.
var ErrUnsupportedPanel = errors.New("panel: unsupported panel type")

// Credentials identifies a panel API endpoint.
type Credentials struct {
	BaseURL string
	APIKey  string
}

// Adapter is the per-panel-type client consumed by the engine.
type Adapter interface {
	// FetchUsage returns the absolute live usage counter in bytes for a
	// remote account. The remote panel is the source of truth for the
	// live portion of usage.
	FetchUsage(ctx context.Context, creds Credentials, externalUserID string) (int64, error)
	// ResetUsage zeroes the remote usage counter for an account.
	ResetUsage(ctx context.Context, creds Credentials, externalUserID string) error
}

// Panel type identifiers.
const (
	TypeXUI     = "xui"
	TypeMarzban = "marzban"
)

// AdapterFor returns the adapter for a panel type.
func AdapterFor(panelType string) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(panelType)) {
	case TypeXUI:
		return &xuiAdapter{client: defaultClient()}, nil
	case TypeMarzban:
		return &marzbanAdapter{client: defaultClient()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPanel, panelType)
	}
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: defaultRequestTimeout}
}

// requestError carries the HTTP status of a failed panel call.
type requestError struct {
	panelType  string
	statusCode int
	err        error
}

func (e *requestError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	if e.statusCode > 0 {
		return fmt.Sprintf("panel: %s status=%d", e.panelType, e.statusCode)
	}
	return "panel: request failed"
}

func (e *requestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *requestError) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.statusCode
}

// StatusCode extracts the HTTP status from a panel error, if present.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	var statusErr interface{ StatusCode() int }
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	code := statusErr.StatusCode()
	if code <= 0 {
		return 0, false
	}
	return code, true
}

// doRequest issues one panel API call with a per-call timeout and
// returns the status code and raw payload.
func doRequest(ctx context.Context, client *http.Client, creds Credentials, method, path string, body io.Reader) (int, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	url := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/") + path
	req, errReq := http.NewRequestWithContext(reqCtx, method, url, body)
	if errReq != nil {
		return 0, nil, errReq
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(creds.APIKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	log.Debugf("panel: %s %s key=%s", method, url, util.HideAPIKey(strings.TrimSpace(creds.APIKey)))

	resp, errResp := client.Do(req)
	if errResp != nil {
		return 0, nil, errResp
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("panel: close response body error: %v", errClose)
		}
	}()

	payload, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return resp.StatusCode, nil, errRead
	}
	return resp.StatusCode, payload, nil
}

func summarizePayload(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}
	if len(trimmed) > maxErrorBodyBytes {
		return trimmed[:maxErrorBodyBytes] + "...(truncated)"
	}
	return trimmed
}

func statusOK(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}
