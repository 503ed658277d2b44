package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// xuiAdapter talks to x-ui style panels, which expose a single
// per-client traffic object with separate up/down counters.
type xuiAdapter struct {
	client *http.Client
}

type xuiTrafficResponse struct {
	Success bool `json:"success"`
	Obj     struct {
		Up    int64 `json:"up"`
		Down  int64 `json:"down"`
		Total int64 `json:"total"`
	} `json:"obj"`
}

func (a *xuiAdapter) FetchUsage(ctx context.Context, creds Credentials, externalUserID string) (int64, error) {
	path := "/panel/api/inbounds/getClientTraffics/" + url.PathEscape(externalUserID)
	status, payload, errReq := doRequest(ctx, a.client, creds, http.MethodGet, path, nil)
	if errReq != nil {
		return 0, &requestError{panelType: TypeXUI, err: errReq}
	}
	if !statusOK(status) {
		return 0, &requestError{
			panelType:  TypeXUI,
			statusCode: status,
			err:        fmt.Errorf("panel: xui non-2xx status=%d body=%s", status, summarizePayload(payload)),
		}
	}

	var parsed xuiTrafficResponse
	if errUnmarshal := json.Unmarshal(payload, &parsed); errUnmarshal != nil {
		return 0, &requestError{
			panelType: TypeXUI,
			err:       fmt.Errorf("panel: xui malformed payload: %w", errUnmarshal),
		}
	}
	if !parsed.Success {
		return 0, &requestError{panelType: TypeXUI, err: fmt.Errorf("panel: xui reported failure body=%s", summarizePayload(payload))}
	}
	return parsed.Obj.Up + parsed.Obj.Down, nil
}

func (a *xuiAdapter) ResetUsage(ctx context.Context, creds Credentials, externalUserID string) error {
	path := "/panel/api/inbounds/resetClientTraffic/" + url.PathEscape(externalUserID)
	status, payload, errReq := doRequest(ctx, a.client, creds, http.MethodPost, path, nil)
	if errReq != nil {
		return &requestError{panelType: TypeXUI, err: errReq}
	}
	if !statusOK(status) {
		return &requestError{
			panelType:  TypeXUI,
			statusCode: status,
			err:        fmt.Errorf("panel: xui reset non-2xx status=%d body=%s", status, summarizePayload(payload)),
		}
	}
	return nil
}
