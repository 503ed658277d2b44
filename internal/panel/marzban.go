package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// marzbanAdapter talks to marzban style panels, which report usage
// through named fields instead of a single counter. The fields are
// summed into one byte count here so the engine never sees the split.
type marzbanAdapter struct {
	client *http.Client
}

type marzbanUserResponse struct {
	UsedTraffic int64 `json:"used_traffic"`
	DataUsed    int64 `json:"data_used"`
}

func (a *marzbanAdapter) FetchUsage(ctx context.Context, creds Credentials, externalUserID string) (int64, error) {
	path := "/api/user/" + url.PathEscape(externalUserID)
	status, payload, errReq := doRequest(ctx, a.client, creds, http.MethodGet, path, nil)
	if errReq != nil {
		return 0, &requestError{panelType: TypeMarzban, err: errReq}
	}
	if !statusOK(status) {
		return 0, &requestError{
			panelType:  TypeMarzban,
			statusCode: status,
			err:        fmt.Errorf("panel: marzban non-2xx status=%d body=%s", status, summarizePayload(payload)),
		}
	}

	var parsed marzbanUserResponse
	if errUnmarshal := json.Unmarshal(payload, &parsed); errUnmarshal != nil {
		return 0, &requestError{
			panelType: TypeMarzban,
			err:       fmt.Errorf("panel: marzban malformed payload: %w", errUnmarshal),
		}
	}
	return parsed.UsedTraffic + parsed.DataUsed, nil
}

func (a *marzbanAdapter) ResetUsage(ctx context.Context, creds Credentials, externalUserID string) error {
	path := "/api/user/" + url.PathEscape(externalUserID) + "/reset"
	status, payload, errReq := doRequest(ctx, a.client, creds, http.MethodPost, path, nil)
	if errReq != nil {
		return &requestError{panelType: TypeMarzban, err: errReq}
	}
	if !statusOK(status) {
		return &requestError{
			panelType:  TypeMarzban,
			statusCode: status,
			err:        fmt.Errorf("panel: marzban reset non-2xx status=%d body=%s", status, summarizePayload(payload)),
		}
	}
	return nil
}
