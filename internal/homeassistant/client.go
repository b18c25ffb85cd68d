package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkbatt/internal/model"
)

// Home Assistant bodies are small; the cap only guards against a
// misconfigured URL pointing at something that streams.
const maxBodySize = 1 << 20

// stateResponse mirrors the relevant fields of GET /api/states/<entity>.
type stateResponse struct {
	EntityID   string `json:"entity_id"`
	State      string `json:"state"`
	Attributes struct {
		UnitOfMeasurement string `json:"unit_of_measurement"`
	} `json:"attributes"`
	LastUpdated time.Time `json:"last_updated"`
}

// Client reads one entity's state from a Home Assistant server.
type Client struct {
	baseURL    string
	token      string
	entityID   string
	httpClient *http.Client
}

func NewClient(baseURL, token, entityID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		entityID: entityID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch performs exactly one authenticated read of the entity state.
// Retrying is the caller's concern. Non-numeric states, including Home
// Assistant's "unknown" and "unavailable", surface as parse failures.
func (c *Client) Fetch(ctx context.Context) (*model.SensorReading, error) {
	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, c.entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Message: "create state request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &FetchError{
				Kind:    KindTimeout,
				Message: fmt.Sprintf("no response within %v", c.httpClient.Timeout),
				Err:     err,
			}
		}
		return nil, &FetchError{Kind: KindNetwork, Message: "fetch entity state", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Message: "read state response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &FetchError{Kind: KindAuth, StatusCode: resp.StatusCode, Message: "token rejected"}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &FetchError{
			Kind:       KindNotFound,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("entity %s not found", c.entityID),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &FetchError{
			Kind:       KindNetwork,
			StatusCode: resp.StatusCode,
			Message:    "unexpected status",
		}
	}

	var st stateResponse
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, &FetchError{Kind: KindParse, Message: "decode state response", Err: err}
	}

	value, err := strconv.ParseFloat(st.State, 64)
	if err != nil {
		return nil, &FetchError{Kind: KindParse, Message: fmt.Sprintf("state %q is not numeric", st.State)}
	}

	observed := st.LastUpdated
	if observed.IsZero() {
		observed = time.Now()
	}

	return &model.SensorReading{
		EntityID:   c.entityID,
		Value:      value,
		Unit:       st.Attributes.UnitOfMeasurement,
		ObservedAt: observed,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
