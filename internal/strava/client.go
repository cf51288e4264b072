package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stravasync/stravasync/internal/errors"
	"github.com/stravasync/stravasync/internal/logging"
	"github.com/stravasync/stravasync/internal/models"
)

const (
	activitiesPerPage = 200
	kudosPerPage      = 30
)

// Client retrieves paginated activity records and per-activity kudos
// from the Strava v3 API. It does not retry; rate-limit and transient
// failures are surfaced to the caller as typed errors so backoff policy
// stays with the orchestrator.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	observe    RequestObserver
}

// RequestObserver is called once per completed API request with the
// endpoint and HTTP status. Status 0 means the request never got a
// response.
type RequestObserver func(endpoint string, status int)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithObserver attaches a per-request observer, typically a metrics
// counter.
func WithObserver(obs RequestObserver) ClientOption {
	return func(c *Client) {
		c.observe = obs
	}
}

// NewClient creates a Strava API client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration, logger *logging.Logger, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// activityPayload is the wire shape of one activity in the athlete
// activities listing. Mapping to models.Activity happens here and
// nowhere else.
type activityPayload struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Type               string    `json:"type"`
	Distance           float64   `json:"distance"`
	MovingTime         float64   `json:"moving_time"`
	ElapsedTime        float64   `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	EndLatLng          []float64 `json:"end_latlng"`
	KudosCount         int       `json:"kudos_count"`
	ExternalID         string    `json:"external_id"`
}

func (p activityPayload) toModel() models.Activity {
	return models.Activity{
		ID:                 p.ID,
		Name:               p.Name,
		StartDateLocal:     p.StartDateLocal,
		Type:               p.Type,
		Distance:           p.Distance,
		MovingTime:         p.MovingTime,
		ElapsedTime:        p.ElapsedTime,
		TotalElevationGain: p.TotalElevationGain,
		EndLatLng:          p.EndLatLng,
		KudosCount:         p.KudosCount,
		ExternalID:         p.ExternalID,
	}
}

// kudoerPayload is the wire shape of one kudoer. resource_state is a
// number on the wire but stored as opaque metadata.
type kudoerPayload struct {
	ResourceState json.Number `json:"resource_state"`
	FirstName     string      `json:"firstname"`
	LastName      string      `json:"lastname"`
}

// FetchActivitiesSince retrieves all activities strictly after the
// given unix timestamp, following pagination until the API returns an
// empty page. A zero since fetches the full history.
func (c *Client) FetchActivitiesSince(ctx context.Context, accessToken string, since int64) (models.ActivitySlice, error) {
	endpoint := "athlete/activities"
	var all models.ActivitySlice

	for page := 1; ; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(activitiesPerPage)},
			"page":     {strconv.Itoa(page)},
		}
		if since > 0 {
			params.Set("after", strconv.FormatInt(since, 10))
		}

		var batch []activityPayload
		if err := c.getJSON(ctx, accessToken, endpoint, params, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		c.logger.Debug("activities page fetched", "page", page, "count", len(batch))
		for _, p := range batch {
			all = append(all, p.toModel())
		}
	}

	c.logger.InfoWithContext(ctx, "activities fetched", "count", len(all), "since", since)
	return all, nil
}

// FetchKudos retrieves the kudos list for one activity, following
// pagination. A 404 means the activity disappeared remotely; whatever
// pages were already collected are returned, matching the
// additive-only contract.
func (c *Client) FetchKudos(ctx context.Context, accessToken string, activityID int64) ([]models.KudosEntry, error) {
	endpoint := fmt.Sprintf("activities/%d/kudos", activityID)
	var all []models.KudosEntry

	for page := 1; ; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(kudosPerPage)},
			"page":     {strconv.Itoa(page)},
		}

		var batch []kudoerPayload
		err := c.getJSON(ctx, accessToken, endpoint, params, &batch)
		if err != nil {
			if re, ok := errors.AsRemoteAPIError(err); ok && re.Status == http.StatusNotFound {
				c.logger.Warn("activity not found, keeping kudos collected so far",
					"activity_id", activityID, "collected", len(all))
				return all, nil
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for _, p := range batch {
			all = append(all, models.KudosEntry{
				ActivityID:    activityID,
				FirstName:     p.FirstName,
				LastName:      p.LastName,
				ResourceState: p.ResourceState.String(),
			})
		}
	}

	return all, nil
}

// observedEndpoint collapses per-activity paths to a single label so
// observers do not see one series per activity ID.
func observedEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "activities/") {
		return "activities/:id/kudos"
	}
	return endpoint
}

func (c *Client) getJSON(ctx context.Context, accessToken, endpoint string, params url.Values, out interface{}) error {
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &errors.RemoteAPIError{Endpoint: endpoint, Status: 0, Body: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.observe != nil {
			c.observe(observedEndpoint(endpoint), 0)
		}
		return &errors.RemoteAPIError{Endpoint: endpoint, Status: 0, Body: err.Error()}
	}
	defer resp.Body.Close()
	if c.observe != nil {
		c.observe(observedEndpoint(endpoint), resp.StatusCode)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode != http.StatusOK {
		return &errors.RemoteAPIError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Body:     string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &errors.RemoteAPIError{Endpoint: endpoint, Status: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return nil
}
