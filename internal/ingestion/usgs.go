package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ringnet/hazardcore/internal/models"
)

// usgsPageLimit is the FDSN event API's maximum page size. A window hitting
// the limit is split in half and refetched.
const usgsPageLimit = 20000

type USGSClient struct {
	feedURL  string // live GeoJSON summary feed
	queryURL string // FDSN event query endpoint for historical ranges
	client   *http.Client
}

func NewUSGSClient(feedURL, queryURL string, timeout time.Duration) *USGSClient {
	return &USGSClient{
		feedURL:  feedURL,
		queryURL: queryURL,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *USGSClient) Name() string { return "usgs" }

type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   usgsGeometry   `json:"geometry"`
}
type usgsProperties struct {
	Mag     float64 `json:"mag"`
	Place   string  `json:"place"`
	Time    int64   `json:"time"` // unix millis
	Title   string  `json:"title"`
	Tsunami int     `json:"tsunami"` // 0 or 1
}
type usgsGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

// Poll fetches the live summary feed.
func (c *USGSClient) Poll(ctx context.Context) ([]*models.HazardRecord, error) {
	return c.get(ctx, c.feedURL)
}

// FetchYear queries the FDSN event API for one calendar year.
func (c *USGSClient) FetchYear(ctx context.Context, year int) ([]*models.HazardRecord, error) {
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return c.fetchWindow(ctx, start, end)
}

func (c *USGSClient) fetchWindow(ctx context.Context, start, end time.Time) ([]*models.HazardRecord, error) {
	q := url.Values{}
	q.Set("format", "geojson")
	q.Set("starttime", start.Format("2006-01-02"))
	q.Set("endtime", end.Format("2006-01-02"))
	q.Set("limit", fmt.Sprint(usgsPageLimit))

	records, err := c.get(ctx, c.queryURL+"?"+q.Encode())
	if err != nil {
		return nil, err
	}

	if len(records) >= usgsPageLimit && end.Sub(start) > 24*time.Hour {
		mid := start.Add(end.Sub(start) / 2)
		left, err := c.fetchWindow(ctx, start, mid)
		if err != nil {
			return nil, err
		}
		right, err := c.fetchWindow(ctx, mid, end)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}

	return records, nil
}

func (c *USGSClient) get(ctx context.Context, rawURL string) ([]*models.HazardRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data usgsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	records := make([]*models.HazardRecord, 0, len(data.Features))
	for _, f := range data.Features {
		if len(f.Geometry.Coordinates) < 2 {
			continue
		}
		hazardType := models.HazardTypeEarthquake
		if f.Properties.Tsunami == 1 {
			hazardType = models.HazardTypeTsunami
		}
		h := &models.HazardRecord{
			ID:       "usgs_" + f.ID,
			Type:     hazardType,
			SourceID: f.ID,
			Source:   "usgs",
			Title:    f.Properties.Title,
			Location: models.Location{
				Longitude: f.Geometry.Coordinates[0],
				Latitude:  f.Geometry.Coordinates[1],
				PlaceName: f.Properties.Place,
			},
			OccurredAt: time.UnixMilli(f.Properties.Time),
			Magnitude:  f.Properties.Mag,
			Severity:   models.SeverityFor(hazardType, f.Properties.Mag),
			CreatedAt:  time.Now(),
		}
		records = append(records, h)
	}

	return records, nil
}
