package ingestion

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ringnet/hazardcore/internal/models"
)

type GDACSClient struct {
	url    string
	client *http.Client
}

func NewGDACSClient(rawURL string, timeout time.Duration) *GDACSClient {
	return &GDACSClient{
		url:    rawURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *GDACSClient) Name() string { return "gdacs" }

type gdacsRSS struct {
	Channel gdacsChannel `xml:"channel"`
}
type gdacsChannel struct {
	Items []gdacsItem `xml:"item"`
}
type gdacsItem struct {
	Title       string  `xml:"title"`
	Description string  `xml:"description"`
	Link        string  `xml:"link"`
	PubDate     string  `xml:"pubDate"`
	Lat         float64 `xml:"http://www.georss.org/georss point>lat"`
	Lon         float64 `xml:"http://www.georss.org/georss point>lon"`
	EventType   string  `xml:"http://www.gdacs.org gdacs>eventtype"`
	AlertLevel  string  `xml:"http://www.gdacs.org gdacs>alertlevel"`
	EventID     string  `xml:"http://www.gdacs.org gdacs>eventid"`
	Severity    float64 `xml:"http://www.gdacs.org gdacs>severity"`
	FromDate    string  `xml:"http://www.gdacs.org gdacs>fromdate"`
}

// Poll fetches the current RSS feed.
func (c *GDACSClient) Poll(ctx context.Context) ([]*models.HazardRecord, error) {
	return c.get(ctx, c.url)
}

// FetchYear queries the archive feed for one calendar year via from/to
// parameters on the configured URL.
func (c *GDACSClient) FetchYear(ctx context.Context, year int) ([]*models.HazardRecord, error) {
	q := url.Values{}
	q.Set("from", fmt.Sprintf("%d-01-01", year))
	q.Set("to", fmt.Sprintf("%d-12-31", year))

	sep := "?"
	if strings.Contains(c.url, "?") {
		sep = "&"
	}
	return c.get(ctx, c.url+sep+q.Encode())
}

func (c *GDACSClient) get(ctx context.Context, rawURL string) ([]*models.HazardRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data gdacsRSS
	if err := xml.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	records := make([]*models.HazardRecord, 0, len(data.Channel.Items))
	for _, item := range data.Channel.Items {
		hazardType := mapGDACSEventType(item.EventType)
		// fromdate is the event onset; pubDate only tracks when the feed
		// entry was (re)published.
		occurred, err := time.Parse(time.RFC1123, item.FromDate)
		if err != nil {
			occurred, err = time.Parse(time.RFC1123, item.PubDate)
		}
		if err != nil {
			slog.Warn("GDACS timestamp parsing failed", "id", item.EventID, "error", err.Error())
		}

		h := &models.HazardRecord{
			ID:       "gdacs_" + item.EventID,
			Type:     hazardType,
			SourceID: item.EventID,
			Source:   "gdacs",
			Title:    item.Title,
			Location: models.Location{
				Latitude:  item.Lat,
				Longitude: item.Lon,
				PlaceName: item.Description,
			},
			OccurredAt: occurred,
			Magnitude:  item.Severity,
			Severity:   gdacsSeverity(hazardType, item),
			CreatedAt:  time.Now(),
		}
		records = append(records, h)
	}

	return records, nil
}

func mapGDACSEventType(eventType string) models.HazardType {
	switch strings.ToUpper(eventType) {
	case "EQ":
		return models.HazardTypeEarthquake
	case "FL":
		return models.HazardTypeFlood
	case "TS":
		return models.HazardTypeTsunami
	case "HW":
		return models.HazardTypeHeatwave
	default:
		return models.HazardTypeGeneric
	}
}

// gdacsSeverity prefers GDACS's own alert level when present; the numeric
// severity field's scale varies per event type.
func gdacsSeverity(t models.HazardType, item gdacsItem) models.Severity {
	switch strings.ToLower(item.AlertLevel) {
	case "red":
		return models.SeverityCritical
	case "orange":
		return models.SeverityHigh
	case "green":
		return models.SeverityModerate
	}
	return models.SeverityFor(t, item.Severity)
}
