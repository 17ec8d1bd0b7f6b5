package osrswiki

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"GEFlip/internal/domain/models"
	drepo "GEFlip/internal/domain/repository"
	xhttp "GEFlip/pkg/http"
)

// Client implements a MarketFeed backed by the OSRS wiki real-time prices
// API. The API is plain REST, so the feed polls /latest and /volumes on a
// fixed interval and emits one snapshot per item per cycle.
type Client struct {
	baseURL      string
	userAgent    string
	pollInterval time.Duration
	watchlist    []int

	http      *xhttp.Client
	items     map[int]string // id -> name, from /mapping
	connected bool
}

var _ drepo.MarketFeed = (*Client)(nil)

// New creates a new wiki MarketFeed. An empty watchlist means every item
// present in the mapping.
func New(baseURL, userAgent string, timeout, pollInterval time.Duration, watchlist []int) *Client {
	return &Client{
		baseURL:      baseURL,
		userAgent:    userAgent,
		pollInterval: pollInterval,
		watchlist:    watchlist,
		http:         xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type mappingEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type latestEntry struct {
	High     float64 `json:"high"`
	HighTime int64   `json:"highTime"`
	Low      float64 `json:"low"`
	LowTime  int64   `json:"lowTime"`
}

type latestResponse struct {
	Data map[string]latestEntry `json:"data"`
}

type volumesResponse struct {
	Data map[string]float64 `json:"data"`
}

// Connect fetches the item mapping. The wiki API is connectionless; a
// successful mapping fetch doubles as the health check.
func (c *Client) Connect(ctx context.Context) error {
	var entries []mappingEntry
	if err := c.get(ctx, "/mapping", nil, &entries); err != nil {
		return fmt.Errorf("wiki connect: %w", err)
	}
	items := make(map[int]string, len(entries))
	for _, e := range entries {
		items[e.ID] = e.Name
	}
	c.items = items
	c.connected = true
	return nil
}

// Subscribe narrows the mapping to the configured watchlist.
func (c *Client) Subscribe(ctx context.Context) error {
	if !c.connected {
		return fmt.Errorf("wiki not connected")
	}
	if len(c.watchlist) == 0 {
		return nil
	}
	filtered := make(map[int]string, len(c.watchlist))
	for _, id := range c.watchlist {
		name, ok := c.items[id]
		if !ok {
			return fmt.Errorf("subscribe: item %d not in mapping", id)
		}
		filtered[id] = name
	}
	c.items = filtered
	return nil
}

// Read polls the price endpoints on the configured interval and streams
// snapshots. The first cycle runs immediately. A failed cycle is reported
// on the error channel and retried on the next tick, so a wiki hiccup
// never tears the feed down.
func (c *Client) Read(ctx context.Context) (<-chan *models.MarketSnapshot, <-chan error) {
	snaps := make(chan *models.MarketSnapshot, 1024)
	errs := make(chan error, 1)

	go func() {
		defer close(snaps)
		defer close(errs)

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			if err := c.poll(ctx, snaps); err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case errs <- err:
				default:
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return snaps, errs
}

func (c *Client) poll(ctx context.Context, out chan<- *models.MarketSnapshot) error {
	if !c.connected {
		return fmt.Errorf("wiki conn not established")
	}

	var latest latestResponse
	if err := c.get(ctx, "/latest", nil, &latest); err != nil {
		return fmt.Errorf("wiki latest: %w", err)
	}
	var volumes volumesResponse
	if err := c.get(ctx, "/volumes", nil, &volumes); err != nil {
		return fmt.Errorf("wiki volumes: %w", err)
	}

	for key, e := range latest.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		name, watched := c.items[id]
		if !watched {
			continue
		}
		ts := e.HighTime
		if e.LowTime > ts {
			ts = e.LowTime
		}
		snap := &models.MarketSnapshot{
			ItemID:    id,
			ItemName:  name,
			Timestamp: ts,
			HighPrice: e.High,
			LowPrice:  e.Low,
			Volume:    volumes.Data[key],
		}
		select {
		case out <- snap:
		default:
			// drop on backpressure
		}
	}
	return nil
}

// Timeseries fetches historical prices for one item at the given step
// ("5m", "1h" or "6h"). Used by the deep-refresh jobs, not the poll loop.
func (c *Client) Timeseries(ctx context.Context, itemID int, step string) ([]models.PricePoint, error) {
	var resp struct {
		Data []struct {
			Timestamp    int64   `json:"timestamp"`
			AvgHighPrice float64 `json:"avgHighPrice"`
			AvgLowPrice  float64 `json:"avgLowPrice"`
			HighVolume   float64 `json:"highPriceVolume"`
			LowVolume    float64 `json:"lowPriceVolume"`
		} `json:"data"`
	}
	params := map[string][]string{
		"id":       {strconv.Itoa(itemID)},
		"timestep": {step},
	}
	if err := c.get(ctx, "/timeseries", params, &resp); err != nil {
		return nil, fmt.Errorf("wiki timeseries %d: %w", itemID, err)
	}
	points := make([]models.PricePoint, 0, len(resp.Data))
	for _, d := range resp.Data {
		price := d.AvgHighPrice
		if price <= 0 {
			price = d.AvgLowPrice
		}
		if price <= 0 {
			continue
		}
		points = append(points, models.PricePoint{
			Timestamp: d.Timestamp,
			Price:     price,
			Volume:    d.HighVolume + d.LowVolume,
		})
	}
	return points, nil
}

// TimeseriesSnapshots fetches the same series as Timeseries but keeps the
// high/low split, shaped for the snapshot store. Points with no trades on
// either side are skipped.
func (c *Client) TimeseriesSnapshots(ctx context.Context, itemID int, step string) ([]*models.MarketSnapshot, error) {
	var resp struct {
		Data []struct {
			Timestamp    int64   `json:"timestamp"`
			AvgHighPrice float64 `json:"avgHighPrice"`
			AvgLowPrice  float64 `json:"avgLowPrice"`
			HighVolume   float64 `json:"highPriceVolume"`
			LowVolume    float64 `json:"lowPriceVolume"`
		} `json:"data"`
	}
	params := map[string][]string{
		"id":       {strconv.Itoa(itemID)},
		"timestep": {step},
	}
	if err := c.get(ctx, "/timeseries", params, &resp); err != nil {
		return nil, fmt.Errorf("wiki timeseries %d: %w", itemID, err)
	}
	name := c.ItemName(itemID)
	snaps := make([]*models.MarketSnapshot, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.AvgHighPrice <= 0 && d.AvgLowPrice <= 0 {
			continue
		}
		high, low := d.AvgHighPrice, d.AvgLowPrice
		if high <= 0 {
			high = low
		}
		if low <= 0 {
			low = high
		}
		snaps = append(snaps, &models.MarketSnapshot{
			ItemID:    itemID,
			ItemName:  name,
			HighPrice: high,
			LowPrice:  low,
			Volume:    d.HighVolume + d.LowVolume,
			Timestamp: d.Timestamp,
		})
	}
	return snaps, nil
}

// ItemName resolves an item id from the cached mapping. Empty before
// Connect or for unknown ids.
func (c *Client) ItemName(itemID int) string {
	return c.items[itemID]
}

func (c *Client) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
		Headers:     map[string]string{"User-Agent": c.userAgent},
	}, dest)
}

// Reconnect re-fetches the mapping after a short pause.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(time.Second)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close marks the feed disconnected. There is no socket to tear down.
func (c *Client) Close() error {
	c.connected = false
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
