package osrswiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const testUA = "geflip-test/1.0"

func wikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/mapping", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != testUA {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`[{"id":4151,"name":"Abyssal whip"},{"id":2,"name":"Cannonball"}]`))
	})
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"4151":{"high":2000,"highTime":1756700000,"low":1900,"lowTime":1756700100},"2":{"high":150,"highTime":1756700050,"low":140,"lowTime":1756700000}}}`))
	})
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"4151":5000,"2":120000}}`))
	})
	mux.HandleFunc("/timeseries", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timestep") != "5m" {
			t.Errorf("timestep = %q, want 5m", r.URL.Query().Get("timestep"))
		}
		w.Write([]byte(`{"data":[` +
			`{"timestamp":1756690000,"avgHighPrice":1990,"avgLowPrice":1910,"highPriceVolume":30,"lowPriceVolume":20},` +
			`{"timestamp":1756690300,"avgHighPrice":0,"avgLowPrice":1920,"highPriceVolume":0,"lowPriceVolume":25},` +
			`{"timestamp":1756690600,"avgHighPrice":0,"avgLowPrice":0,"highPriceVolume":0,"lowPriceVolume":0}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectAndSubscribe(t *testing.T) {
	srv := wikiServer(t)
	c := New(srv.URL, testUA, 2*time.Second, time.Minute, []int{4151})

	if c.IsConnected() {
		t.Fatal("connected before Connect")
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := c.ItemName(4151); got != "Abyssal whip" {
		t.Fatalf("item name = %q", got)
	}
	// watchlist filtering removed the unwatched item
	if got := c.ItemName(2); got != "" {
		t.Fatalf("unwatched item still mapped: %q", got)
	}
}

func TestSubscribeUnknownItem(t *testing.T) {
	srv := wikiServer(t)
	c := New(srv.URL, testUA, 2*time.Second, time.Minute, []int{99999})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(context.Background()); err == nil {
		t.Fatal("expected error for item not in mapping")
	}
}

func TestReadEmitsWatchedSnapshots(t *testing.T) {
	srv := wikiServer(t)
	c := New(srv.URL, testUA, 2*time.Second, time.Hour, []int{4151})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	snaps, errs := c.Read(ctx)
	select {
	case s := <-snaps:
		if s.ItemID != 4151 {
			t.Fatalf("item = %d, want 4151", s.ItemID)
		}
		if s.HighPrice != 2000 || s.LowPrice != 1900 {
			t.Fatalf("prices = %v/%v", s.HighPrice, s.LowPrice)
		}
		if s.Volume != 5000 {
			t.Fatalf("volume = %v", s.Volume)
		}
		// timestamp is the newer of the two quote times
		if s.Timestamp != 1756700100 {
			t.Fatalf("timestamp = %d", s.Timestamp)
		}
	case err := <-errs:
		t.Fatalf("feed error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot emitted")
	}
}

func TestReadSurvivesPollFailure(t *testing.T) {
	var failOnce atomic.Bool
	failOnce.Store(true)

	mux := http.NewServeMux()
	mux.HandleFunc("/mapping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":4151,"name":"Abyssal whip"}]`))
	})
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		if failOnce.CompareAndSwap(true, false) {
			http.Error(w, "upstream unavailable", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data":{"4151":{"high":2000,"highTime":1756700000,"low":1900,"lowTime":1756700100}}}`))
	})
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"4151":5000}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(srv.URL, testUA, 2*time.Second, 50*time.Millisecond, []int{4151})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	snaps, errs := c.Read(ctx)

	// First cycle fails and must be reported without killing the feed.
	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("error channel closed after a single failed cycle")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reported for the failed cycle")
	}

	// Next tick retries and the stream resumes.
	select {
	case s, ok := <-snaps:
		if !ok {
			t.Fatal("snapshot channel closed after a transient failure")
		}
		if s.ItemID != 4151 {
			t.Fatalf("item = %d, want 4151", s.ItemID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not recover after a transient failure")
	}
}

func TestTimeseriesSnapshotsFillsOneSidedQuotes(t *testing.T) {
	srv := wikiServer(t)
	c := New(srv.URL, testUA, 2*time.Second, time.Minute, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	snaps, err := c.TimeseriesSnapshots(context.Background(), 4151, "5m")
	if err != nil {
		t.Fatalf("timeseries: %v", err)
	}
	// third point has no trades on either side and is dropped
	if len(snaps) != 2 {
		t.Fatalf("points = %d, want 2", len(snaps))
	}
	if snaps[0].HighPrice != 1990 || snaps[0].LowPrice != 1910 {
		t.Fatalf("first point = %v/%v", snaps[0].HighPrice, snaps[0].LowPrice)
	}
	if snaps[0].Volume != 50 {
		t.Fatalf("first volume = %v", snaps[0].Volume)
	}
	// one-sided point mirrors the present side
	if snaps[1].HighPrice != 1920 || snaps[1].LowPrice != 1920 {
		t.Fatalf("one-sided point = %v/%v", snaps[1].HighPrice, snaps[1].LowPrice)
	}
	if snaps[1].ItemName != "Abyssal whip" {
		t.Fatalf("name = %q", snaps[1].ItemName)
	}
}
