package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"GEFlip/internal/domain/models"
	"GEFlip/pkg/config"
)

func predictorConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Predictor.ServiceURL = url
	cfg.Predictor.Timeout = 2 * time.Second
	return cfg
}

func TestPredictParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req predictReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ItemID != 4151 {
			t.Errorf("item_id = %d", req.ItemID)
		}
		if req.Features["margin_percent"] != 12.5 {
			t.Errorf("features not forwarded: %v", req.Features)
		}
		w.Write([]byte(`{"action":"buy","confidence":0.83,"expected_profit":1200,"model_version":"dqn-7"}`))
	}))
	defer srv.Close()

	p := NewHTTPTradePredictor(predictorConfig(srv.URL))
	pred, err := p.Predict(context.Background(), 4151, map[string]float64{"margin_percent": 12.5})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Action != models.SignalBuy {
		t.Fatalf("action = %v", pred.Action)
	}
	if pred.Confidence != 0.83 || pred.ExpectedProfit != 1200 {
		t.Fatalf("numbers not carried: %v %v", pred.Confidence, pred.ExpectedProfit)
	}
	if pred.ModelVersion != "dqn-7" {
		t.Fatalf("model version = %q", pred.ModelVersion)
	}
}

func TestPredictUnknownAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"action":"panic","confidence":1}`))
	}))
	defer srv.Close()

	p := NewHTTPTradePredictor(predictorConfig(srv.URL))
	if _, err := p.Predict(context.Background(), 4151, nil); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestPredictRetriesTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"action":"HOLD","confidence":0.5}`))
	}))
	defer srv.Close()

	p := NewHTTPTradePredictor(predictorConfig(srv.URL))
	pred, err := p.Predict(context.Background(), 4151, nil)
	if err != nil {
		t.Fatalf("predict after retry: %v", err)
	}
	if pred.Action != models.SignalHold {
		t.Fatalf("action = %v", pred.Action)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
