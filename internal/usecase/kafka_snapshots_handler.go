package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"GEFlip/internal/domain/models"
	domrepo "GEFlip/internal/domain/repository"
	pkgkafka "GEFlip/pkg/kafka"
)

// KafkaSnapshotsHandler consumes Kafka messages and writes to storage.
type KafkaSnapshotsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaSnapshotsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaSnapshotsHandler {
	return &KafkaSnapshotsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaSnapshotsHandler) Topic() string { return h.topic }

// incoming message schema: {item_id, name, ts, high, low, volume}
func (h *KafkaSnapshotsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ItemID int     `json:"item_id"`
		Name   string  `json:"name"`
		TS     int64   `json:"ts"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Volume float64 `json:"volume"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.TS > 1e11 { // ms
		m.TS = m.TS / 1000
	}
	// E2E latency from event time to now (approx)
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(m.TS, 0)).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &models.MarketSnapshot{
		ItemID:    m.ItemID,
		ItemName:  m.Name,
		Timestamp: m.TS,
		HighPrice: m.High,
		LowPrice:  m.Low,
		Volume:    m.Volume,
	})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse", strconv.Itoa(m.ItemID))
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSnapshotsHandler)(nil)
