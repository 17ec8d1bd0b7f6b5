package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"GEFlip/internal/domain/models"
	"GEFlip/internal/domain/repository"
	pkgkafka "GEFlip/pkg/kafka"
)

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseStorage) Store(ctx context.Context, snap *models.MarketSnapshot) error {
	q := fmt.Sprintf("INSERT INTO %s (ts, item_id, item_name, high, low, volume, source, event_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	// Idempotency key: item+timestamp is unique per accepted snapshot.
	eventID := fmt.Sprintf("%d-%d", snap.ItemID, snap.Timestamp)
	_, err := s.db.ExecContext(ctx, q,
		time.Unix(snap.Timestamp, 0),
		snap.ItemID,
		snap.ItemName,
		snap.HighPrice,
		snap.LowPrice,
		snap.Volume,
		"osrswiki",
		eventID,
	)
	return err
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	// Batch insert using VALUES multi-row to reduce round-trips.
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, snap := range snaps[start:end] {
			if snap == nil || snap.ItemID <= 0 || snap.Timestamp == 0 {
				continue
			}
			eventID := fmt.Sprintf("%d-%d", snap.ItemID, snap.Timestamp)
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				time.Unix(snap.Timestamp, 0),
				snap.ItemID,
				snap.ItemName,
				snap.HighPrice,
				snap.LowPrice,
				snap.Volume,
				"osrswiki",
				eventID,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, item_id, item_name, high, low, volume, source, event_id) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseStorage) Query(ctx context.Context, itemID int, from, to time.Time, limit int) ([]*models.MarketSnapshot, error) {
	q := fmt.Sprintf("SELECT item_id, item_name, ts, high, low, volume FROM %s WHERE item_id = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, itemID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*models.MarketSnapshot
	for rows.Next() {
		var snap models.MarketSnapshot
		var ts time.Time
		if err := rows.Scan(&snap.ItemID, &snap.ItemName, &ts, &snap.HighPrice, &snap.LowPrice, &snap.Volume); err != nil {
			return nil, err
		}
		snap.Timestamp = ts.Unix()
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, snap *models.MarketSnapshot) error {
	return p.producer.Publish(ctx, p.topic, []byte(strconv.Itoa(snap.ItemID)), snapPayload(snap))
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, snaps []*models.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(snaps))
	for i, snap := range snaps {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(strconv.Itoa(snap.ItemID)),
			Value: snapPayload(snap),
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func snapPayload(snap *models.MarketSnapshot) map[string]interface{} {
	return map[string]interface{}{
		"item_id": snap.ItemID,
		"name":    snap.ItemName,
		"ts":      snap.Timestamp,
		"high":    snap.HighPrice,
		"low":     snap.LowPrice,
		"volume":  snap.Volume,
	}
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
