package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"GEFlip/internal/domain/models"
	pkgch "GEFlip/pkg/clickhouse"
	applogger "GEFlip/pkg/logger"
)

// CHPriceStore implements PriceStore backed by ClickHouse.
type CHPriceStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHPriceStore(ch *pkgch.Client, table string) *CHPriceStore {
	return &CHPriceStore{db: ch.DB(), table: table}
}

// SetLogger injects a structured logger.
func (s *CHPriceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPriceStore) GetLatestN(ctx context.Context, itemID int, n int) ([]models.MarketSnapshot, error) {
	start := time.Now()
	const qtpl = `
        SELECT item_id, item_name, ts, high, low, volume
        FROM %s
        WHERE item_id = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, itemID, n)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_snapshots query error",
				applogger.Int("item_id", itemID),
				applogger.Int("limit", n),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get latest snapshots: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.MarketSnapshot, 0, n)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			if s.l != nil {
				s.l.Error("clickhouse latest_snapshots scan error",
					applogger.Int("item_id", itemID),
					applogger.Error(err),
				)
			}
			return nil, err
		}
		tmp = append(tmp, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_snapshots ok",
			applogger.Int("item_id", itemID),
			applogger.Int("limit", n),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHPriceStore) GetSeries(ctx context.Context, itemID int, from, to time.Time) ([]models.MarketSnapshot, error) {
	start := time.Now()
	const qtpl = `
        SELECT item_id, item_name, ts, high, low, volume
        FROM %s
        WHERE item_id = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, itemID, from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse snapshot_series query error",
				applogger.Int("item_id", itemID),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get snapshot series: %w", err)
	}
	defer rows.Close()

	out := make([]models.MarketSnapshot, 0, 1024)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Info("clickhouse snapshot_series ok",
			applogger.Int("item_id", itemID),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHPriceStore) ActiveItems(ctx context.Context, since time.Time, limit int) ([]int, error) {
	const qtpl = `
        SELECT item_id, max(ts) AS last_seen
        FROM %s
        WHERE ts >= ?
        GROUP BY item_id
        ORDER BY last_seen DESC
        LIMIT ?
    `
	q := fmt.Sprintf(qtpl, s.table)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse active_items query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("active items: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0, limit)
	for rows.Next() {
		var id int
		var lastSeen time.Time
		if err := rows.Scan(&id, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSnapshot(rows *sql.Rows) (models.MarketSnapshot, error) {
	var snap models.MarketSnapshot
	var ts time.Time
	if err := rows.Scan(&snap.ItemID, &snap.ItemName, &ts, &snap.HighPrice, &snap.LowPrice, &snap.Volume); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.Timestamp = ts.Unix()
	return snap, nil
}
