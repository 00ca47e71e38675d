package client

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/util"
)

// ClickHouseClient writes audit events into a columnar table for
// observability queries. It is never consulted on the request path.
type ClickHouseClient struct {
	conn   driver.Conn
	config *config.ClickhouseConfig
}

func NewClickHouseClient(cfg *config.Config, logger *zap.Logger) (*ClickHouseClient, error) {
	chConfig := cfg.Clickhouse

	opts := &ch.Options{
		Addr: []string{chConfig.URL},
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     20,
		MaxIdleConns:     10,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	}

	conn, err := ch.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	util.Info("ClickHouse client initialized",
		zap.String("url", chConfig.URL),
		zap.String("database", chConfig.Database))

	return &ClickHouseClient{
		conn:   conn,
		config: &chConfig,
	}, nil
}

// InsertAuditEvent appends one audit row. Rows are fire-and-forget; async
// insert keeps this off the request latency path.
func (c *ClickHouseClient) InsertAuditEvent(ctx context.Context, kind, peerID, mobileNo string, ts time.Time, payload string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (kind, peer_id, mobile_no, ts, payload) VALUES (?, ?, ?, ?, ?)",
		c.config.AuditTable,
	)
	return c.conn.AsyncInsert(ctx, query, false, kind, peerID, mobileNo, ts, payload)
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("clickhouse connection not initialized")
	}
	return c.conn.Ping(ctx)
}

func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return err
		}
		util.Info("ClickHouse client closed")
	}
	return nil
}
