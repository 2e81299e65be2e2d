package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "leak-audit/internal/common/errors"
	"leak-audit/internal/leak"

	"github.com/redis/go-redis/v9"
)

func reportKey(subject, provider string) string {
	return fmt.Sprintf("leak:report:%s:%s", subject, provider)
}

func connectionKey(subject, provider string) string {
	return fmt.Sprintf("crm:connection:%s:%s", subject, provider)
}

// ReportCache keeps the latest report per subject and provider.
type ReportCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewReportCache(client redis.Cmdable, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

func (c *ReportCache) Put(ctx context.Context, report leak.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return c.client.Set(ctx, reportKey(report.Subject, report.Provider), data, c.ttl).Err()
}

// Latest returns the cached report or a REPORT_NOT_FOUND error.
func (c *ReportCache) Latest(ctx context.Context, subject, provider string) (*leak.Report, error) {
	val, err := c.client.Get(ctx, reportKey(subject, provider)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NewReportNotFoundError(provider)
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var report leak.Report
	if err := json.Unmarshal(val, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// Connection is what we remember about a validated CRM link. The key is
// only ever stored masked.
type Connection struct {
	Provider    string    `json:"provider"`
	MaskedKey   string    `json:"maskedKey"`
	Domain      string    `json:"domain,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type ConnectionStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewConnectionStore(client redis.Cmdable, ttl time.Duration) *ConnectionStore {
	return &ConnectionStore{client: client, ttl: ttl}
}

func (s *ConnectionStore) Save(ctx context.Context, subject string, conn Connection) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("encode connection: %w", err)
	}
	return s.client.Set(ctx, connectionKey(subject, conn.Provider), data, s.ttl).Err()
}

// Get returns the stored connection, or nil when none is remembered.
func (s *ConnectionStore) Get(ctx context.Context, subject, provider string) (*Connection, error) {
	val, err := s.client.Get(ctx, connectionKey(subject, provider)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read connection: %w", err)
	}

	var conn Connection
	if err := json.Unmarshal(val, &conn); err != nil {
		return nil, fmt.Errorf("decode connection: %w", err)
	}
	return &conn, nil
}
