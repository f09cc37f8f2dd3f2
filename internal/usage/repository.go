package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

// ErrDisabled is returned when usage accounting has no database configured.
var ErrDisabled = errors.New("usage database disabled")

// Repository reads and writes token usage rows.
type Repository struct {
	cfg    *config.Config
	logger *slog.Logger
	mu     sync.Mutex
	db     *gorm.DB
	sqlDB  *sql.DB
}

// NewRepository creates a repository that connects to PostgreSQL on first use.
func NewRepository(cfg *config.Config, logger *slog.Logger) *Repository {
	return &Repository{
		cfg:    cfg,
		logger: logger,
	}
}

// NewRepositoryWithDB wraps an already opened gorm handle and migrates the schema.
func NewRepositoryWithDB(ctx context.Context, db *gorm.DB, logger *slog.Logger) (*Repository, error) {
	if err := ensureUsageSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("prepare usage db: %w", err)
	}
	return &Repository{db: db, logger: logger}, nil
}

// Enabled reports whether the repository can reach a database.
func (r *Repository) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db != nil || (r.cfg != nil && r.cfg.Database.Enabled)
}

// RecordUsage adds token counts to the (date, operation) row. A zero date means today.
func (r *Repository) RecordUsage(
	ctx context.Context,
	operation string,
	inputTokens int64,
	outputTokens int64,
	reasoningTokens int64,
	requestCount int64,
	usageDate time.Time,
) error {
	if requestCount <= 0 && inputTokens <= 0 && outputTokens <= 0 {
		return nil
	}

	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}

	if strings.TrimSpace(operation) == "" {
		operation = OperationOther
	}

	row := TokenUsage{
		UsageDate:       normalizeDate(usageDate),
		Operation:       operation,
		InputTokens:     inputTokens,
		OutputTokens:    outputTokens,
		ReasoningTokens: reasoningTokens,
		RequestCount:    requestCount,
	}

	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "usage_date"}, {Name: "operation"}},
		DoUpdates: clause.Assignments(map[string]any{
			"input_tokens":     gorm.Expr("token_usage.input_tokens + excluded.input_tokens"),
			"output_tokens":    gorm.Expr("token_usage.output_tokens + excluded.output_tokens"),
			"reasoning_tokens": gorm.Expr("token_usage.reasoning_tokens + excluded.reasoning_tokens"),
			"request_count":    gorm.Expr("token_usage.request_count + excluded.request_count"),
			"version":          gorm.Expr("token_usage.version + 1"),
		}),
	}).Create(&row).Error
}

// GetDailyUsage sums all operations of one day (zero date means today).
// Returns nil when nothing was recorded.
func (r *Repository) GetDailyUsage(ctx context.Context, usageDate time.Time) (*DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}

	targetDate := normalizeDate(usageDate)

	var rows []TokenUsage
	if err := db.WithContext(ctx).Where("usage_date = ?", targetDate).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	daily := DailyUsage{UsageDate: targetDate}
	for _, row := range rows {
		daily.InputTokens += row.InputTokens
		daily.OutputTokens += row.OutputTokens
		daily.ReasoningTokens += row.ReasoningTokens
		daily.RequestCount += row.RequestCount
	}
	return &daily, nil
}

// GetRecentUsage returns up to days daily sums, newest first.
func (r *Repository) GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}

	since := todayDate().AddDate(0, 0, -(days - 1))
	var rows []TokenUsage
	if err := db.WithContext(ctx).
		Where("usage_date >= ?", since).
		Order("usage_date desc").
		Order("operation").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	usages := make([]DailyUsage, 0, days)
	for _, row := range rows {
		date := normalizeDate(row.UsageDate)
		if n := len(usages); n > 0 && usages[n-1].UsageDate.Equal(date) {
			usages[n-1].InputTokens += row.InputTokens
			usages[n-1].OutputTokens += row.OutputTokens
			usages[n-1].ReasoningTokens += row.ReasoningTokens
			usages[n-1].RequestCount += row.RequestCount
			continue
		}
		usages = append(usages, DailyUsage{
			UsageDate:       date,
			InputTokens:     row.InputTokens,
			OutputTokens:    row.OutputTokens,
			ReasoningTokens: row.ReasoningTokens,
			RequestCount:    row.RequestCount,
		})
	}
	return usages, nil
}

type usageAggregate struct {
	Operation       string
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
	RequestCount    int64
}

const aggregateColumns = `
	COALESCE(SUM(input_tokens), 0) as input_tokens,
	COALESCE(SUM(output_tokens), 0) as output_tokens,
	COALESCE(SUM(reasoning_tokens), 0) as reasoning_tokens,
	COALESCE(SUM(request_count), 0) as request_count`

// GetTotalUsage sums the last days days.
func (r *Repository) GetTotalUsage(ctx context.Context, days int) (DailyUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return DailyUsage{}, err
	}
	if days <= 0 {
		days = 30
	}

	since := todayDate().AddDate(0, 0, -days)
	var result usageAggregate
	if err := db.WithContext(ctx).
		Model(&TokenUsage{}).
		Select(aggregateColumns).
		Where("usage_date >= ?", since).
		Scan(&result).Error; err != nil {
		return DailyUsage{}, err
	}

	return DailyUsage{
		UsageDate:       todayDate(),
		InputTokens:     result.InputTokens,
		OutputTokens:    result.OutputTokens,
		ReasoningTokens: result.ReasoningTokens,
		RequestCount:    result.RequestCount,
	}, nil
}

// GetOperationUsage sums the last days days per operation, ordered by operation.
func (r *Repository) GetOperationUsage(ctx context.Context, days int) ([]OperationUsage, error) {
	db, err := r.getDB(ctx)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 30
	}

	since := todayDate().AddDate(0, 0, -days)
	var rows []usageAggregate
	if err := db.WithContext(ctx).
		Model(&TokenUsage{}).
		Select("operation," + aggregateColumns).
		Where("usage_date >= ?", since).
		Group("operation").
		Order("operation").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]OperationUsage, 0, len(rows))
	for _, row := range rows {
		result = append(result, OperationUsage(row))
	}
	return result, nil
}

// Ping connects if needed and checks the database. Returns ErrDisabled when off.
func (r *Repository) Ping(ctx context.Context) error {
	db, err := r.getDB(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get usage db handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping usage db: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sqlDB == nil {
		return
	}
	_ = r.sqlDB.Close()
	r.sqlDB = nil
	r.db = nil
}

func (r *Repository) getDB(ctx context.Context) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}
	if r.cfg == nil {
		return nil, errors.New("database config is nil")
	}
	if !r.cfg.Database.Enabled {
		return nil, ErrDisabled
	}

	hostUsed := r.cfg.Database.Host
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	db, err := gorm.Open(postgres.Open(r.cfg.Database.DSN()), gormCfg)
	if err != nil && shouldFallbackToLocalhost(err, r.cfg.Database.Host) {
		fallback := r.cfg.Database
		fallback.Host = "127.0.0.1"
		db, err = gorm.Open(postgres.Open(fallback.DSN()), gormCfg)
		if err == nil {
			hostUsed = fallback.Host
			if r.logger != nil {
				r.logger.Warn(
					"usage_db_host_fallback",
					"configured_host", r.cfg.Database.Host,
					"effective_host", hostUsed,
				)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}

	if schemaErr := ensureUsageSchema(ctx, db); schemaErr != nil {
		return nil, fmt.Errorf("prepare usage db: %w", schemaErr)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get usage db handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(r.cfg.Database.MinPool)
	sqlDB.SetMaxOpenConns(r.cfg.Database.MaxPool)
	if r.cfg.Database.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(r.cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)
	}
	if r.cfg.Database.ConnMaxIdleTimeMinutes > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(r.cfg.Database.ConnMaxIdleTimeMinutes) * time.Minute)
	}

	if r.logger != nil {
		r.logger.Info("usage_db_connected", "host", hostUsed, "name", r.cfg.Database.Name)
	}

	r.db = db
	r.sqlDB = sqlDB
	return db, nil
}

func ensureUsageSchema(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}
	if err := db.WithContext(ctx).AutoMigrate(&TokenUsage{}); err != nil {
		return fmt.Errorf("migrate token_usage: %w", err)
	}
	return nil
}

// todayDate is the current local calendar day, stored as UTC midnight.
func todayDate() time.Time {
	return normalizeDate(time.Time{})
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now().In(time.Local)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func shouldFallbackToLocalhost(err error, host string) bool {
	if err == nil {
		return false
	}
	if host == "" || host == "127.0.0.1" || strings.EqualFold(host, "localhost") {
		return false
	}
	if !strings.EqualFold(host, "postgres") {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return strings.EqualFold(dnsErr.Name, host)
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "no such host") && strings.Contains(lower, strings.ToLower(host))
}
