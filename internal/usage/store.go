package usage

import (
	"context"
	"time"
)

// Store is the usage persistence contract.
type Store interface {
	RecordUsage(
		ctx context.Context,
		operation string,
		inputTokens int64,
		outputTokens int64,
		reasoningTokens int64,
		requestCount int64,
		usageDate time.Time,
	) error

	GetDailyUsage(ctx context.Context, usageDate time.Time) (*DailyUsage, error)
	GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error)
	GetTotalUsage(ctx context.Context, days int) (DailyUsage, error)
	GetOperationUsage(ctx context.Context, days int) ([]OperationUsage, error)
	Close()
}

var _ Store = (*Repository)(nil)
