package usage

import (
	"time"

	"github.com/nocodeuchun-ctrl/Avto-bot/internal/config"
)

// Operation labels usage rows by the generator that consumed the tokens.
const (
	OperationCaption = "caption"
	OperationReply   = "reply"
	OperationOther   = "other"
)

// OperationForTask maps a Gemini task name to its usage operation.
func OperationForTask(task string) string {
	switch task {
	case config.TaskCaption:
		return OperationCaption
	case config.TaskReply:
		return OperationReply
	default:
		return OperationOther
	}
}

// TokenUsage is the per-day, per-operation aggregate row.
type TokenUsage struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UsageDate       time.Time `gorm:"column:usage_date;type:date;not null;uniqueIndex:idx_token_usage_date_operation"`
	Operation       string    `gorm:"column:operation;size:32;not null;uniqueIndex:idx_token_usage_date_operation"`
	InputTokens     int64     `gorm:"column:input_tokens;not null;default:0"`
	OutputTokens    int64     `gorm:"column:output_tokens;not null;default:0"`
	ReasoningTokens int64     `gorm:"column:reasoning_tokens;not null;default:0"`
	RequestCount    int64     `gorm:"column:request_count;not null;default:0"`
	Version         int64     `gorm:"column:version;not null;default:0"`
}

// TableName returns the gorm table name.
func (TokenUsage) TableName() string {
	return "token_usage"
}

// DailyUsage is the API view of one day, summed across operations.
type DailyUsage struct {
	UsageDate       time.Time
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
	RequestCount    int64
}

// TotalTokens returns input + output.
func (d DailyUsage) TotalTokens() int64 {
	return d.InputTokens + d.OutputTokens
}

// OperationUsage is a usage sum for one operation.
type OperationUsage struct {
	Operation       string
	InputTokens     int64
	OutputTokens    int64
	ReasoningTokens int64
	RequestCount    int64
}

// TotalTokens returns input + output.
func (o OperationUsage) TotalTokens() int64 {
	return o.InputTokens + o.OutputTokens
}
