package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/noteforge/beatqueue/batch"
	"github.com/uptrace/bun"
)

// batchModel is the bun row type for batches. It is grounded on the
// teacher's jobModel (sql/model.go), widened from the teacher's bare
// message/job split into the fused fields batch.Batch needs: status is
// a string rather than the teacher's integer job.Status so that
// pgdialect renders an inspectable text column, and metadata carries
// the raw map. idempotency_key stores batch_type + ":" +
// batch.Metadata.Hash(), computed once at insert by fromBatch.
type batchModel struct {
	bun.BaseModel `bun:"table:batches"`

	Id uuid.UUID `bun:"id,pk,type:uuid"`

	BatchType      string `bun:"batch_type,notnull"`
	IdempotencyKey string `bun:"idempotency_key,notnull"`
	Status         string `bun:"status,notnull,default:'pending'"`
	Priority       int    `bun:"priority,notnull,default:5"`
	RetryCount     int    `bun:"retry_count,notnull,default:0"`

	ItemsTotal     int `bun:"items_total,notnull,default:0"`
	ItemsProcessed int `bun:"items_processed,notnull,default:0"`
	ItemsFailed    int `bun:"items_failed,notnull,default:0"`

	ClaimedBy      string     `bun:"claimed_by,notnull,default:''"`
	ClaimExpiresAt *time.Time `bun:"claim_expires_at,nullzero,default:null"`
	NextVisibleAt  time.Time  `bun:"next_visible_at,notnull"`

	StartedAt   *time.Time `bun:"started_at,nullzero,default:null"`
	CompletedAt *time.Time `bun:"completed_at,nullzero,default:null"`

	ErrorMessage string         `bun:"error_message,notnull,default:''"`
	Metadata     map[string]any `bun:"metadata,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *batchModel) toBatch() *batch.Batch {
	return &batch.Batch{
		Id:             m.Id,
		BatchType:      m.BatchType,
		Status:         batch.Status(m.Status),
		Priority:       m.Priority,
		RetryCount:     m.RetryCount,
		ItemsTotal:     m.ItemsTotal,
		ItemsProcessed: m.ItemsProcessed,
		ItemsFailed:    m.ItemsFailed,
		ClaimedBy:      m.ClaimedBy,
		ClaimExpiresAt: m.ClaimExpiresAt,
		NextVisibleAt:  m.NextVisibleAt,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		ErrorMessage:   m.ErrorMessage,
		Metadata:       batch.Metadata(m.Metadata),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func fromBatch(b *batch.Batch, delay time.Duration) *batchModel {
	now := time.Now()
	batchType, hash := b.IdempotencyKey()
	id := b.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &batchModel{
		Id:             id,
		BatchType:      batchType,
		IdempotencyKey: batchType + ":" + hash,
		Status:         string(batch.Pending),
		Priority:       b.Priority,
		RetryCount:     b.RetryCount,
		Metadata:       map[string]any(b.Metadata),
		NextVisibleAt:  now.Add(delay),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// dlqModel is the bun row type for dead_letter_items, grounded on the
// teacher's jobModel layout but with no locking columns — the DLQ is
// never leased, only scanned and requeued.
type dlqModel struct {
	bun.BaseModel `bun:"table:dead_letter_items"`

	Id uuid.UUID `bun:"id,pk,type:uuid"`

	ItemType        string    `bun:"item_type,notnull"`
	ErrorMessage    string    `bun:"error_message,notnull,default:''"`
	OriginalBatchId uuid.UUID `bun:"original_batch_id,type:uuid"`
	OriginalItemId  string    `bun:"original_item_id,notnull,default:''"`

	RetryCount int            `bun:"retry_count,notnull,default:0"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *dlqModel) toItem() *batch.DeadLetterItem {
	return &batch.DeadLetterItem{
		Id:              m.Id,
		ItemType:        m.ItemType,
		ErrorMessage:    m.ErrorMessage,
		OriginalBatchId: m.OriginalBatchId,
		OriginalItemId:  m.OriginalItemId,
		RetryCount:      m.RetryCount,
		Metadata:        batch.Metadata(m.Metadata),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func fromDLQItem(d *batch.DeadLetterItem) *dlqModel {
	now := time.Now()
	id := d.Id
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &dlqModel{
		Id:              id,
		ItemType:        d.ItemType,
		ErrorMessage:    d.ErrorMessage,
		OriginalBatchId: d.OriginalBatchId,
		OriginalItemId:  d.OriginalItemId,
		RetryCount:      d.RetryCount,
		Metadata:        map[string]any(d.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// rateLimitModel is the bun row type for rate_limits, keyed on
// (api_name, endpoint) rather than a surrogate id since the gate only
// ever needs the latest observed state per pair.
type rateLimitModel struct {
	bun.BaseModel `bun:"table:rate_limits"`

	ApiName  string `bun:"api_name,pk"`
	Endpoint string `bun:"endpoint,pk"`

	RequestsRemaining int       `bun:"requests_remaining,notnull,default:0"`
	RequestsLimit     int       `bun:"requests_limit,notnull,default:0"`
	ResetAt           time.Time `bun:"reset_at,nullzero,notnull,default:current_timestamp"`
	LastResponse      int       `bun:"last_response,notnull,default:0"`

	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (m *rateLimitModel) toRateLimit() *batch.RateLimit {
	return &batch.RateLimit{
		ApiName:           m.ApiName,
		Endpoint:          m.Endpoint,
		RequestsRemaining: m.RequestsRemaining,
		RequestsLimit:     m.RequestsLimit,
		ResetAt:           m.ResetAt,
		LastResponse:      m.LastResponse,
		UpdatedAt:         m.UpdatedAt,
	}
}
