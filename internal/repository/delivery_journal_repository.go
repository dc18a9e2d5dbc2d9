package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"golang-task-scheduler-core/internal/models"

	goRedis "github.com/redis/go-redis/v9"
)

const defaultJournalMaxLen = 10000

// DeliveryJournalRepository keeps a bounded history of delivery attempts in a Redis stream.
type DeliveryJournalRepository interface {
	Append(ctx context.Context, record *models.DeliveryRecord) error
	// Recent returns up to count records, newest first.
	Recent(ctx context.Context, count int64) ([]models.DeliveryRecord, error)
}

type deliveryJournalRepository struct {
	client *goRedis.Client
	stream string
	maxLen int64
}

func NewDeliveryJournalRepository(client *goRedis.Client, maxLen int64) DeliveryJournalRepository {
	if maxLen <= 0 {
		maxLen = defaultJournalMaxLen
	}
	return &deliveryJournalRepository{
		client: client,
		stream: models.RedisStreamDeliveryJournal,
		maxLen: maxLen,
	}
}

func (r *deliveryJournalRepository) Append(ctx context.Context, record *models.DeliveryRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery record: %w", err)
	}
	err = r.client.XAdd(ctx, &goRedis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}).Err()
	return storeError("append delivery record", err)
}

func (r *deliveryJournalRepository) Recent(ctx context.Context, count int64) ([]models.DeliveryRecord, error) {
	if count <= 0 {
		count = 50
	}
	messages, err := r.client.XRevRangeN(ctx, r.stream, "+", "-", count).Result()
	if err != nil {
		return nil, storeError("read delivery records", err)
	}

	records := make([]models.DeliveryRecord, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values["payload"].(string)
		if !ok {
			continue
		}
		var record models.DeliveryRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		record.StreamID = msg.ID
		records = append(records, record)
	}
	return records, nil
}
