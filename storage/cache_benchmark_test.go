package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskledger-api/domain"
)

func BenchmarkCacheFetchViewHit(b *testing.B) {
	ctx := context.Background()
	accountID := uuid.New()
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	cache := NewCache(&stubBackend{
		listFn: func(context.Context, uuid.UUID, time.Time) ([]domain.TaskRow, error) {
			return taskRows(domain.KindUnchecked), nil
		},
	}, nil, 8)

	if _, err := cache.FetchView(ctx, accountID, day); err != nil {
		b.Fatalf("prime cache: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.FetchView(ctx, accountID, day); err != nil {
			b.Fatalf("fetch view: %v", err)
		}
	}
}
