package infra

import (
	"context"
	"errors"

	"tts-gateway/middleware/ratelimit/domain"
)

// TeeStatsStore repassa cada evento para todos os stores. Um store com
// falha não impede os demais; os erros voltam juntos.
type TeeStatsStore []domain.StatsStore

func (t TeeStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
