package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/vastrakart/api/internal/domain"
	pfirestore "github.com/vastrakart/api/internal/platform/firestore"
)

const webhookEventsCollection = "webhookEvents"

// WebhookEventRepository records processed gateway event ids so redelivered
// webhooks can be acknowledged without reprocessing.
type WebhookEventRepository struct {
	base *pfirestore.BaseRepository[domain.WebhookEvent]
}

// NewWebhookEventRepository constructs a Firestore-backed webhook event repository.
func NewWebhookEventRepository(provider *pfirestore.Provider) (*WebhookEventRepository, error) {
	if provider == nil {
		return nil, errors.New("webhook event repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[domain.WebhookEvent](provider, webhookEventsCollection, nil, nil)
	return &WebhookEventRepository{base: base}, nil
}

// MarkProcessed claims the event id with a create, so a redelivery surfaces
// as a conflict RepositoryError and the caller can skip reprocessing.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, event domain.WebhookEvent) error {
	if r == nil || r.base == nil {
		return errors.New("webhook event repository not initialised")
	}
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		return errors.New("webhook event: id is required")
	}
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}

	ref, err := r.base.DocumentRef(ctx, eventID)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, event); err != nil {
		return pfirestore.WrapError("webhookEvents.markProcessed", err)
	}
	return nil
}
