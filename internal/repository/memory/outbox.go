package memory

import (
	"context"
	"time"

	"github.com/Khaja-0531/flight-finders/internal/domain"
)

type outboxRepo struct {
	s *Store
}

func (r *outboxRepo) Create(ctx context.Context, e *domain.OutboxEvent) error {
	r.s.outboxMu.Lock()
	defer r.s.outboxMu.Unlock()

	stored := *e
	stored.Payload = append([]byte(nil), e.Payload...)
	r.s.outbox = append(r.s.outbox, &stored)

	id := e.ID
	record(ctx, func() {
		r.s.outboxMu.Lock()
		defer r.s.outboxMu.Unlock()
		for i, ev := range r.s.outbox {
			if ev.ID == id {
				r.s.outbox = append(r.s.outbox[:i], r.s.outbox[i+1:]...)
				return
			}
		}
	})
	return nil
}

// FetchBatch claims new events and reclaims those whose claim outlived lease.
func (r *outboxRepo) FetchBatch(ctx context.Context, limit int, lease time.Duration) ([]domain.OutboxEvent, error) {
	r.s.outboxMu.Lock()
	defer r.s.outboxMu.Unlock()

	now := r.s.now()
	var batch []domain.OutboxEvent
	for _, ev := range r.s.outbox {
		if len(batch) >= limit {
			break
		}
		switch {
		case ev.Status == domain.OutboxStatusNew:
		case ev.Status == domain.OutboxStatusProcessing && now.Sub(r.s.claimedAt[ev.ID]) > lease:
		default:
			continue
		}
		ev.Status = domain.OutboxStatusProcessing
		ev.Attempts++
		r.s.claimedAt[ev.ID] = now
		batch = append(batch, *ev)
	}
	return batch, nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, ids []string) error {
	r.setStatus(ids, domain.OutboxStatusProcessed)
	return nil
}

func (r *outboxRepo) MarkFailed(ctx context.Context, ids []string) error {
	r.setStatus(ids, domain.OutboxStatusNew)
	return nil
}

func (r *outboxRepo) setStatus(ids []string, status string) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	r.s.outboxMu.Lock()
	defer r.s.outboxMu.Unlock()
	for _, ev := range r.s.outbox {
		if want[ev.ID] {
			ev.Status = status
			delete(r.s.claimedAt, ev.ID)
		}
	}
}

// Pending returns a copy of the events that were not relayed yet.
func (s *Store) Pending() []domain.OutboxEvent {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	var out []domain.OutboxEvent
	for _, ev := range s.outbox {
		if ev.Status != domain.OutboxStatusProcessed {
			out = append(out, *ev)
		}
	}
	return out
}
