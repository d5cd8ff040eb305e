package services

import (
	"context"
	"fmt"
	"log/slog"

	"hogar/internal/core"
	"hogar/internal/storage"
)

// PackService handles session pack lifecycle: creation, consumption, renewal,
// and deletion.
type PackService struct {
	storage *storage.SQLiteRepository
}

func NewPackService(storage *storage.SQLiteRepository) *PackService {
	return &PackService{storage: storage}
}

// CreatePack validates and persists a new pack. The pack starts with zero
// consumed sessions and an empty date history.
func (s *PackService) CreatePack(ctx context.Context, p core.ServicePack) (core.ServicePack, error) {
	if err := p.Validate(); err != nil {
		return core.ServicePack{}, fmt.Errorf("validate pack: %w", err)
	}
	if p.LastPaymentDate.IsEmpty() {
		p.LastPaymentDate = core.Today()
	}

	created, err := s.storage.CreatePack(ctx, p)
	if err != nil {
		return core.ServicePack{}, fmt.Errorf("create pack: %w", err)
	}
	return created, nil
}

// ConsumeSession records one session against the pack, dated today unless a
// date is given. Consuming past the pack's capacity is allowed; the overdraw
// shows up as negative remaining sessions.
func (s *PackService) ConsumeSession(ctx context.Context, id int64, date core.Date) (core.ServicePack, error) {
	if date.IsEmpty() {
		date = core.Today()
	}

	p, err := s.storage.ConsumeSession(ctx, id, date)
	if err != nil {
		return core.ServicePack{}, fmt.Errorf("consume session: %w", err)
	}

	if p.Remaining() < 0 {
		slog.WarnContext(ctx, "Pack consumed past capacity",
			"id", p.ID,
			"service_name", p.ServiceName,
			"used_sessions", p.UsedSessions,
			"total_sessions", p.TotalSessions)
	}
	return p, nil
}

// RenewPack resets the pack's consumption and records the new payment date.
func (s *PackService) RenewPack(ctx context.Context, id int64, paymentDate core.Date) (core.ServicePack, error) {
	if paymentDate.IsEmpty() {
		paymentDate = core.Today()
	}

	if err := s.storage.RenewPack(ctx, id, paymentDate); err != nil {
		return core.ServicePack{}, fmt.Errorf("renew pack: %w", err)
	}
	p, err := s.storage.GetPack(ctx, id)
	if err != nil {
		return core.ServicePack{}, fmt.Errorf("reload renewed pack: %w", err)
	}
	return p, nil
}

func (s *PackService) DeletePack(ctx context.Context, id int64) error {
	if err := s.storage.DeletePack(ctx, id); err != nil {
		return fmt.Errorf("delete pack: %w", err)
	}
	return nil
}

func (s *PackService) GetPack(ctx context.Context, id int64) (core.ServicePack, error) {
	return s.storage.GetPack(ctx, id)
}

func (s *PackService) ListPacks(ctx context.Context) ([]core.ServicePack, error) {
	return s.storage.ListPacks(ctx)
}
