package service

import (
	"context"
	"sync"
	"testing"

	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/events"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

func seedItem(t *testing.T, env *testEnv, id string) *domain.Item {
	t.Helper()
	item := &domain.Item{ID: id, Category: "rare", PriceCents: 2500, Currency: "USD", Available: true}
	if err := env.items.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func TestReserve(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("places an exclusive hold", func(t *testing.T) {
		item := seedItem(t, env, "item-1")
		env.tickets.set(&domain.Ticket{ID: "ticket-1", CustomerID: "cust-1", Open: true})

		reserved, err := env.guard.Reserve(ctx, item.ID, "ticket-1", "cust-1")
		if err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if reserved.State() != domain.ItemStateReserved {
			t.Fatalf("state = %s, want RESERVED", reserved.State())
		}
		ticket, _ := env.tickets.GetByID(ctx, "ticket-1")
		if ticket.ItemID == nil || *ticket.ItemID != item.ID {
			t.Fatal("reserve should attach the item to the ticket")
		}
	})

	t.Run("second claim is rejected", func(t *testing.T) {
		item := seedItem(t, env, "item-2")
		if _, err := env.guard.Reserve(ctx, item.ID, "ticket-a", "cust-a"); err != nil {
			t.Fatalf("first claim: %v", err)
		}
		_, err := env.guard.Reserve(ctx, item.ID, "ticket-b", "cust-b")
		if !apperrors.HasCode(err, apperrors.CodeItemUnavailable) {
			t.Fatalf("err = %v, want ITEM_UNAVAILABLE", err)
		}
	})

	t.Run("unknown item is not found", func(t *testing.T) {
		_, err := env.guard.Reserve(ctx, "no-such-item", "ticket-a", "cust-a")
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			t.Fatalf("err = %v, want NOT_FOUND", err)
		}
	})

	t.Run("exactly one concurrent claim wins", func(t *testing.T) {
		item := seedItem(t, env, "item-race")
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = env.guard.Reserve(ctx, item.ID, "ticket-race", "cust-race")
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else if !apperrors.HasCode(err, apperrors.CodeItemUnavailable) {
				t.Fatalf("loser err = %v, want ITEM_UNAVAILABLE", err)
			}
		}
		if wins != 1 {
			t.Fatalf("wins = %d, want exactly 1", wins)
		}
	})
}

func TestFinalizeSale(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("converts the hold into a sale", func(t *testing.T) {
		item := seedItem(t, env, "item-3")
		env.tickets.set(&domain.Ticket{ID: "ticket-3", CustomerID: "cust-3", Open: true})
		if _, err := env.guard.Reserve(ctx, item.ID, "ticket-3", "cust-3"); err != nil {
			t.Fatalf("Reserve: %v", err)
		}

		sold, err := env.guard.FinalizeSale(ctx, item.ID, "ticket-3", "cust-3", "staff-1")
		if err != nil {
			t.Fatalf("FinalizeSale: %v", err)
		}
		if sold.State() != domain.ItemStateSold {
			t.Fatalf("state = %s, want SOLD", sold.State())
		}
		if sold.SoldToCustomerID == nil || *sold.SoldToCustomerID != "cust-3" {
			t.Fatalf("sold to %v, want cust-3", sold.SoldToCustomerID)
		}
		ticket, _ := env.tickets.GetByID(ctx, "ticket-3")
		if !ticket.Delivered {
			t.Fatal("owning ticket should be marked delivered")
		}
	})

	t.Run("rejects a different holder", func(t *testing.T) {
		item := seedItem(t, env, "item-4")
		if _, err := env.guard.Reserve(ctx, item.ID, "ticket-4", "cust-4"); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		_, err := env.guard.FinalizeSale(ctx, item.ID, "other-ticket", "cust-4", "")
		if !apperrors.HasCode(err, apperrors.CodeReservationLost) {
			t.Fatalf("err = %v, want RESERVATION_MISMATCH", err)
		}
	})

	t.Run("rejects an unreserved item", func(t *testing.T) {
		item := seedItem(t, env, "item-5")
		_, err := env.guard.FinalizeSale(ctx, item.ID, "ticket-5", "cust-5", "")
		if !apperrors.HasCode(err, apperrors.CodeReservationLost) {
			t.Fatalf("err = %v, want RESERVATION_MISMATCH", err)
		}
	})
}

func TestRelease(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("restores availability", func(t *testing.T) {
		item := seedItem(t, env, "item-6")
		if _, err := env.guard.Reserve(ctx, item.ID, "ticket-6", "cust-6"); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		released, err := env.guard.Release(ctx, item.ID)
		if err != nil {
			t.Fatalf("Release: %v", err)
		}
		if released.State() != domain.ItemStateAvailable {
			t.Fatalf("state = %s, want AVAILABLE", released.State())
		}
	})

	t.Run("never resurrects a sold item", func(t *testing.T) {
		item := seedItem(t, env, "item-7")
		if _, err := env.guard.Reserve(ctx, item.ID, "ticket-7", "cust-7"); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
		if _, err := env.guard.FinalizeSale(ctx, item.ID, "ticket-7", "cust-7", ""); err != nil {
			t.Fatalf("FinalizeSale: %v", err)
		}
		after, err := env.guard.Release(ctx, item.ID)
		if err != nil {
			t.Fatalf("Release on sold item: %v", err)
		}
		if after.State() != domain.ItemStateSold {
			t.Fatalf("state = %s, sold item must stay SOLD", after.State())
		}
	})

	t.Run("releasing an available item is a no-op", func(t *testing.T) {
		item := seedItem(t, env, "item-8")
		before := len(env.events.types())
		after, err := env.guard.Release(ctx, item.ID)
		if err != nil {
			t.Fatalf("Release: %v", err)
		}
		if after.State() != domain.ItemStateAvailable {
			t.Fatalf("state = %s", after.State())
		}
		for _, typ := range env.events.types()[before:] {
			if typ == events.EventItemReleased {
				t.Fatal("no release event expected for a no-op")
			}
		}
	})
}
