package order

import (
	"errors"
	"sync"
	"testing"

	"traderelay/internal/venue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(1)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return s
}

func validRequest(owner string) CreateRequest {
	return CreateRequest{
		Owner:         owner,
		Platform:      venue.PlatformJupiter,
		Action:        ActionBuy,
		Amount:        1.5,
		Asset:         "SOL",
		TargetPrice:   10,
		WalletRef:     "wallet-1",
		NotifyChannel: "chat-1",
	}
}

func TestCreate_AssignsStrictlyIncreasingIDs(t *testing.T) {
	s := newTestStore(t)

	var lastID int64
	for i := 0; i < 50; i++ {
		ord, err := s.Create(validRequest("u1"))
		if err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
		if ord.Status != StatusActive {
			t.Fatalf("expected status active, got %s", ord.Status)
		}
		if ord.ID <= lastID {
			t.Fatalf("expected strictly increasing id, got %d after %d", ord.ID, lastID)
		}
		lastID = ord.ID
	}
}

func TestCreate_RejectsInvalidParameters(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
	}{
		{"empty owner", func(r *CreateRequest) { r.Owner = "" }},
		{"unknown platform", func(r *CreateRequest) { r.Platform = "binance" }},
		{"bad action", func(r *CreateRequest) { r.Action = "hold" }},
		{"zero amount", func(r *CreateRequest) { r.Amount = 0 }},
		{"negative amount", func(r *CreateRequest) { r.Amount = -1 }},
		{"empty asset", func(r *CreateRequest) { r.Asset = "  " }},
		{"zero target price", func(r *CreateRequest) { r.TargetPrice = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest("u1")
			tc.mutate(&req)
			if _, err := s.Create(req); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if got := s.ListByOwner("u1"); len(got) != 0 {
		t.Fatalf("rejected orders must not be stored, got %d", len(got))
	}
}

func TestListByOwner_InsertionOrderAndIsolation(t *testing.T) {
	s := newTestStore(t)

	first, _ := s.Create(validRequest("u1"))
	second, _ := s.Create(validRequest("u1"))
	if _, err := s.Create(validRequest("u2")); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got := s.ListByOwner("u1")
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("expected insertion order [%d %d], got [%d %d]", first.ID, second.ID, got[0].ID, got[1].ID)
	}

	if got := s.ListByOwner("nobody"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice for unknown owner, got %v", got)
	}
}

func TestCancel_FailuresDoNotMutateState(t *testing.T) {
	s := newTestStore(t)
	ord, _ := s.Create(validRequest("u1"))

	if err := s.Cancel("u1", 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	if err := s.Cancel("u2", ord.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}

	if err := s.Cancel("u1", ord.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	// 重复取消必须失败，不允许静默成功。
	if err := s.Cancel("u1", ord.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double cancel, got %v", err)
	}

	got, err := s.Get("u1", ord.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected status cancelled, got %s", got.Status)
	}
	if !got.ExecutedAt.IsZero() || got.ExecutedPrice != 0 {
		t.Fatalf("cancelled order must not carry execution fields: %+v", got)
	}
}

func TestMarkExecuted_TerminalAndRaceGuard(t *testing.T) {
	s := newTestStore(t)
	ord, _ := s.Create(validRequest("u1"))

	executed, err := s.MarkExecuted("u1", ord.ID, 9.5)
	if err != nil {
		t.Fatalf("MarkExecuted returned error: %v", err)
	}
	if executed.Status != StatusExecuted || executed.ExecutedPrice != 9.5 || executed.ExecutedAt.IsZero() {
		t.Fatalf("unexpected executed order: %+v", executed)
	}

	if _, err := s.MarkExecuted("u1", ord.ID, 9.4); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double execute, got %v", err)
	}
	if err := s.Cancel("u1", ord.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState cancelling executed order, got %v", err)
	}
}

func TestConcurrentCancelAndExecute_ExactlyOneWins(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 100; i++ {
		ord, _ := s.Create(validRequest("u1"))

		var wg sync.WaitGroup
		var cancelErr, execErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelErr = s.Cancel("u1", ord.ID)
		}()
		go func() {
			defer wg.Done()
			_, execErr = s.MarkExecuted("u1", ord.ID, 9.9)
		}()
		wg.Wait()

		if (cancelErr == nil) == (execErr == nil) {
			t.Fatalf("expected exactly one winner, cancel=%v exec=%v", cancelErr, execErr)
		}

		got, err := s.Get("u1", ord.ID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		switch got.Status {
		case StatusCancelled:
			if !got.ExecutedAt.IsZero() || got.ExecutedPrice != 0 {
				t.Fatalf("inconsistent cancelled order: %+v", got)
			}
		case StatusExecuted:
			if got.ExecutedAt.IsZero() || got.ExecutedPrice != 9.9 {
				t.Fatalf("inconsistent executed order: %+v", got)
			}
		default:
			t.Fatalf("order left non-terminal: %s", got.Status)
		}
	}
}

func TestActiveSnapshot_OnlyActiveOrders(t *testing.T) {
	s := newTestStore(t)

	a, _ := s.Create(validRequest("u1"))
	b, _ := s.Create(validRequest("u2"))
	c, _ := s.Create(validRequest("u3"))

	if err := s.Cancel("u2", b.ID); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if _, err := s.MarkExecuted("u3", c.ID, 10); err != nil {
		t.Fatalf("MarkExecuted returned error: %v", err)
	}

	snapshot := s.ActiveSnapshot()
	if len(snapshot) != 1 || snapshot[0].ID != a.ID {
		t.Fatalf("expected snapshot with only order %d, got %+v", a.ID, snapshot)
	}
}

func TestTriggered(t *testing.T) {
	buy := LimitOrder{Action: ActionBuy, TargetPrice: 100}
	if !buy.Triggered(95) || !buy.Triggered(100) || buy.Triggered(101) {
		t.Fatalf("buy trigger semantics broken")
	}

	sell := LimitOrder{Action: ActionSell, TargetPrice: 50}
	if sell.Triggered(49) || !sell.Triggered(50) || !sell.Triggered(51) {
		t.Fatalf("sell trigger semantics broken")
	}
}
