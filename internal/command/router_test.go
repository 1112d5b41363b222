package command

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"traderelay/internal/order"
)

func newTestRouter(t *testing.T) (*Router, *order.Store) {
	t.Helper()
	store, err := order.NewStore(1)
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return NewRouter(store, nil, nil, nil, nil), store
}

func TestHandle_CreateListsAndCancels(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	reply, err := router.Handle(ctx, "u1", "wallet-1", "chat-1", "limit buy 2 SOL @ 10 on jupiter")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !strings.Contains(reply, "已登记") {
		t.Fatalf("unexpected create reply: %s", reply)
	}

	orders := store.ListByOwner("u1")
	if len(orders) != 1 || orders[0].WalletRef != "wallet-1" || orders[0].NotifyChannel != "chat-1" {
		t.Fatalf("order not registered with handles: %+v", orders)
	}

	reply, err = router.Handle(ctx, "u1", "", "", "orders")
	if err != nil || !strings.Contains(reply, "#") {
		t.Fatalf("unexpected list reply: %s err=%v", reply, err)
	}

	reply, err = router.Handle(ctx, "u1", "", "", "cancel "+strconv.FormatInt(orders[0].ID, 10))
	if err != nil || !strings.Contains(reply, "已取消") {
		t.Fatalf("unexpected cancel reply: %s err=%v", reply, err)
	}

	got, _ := store.Get("u1", orders[0].ID)
	if got.Status != order.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
}

func TestHandle_ListForNewOwnerIsEmptyNotError(t *testing.T) {
	router, _ := newTestRouter(t)

	reply, err := router.Handle(context.Background(), "nobody", "", "", "orders")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !strings.Contains(reply, "没有") {
		t.Fatalf("unexpected empty-list reply: %s", reply)
	}
}

func TestHandle_CancelErrorsPropagateTyped(t *testing.T) {
	router, store := newTestRouter(t)
	ctx := context.Background()

	if _, err := router.Handle(ctx, "u1", "", "", "cancel 12345"); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ord, _ := store.Create(order.CreateRequest{
		Owner: "u1", Platform: "jupiter", Action: order.ActionSell,
		Amount: 1, Asset: "SOL", TargetPrice: 5,
	})
	if err := router.CancelOrder(ctx, "u1", ord.ID); err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}
	if err := router.CancelOrder(ctx, "u1", ord.ID); !errors.Is(err, order.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestHandle_UnrecognizedWithoutInterpreter(t *testing.T) {
	router, _ := newTestRouter(t)

	if _, err := router.Handle(context.Background(), "u1", "", "", "帮我低吸一点SOL"); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}
