package staking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smartvenkatesh/new-staking/internal/logging"
	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

func setupTestApp(t *testing.T) (*fiber.App, *wallet.Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
	wallets := wallet.NewService(wallet.NewMemoryRepository())
	svc := NewService(NewMemoryRepository(), wallets, nil, clock, logging.Discard())
	h := NewHandler(svc)

	app := fiber.New()
	app.Post("/stake", h.Create)
	app.Post("/withdraw", h.Withdraw)
	app.Get("/stakes", h.List)
	return app, wallets, clock
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp.StatusCode, decoded
}

func TestStakeEndpointInsufficientBalance(t *testing.T) {
	app, wallets, _ := setupTestApp(t)
	ctx := context.Background()

	w, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: uuid.NewString(), Address: "0xabc", CurrencyType: "ETH"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := wallets.Credit(ctx, w.ID, decimal.NewFromInt(10), "seed:1", "deposit"); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	status, _ := postJSON(t, app, "/stake", map[string]any{
		"user_id":    w.OwnerID,
		"wallet_id":  string(w.ID),
		"amount":     "60",
		"duration":   30,
		"stake_type": "fixed",
		"network":    "ETH",
	})
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient balance, got %d", status)
	}
}

func TestStakeAndWithdrawFlow(t *testing.T) {
	app, wallets, clock := setupTestApp(t)
	ctx := context.Background()

	w, err := wallets.Create(ctx, wallet.CreateInput{OwnerID: uuid.NewString(), Address: "0xdef", CurrencyType: "ETH"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := wallets.Credit(ctx, w.ID, decimal.NewFromInt(100), "seed:2", "deposit"); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	status, body := postJSON(t, app, "/stake", map[string]any{
		"user_id":    w.OwnerID,
		"wallet_id":  string(w.ID),
		"amount":     "60",
		"duration":   1,
		"stake_type": "fixed",
		"network":    "ETH",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", status, body)
	}

	clock.Advance(25 * time.Hour)

	status, body = postJSON(t, app, "/withdraw", map[string]any{"account": "0xdef"})
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", status, body)
	}
	if body["status"] != string(StatusCompleted) {
		t.Fatalf("expected completed withdrawal, got %v", body["status"])
	}
	if body["matured"] != true {
		t.Fatalf("expected matured=true, got %v", body["matured"])
	}

	status, _ = postJSON(t, app, "/withdraw", map[string]any{"account": "0xdef"})
	if status != fiber.StatusNotFound {
		t.Fatalf("expected 404 for second withdrawal, got %d", status)
	}
}

func TestListStakesFiltersByType(t *testing.T) {
	app, wallets, _ := setupTestApp(t)
	ctx := context.Background()

	for i, typ := range []string{"fixed", "flexible"} {
		w, err := wallets.Create(ctx, wallet.CreateInput{
			OwnerID: uuid.NewString(), Address: fmt.Sprintf("0x%d", i), CurrencyType: "ETH",
		})
		if err != nil {
			t.Fatalf("create wallet: %v", err)
		}
		if _, err := wallets.Credit(ctx, w.ID, decimal.NewFromInt(100), fmt.Sprintf("seed:%d", i), "deposit"); err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
		status, _ := postJSON(t, app, "/stake", map[string]any{
			"user_id": w.OwnerID, "wallet_id": string(w.ID),
			"amount": "50", "duration": 10, "stake_type": typ, "network": "ETH",
		})
		if status != fiber.StatusCreated {
			t.Fatalf("stake %s: expected 201, got %d", typ, status)
		}
	}

	req := httptest.NewRequest(fiber.MethodGet, "/stakes?type=fixed", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var stakes []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stakes); err != nil {
		t.Fatalf("decode stakes: %v", err)
	}
	if len(stakes) != 1 || stakes[0]["type"] != "fixed" {
		t.Fatalf("expected a single fixed stake, got %v", stakes)
	}
}
