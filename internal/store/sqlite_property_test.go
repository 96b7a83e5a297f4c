package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nifty-paper/internal/models"
)

func newTestStore(t *testing.T, name string) *SQLiteStore {
	t.Helper()
	dbPath := name + ".db"
	t.Cleanup(func() { os.Remove(dbPath) })

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store *SQLiteStore, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// Property: For any valid candle data, saving candles to the database and then
// retrieving them should produce equivalent candle data (round-trip consistency).
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store := newTestStore(t, "test_candles_property")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	countGen := gen.IntRange(1, 20)
	priceGen := gen.Float64Range(100.0, 60000.0)
	volumeGen := gen.Int64Range(1000, 1000000)
	timeframeGen := gen.OneConstOf(models.Timeframe1m, models.Timeframe5m, models.Timeframe15m, models.Timeframe1h, models.Timeframe1d)

	properties.Property("Candle round-trip: save then retrieve produces equivalent data", prop.ForAll(
		func(timeframe string, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			symbol := fmt.Sprintf("NIFTY_%d", time.Now().UnixNano()%100000)

			candles := generateTestCandles(count, basePrice, baseVolume)

			if err := store.SaveCandles(ctx, symbol, timeframe, candles); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			from := candles[0].Timestamp.Add(-time.Second)
			to := candles[len(candles)-1].Timestamp.Add(time.Second)
			retrieved, err := store.GetCandles(ctx, symbol, timeframe, from, to)
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}

			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: saved %d, got %d", len(candles), len(retrieved))
				return false
			}

			for i := range candles {
				saved, got := candles[i], retrieved[i]
				if saved.Timestamp.Unix() != got.Timestamp.Unix() {
					return false
				}
				if saved.Open != got.Open || saved.High != got.High || saved.Low != got.Low || saved.Close != got.Close {
					return false
				}
				if saved.Volume != got.Volume {
					return false
				}
			}
			return true
		},
		timeframeGen,
		countGen,
		priceGen,
		volumeGen,
	))

	properties.TestingRun(t)
}

// Property: saving the same candles twice never duplicates rows. The
// (symbol, timeframe, timestamp) key makes saves idempotent.
func TestProperty_CandleSaveIdempotent(t *testing.T) {
	store := newTestStore(t, "test_candles_idempotent")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Saving candles twice yields the same row count", prop.ForAll(
		func(count int, basePrice float64) bool {
			ctx := context.Background()
			symbol := fmt.Sprintf("BANKNIFTY_%d", time.Now().UnixNano()%100000)
			candles := generateTestCandles(count, basePrice, 5000)

			if err := store.SaveCandles(ctx, symbol, models.Timeframe5m, candles); err != nil {
				return false
			}
			if err := store.SaveCandles(ctx, symbol, models.Timeframe5m, candles); err != nil {
				return false
			}

			from := candles[0].Timestamp.Add(-time.Second)
			to := candles[len(candles)-1].Timestamp.Add(time.Second)
			retrieved, err := store.GetCandles(ctx, symbol, models.Timeframe5m, from, to)
			if err != nil {
				return false
			}
			return len(retrieved) == len(candles)
		},
		gen.IntRange(1, 10),
		gen.Float64Range(100.0, 60000.0),
	))

	properties.TestingRun(t)
}

func generateTestCandles(count int, basePrice float64, baseVolume int64) []models.Candle {
	candles := make([]models.Candle, count)
	start := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		open := basePrice + float64(i)
		close := open + 0.5
		candles[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      close + 1.0,
			Low:       open - 1.0,
			Close:     close,
			Volume:    baseVolume + int64(i),
		}
	}
	return candles
}

func TestUserAndWalletRoundTrip(t *testing.T) {
	store := newTestStore(t, "test_users")
	ctx := context.Background()

	user := createTestUser(t, store, "ravi")

	got, err := store.GetUserByEmail(ctx, "ravi@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if got == nil || got.ID != user.ID || got.Username != "ravi" {
		t.Errorf("GetUserByEmail returned %+v, want ID %s", got, user.ID)
	}

	if got, _ := store.GetUserByUsername(ctx, "nobody"); got != nil {
		t.Errorf("Expected nil for unknown username, got %+v", got)
	}

	// Duplicate email must be rejected by the unique constraint
	dup := &models.User{ID: uuid.New(), Username: "other", Email: "ravi@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	if err := store.CreateUser(ctx, dup); err == nil {
		t.Error("Expected error creating user with duplicate email")
	}

	wallet := &models.Wallet{
		UserID:        user.ID,
		Balance:       100000,
		Currency:      "INR",
		TotalDeposits: 100000,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := store.CreateWallet(ctx, wallet); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	wallet.Balance = 95000
	txn := &models.WalletTransaction{
		ID:        uuid.New(),
		UserID:    user.ID,
		Type:      models.TxnOrderDebit,
		Amount:    -5000,
		Balance:   95000,
		Reference: "order-1",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.UpdateWallet(ctx, wallet, txn); err != nil {
		t.Fatalf("UpdateWallet failed: %v", err)
	}

	gotWallet, err := store.GetWallet(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if gotWallet.Balance != 95000 {
		t.Errorf("Wallet balance = %v, want 95000", gotWallet.Balance)
	}

	txns, err := store.GetWalletTransactions(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("GetWalletTransactions failed: %v", err)
	}
	if len(txns) != 1 || txns[0].Type != models.TxnOrderDebit || txns[0].Balance != 95000 {
		t.Errorf("Unexpected transactions: %+v", txns)
	}
}

func TestOrderLifecycle(t *testing.T) {
	store := newTestStore(t, "test_orders")
	ctx := context.Background()

	user := createTestUser(t, store, "meera")

	order := &models.PaperOrder{
		ID:       uuid.New(),
		UserID:   user.ID,
		Symbol:   "NIFTY2590924500CE",
		Exchange: models.NFO,
		Side:     models.OrderSideBuy,
		Type:     models.OrderTypeLimit,
		Product:  models.ProductMIS,
		Quantity: 2,
		Price:    120.5,
		Status:   models.OrderStatusOpen,
		PlacedAt: time.Now().UTC(),
	}
	if err := store.SaveOrder(ctx, order); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	open, err := store.GetOpenOrders(ctx)
	if err != nil {
		t.Fatalf("GetOpenOrders failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != order.ID {
		t.Fatalf("Expected one open order, got %+v", open)
	}
	if open[0].FilledAt != nil {
		t.Error("FilledAt should be nil before the order fills")
	}

	now := time.Now().UTC()
	order.Status = models.OrderStatusComplete
	order.AveragePrice = 120.5
	order.FilledQty = 2
	order.Charges = 25.3
	order.FilledAt = &now
	if err := store.UpdateOrder(ctx, order); err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}

	got, err := store.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != models.OrderStatusComplete || got.FilledQty != 2 || got.FilledAt == nil {
		t.Errorf("Unexpected order after fill: %+v", got)
	}

	count, err := store.CountOrdersSince(ctx, user.ID, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountOrdersSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("CountOrdersSince = %d, want 1", count)
	}

	filtered, err := store.GetOrders(ctx, OrderFilter{UserID: user.ID, Status: models.OrderStatusComplete})
	if err != nil {
		t.Fatalf("GetOrders failed: %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("Expected one completed order, got %d", len(filtered))
	}
}

func TestPositionUpsertAndDelete(t *testing.T) {
	store := newTestStore(t, "test_positions")
	ctx := context.Background()

	user := createTestUser(t, store, "arjun")

	pos := &models.PaperPosition{
		ID:           uuid.New(),
		UserID:       user.ID,
		Symbol:       "BANKNIFTY2590951000PE",
		Exchange:     models.NFO,
		Product:      models.ProductMIS,
		Kind:         models.KindOption,
		Quantity:     1,
		AveragePrice: 210.0,
		LTP:          215.0,
		Multiplier:   30,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := store.UpsertPosition(ctx, pos); err != nil {
		t.Fatalf("UpsertPosition failed: %v", err)
	}

	// Second upsert for the same key updates in place
	pos.Quantity = 2
	pos.AveragePrice = 212.5
	if err := store.UpsertPosition(ctx, pos); err != nil {
		t.Fatalf("Second UpsertPosition failed: %v", err)
	}

	positions, err := store.GetPositions(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetPositions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("Expected one position, got %d", len(positions))
	}
	if positions[0].Quantity != 2 || positions[0].AveragePrice != 212.5 {
		t.Errorf("Position not updated: %+v", positions[0])
	}

	if err := store.DeletePosition(ctx, user.ID, pos.Symbol, pos.Product); err != nil {
		t.Fatalf("DeletePosition failed: %v", err)
	}
	got, err := store.GetPosition(ctx, user.ID, pos.Symbol, pos.Product)
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected position deleted, got %+v", got)
	}
}

func TestWatchlist(t *testing.T) {
	store := newTestStore(t, "test_watchlist")
	ctx := context.Background()

	user := createTestUser(t, store, "sana")

	for _, symbol := range []string{"NIFTY", "BANKNIFTY", "NIFTY"} {
		if err := store.AddToWatchlist(ctx, user.ID, symbol); err != nil {
			t.Fatalf("AddToWatchlist failed: %v", err)
		}
	}

	symbols, err := store.GetWatchlist(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetWatchlist failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("Expected 2 watchlist symbols after duplicate add, got %v", symbols)
	}

	if err := store.RemoveFromWatchlist(ctx, user.ID, "NIFTY"); err != nil {
		t.Fatalf("RemoveFromWatchlist failed: %v", err)
	}
	symbols, _ = store.GetWatchlist(ctx, user.ID)
	if len(symbols) != 1 || symbols[0] != "BANKNIFTY" {
		t.Errorf("Expected [BANKNIFTY], got %v", symbols)
	}
}

func TestTournamentLeaderboardRanking(t *testing.T) {
	store := newTestStore(t, "test_tournaments")
	ctx := context.Background()

	admin := createTestUser(t, store, "admin")
	tournament := &models.Tournament{
		ID:          uuid.New(),
		Name:        "Weekly Expiry Challenge",
		EntryFee:    500,
		PrizePool:   10000,
		MaxEntrants: 100,
		StartAt:     time.Now().Add(time.Hour),
		EndAt:       time.Now().Add(48 * time.Hour),
		Status:      models.TournamentUpcoming,
		CreatedBy:   admin.ID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateTournament(ctx, tournament); err != nil {
		t.Fatalf("CreateTournament failed: %v", err)
	}

	pnls := []float64{1500, -300, 4200}
	for i, pnl := range pnls {
		user := createTestUser(t, store, fmt.Sprintf("trader%d", i))
		p := &models.TournamentParticipant{
			TournamentID: tournament.ID,
			UserID:       user.ID,
			StartBalance: 100000,
			JoinedAt:     time.Now().UTC(),
		}
		if err := store.AddParticipant(ctx, p); err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
		if err := store.UpdateParticipantPnL(ctx, tournament.ID, user.ID, pnl, pnl/1000); err != nil {
			t.Fatalf("UpdateParticipantPnL failed: %v", err)
		}
	}

	board, err := store.Leaderboard(ctx, tournament.ID, 10)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("Expected 3 participants, got %d", len(board))
	}
	wantPnL := []float64{4200, 1500, -300}
	for i, p := range board {
		if p.CurrentPnL != wantPnL[i] {
			t.Errorf("Leaderboard[%d].CurrentPnL = %v, want %v", i, p.CurrentPnL, wantPnL[i])
		}
		if p.Rank != i+1 {
			t.Errorf("Leaderboard[%d].Rank = %d, want %d", i, p.Rank, i+1)
		}
	}

	got, err := store.GetTournament(ctx, tournament.ID)
	if err != nil {
		t.Fatalf("GetTournament failed: %v", err)
	}
	if got.Participants != 3 {
		t.Errorf("Participants = %d, want 3", got.Participants)
	}

	if err := store.UpdateTournamentStatus(ctx, tournament.ID, models.TournamentActive); err != nil {
		t.Fatalf("UpdateTournamentStatus failed: %v", err)
	}
	active, err := store.ListTournaments(ctx, models.TournamentActive)
	if err != nil {
		t.Fatalf("ListTournaments failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected 1 active tournament, got %d", len(active))
	}
}
