package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nifty-paper/internal/auth"
	"nifty-paper/internal/config"
	"nifty-paper/internal/engine"
	"nifty-paper/internal/feed"
	"nifty-paper/internal/store"
	"nifty-paper/internal/tournament"
)

type testServer struct {
	srv   *Server
	store *store.SQLiteStore
	sim   *feed.Simulator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "server_test.db")
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { dataStore.Close() })

	logger := zerolog.Nop()

	catalog := feed.NewCatalog()
	catalog.LoadBuiltin()
	sim := feed.NewSimulator(feed.DefaultSimulatorConfig(), catalog, nil, logger)

	tradingCfg := config.TradingConfig{
		InitialBalance:  100000,
		MaxPositionSize: 50000,
		MaxOrdersPerDay: 100,
		MinOrderValue:   100,
		DefaultProduct:  "MIS",
		DefaultExchange: "NFO",
		EnforceHours:    false,
	}

	authService := auth.NewService(dataStore, "test-secret", time.Hour, tradingCfg.InitialBalance, logger)
	eng := engine.New(dataStore, catalog, sim, tradingCfg, logger)
	tournaments := tournament.NewService(dataStore, eng, logger)

	srv := New(config.ServerConfig{Addr: ":0"}, Deps{
		Auth:        authService,
		Engine:      eng,
		Tournaments: tournaments,
		Store:       dataStore,
		Catalog:     catalog,
		Simulator:   sim,
	}, logger)

	return &testServer{srv: srv, store: dataStore, sim: sim}
}

func (ts *testServer) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signup(t *testing.T, username string) string {
	t.Helper()

	rec := ts.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatal("signup returned empty token")
	}
	return resp.Data.Token
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSignupLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	token := ts.signup(t, "trader1")

	rec := ts.request(t, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me returned %d: %s", rec.Code, rec.Body.String())
	}

	var user struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	decodeData(t, rec, &user)
	if user.Username != "trader1" || user.Email != "trader1@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}

	// Login by email.
	rec = ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "trader1@example.com",
		"password":   "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password.
	rec = ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": "trader1",
		"password":   "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", rec.Code)
	}

	// Duplicate signup conflicts.
	rec = ts.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "trader1",
		"email":    "trader1@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate signup, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	paths := []string{
		"/api/auth/me",
		"/api/paper/portfolio",
		"/api/paper/positions",
		"/api/watchlist",
	}
	for _, path := range paths {
		rec := ts.request(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	rec := ts.request(t, http.MethodGet, "/api/auth/me", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestQuotesAndCandlesEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/quotes?symbols=NIFTY,BANKNIFTY", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quotes returned %d", rec.Code)
	}

	var quotes []struct {
		Symbol string  `json:"symbol"`
		LTP    float64 `json:"ltp"`
	}
	decodeData(t, rec, &quotes)
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	for _, q := range quotes {
		if q.LTP <= 0 {
			t.Errorf("%s: non-positive ltp %f", q.Symbol, q.LTP)
		}
	}

	rec = ts.request(t, http.MethodGet, "/api/quotes/UNKNOWN", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown symbol, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/candles/NIFTY?timeframe=7m", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid timeframe, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/candles/NIFTY?timeframe=5m", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("candles returned %d", rec.Code)
	}
}

func TestOptionChainEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/candles/options-chain/NIFTY", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chain returned %d: %s", rec.Code, rec.Body.String())
	}

	var chain struct {
		Symbol  string    `json:"symbol"`
		ATM     []float64 `json:"atm_strikes"`
		Strikes []struct {
			Strike float64 `json:"strike"`
		} `json:"strikes"`
	}
	decodeData(t, rec, &chain)
	if chain.Symbol != "NIFTY" {
		t.Errorf("expected NIFTY, got %s", chain.Symbol)
	}
	if len(chain.ATM) != 2 {
		t.Errorf("expected 2 atm strikes, got %d", len(chain.ATM))
	}
	if len(chain.Strikes) == 0 {
		t.Error("expected strike rows")
	}

	rec = ts.request(t, http.MethodGet, "/api/candles/options-chain/RELIANCE", "", nil)
	if rec.Code == http.StatusOK {
		t.Error("expected error for non-index underlying")
	}
}

func TestWatchlistEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "watcher")

	rec := ts.request(t, http.MethodPost, "/api/watchlist", token, map[string]string{"symbol": "NIFTY"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodPost, "/api/watchlist", token, map[string]string{"symbol": "NOSUCH"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown symbol, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/watchlist", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	var entries []struct {
		Symbol string `json:"symbol"`
		Quote  *struct {
			LTP float64 `json:"ltp"`
		} `json:"quote"`
	}
	decodeData(t, rec, &entries)
	if len(entries) != 1 || entries[0].Symbol != "NIFTY" {
		t.Fatalf("unexpected watchlist: %+v", entries)
	}
	if entries[0].Quote == nil || entries[0].Quote.LTP <= 0 {
		t.Error("expected live quote attached to entry")
	}

	rec = ts.request(t, http.MethodDelete, "/api/watchlist/NIFTY", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove returned %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/watchlist", token, nil)
	decodeData(t, rec, &entries)
	if len(entries) != 0 {
		t.Errorf("expected empty watchlist, got %+v", entries)
	}
}

func TestOrderFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "orderer")

	symbol := nearestCallSymbol(t, ts)

	rec := ts.request(t, http.MethodPost, "/api/paper/orders", token, map[string]interface{}{
		"symbol":   symbol,
		"side":     "BUY",
		"type":     "MARKET",
		"quantity": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("place returned %d: %s", rec.Code, rec.Body.String())
	}

	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, rec, &order)
	if order.Status != "COMPLETE" {
		t.Errorf("expected COMPLETE, got %s", order.Status)
	}

	rec = ts.request(t, http.MethodGet, "/api/paper/positions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("positions returned %d", rec.Code)
	}
	var positions []struct {
		Symbol   string `json:"symbol"`
		Quantity int    `json:"quantity"`
	}
	decodeData(t, rec, &positions)
	if len(positions) != 1 || positions[0].Quantity != 1 {
		t.Fatalf("unexpected positions: %+v", positions)
	}

	rec = ts.request(t, http.MethodGet, "/api/paper/portfolio", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("portfolio returned %d", rec.Code)
	}
	var summary struct {
		WalletBalance float64 `json:"wallet_balance"`
		OpenPositions int     `json:"open_positions"`
	}
	decodeData(t, rec, &summary)
	if summary.OpenPositions != 1 {
		t.Errorf("expected 1 open position, got %d", summary.OpenPositions)
	}
	if summary.WalletBalance >= 100000 {
		t.Errorf("expected wallet debit, balance %f", summary.WalletBalance)
	}

	// Invalid quantity rejected up front.
	rec = ts.request(t, http.MethodPost, "/api/paper/orders", token, map[string]interface{}{
		"symbol":   symbol,
		"side":     "BUY",
		"type":     "MARKET",
		"quantity": 0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero quantity, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodDelete, "/api/paper/orders/not-a-uuid", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad order id, got %d", rec.Code)
	}
}

func TestWalletEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "banker")

	rec := ts.request(t, http.MethodGet, "/api/paper/wallet", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("wallet returned %d", rec.Code)
	}
	var wallet struct {
		Balance float64 `json:"balance"`
	}
	decodeData(t, rec, &wallet)
	if wallet.Balance != 100000 {
		t.Errorf("expected initial balance 100000, got %f", wallet.Balance)
	}

	rec = ts.request(t, http.MethodPost, "/api/paper/wallet/deposit", token, map[string]float64{"amount": 5000})
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit returned %d: %s", rec.Code, rec.Body.String())
	}
	decodeData(t, rec, &wallet)
	if wallet.Balance != 105000 {
		t.Errorf("expected 105000 after deposit, got %f", wallet.Balance)
	}

	rec = ts.request(t, http.MethodPost, "/api/paper/wallet/withdraw", token, map[string]float64{"amount": 200000})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for oversized withdrawal, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/paper/wallet/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions returned %d", rec.Code)
	}
	var txns []struct {
		Type   string  `json:"type"`
		Amount float64 `json:"amount"`
	}
	decodeData(t, rec, &txns)
	if len(txns) != 1 || txns[0].Amount != 5000 {
		t.Errorf("unexpected transactions: %+v", txns)
	}
}

func TestTournamentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "player")

	// Non-admin create forbidden.
	body := map[string]interface{}{
		"name":      "Weekly Clash",
		"entry_fee": 500,
		"start_at":  time.Now().Add(-time.Minute).Format(time.RFC3339),
		"end_at":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	}
	rec := ts.request(t, http.MethodPost, "/api/tournaments", token, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin create, got %d", rec.Code)
	}

	adminToken := ts.promoteAdmin(t, "boss")
	rec = ts.request(t, http.MethodPost, "/api/tournaments", adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create returned %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeData(t, rec, &created)
	if created.Status != "ACTIVE" {
		t.Errorf("expected ACTIVE, got %s", created.Status)
	}

	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/tournaments/%s/join", created.ID), token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("join returned %d: %s", rec.Code, rec.Body.String())
	}

	// Double join conflicts.
	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/tournaments/%s/join", created.ID), token, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for double join, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, fmt.Sprintf("/api/tournaments/%s/leaderboard", created.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard returned %d", rec.Code)
	}
	var standings []struct {
		Username string `json:"username"`
		Rank     int    `json:"rank"`
	}
	decodeData(t, rec, &standings)
	if len(standings) != 1 || standings[0].Rank != 1 {
		t.Fatalf("unexpected standings: %+v", standings)
	}

	rec = ts.request(t, http.MethodGet, "/api/tournaments/mine", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mine returned %d", rec.Code)
	}
}

func TestTeamEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ownerToken := ts.signup(t, "captain")
	memberToken := ts.signup(t, "recruit")

	rec := ts.request(t, http.MethodPost, "/api/teams", "", map[string]string{"name": "Nifty Bulls"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthenticated create, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/teams", ownerToken, map[string]string{"name": "Nifty Bulls"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Members int    `json:"members"`
	}
	decodeData(t, rec, &created)
	if created.Name != "Nifty Bulls" || created.Members != 1 {
		t.Fatalf("unexpected team: %+v", created)
	}

	// Duplicate names conflict, case-insensitively.
	rec = ts.request(t, http.MethodPost, "/api/teams", memberToken, map[string]string{"name": "nifty bulls"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/teams/%s/join", created.ID), memberToken, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("join returned %d: %s", rec.Code, rec.Body.String())
	}

	// Rejoining conflicts, and so does the owner joining their own team.
	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/teams/%s/join", created.ID), memberToken, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for double join, got %d", rec.Code)
	}
	rec = ts.request(t, http.MethodPost, fmt.Sprintf("/api/teams/%s/join", created.ID), ownerToken, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for owner rejoin, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, fmt.Sprintf("/api/teams/%s/members", created.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("members returned %d", rec.Code)
	}
	var members []struct {
		UserID string `json:"user_id"`
	}
	decodeData(t, rec, &members)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	rec = ts.request(t, http.MethodGet, "/api/teams", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}
	var teams []struct {
		ID      string `json:"id"`
		Members int    `json:"members"`
	}
	decodeData(t, rec, &teams)
	if len(teams) != 1 || teams[0].Members != 2 {
		t.Fatalf("unexpected teams: %+v", teams)
	}

	rec = ts.request(t, http.MethodGet, "/api/teams/not-a-uuid/members", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed id, got %d", rec.Code)
	}
}

// promoteAdmin signs up a user, flags them as admin in the store, and returns
// a fresh token carrying the admin claim.
func (ts *testServer) promoteAdmin(t *testing.T, username string) string {
	t.Helper()

	ts.signup(t, username)

	ctx := context.Background()
	user, err := ts.store.GetUserByUsername(ctx, username)
	if err != nil || user == nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if err := ts.store.SetUserAdmin(ctx, user.ID, true); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}

	rec := ts.request(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"identifier": username,
		"password":   "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login returned %d", rec.Code)
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return resp.Data.Token
}

// nearestCallSymbol picks an option the simulator has priced, roughly at the
// money so one lot stays within position limits.
func nearestCallSymbol(t *testing.T, ts *testServer) string {
	t.Helper()

	rec := ts.request(t, http.MethodGet, "/api/candles/options-chain/NIFTY", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("chain returned %d", rec.Code)
	}
	var chain struct {
		ATM     []float64 `json:"atm_strikes"`
		Strikes []struct {
			Strike float64 `json:"strike"`
			Call   *struct {
				Symbol string `json:"symbol"`
			} `json:"ce"`
		} `json:"strikes"`
	}
	decodeData(t, rec, &chain)
	for _, row := range chain.Strikes {
		if len(chain.ATM) > 0 && row.Strike == chain.ATM[0] && row.Call != nil {
			return row.Call.Symbol
		}
	}
	t.Fatal("no atm call found in chain")
	return ""
}
