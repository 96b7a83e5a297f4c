// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"nifty-paper/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Users table
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		is_admin INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Wallets table, one per user
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		balance REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		total_deposits REAL DEFAULT 0,
		total_withdrawals REAL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Wallet transactions audit trail
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		balance REAL NOT NULL,
		reference TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Paper orders table
	CREATE TABLE IF NOT EXISTS paper_orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		product TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL DEFAULT 0,
		average_price REAL DEFAULT 0,
		filled_qty INTEGER DEFAULT 0,
		charges REAL DEFAULT 0,
		status TEXT NOT NULL,
		reason TEXT,
		placed_at DATETIME NOT NULL,
		filled_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Paper trades (fills) table
	CREATE TABLE IF NOT EXISTS paper_trades (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		charges REAL DEFAULT 0,
		pnl REAL DEFAULT 0,
		executed_at DATETIME NOT NULL,
		FOREIGN KEY (order_id) REFERENCES paper_orders(id)
	);

	-- Paper positions table
	CREATE TABLE IF NOT EXISTS paper_positions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		product TEXT NOT NULL,
		kind TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_price REAL NOT NULL,
		ltp REAL DEFAULT 0,
		multiplier INTEGER DEFAULT 1,
		realized_pnl REAL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, symbol, product),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Candles table for OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- Per-user watchlist table
	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, symbol),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Tournaments table
	CREATE TABLE IF NOT EXISTS tournaments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		entry_fee REAL DEFAULT 0,
		prize_pool REAL DEFAULT 0,
		max_entrants INTEGER DEFAULT 0,
		start_at DATETIME NOT NULL,
		end_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Tournament participants table
	CREATE TABLE IF NOT EXISTS tournament_participants (
		tournament_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_balance REAL NOT NULL,
		current_pnl REAL DEFAULT 0,
		pnl_percent REAL DEFAULT 0,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tournament_id, user_id),
		FOREIGN KEY (tournament_id) REFERENCES tournaments(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Teams table
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (owner_id) REFERENCES users(id)
	);

	-- Team members table
	CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (team_id, user_id),
		FOREIGN KEY (team_id) REFERENCES teams(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_orders_user ON paper_orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON paper_orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON paper_orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_trades_user ON paper_trades(user_id);
	CREATE INDEX IF NOT EXISTS idx_positions_user ON paper_positions(user_id);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_txns_user ON wallet_transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_participants_pnl ON tournament_participants(tournament_id, current_pnl);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Users Methods
// ============================================================================

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	isAdmin := 0
	if user.IsAdmin {
		isAdmin = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, user.Email, user.PasswordHash, isAdmin, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateUserWithWallet inserts a user and their wallet in one transaction so
// signup never leaves a user without funds.
func (s *SQLiteStore) CreateUserWithWallet(ctx context.Context, user *models.User, wallet *models.Wallet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	isAdmin := 0
	if user.IsAdmin {
		isAdmin = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.Username, user.Email, user.PasswordHash, isAdmin, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, currency, total_deposits, total_withdrawals, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, wallet.UserID.String(), wallet.Balance, wallet.Currency, wallet.TotalDeposits, wallet.TotalWithdrawals, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetUserAdmin grants or revokes admin rights.
func (s *SQLiteStore) SetUserAdmin(ctx context.Context, userID uuid.UUID, isAdmin bool) error {
	flag := 0
	if isAdmin {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, flag, userID.String())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	var id string
	var isAdmin int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, is_admin, created_at
		FROM users WHERE `+where+` = ?
	`, arg).Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &isAdmin, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user id: %w", err)
	}
	u.IsAdmin = isAdmin == 1
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id", id.String())
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

// ============================================================================
// Wallets Methods
// ============================================================================

// CreateWallet inserts a new wallet.
func (s *SQLiteStore) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, currency, total_deposits, total_withdrawals, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, wallet.UserID.String(), wallet.Balance, wallet.Currency, wallet.TotalDeposits, wallet.TotalWithdrawals, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWallet retrieves a user's wallet.
func (s *SQLiteStore) GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, currency, total_deposits, total_withdrawals, updated_at
		FROM wallets WHERE user_id = ?
	`, userID.String()).Scan(&w.Balance, &w.Currency, &w.TotalDeposits, &w.TotalWithdrawals, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	w.UserID = userID
	return &w, nil
}

// UpdateWallet persists a wallet balance change together with its audit
// transaction in a single database transaction.
func (s *SQLiteStore) UpdateWallet(ctx context.Context, wallet *models.Wallet, txn *models.WalletTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET balance = ?, total_deposits = ?, total_withdrawals = ?, updated_at = ?
		WHERE user_id = ?
	`, wallet.Balance, wallet.TotalDeposits, wallet.TotalWithdrawals, wallet.UpdatedAt, wallet.UserID.String())
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}

	if txn != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO wallet_transactions (id, user_id, type, amount, balance, reference, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, txn.ID.String(), txn.UserID.String(), txn.Type, txn.Amount, txn.Balance, txn.Reference, txn.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert wallet transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetWalletTransactions retrieves a user's wallet transactions, newest first.
func (s *SQLiteStore) GetWalletTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	query := `
		SELECT id, type, amount, balance, COALESCE(reference, ''), created_at
		FROM wallet_transactions WHERE user_id = ? ORDER BY created_at DESC
	`
	args := []interface{}{userID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.WalletTransaction
	for rows.Next() {
		var t models.WalletTransaction
		var id string
		if err := rows.Scan(&id, &t.Type, &t.Amount, &t.Balance, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		t.ID, _ = uuid.Parse(id)
		t.UserID = userID
		txns = append(txns, t)
	}

	return txns, rows.Err()
}

// ============================================================================
// Orders Methods
// ============================================================================

// SaveOrder inserts a new paper order.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *models.PaperOrder) error {
	var filledAt interface{}
	if order.FilledAt != nil {
		filledAt = *order.FilledAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_orders (id, user_id, symbol, exchange, side, type, product, quantity, price, average_price, filled_qty, charges, status, reason, placed_at, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.ID.String(), order.UserID.String(), order.Symbol, order.Exchange, order.Side, order.Type, order.Product,
		order.Quantity, order.Price, order.AveragePrice, order.FilledQty, order.Charges, order.Status, order.Reason, order.PlacedAt, filledAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// UpdateOrder updates the mutable fields of an order.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, order *models.PaperOrder) error {
	var filledAt interface{}
	if order.FilledAt != nil {
		filledAt = *order.FilledAt
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE paper_orders SET average_price = ?, filled_qty = ?, charges = ?, status = ?, reason = ?, filled_at = ?
		WHERE id = ?
	`, order.AveragePrice, order.FilledQty, order.Charges, order.Status, order.Reason, filledAt, order.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("order not found: %s", order.ID)
	}
	return nil
}

func scanOrder(scan func(dest ...interface{}) error) (*models.PaperOrder, error) {
	var o models.PaperOrder
	var id, userID string
	var filledAt sql.NullTime
	if err := scan(&id, &userID, &o.Symbol, &o.Exchange, &o.Side, &o.Type, &o.Product,
		&o.Quantity, &o.Price, &o.AveragePrice, &o.FilledQty, &o.Charges, &o.Status, &o.Reason, &o.PlacedAt, &filledAt); err != nil {
		return nil, err
	}
	o.ID, _ = uuid.Parse(id)
	o.UserID, _ = uuid.Parse(userID)
	if filledAt.Valid {
		t := filledAt.Time
		o.FilledAt = &t
	}
	return &o, nil
}

const orderColumns = "id, user_id, symbol, exchange, side, type, product, quantity, price, average_price, filled_qty, charges, status, COALESCE(reason, ''), placed_at, filled_at"

// GetOrder retrieves a single order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.PaperOrder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM paper_orders WHERE id = ?
	`, id.String())
	order, err := scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetOrders retrieves orders matching the filter, newest first.
func (s *SQLiteStore) GetOrders(ctx context.Context, filter OrderFilter) ([]models.PaperOrder, error) {
	query := "SELECT " + orderColumns + " FROM paper_orders WHERE 1=1"
	args := []interface{}{}

	if filter.UserID != uuid.Nil {
		query += " AND user_id = ?"
		args = append(args, filter.UserID.String())
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.Since.IsZero() {
		query += " AND placed_at >= ?"
		args = append(args, filter.Since)
	}

	query += " ORDER BY placed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.PaperOrder
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

// CountOrdersSince counts a user's orders placed at or after the given time.
func (s *SQLiteStore) CountOrdersSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM paper_orders WHERE user_id = ? AND placed_at >= ?
	`, userID.String(), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// GetOpenOrders retrieves all resting orders across users.
func (s *SQLiteStore) GetOpenOrders(ctx context.Context) ([]models.PaperOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM paper_orders WHERE status = ? ORDER BY placed_at ASC
	`, models.OrderStatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open orders: %w", err)
	}
	defer rows.Close()

	var orders []models.PaperOrder
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	return orders, rows.Err()
}

// ============================================================================
// Trades Methods
// ============================================================================

// SaveTrade inserts a fill record.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.PaperTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_trades (id, order_id, user_id, symbol, side, quantity, price, charges, pnl, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trade.ID.String(), trade.OrderID.String(), trade.UserID.String(), trade.Symbol, trade.Side,
		trade.Quantity, trade.Price, trade.Charges, trade.PnL, trade.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// GetTrades retrieves fills matching the filter, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.PaperTrade, error) {
	query := "SELECT id, order_id, user_id, symbol, side, quantity, price, charges, pnl, executed_at FROM paper_trades WHERE 1=1"
	args := []interface{}{}

	if filter.UserID != uuid.Nil {
		query += " AND user_id = ?"
		args = append(args, filter.UserID.String())
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if !filter.StartDate.IsZero() {
		query += " AND executed_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND executed_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY executed_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.PaperTrade
	for rows.Next() {
		var t models.PaperTrade
		var id, orderID, userID string
		if err := rows.Scan(&id, &orderID, &userID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &t.Charges, &t.PnL, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.ID, _ = uuid.Parse(id)
		t.OrderID, _ = uuid.Parse(orderID)
		t.UserID, _ = uuid.Parse(userID)
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// ============================================================================
// Positions Methods
// ============================================================================

// UpsertPosition inserts or replaces a position keyed by user, symbol, product.
func (s *SQLiteStore) UpsertPosition(ctx context.Context, pos *models.PaperPosition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_positions (id, user_id, symbol, exchange, product, kind, quantity, average_price, ltp, multiplier, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol, product) DO UPDATE SET
			quantity = excluded.quantity,
			average_price = excluded.average_price,
			ltp = excluded.ltp,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at
	`, pos.ID.String(), pos.UserID.String(), pos.Symbol, pos.Exchange, pos.Product, pos.Kind,
		pos.Quantity, pos.AveragePrice, pos.LTP, pos.Multiplier, pos.RealizedPnL, pos.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// DeletePosition removes a closed position.
func (s *SQLiteStore) DeletePosition(ctx context.Context, userID uuid.UUID, symbol string, product models.ProductType) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM paper_positions WHERE user_id = ? AND symbol = ? AND product = ?
	`, userID.String(), symbol, product)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

const positionColumns = "id, user_id, symbol, exchange, product, kind, quantity, average_price, ltp, multiplier, realized_pnl, updated_at"

func scanPosition(scan func(dest ...interface{}) error) (*models.PaperPosition, error) {
	var p models.PaperPosition
	var id, userID string
	if err := scan(&id, &userID, &p.Symbol, &p.Exchange, &p.Product, &p.Kind,
		&p.Quantity, &p.AveragePrice, &p.LTP, &p.Multiplier, &p.RealizedPnL, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID, _ = uuid.Parse(id)
	p.UserID, _ = uuid.Parse(userID)
	return &p, nil
}

// GetPosition retrieves a single position.
func (s *SQLiteStore) GetPosition(ctx context.Context, userID uuid.UUID, symbol string, product models.ProductType) (*models.PaperPosition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+positionColumns+` FROM paper_positions WHERE user_id = ? AND symbol = ? AND product = ?
	`, userID.String(), symbol, product)
	pos, err := scanPosition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return pos, nil
}

// GetPositions retrieves all of a user's positions.
func (s *SQLiteStore) GetPositions(ctx context.Context, userID uuid.UUID) ([]models.PaperPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+positionColumns+` FROM paper_positions WHERE user_id = ? ORDER BY symbol ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.PaperPosition
	for rows.Next() {
		pos, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}

	return positions, rows.Err()
}

// GetAllPositions retrieves every open position across users.
func (s *SQLiteStore) GetAllPositions(ctx context.Context) ([]models.PaperPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+positionColumns+` FROM paper_positions ORDER BY user_id, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.PaperPosition
	for rows.Next() {
		pos, err := scanPosition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}

	return positions, rows.Err()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles saves candles to the database.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetCandles retrieves candles from the database.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		c := models.Candle{Symbol: symbol, Timeframe: timeframe}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	return candles, nil
}

// GetRecentCandles retrieves the latest candles in chronological order.
func (s *SQLiteStore) GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND timeframe = ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		c := models.Candle{Symbol: symbol, Timeframe: timeframe}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	return candles, rows.Err()
}

// GetCandlesFreshness returns the timestamp of the most recent candle.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var timestamp sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get candles freshness: %w", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}
	return timestamp.Time, nil
}

// ============================================================================
// Watchlist Methods
// ============================================================================

// AddToWatchlist adds a symbol to a user's watchlist.
func (s *SQLiteStore) AddToWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO watchlist (user_id, symbol) VALUES (?, ?)
	`, userID.String(), symbol)
	if err != nil {
		return fmt.Errorf("failed to add to watchlist: %w", err)
	}
	return nil
}

// RemoveFromWatchlist removes a symbol from a user's watchlist.
func (s *SQLiteStore) RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM watchlist WHERE user_id = ? AND symbol = ?
	`, userID.String(), symbol)
	if err != nil {
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	return nil
}

// GetWatchlist retrieves a user's watchlist symbols.
func (s *SQLiteStore) GetWatchlist(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol FROM watchlist WHERE user_id = ? ORDER BY created_at ASC
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// ============================================================================
// Tournaments Methods
// ============================================================================

// CreateTournament inserts a new tournament.
func (s *SQLiteStore) CreateTournament(ctx context.Context, t *models.Tournament) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, name, description, entry_fee, prize_pool, max_entrants, start_at, end_at, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID.String(), t.Name, t.Description, t.EntryFee, t.PrizePool, t.MaxEntrants, t.StartAt, t.EndAt, t.Status, t.CreatedBy.String(), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

const tournamentColumns = `t.id, t.name, COALESCE(t.description, ''), t.entry_fee, t.prize_pool, t.max_entrants, t.start_at, t.end_at, t.status, t.created_by, t.created_at,
	(SELECT COUNT(*) FROM tournament_participants p WHERE p.tournament_id = t.id)`

func scanTournament(scan func(dest ...interface{}) error) (*models.Tournament, error) {
	var t models.Tournament
	var id, createdBy string
	if err := scan(&id, &t.Name, &t.Description, &t.EntryFee, &t.PrizePool, &t.MaxEntrants,
		&t.StartAt, &t.EndAt, &t.Status, &createdBy, &t.CreatedAt, &t.Participants); err != nil {
		return nil, err
	}
	t.ID, _ = uuid.Parse(id)
	t.CreatedBy, _ = uuid.Parse(createdBy)
	return &t, nil
}

// GetTournament retrieves a tournament by ID.
func (s *SQLiteStore) GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+tournamentColumns+` FROM tournaments t WHERE t.id = ?
	`, id.String())
	t, err := scanTournament(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

// ListTournaments retrieves tournaments, optionally filtered by status.
func (s *SQLiteStore) ListTournaments(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error) {
	query := "SELECT " + tournamentColumns + " FROM tournaments t"
	args := []interface{}{}
	if status != "" {
		query += " WHERE t.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY t.start_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}

	return tournaments, rows.Err()
}

// UpdateTournamentStatus transitions a tournament's lifecycle status.
func (s *SQLiteStore) UpdateTournamentStatus(ctx context.Context, id uuid.UUID, status models.TournamentStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tournaments SET status = ? WHERE id = ?
	`, status, id.String())
	if err != nil {
		return fmt.Errorf("failed to update tournament status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("tournament not found: %s", id)
	}
	return nil
}

// AddParticipant registers a user in a tournament.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *models.TournamentParticipant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tournament_participants (tournament_id, user_id, start_balance, current_pnl, pnl_percent, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.TournamentID.String(), p.UserID.String(), p.StartBalance, p.CurrentPnL, p.PnLPercent, p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// GetParticipant retrieves a single tournament participant.
func (s *SQLiteStore) GetParticipant(ctx context.Context, tournamentID, userID uuid.UUID) (*models.TournamentParticipant, error) {
	var p models.TournamentParticipant
	err := s.db.QueryRowContext(ctx, `
		SELECT p.start_balance, p.current_pnl, p.pnl_percent, p.joined_at, u.username
		FROM tournament_participants p JOIN users u ON u.id = p.user_id
		WHERE p.tournament_id = ? AND p.user_id = ?
	`, tournamentID.String(), userID.String()).Scan(&p.StartBalance, &p.CurrentPnL, &p.PnLPercent, &p.JoinedAt, &p.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	p.TournamentID = tournamentID
	p.UserID = userID
	return &p, nil
}

// GetParticipants retrieves all participants of a tournament.
func (s *SQLiteStore) GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]models.TournamentParticipant, error) {
	return s.queryParticipants(ctx, tournamentID, 0)
}

// UpdateParticipantPnL records a participant's running tournament P&L.
func (s *SQLiteStore) UpdateParticipantPnL(ctx context.Context, tournamentID, userID uuid.UUID, pnl, pnlPercent float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tournament_participants SET current_pnl = ?, pnl_percent = ?
		WHERE tournament_id = ? AND user_id = ?
	`, pnl, pnlPercent, tournamentID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to update participant pnl: %w", err)
	}
	return nil
}

// Leaderboard retrieves participants ranked by P&L descending.
func (s *SQLiteStore) Leaderboard(ctx context.Context, tournamentID uuid.UUID, limit int) ([]models.TournamentParticipant, error) {
	return s.queryParticipants(ctx, tournamentID, limit)
}

func (s *SQLiteStore) queryParticipants(ctx context.Context, tournamentID uuid.UUID, limit int) ([]models.TournamentParticipant, error) {
	query := `
		SELECT p.user_id, p.start_balance, p.current_pnl, p.pnl_percent, p.joined_at, u.username
		FROM tournament_participants p JOIN users u ON u.id = p.user_id
		WHERE p.tournament_id = ?
		ORDER BY p.current_pnl DESC, p.joined_at ASC
	`
	args := []interface{}{tournamentID.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	var participants []models.TournamentParticipant
	rank := 0
	for rows.Next() {
		var p models.TournamentParticipant
		var userID string
		if err := rows.Scan(&userID, &p.StartBalance, &p.CurrentPnL, &p.PnLPercent, &p.JoinedAt, &p.Username); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.TournamentID = tournamentID
		p.UserID, _ = uuid.Parse(userID)
		rank++
		p.Rank = rank
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// TournamentsForUser retrieves tournaments a user has joined.
func (s *SQLiteStore) TournamentsForUser(ctx context.Context, userID uuid.UUID, status models.TournamentStatus) ([]models.Tournament, error) {
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments t JOIN tournament_participants p ON p.tournament_id = t.id
		WHERE p.user_id = ?
	`
	args := []interface{}{userID.String()}
	if status != "" {
		query += " AND t.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY t.start_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}

	return tournaments, rows.Err()
}

// ============================================================================
// Teams Methods
// ============================================================================

// CreateTeam inserts a new team and registers its owner as a member.
func (s *SQLiteStore) CreateTeam(ctx context.Context, team *models.Team) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO teams (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)
	`, team.ID.String(), team.Name, team.OwnerID.String(), team.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO team_members (team_id, user_id, joined_at) VALUES (?, ?, ?)
	`, team.ID.String(), team.OwnerID.String(), team.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add team owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddTeamMember adds a user to a team.
func (s *SQLiteStore) AddTeamMember(ctx context.Context, member *models.TeamMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO team_members (team_id, user_id, joined_at) VALUES (?, ?, ?)
	`, member.TeamID.String(), member.UserID.String(), member.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}
	return nil
}

// GetTeams retrieves all teams with member counts.
func (s *SQLiteStore) GetTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.owner_id, t.created_at,
			(SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id)
		FROM teams t ORDER BY t.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		var id, ownerID string
		if err := rows.Scan(&id, &t.Name, &ownerID, &t.CreatedAt, &t.Members); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		t.ID, _ = uuid.Parse(id)
		t.OwnerID, _ = uuid.Parse(ownerID)
		teams = append(teams, t)
	}

	return teams, rows.Err()
}

// GetTeamMembers retrieves a team's members.
func (s *SQLiteStore) GetTeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, joined_at FROM team_members WHERE team_id = ? ORDER BY joined_at ASC
	`, teamID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query team members: %w", err)
	}
	defer rows.Close()

	var members []models.TeamMember
	for rows.Next() {
		var m models.TeamMember
		var userID string
		if err := rows.Scan(&userID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		m.TeamID = teamID
		m.UserID, _ = uuid.Parse(userID)
		members = append(members, m)
	}

	return members, rows.Err()
}
