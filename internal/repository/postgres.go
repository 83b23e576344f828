package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	userColumns         = `id, username, email, password_hash, role, balance, created_at`
	vehicleColumns      = `id, make, model, year, mileage, reserve_price, description, end_time, seller_id, status, highest_bid, highest_bidder_id, created_at, updated_at`
	bidColumns          = `id, vehicle_id, user_id, amount, created_at`
	notificationColumns = `id, user_id, kind, message, read, created_at`
)

// PgxPool is the part of *pgxpool.Pool the repository uses
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresRepo implements Store on PostgreSQL. Mutations lock rows with SELECT ... FOR UPDATE.
type PostgresRepo struct {
	db PgxPool
}

// NewPostgresRepo creates a new PostgresRepo
func NewPostgresRepo(db PgxPool) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// ConnectPostgres opens a pool and waits until the database answers, retrying a few times
func ConnectPostgres(ctx context.Context, dsn string, maxRetries int, retryInterval time.Duration) (*pgxpool.Pool, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var pool *pgxpool.Pool
		pool, err = pgxpool.New(ctx, dsn)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				utils.Info("connected to PostgreSQL", nil)
				return pool, nil
			}
			pool.Close()
		}
		utils.Warn("failed to connect to database, retrying", map[string]any{
			"attempt":     i + 1,
			"max_retries": maxRetries,
			"retry_in":    retryInterval.String(),
			"error":       err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", maxRetries, err)
}

// Migrate creates tables if they don't exist
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'bidder' CHECK (role IN ('admin', 'bidder')),
		balance NUMERIC(14, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT users_username_key UNIQUE (username),
		CONSTRAINT users_email_key UNIQUE (email)
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		make TEXT NOT NULL,
		model TEXT NOT NULL,
		year INTEGER NOT NULL,
		mileage INTEGER NOT NULL,
		reserve_price NUMERIC(14, 2) NOT NULL CHECK (reserve_price > 0),
		description TEXT NOT NULL DEFAULT '',
		end_time TIMESTAMP WITH TIME ZONE NOT NULL,
		seller_id TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'ended-sold', 'ended-unsold', 'sold')),
		highest_bid NUMERIC(14, 2),
		highest_bidder_id TEXT REFERENCES users(id),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		amount NUMERIC(14, 2) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_status_end_time ON vehicles(status, end_time);
	CREATE INDEX IF NOT EXISTS idx_bids_vehicle_id ON bids(vehicle_id);
	CREATE INDEX IF NOT EXISTS idx_bids_user_id ON bids(user_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE NOT read;
	`
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("unable to apply migrations: %w", err)
	}
	utils.Info("database migrations applied", nil)
	return nil
}

// CreateUser inserts a new user
func (r *PostgresRepo) CreateUser(ctx context.Context, user model.User) error {
	sql := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, sql, user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.Balance, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "users_email_key" {
				return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrDuplicateEmail)
			}
			return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrDuplicateUsername)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (r *PostgresRepo) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, auctionerrors.ErrUserNotFound, "get user "+userID)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err != nil {
		return model.User{}, notFound(err, auctionerrors.ErrUserNotFound, "get user "+username)
	}
	return user, nil
}

// ListUsers returns all users in registration order
func (r *PostgresRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) { return scanUser(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

// CreateVehicle inserts a new vehicle
func (r *PostgresRepo) CreateVehicle(ctx context.Context, v model.Vehicle) error {
	sql := `INSERT INTO vehicles (` + vehicleColumns + `)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.Exec(ctx, sql,
		v.ID, v.Make, v.Model, v.Year, v.Mileage, v.ReservePrice, v.Description, v.EndTime,
		v.SellerID, v.Status, v.HighestBid, v.HighestBidderID, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	return nil
}

// GetVehicle retrieves a vehicle by id
func (r *PostgresRepo) GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	row := r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, vehicleID)
	v, err := scanVehicle(row)
	if err != nil {
		return model.Vehicle{}, notFound(err, auctionerrors.ErrVehicleNotFound, "get vehicle "+vehicleID)
	}
	return v, nil
}

// ListVehicles returns every vehicle in creation order
func (r *PostgresRepo) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	vehicles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Vehicle, error) { return scanVehicle(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan vehicles: %w", err)
	}
	return vehicles, nil
}

// ListExpiredVehicleIDs returns active vehicles whose end time is at or before now
func (r *PostgresRepo) ListExpiredVehicleIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM vehicles WHERE status = $1 AND end_time <= $2 ORDER BY end_time, id`, model.StatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired vehicles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired vehicles: %w", err)
	}
	return ids, nil
}

// GetBidsByVehicle returns all bids for a vehicle in acceptance order
func (r *PostgresRepo) GetBidsByVehicle(ctx context.Context, vehicleID string) ([]model.Bid, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`, vehicleID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check vehicle: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("get bids for vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE vehicle_id = $1 ORDER BY created_at, id`, vehicleID)
}

// GetBidsByUser returns all bids placed by a user, oldest first
func (r *PostgresRepo) GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error) {
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE user_id = $1 ORDER BY created_at, id`, userID)
}

func (r *PostgresRepo) queryBids(ctx context.Context, sql string, arg string) ([]model.Bid, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	bids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Bid, error) {
		var b model.Bid
		err := row.Scan(&b.BidID, &b.VehicleID, &b.UserID, &b.Amount, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan bids: %w", err)
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	return bids, nil
}

// ListUnreadNotifications returns a user's unread notifications, oldest first
func (r *PostgresRepo) ListUnreadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := r.db.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = $1 AND NOT read ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	notifications, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Notification, error) { return scanNotification(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan notifications: %w", err)
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return notifications, nil
}

// GetNotification retrieves a notification by id
func (r *PostgresRepo) GetNotification(ctx context.Context, notificationID string) (model.Notification, error) {
	row := r.db.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, notificationID)
	n, err := scanNotification(row)
	if err != nil {
		return model.Notification{}, notFound(err, auctionerrors.ErrNotificationNotFound, "get notification "+notificationID)
	}
	return n, nil
}

// MarkNotificationRead flips the read flag; repeating it is a no-op
func (r *PostgresRepo) MarkNotificationRead(ctx context.Context, notificationID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, notificationID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notification %s read: %w", notificationID, auctionerrors.ErrNotificationNotFound)
	}
	return nil
}

// WithinTx runs fn inside a database transaction, rolling back if fn fails
func (r *PostgresRepo) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&postgresTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			utils.Warn("failed to roll back transaction", map[string]any{"error": rbErr.Error()})
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LockVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 FOR UPDATE`, vehicleID)
	v, err := scanVehicle(row)
	if err != nil {
		return model.Vehicle{}, notFound(err, auctionerrors.ErrVehicleNotFound, "lock vehicle "+vehicleID)
	}
	return v, nil
}

func (t *postgresTx) LockUsers(ctx context.Context, userIDs ...string) (map[string]model.User, error) {
	ids := lo.Uniq(userIDs)
	sort.Strings(ids)

	rows, err := t.tx.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) { return scanUser(row) })
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	byID := lo.KeyBy(users, func(u model.User) string { return u.ID })
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("lock user %s: %w", id, auctionerrors.ErrUserNotFound)
		}
	}
	return byID, nil
}

func (t *postgresTx) UpdateVehicle(ctx context.Context, v model.Vehicle) error {
	sql := `UPDATE vehicles SET make = $2, model = $3, year = $4, mileage = $5, reserve_price = $6, description = $7,
            end_time = $8, status = $9, highest_bid = $10, highest_bidder_id = $11, updated_at = $12
            WHERE id = $1`
	tag, err := t.tx.Exec(ctx, sql,
		v.ID, v.Make, v.Model, v.Year, v.Mileage, v.ReservePrice, v.Description,
		v.EndTime, v.Status, v.HighestBid, v.HighestBidderID, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update vehicle %s: %w", v.ID, auctionerrors.ErrVehicleNotFound)
	}
	return nil
}

func (t *postgresTx) DeleteVehicle(ctx context.Context, vehicleID string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM vehicles WHERE id = $1`, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	return nil
}

func (t *postgresTx) InsertBid(ctx context.Context, b model.Bid) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		b.BidID, b.VehicleID, b.UserID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

func (t *postgresTx) SetBalance(ctx context.Context, userID string, balance float64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET balance = $2 WHERE id = $1`, userID, balance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return fmt.Errorf("set balance for user %s: %w", userID, auctionerrors.ErrInsufficientFunds)
		}
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set balance for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	return nil
}

func (t *postgresTx) InsertNotification(ctx context.Context, n model.Notification) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO notifications (`+notificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.UserID, n.Kind, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Balance, &u.CreatedAt)
	return u, err
}

func scanVehicle(row pgx.Row) (model.Vehicle, error) {
	var v model.Vehicle
	err := row.Scan(
		&v.ID, &v.Make, &v.Model, &v.Year, &v.Mileage, &v.ReservePrice, &v.Description, &v.EndTime,
		&v.SellerID, &v.Status, &v.HighestBid, &v.HighestBidderID, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

func scanNotification(row pgx.Row) (model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt)
	return n, err
}

// notFound turns pgx.ErrNoRows into the given sentinel and wraps anything else
func notFound(err, sentinel error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w", op, err)
}
