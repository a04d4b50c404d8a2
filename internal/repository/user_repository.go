package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/storefront-api/internal/models"
)

const userColumns = `id, username, email, role, verified, created_at, updated_at`

// maxListPage keeps (page-1)*pageSize inside int range for any accepted page.
const maxListPage = 1_000_000

// UserRepository provides database access for accounts and their address books.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier without the password hash.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByEmailWithPassword returns a user including the password hash.
func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByUsernameWithPassword returns a user including the password hash.
func (r *UserRepository) FindByUsernameWithPassword(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + `, password_hash FROM users WHERE username = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(username)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// ExistsByUsernameOrEmail reports whether either identifier is already taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username, strings.ToLower(email)); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	const query = `INSERT INTO users (id, username, email, password_hash, role, verified, created_at, updated_at) VALUES (:id, :username, :email, :password_hash, :role, :verified, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// List returns one page of users matching the filter and the total match count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(username) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	switch sortBy {
	case "username", "email", "created_at":
	default:
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if page > maxListPage {
		page = maxListPage
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", userColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// UpdateRole sets the user's role. Unknown ids return sql.ErrNoRows.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	const query = `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const addressColumns = `id, user_id, label, recipient, phone, line1, line2, city, state, postal_code, country, is_default, created_at, updated_at`

// ListAddresses returns a user's addresses, default first.
func (r *UserRepository) ListAddresses(ctx context.Context, userID string) ([]models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM user_addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at ASC`
	addresses := []models.Address{}
	if err := r.db.SelectContext(ctx, &addresses, query, userID); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addresses, nil
}

// FindAddress returns one address owned by the user.
func (r *UserRepository) FindAddress(ctx context.Context, userID, id string) (*models.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM user_addresses WHERE id = $1 AND user_id = $2`
	var address models.Address
	if err := r.db.GetContext(ctx, &address, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find address: %w", err)
	}
	return &address, nil
}

// CreateAddress inserts an address. A default address clears the user's previous default.
func (r *UserRepository) CreateAddress(ctx context.Context, address *models.Address) error {
	if address.ID == "" {
		address.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	address.CreatedAt = now
	address.UpdatedAt = now

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if address.IsDefault {
			if err := clearDefaultAddress(ctx, tx, address.UserID); err != nil {
				return err
			}
		}
		const query = `INSERT INTO user_addresses (id, user_id, label, recipient, phone, line1, line2, city, state, postal_code, country, is_default, created_at, updated_at) VALUES (:id, :user_id, :label, :recipient, :phone, :line1, :line2, :city, :state, :postal_code, :country, :is_default, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, address); err != nil {
			return fmt.Errorf("create address: %w", err)
		}
		return nil
	})
}

// UpdateAddress replaces an owned address. Returns sql.ErrNoRows when nothing matched.
func (r *UserRepository) UpdateAddress(ctx context.Context, address *models.Address) error {
	address.UpdatedAt = time.Now().UTC()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if address.IsDefault {
			if err := clearDefaultAddress(ctx, tx, address.UserID); err != nil {
				return err
			}
		}
		const query = `UPDATE user_addresses SET label = :label, recipient = :recipient, phone = :phone, line1 = :line1, line2 = :line2, city = :city, state = :state, postal_code = :postal_code, country = :country, is_default = :is_default, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
		res, err := tx.NamedExecContext(ctx, query, address)
		if err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// DeleteAddress removes an owned address. Returns sql.ErrNoRows when nothing matched.
func (r *UserRepository) DeleteAddress(ctx context.Context, userID, id string) error {
	const query = `DELETE FROM user_addresses WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func clearDefaultAddress(ctx context.Context, tx *sqlx.Tx, userID string) error {
	const query = `UPDATE user_addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`
	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	return nil
}

func (r *UserRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return runInTx(ctx, r.db, nil, fn)
}
