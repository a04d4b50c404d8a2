package memstore

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/storefront-api/internal/models"
)

// Users stores accounts and address books.
type Users struct {
	mu        sync.Mutex
	clock     *Clock
	users     map[string]models.User
	addresses map[string][]models.Address
}

// NewUsers builds an empty user store.
func NewUsers(clock *Clock) *Users {
	return &Users{clock: clock, users: map[string]models.User{}, addresses: map[string][]models.Address{}}
}

// FindByID returns the user or sql.ErrNoRows.
func (s *Users) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

// FindByEmailWithPassword looks the user up by lowercased email.
func (s *Users) FindByEmailWithPassword(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.find(func(u models.User) bool { return u.Email == email })
}

// FindByUsernameWithPassword looks the user up by exact username.
func (s *Users) FindByUsernameWithPassword(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username })
}

// ExistsByUsernameOrEmail reports whether either value is taken.
func (s *Users) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	email = strings.ToLower(email)
	_, err := s.find(func(u models.User) bool { return u.Username == username || u.Email == email })
	return err == nil, nil
}

// Create inserts the user, failing like a unique index on duplicates.
func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return &pq.Error{Code: "23505"}
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.CreatedAt = s.clock.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	return nil
}

// SetRole changes a user's role.
func (s *Users) SetRole(id string, role models.UserRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		user.Role = role
		s.users[id] = user
	}
}

// Remove deletes a user and their addresses. Sessions are left untouched.
func (s *Users) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	delete(s.addresses, id)
}

// List pages users newest first, honouring the role and search filters.
func (s *Users) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(filter.Search)
	matched := []models.User{}
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if needle != "" && !strings.Contains(user.Email, needle) && !strings.Contains(strings.ToLower(user.Username), needle) {
			continue
		}
		matched = append(matched, user)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start < 0 || start >= len(matched) {
		return []models.User{}, len(matched), nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}

// UpdateRole changes a stored user's role or returns sql.ErrNoRows.
func (s *Users) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Role = role
	user.UpdatedAt = s.clock.Now()
	s.users[id] = user
	return nil
}

// ListAddresses returns the user's addresses, default first.
func (s *Users) ListAddresses(_ context.Context, userID string) ([]models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.Address{}, s.addresses[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsDefault && !out[j].IsDefault })
	return out, nil
}

// FindAddress returns one owned address or sql.ErrNoRows.
func (s *Users) FindAddress(_ context.Context, userID, id string) (*models.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addresses[userID] {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

// CreateAddress appends an address, clearing the previous default when needed.
func (s *Users) CreateAddress(_ context.Context, address *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if address.ID == "" {
		address.ID = uuid.NewString()
	}
	address.CreatedAt = s.clock.Now()
	address.UpdatedAt = address.CreatedAt
	if address.IsDefault {
		s.clearDefault(address.UserID)
	}
	s.addresses[address.UserID] = append(s.addresses[address.UserID], *address)
	return nil
}

// UpdateAddress replaces an owned address or returns sql.ErrNoRows.
func (s *Users) UpdateAddress(_ context.Context, address *models.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.addresses[address.UserID]
	for i := range list {
		if list[i].ID != address.ID {
			continue
		}
		if address.IsDefault {
			s.clearDefault(address.UserID)
		}
		address.UpdatedAt = s.clock.Now()
		list[i] = *address
		return nil
	}
	return sql.ErrNoRows
}

// DeleteAddress removes an owned address or returns sql.ErrNoRows.
func (s *Users) DeleteAddress(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.addresses[userID]
	for i := range list {
		if list[i].ID == id {
			s.addresses[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (s *Users) clearDefault(userID string) {
	list := s.addresses[userID]
	for i := range list {
		list[i].IsDefault = false
	}
}

func (s *Users) find(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if match(user) {
			u := user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}
