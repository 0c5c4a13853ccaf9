package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("email already exists")
)

// ListParams narrows and pages the user list. Search matches name, email or
// phone as a case-insensitive substring.
type ListParams struct {
	Search string
	Page   int
	Limit  int
}

type Repository interface {
	// List returns one page of rows ordered by created_at descending plus
	// the total number of rows matching the filter.
	List(ctx context.Context, params ListParams) ([]User, int, error)
	GetByID(ctx context.Context, id int) (User, error)
	// EmailTaken reports whether another row (excluding excludeID, 0 for
	// none) already uses the email.
	EmailTaken(ctx context.Context, email string, excludeID int) (bool, error)
	Create(ctx context.Context, u User) (User, error)
	// Update writes name/email/phone/gender. When replaceImage is set the
	// profile_image column is written as well (u.ProfileImage, possibly nil).
	Update(ctx context.Context, id int, u User, replaceImage bool) error
	Delete(ctx context.Context, id int) error
}

// InMemoryRepository backs tests and local development without Postgres.
type InMemoryRepository struct {
	mu     sync.RWMutex
	users  []User
	nextID int
}

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{
		users:  make([]User, 0, len(seed)),
		nextID: 1,
	}

	maxID := 0
	for _, u := range seed {
		repo.users = append(repo.users, u)
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	repo.nextID = maxID + 1
	return repo
}

func (r *InMemoryRepository) List(_ context.Context, params ListParams) ([]User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]User, 0, len(r.users))
	needle := strings.ToLower(params.Search)
	for _, u := range r.users {
		if needle == "" ||
			strings.Contains(strings.ToLower(u.Name), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) ||
			strings.Contains(strings.ToLower(u.Phone), needle) {
			matched = append(matched, u)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (params.Page - 1) * params.Limit
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}

	page := make([]User, end-start)
	copy(page, matched[start:end])
	return page, total, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}

	return User{}, ErrNotFound
}

func (r *InMemoryRepository) EmailTaken(_ context.Context, email string, excludeID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}

	return false, nil
}

func (r *InMemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrEmailExists
		}
	}

	if u.ID == 0 {
		u.ID = r.nextID
		r.nextID++
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.users = append(r.users, u)
	return u, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int, update User, replaceImage bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == update.Email && existing.ID != id {
			return ErrEmailExists
		}
	}

	for i, u := range r.users {
		if u.ID == id {
			u.Name = update.Name
			u.Email = update.Email
			u.Phone = update.Phone
			u.Gender = update.Gender
			if replaceImage {
				u.ProfileImage = update.ProfileImage
			}
			r.users[i] = u
			return nil
		}
	}

	return ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}

	return ErrNotFound
}
