package user

import (
	"context"
	"errors"
	"mime/multipart"
	"regexp"
	"strings"

	"github.com/wichananm65/user-management-backend/internal/apperr"
	"github.com/wichananm65/user-management-backend/internal/imagestore"
)

const (
	maxNameLen = 30

	defaultLimit = 10
	maxLimit     = 100
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// Input carries the form fields of a create or update request.
type Input struct {
	Name   string
	Email  string
	Phone  string
	Gender string
}

// ListResult is one page of users plus the pagination metadata the client
// renders its controls from.
type ListResult struct {
	Data       []User `json:"data"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}

// Service validates requests and coordinates the record store with the
// image store so a stored filename is always owned by exactly one row.
type Service struct {
	repo   Repository
	images imagestore.Store
}

func NewService(repo Repository, images imagestore.Store) *Service {
	return &Service{repo: repo, images: images}
}

func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultLimit
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}

	data, total, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, apperr.Wrap(err, apperr.KindStorage, "Failed to fetch users")
	}
	if data == nil {
		data = make([]User, 0)
	}

	return ListResult{
		Data:       data,
		Page:       params.Page,
		Limit:      params.Limit,
		Total:      total,
		TotalPages: (total + params.Limit - 1) / params.Limit,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id int) (User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, apperr.New(apperr.KindNotFound, "Not found")
		}
		return User{}, apperr.Wrap(err, apperr.KindStorage, "Failed to fetch user")
	}

	return u, nil
}

// Create validates the fields in a fixed order, stores the optional image and
// inserts the row. No row is created if any validation step fails.
func (s *Service) Create(ctx context.Context, in Input, image *multipart.FileHeader) error {
	u, err := validate(in)
	if err != nil {
		return err
	}

	taken, err := s.repo.EmailTaken(ctx, u.Email, 0)
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorage, "Failed to check email")
	}
	if taken {
		return apperr.New(apperr.KindConflict, "Email exists")
	}

	if image != nil {
		name, err := s.images.Save(image)
		if err != nil {
			return err
		}
		u.ProfileImage = &name
	}

	if _, err := s.repo.Create(ctx, u); err != nil {
		// the row never made it in, so the file just written is orphaned
		if u.ProfileImage != nil {
			_ = s.images.Remove(*u.ProfileImage)
		}
		if errors.Is(err, ErrEmailExists) {
			return apperr.New(apperr.KindConflict, "Email exists")
		}
		return apperr.Wrap(err, apperr.KindStorage, "DB Error")
	}

	return nil
}

// Update validates like Create (uniqueness excludes the row itself) and then
// applies the three-way image decision: new upload replaces, the remove flag
// clears, neither leaves the image untouched. When replacing, the current
// file is deleted before the pointer is overwritten.
func (s *Service) Update(ctx context.Context, id int, in Input, image *multipart.FileHeader, removeImage bool) error {
	if id <= 0 {
		return apperr.New(apperr.KindBadRequest, "No ID")
	}

	u, err := validate(in)
	if err != nil {
		return err
	}

	taken, err := s.repo.EmailTaken(ctx, u.Email, id)
	if err != nil {
		return apperr.Wrap(err, apperr.KindStorage, "Failed to check email")
	}
	if taken {
		return apperr.New(apperr.KindConflict, "Email exists")
	}

	replaceImage := false
	switch {
	case image != nil:
		name, err := s.images.Save(image)
		if err != nil {
			return err
		}
		u.ProfileImage = &name
		replaceImage = true
	case removeImage:
		u.ProfileImage = nil
		replaceImage = true
	}

	if replaceImage {
		current, err := s.repo.GetByID(ctx, id)
		if err == nil && current.ProfileImage != nil {
			// best-effort: a file that is already gone does not matter
			_ = s.images.Remove(*current.ProfileImage)
		}
	}

	if err := s.repo.Update(ctx, id, u, replaceImage); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return apperr.New(apperr.KindNotFound, "Update failed")
		case errors.Is(err, ErrEmailExists):
			return apperr.New(apperr.KindConflict, "Email exists")
		}
		return apperr.Wrap(err, apperr.KindStorage, "Update failed")
	}

	return nil
}

// Delete removes the row and its image file. Deleting an id that does not
// exist reports failure, never success.
func (s *Service) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return apperr.New(apperr.KindBadRequest, "Invalid ID")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err == nil && current.ProfileImage != nil {
		_ = s.images.Remove(*current.ProfileImage)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "Delete failed")
		}
		return apperr.Wrap(err, apperr.KindStorage, "Delete failed")
	}

	return nil
}

// validate trims and checks the fields in a fixed order; the first failure
// wins and is the only message returned for the request.
func validate(in Input) (User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	phone := strings.TrimSpace(in.Phone)

	if name == "" || email == "" || phone == "" {
		return User{}, apperr.New(apperr.KindValidation, "All fields required")
	}
	if len(name) > maxNameLen {
		return User{}, apperr.New(apperr.KindValidation, "Name too long")
	}
	if !emailPattern.MatchString(email) {
		return User{}, apperr.New(apperr.KindValidation, "Invalid email")
	}
	if !phonePattern.MatchString(phone) {
		return User{}, apperr.New(apperr.KindValidation, "Phone must be 10 digits")
	}

	gender := in.Gender
	if gender != GenderMale && gender != GenderFemale {
		gender = GenderMale
	}

	return User{
		Name:   name,
		Email:  email,
		Phone:  phone,
		Gender: gender,
	}, nil
}
