package user

import "time"

// Gender values accepted for a user row. Anything else is coerced to the
// default at the validation layer.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

type User struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Gender       string    `json:"gender"`
	ProfileImage *string   `json:"profile_image"`
	CreatedAt    time.Time `json:"created_at"`
}
