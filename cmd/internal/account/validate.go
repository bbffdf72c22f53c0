package account

import (
	"strings"

	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation"
)

var emailRule = validation.NewStringRule(govalidator.IsEmail, "must be a valid email address")

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the payload of Login.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in RegisterInput) normalize() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func (in RegisterInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), emailRule),
		validation.Field(&in.Password, validation.Required),
	)
}

func (in LoginInput) validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

func validateEmail(email string) error {
	return validation.Errors{
		"email": validation.Validate(email, validation.Required, validation.Length(3, 254), emailRule),
	}.Filter()
}

func validateNewPassword(pw string) error {
	return validation.Errors{
		"new_password": validation.Validate(pw, validation.Required),
	}.Filter()
}
