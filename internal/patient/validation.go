package patient

import (
	"net/mail"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/apperr"
)

const dateLayout = "2006-01-02"

var genders = map[string]bool{"": true, "FEMALE": true, "MALE": true, "OTHER": true, "UNDISCLOSED": true}

func validateCreate(req *CreatePatientRequest, now time.Time) error {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Gender = strings.ToUpper(strings.TrimSpace(req.Gender))

	if req.FirstName == "" {
		return apperr.Invalid("first_name", "is required")
	}
	if req.LastName == "" {
		return apperr.Invalid("last_name", "is required")
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if err := validateDateOfBirth(req.DateOfBirth, now); err != nil {
		return err
	}
	if !genders[req.Gender] {
		return apperr.Invalid("gender", "must be one of FEMALE, MALE, OTHER, UNDISCLOSED")
	}
	return nil
}

func validateUpdate(req *UpdatePatientRequest, now time.Time) error {
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) == "" {
		return apperr.Invalid("first_name", "cannot be empty")
	}
	if req.LastName != nil && strings.TrimSpace(*req.LastName) == "" {
		return apperr.Invalid("last_name", "cannot be empty")
	}
	if req.Email != nil {
		if err := validateEmail(*req.Email); err != nil {
			return err
		}
	}
	if req.DateOfBirth != nil {
		if err := validateDateOfBirth(*req.DateOfBirth, now); err != nil {
			return err
		}
	}
	if req.Gender != nil {
		g := strings.ToUpper(strings.TrimSpace(*req.Gender))
		if !genders[g] {
			return apperr.Invalid("gender", "must be one of FEMALE, MALE, OTHER, UNDISCLOSED")
		}
		req.Gender = &g
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return apperr.Invalid("email", "is not a valid email address")
	}
	return nil
}

func validateDateOfBirth(dob string, now time.Time) error {
	dob = strings.TrimSpace(dob)
	if dob == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, dob)
	if err != nil {
		return apperr.Invalid("date_of_birth", "must be formatted YYYY-MM-DD")
	}
	if t.After(now) {
		return apperr.Invalid("date_of_birth", "cannot be in the future")
	}
	return nil
}
