package authclient

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/pkg/errors"
)

// MinPasswordLength is the shortest secret accepted at registration
const MinPasswordLength = 8

var (
	lowerRe   = regexp.MustCompile(`[a-z]`)
	upperRe   = regexp.MustCompile(`[A-Z]`)
	digitRe   = regexp.MustCompile(`[0-9]`)
	specialRe = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("password is required"),
		validation.RuneLength(MinPasswordLength, 0).Error("password must be at least 8 characters long"),
		validation.Match(lowerRe).Error("password must contain at least one lowercase letter"),
		validation.Match(upperRe).Error("password must contain at least one uppercase letter"),
		validation.Match(digitRe).Error("password must contain at least one digit"),
		validation.Match(specialRe).Error("password must contain at least one special character"),
	}
}

// ValidatePassword checks the password policy and reports the first rule that fails.
func ValidatePassword(password string) error {
	if err := validation.Validate(password, passwordRules()...); err != nil {
		return NewValidationError(err)
	}
	return nil
}

// PasswordStrength scores a password 20 points per satisfied rule.
type PasswordStrength struct {
	Score  int    `json:"score"`
	Checks int    `json:"checks"`
	Label  string `json:"label,omitempty"`
}

// MeasurePassword reports how many policy rules password meets. An empty
// password scores zero with no label.
func MeasurePassword(password string) PasswordStrength {
	if password == "" {
		return PasswordStrength{}
	}

	checks := 0
	if len([]rune(password)) >= MinPasswordLength {
		checks++
	}
	for _, re := range []*regexp.Regexp{lowerRe, upperRe, digitRe, specialRe} {
		if re.MatchString(password) {
			checks++
		}
	}

	return PasswordStrength{
		Score:  checks * 20,
		Checks: checks,
		Label:  strengthLabel(checks),
	}
}

func strengthLabel(checks int) string {
	switch checks {
	case 5:
		return "very strong"
	case 4:
		return "strong"
	case 3:
		return "fair"
	case 2:
		return "weak"
	default:
		return "very weak"
	}
}

// Validate will run the registration rules
func (c Credentials) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Identity, validation.Required, is.Email),
		validation.Field(&c.Secret, passwordRules()...),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// Validate will run the password change rules
func (p PasswordChange) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.OldSecret, validation.Required),
		validation.Field(&p.NewSecret, passwordRules()...),
	)
	if err != nil {
		return NewValidationError(err)
	}

	if p.OldSecret == p.NewSecret {
		return NewValidationError(errors.New("new password must differ from the current one"))
	}

	return nil
}
