package validator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StationCodeTag is the validation tag for station codes
const StationCodeTag = "stationcode"

var (
	// ErrEmptyStationCode indicates no station code was given
	ErrEmptyStationCode = errors.New("station code cannot be empty")

	// ErrInvalidStationCode indicates the station code is not 2-8 letters or digits
	ErrInvalidStationCode = errors.New("station code must be 2 to 8 letters or digits")
)

// stationCodeRegex matches short station codes such as ASD, UT or AMSZ
var stationCodeRegex = regexp.MustCompile(`^[A-Za-z0-9]{2,8}$`)

// RegisterStationCode adds the stationcode tag to a validator instance.
// gin's binding engine is a *validator.Validate, so the tag works in binding struct tags.
func RegisterStationCode(v *validator.Validate) error {
	return v.RegisterValidation(StationCodeTag, func(fl validator.FieldLevel) bool {
		return stationCodeRegex.MatchString(fl.Field().String())
	})
}

// StationCodeValidator handles station code validation
type StationCodeValidator struct {
	validate *validator.Validate
}

// NewStationCodeValidator creates a new station code validator instance
func NewStationCodeValidator() *StationCodeValidator {
	v := validator.New()
	// the tag name is constant and the function non-nil, registration cannot fail
	_ = RegisterStationCode(v)
	return &StationCodeValidator{validate: v}
}

// Validate checks a user-entered station code and returns it upper-cased
func (v *StationCodeValidator) Validate(code string) (string, error) {
	sanitized := v.Sanitize(code)
	if sanitized == "" {
		return "", ErrEmptyStationCode
	}
	if err := v.validate.Var(sanitized, StationCodeTag); err != nil {
		return "", ErrInvalidStationCode
	}
	return sanitized, nil
}

// Sanitize trims whitespace and upper-cases the code
func (v *StationCodeValidator) Sanitize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
