package booking

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"spa-chat-widget/internal/domain"
)

var ErrInvalidContact = errors.New("booking: invalid contact details")

// phonePattern accepts digits and the usual separators, ten characters or more.
var phonePattern = regexp.MustCompile(`^[0-9+\-() ]{10,}$`)

var contactValidator = newContactValidator()

func newContactValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("booking: register phone validation: %v", err))
	}
	return v
}

// normalizeContact trims every field and checks the form rules.
func normalizeContact(in domain.ClientInfo) (domain.ClientInfo, error) {
	out := domain.ClientInfo{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
		Notes: strings.TrimSpace(in.Notes),
	}
	err := contactValidator.Struct(out)
	if err == nil {
		return out, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return out, fmt.Errorf("%w: %v", ErrInvalidContact, err)
	}
	fe := fieldErrs[0]
	if fe.Tag() == "required" {
		return out, fmt.Errorf("%w: %s is required", ErrInvalidContact, fe.Field())
	}
	return out, fmt.Errorf("%w: %s %q is not valid", ErrInvalidContact, fe.Field(), fe.Value())
}
