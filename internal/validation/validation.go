package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// Lets numeric tags such as gt=0 apply to money fields.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	// cents: money with at most two decimal places, the precision of the
	// numeric(12,2) columns.
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float64 {
			return false
		}
		s := strconv.FormatFloat(f.Float(), 'f', -1, 64)
		dot := strings.IndexByte(s, '.')
		return dot < 0 || len(s)-dot-1 <= 2
	})
	return v
}

// Struct validates v and returns a 400 fiber error listing the failed
// fields, or nil.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fields := Errors(err)
	if len(fields) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	parts := make([]string, 0, len(fields))
	for f, tag := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, tag))
	}
	sort.Strings(parts)
	return fiber.NewError(fiber.StatusBadRequest, "invalid request: "+strings.Join(parts, ", "))
}

// Errors maps each failed field to the tag it failed on.
func Errors(err error) map[string]string {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	out := make(map[string]string, len(ves))
	for _, ve := range ves {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// ParseBody decodes the request body into dst and validates it.
func ParseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return Struct(dst)
}
