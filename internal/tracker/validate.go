package tracker

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"shiptwin/internal/model"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names so errors match what the client sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(finiteSensors, model.Sensors{})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return !blank(fl.Field().String())
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		x := fl.Field().Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	})
	return v
}

// blank reports whether an identifier is empty once surrounding space is
// dropped.
func blank(id string) bool { return strings.TrimSpace(id) == "" }

// finiteSensors rejects NaN and infinite readings, which would otherwise slip
// through range tags (temperature has none).
func finiteSensors(sl validator.StructLevel) {
	s := sl.Current().Interface().(model.Sensors)
	for name, p := range map[string]*float64{
		"temperature": s.Temperature, "humidity": s.Humidity,
		"vibration": s.Vibration, "shock": s.Shock, "tilt": s.Tilt,
	} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			sl.ReportError(*p, name, name, "finite", "")
		}
	}
}

func (e *Engine) check(v any) error {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid("", err.Error())
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, Violation{Field: fieldPath(fe), Reason: reason(fe)})
	}
	return out
}

// fieldPath strips the root type name from the namespace: "location.latitude".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "finite":
		return "must be a finite number"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
