package model

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("media_url", validateMediaURL); err != nil {
		panic(fmt.Sprintf("register media_url validation: %v", err))
	}
	validate.RegisterStructValidation(validateCatalogue, Request{})
}

// Validate checks the request before a task is launched. Failures are
// returned as *InvalidRequestError.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &InvalidRequestError{
			Field:  fe.Field(),
			Reason: reasonFor(fe),
		}
	}
	return &InvalidRequestError{Reason: err.Error()}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "media_url":
		return fmt.Sprintf("%q is not an http(s) URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "catalogue":
		return fmt.Sprintf("%q is not offered for this kind", fe.Value())
	default:
		return fmt.Sprintf("failed %s", fe.Tag())
	}
}

func validateMediaURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func validateCatalogue(sl validator.StructLevel) {
	r := sl.Current().Interface().(Request)
	if r.Kind != KindAudio && r.Kind != KindVideo {
		return
	}
	if r.Quality != "" && !HasQuality(r.Kind, r.Quality) {
		sl.ReportError(r.Quality, "Quality", "Quality", "catalogue", "")
	}
	if r.Format != "" && !HasFormat(r.Kind, r.Format) {
		sl.ReportError(r.Format, "Format", "Format", "catalogue", "")
	}
}
