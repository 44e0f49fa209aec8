// Package validator wraps the content filter with structural checks of a prayer submission:
// text length, zip code and user id formats. It never panics on a filter failure,
// full validation fails closed and quick validation fails open.
package validator

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/kingdomunited/prayers/lib/contentfilter"
)

//go:generate moq --out mocks/content_checker.go --pkg mocks --skip-ensure --with-resets . ContentChecker

// ContentChecker is a content filter interface, satisfied by contentfilter.Filter
type ContentChecker interface {
	FilterContent(text string) contentfilter.Verdict
	QuickValidate(text string) contentfilter.QuickVerdict
}

// default text length limits, in UTF-16 code units like the mobile client counts them
const (
	DefaultMinLength = 5
	DefaultMaxLength = 125
)

// Validator checks prayer submissions
type Validator struct {
	Params
	checker ContentChecker
}

// Params defines text length limits, zero values mean defaults
type Params struct {
	MinLength int
	MaxLength int
}

// Result is a result of prayer text validation
type Result struct {
	Valid                   bool     `json:"isValid"`
	Error                   string   `json:"error,omitempty"`
	Suggestions             []string `json:"suggestions"`
	HasInappropriateContent bool     `json:"hasInappropriateContent"`
}

// errors returned by field checks
var (
	ErrBadZip    = errors.New("invalid zip code, expected 5 digits")
	ErrBadUserID = errors.New("invalid user id")
)

// TextError is returned when prayer text is rejected, it carries the validation result
type TextError struct {
	Result Result
}

func (e *TextError) Error() string {
	return fmt.Sprintf("prayer text rejected: %s", e.Result.Error)
}

const genericFailure = "Validation error - please try again"

var (
	zipRe       = regexp.MustCompile(`^\d{5}$`)
	userIDStyle = regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+\d{1,4}$`) // e.g. BraveEagle123
)

// New makes a Validator for the given content checker
func New(checker ContentChecker, params Params) *Validator {
	if params.MinLength <= 0 {
		params.MinLength = DefaultMinLength
	}
	if params.MaxLength <= 0 {
		params.MaxLength = DefaultMaxLength
	}
	return &Validator{Params: params, checker: checker}
}

// PrayerText validates text length and content. Filter panic results in a rejection with a generic message.
func (v *Validator) PrayerText(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] prayer text validation failed, %v", r)
			res = Result{Valid: false, Error: genericFailure, Suggestions: []string{}}
		}
	}()

	if text == "" {
		return Result{Error: "Please enter your prayer request",
			Suggestions: []string{"Share what you need prayer for in a respectful way"}}
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{Error: "Please enter your prayer request", Suggestions: []string{"Share what you need prayer for"}}
	}

	length := contentfilter.TextLen(trimmed)
	if length < v.MinLength {
		return Result{Error: fmt.Sprintf("Prayer request must be at least %d characters", v.MinLength),
			Suggestions: []string{"Add more details about your prayer request"}}
	}
	if length > v.MaxLength {
		return Result{Error: fmt.Sprintf("Prayer request must be no more than %d characters", v.MaxLength),
			Suggestions: []string{"Please shorten your prayer request"}}
	}

	verdict := v.checker.FilterContent(trimmed)
	suggestions := verdict.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return Result{
		Valid:                   verdict.Clean,
		Error:                   verdict.Reason,
		Suggestions:             suggestions,
		HasInappropriateContent: !verdict.Clean,
	}
}

// QuickPrayerText runs the quick check for live feedback. Empty text and filter panic are both valid.
func (v *Validator) QuickPrayerText(text string) (res contentfilter.QuickVerdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] quick prayer text validation failed, %v", r)
			res = contentfilter.QuickVerdict{Valid: true}
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return contentfilter.QuickVerdict{Valid: true}
	}
	return v.checker.QuickValidate(trimmed)
}

// CheckText returns *TextError if prayer text is not valid
func (v *Validator) CheckText(text string) error {
	if res := v.PrayerText(text); !res.Valid {
		return &TextError{Result: res}
	}
	return nil
}

// CheckZip returns ErrBadZip if zip code is not valid
func CheckZip(zip string) error {
	if !ZipCode(zip) {
		return fmt.Errorf("%w: %q", ErrBadZip, zip)
	}
	return nil
}

// Submission validates all fields of a new prayer request and reports every failed field
func (v *Validator) Submission(userID, zip, text string) error {
	var errs *multierror.Error
	if !UserID(userID) {
		errs = multierror.Append(errs, fmt.Errorf("%w: %q", ErrBadUserID, userID))
	}
	if err := CheckZip(zip); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := v.CheckText(text); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// TextResult extracts the text validation result from an error returned by Submission or CheckText
func TextResult(err error) (Result, bool) {
	var te *TextError
	if errors.As(err, &te) {
		return te.Result, true
	}
	return Result{}, false
}

// ZipCode checks that zip is exactly 5 digits, surrounding spaces ignored
func ZipCode(zip string) bool {
	return zipRe.MatchString(strings.TrimSpace(zip))
}

// UserID checks user id format. Accepts legacy "user_" ids, generated ids like BraveEagle123,
// and, as a loose fallback, anything longer than 5 characters. Length must be within 3..50.
func UserID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	length := contentfilter.TextLen(id)
	if length < 3 || length > 50 {
		return false
	}
	return strings.HasPrefix(id, "user_") || userIDStyle.MatchString(id) || length > 5
}
