package event

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("event draft is invalid")

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags & texts
const (
	notBlankTag  = "notblank"
	notBlankText = "this field is required"

	dateTag  = "datestr"
	dateText = "must be a date in YYYY-MM-DD format"

	clockTag  = "clock"
	clockText = "must be a time in HH:MM format"

	subTypeTag  = "subtype"
	subTypeText = "is not a valid subtype for this event type"

	assignmentTag  = "assignment"
	assignmentText = "select at least one group or subgroup"

	afterStartTag  = "afterstart"
	afterStartText = "must not be before the start time"

	participantsTag  = "participants"
	participantsText = "a tournament needs at least 2 participants"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, validators.NotBlank)
	_ = validate.RegisterValidation(dateTag, layoutValidation(DateLayout))
	_ = validate.RegisterValidation(clockTag, layoutValidation(ClockLayout))
	validate.RegisterStructValidation(draftStructValidation, Draft{})

	registerTranslation(notBlankTag, notBlankText, false)
	registerTranslation(dateTag, dateText, false)
	registerTranslation(clockTag, clockText, false)
	registerTranslation(subTypeTag, subTypeText, false)
	registerTranslation(assignmentTag, assignmentText, false)
	registerTranslation(afterStartTag, afterStartText, false)
	registerTranslation(participantsTag, participantsText, false)
}

func registerTranslation(tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func layoutValidation(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := time.Parse(layout, strings.TrimSpace(fl.Field().String()))
		return err == nil
	}
}

// draftStructValidation checks the cross-field rules a tag cannot express.
func draftStructValidation(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)

	if IsValidType(d.Type) && d.SubType != "" && !IsValidSubType(d.Type, d.SubType) {
		sl.ReportError(d.SubType, "subType", "SubType", subTypeTag, "")
	}

	ev := d.event()
	if !ev.HasAssignment() {
		sl.ReportError(d.AssignedGroups, "assignedGroups", "AssignedGroups", assignmentTag, "")
	}

	start, errStart := time.Parse(ClockLayout, strings.TrimSpace(d.StartTime))
	end, errEnd := time.Parse(ClockLayout, strings.TrimSpace(d.EndTime))
	if errStart == nil && errEnd == nil && end.Before(start) {
		sl.ReportError(d.EndTime, "endTime", "EndTime", afterStartTag, "")
	}

	if d.Type == TypeMatch && d.SubType == SubTypeTournament && d.Participants != 0 && d.Participants < 2 {
		sl.ReportError(d.Participants, "participants", "Participants", participantsTag, "")
	}
}

// FieldError is used to indicate an error with a specific draft field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError carries every field-level failure of a draft.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

// NewValidationError wraps field failures; a nil err defaults to ErrValidation.
func NewValidationError(err error, flds ...FieldError) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{err, flds}
}

func (err *ValidationError) Error() string {
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error {
	return err.Err
}

// Map returns field name -> message. The first message per field wins.
func (err *ValidationError) Map() map[string]string {
	out := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Error
		}
	}
	return out
}

// ValidateDraft checks the draft before any store mutation.
// PRE: none
// POST: returns nil or a *ValidationError listing every failing field
func ValidateDraft(d Draft) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate draft")
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return NewValidationError(nil, flds...)
}

// Check reports validity with the per-field messages.
func Check(d Draft) (bool, map[string]string) {
	err := ValidateDraft(d)
	if err == nil {
		return true, map[string]string{}
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false, verr.Map()
	}
	return false, map[string]string{"": err.Error()}
}
