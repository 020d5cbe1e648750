package enrollment

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/user"
)

var (
	NowFunc = time.Now // mockable

	gmailTag   = "gmail"
	gmailText  = "email must be a Gmail address (@gmail.com)"
	gmailRegex = regexp.MustCompile(`(?i)@gmail\.com$`)

	saPhoneTag   = "saphone"
	saPhoneText  = "phone number must be 10 digits starting with 0 or +27"
	saPhoneRegex = regexp.MustCompile(`^(\+27|0)\d{9}$`)

	saIDNumTag   = "saidnum"
	saIDNumText  = "ID number must be exactly 13 digits"
	saIDNumRegex = regexp.MustCompile(`^\d{13}$`)

	gradeTag  = "grade"
	gradeText = "invalid grade"

	staffRoleTag  = "staffrole"
	staffRoleText = "invalid staff role"

	ageMismatchTag  = "agemismatch"
	ageMismatchText = "age does not match the ID number"
)

// InitValidators registers the enrollment package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gmailTag, gmailValidation)
	core.RegisterCustomTranslation(validate, translator, gmailTag, gmailText)

	_ = validate.RegisterValidation(saPhoneTag, saPhoneValidation)
	core.RegisterCustomTranslation(validate, translator, saPhoneTag, saPhoneText)

	_ = validate.RegisterValidation(saIDNumTag, saIDNumValidation)
	core.RegisterCustomTranslation(validate, translator, saIDNumTag, saIDNumText)

	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	_ = validate.RegisterValidation(staffRoleTag, staffRoleValidation)
	core.RegisterCustomTranslation(validate, translator, staffRoleTag, staffRoleText)

	validate.RegisterStructValidation(learnerApplicationStructValidation, LearnerApplication{})
	validate.RegisterStructValidation(staffApplicationStructValidation, StaffApplication{})
	core.RegisterCustomTranslation(validate, translator, ageMismatchTag, ageMismatchText)
}

func cleanPhone(phone string) string {
	return strings.ReplaceAll(core.CleanString(phone), " ", "")
}

func gmailValidation(fl validator.FieldLevel) bool {
	return gmailRegex.MatchString(fl.Field().String())
}

// saPhoneValidation applies the registration rule (+27 or 0, followed by
// 9 digits) and then checks the number is actually dialable in ZA.
func saPhoneValidation(fl validator.FieldLevel) bool {
	phone := cleanPhone(fl.Field().String())
	if !saPhoneRegex.MatchString(phone) {
		return false
	}
	num, err := phonenumbers.Parse(phone, "ZA")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

func saIDNumValidation(fl validator.FieldLevel) bool {
	return saIDNumRegex.MatchString(fl.Field().String())
}

func gradeValidation(fl validator.FieldLevel) bool {
	if grade, ok := fl.Field().Interface().(GradeLevel); ok {
		return grade.Valid()
	}
	return false
}

func staffRoleValidation(fl validator.FieldLevel) bool {
	if role, ok := fl.Field().Interface().(Role); ok {
		return role.IsStaff()
	}
	return false
}

// ValidateAgeWithID checks the stated age against the birth year encoded in
// the first two digits of a 13-digit identity number, with a ±1 year
// tolerance for birthday timing.
//
// The 2-digit prefix is resolved to a full year by comparing against the
// current 2-digit year: values <= the current one are taken as 2000s,
// anything else as 1900s. The heuristic is ambiguous across a century
// boundary (a 101-year-old and a 1-year-old encode identically); it is kept
// as-is for compatibility with existing identity records.
func ValidateAgeWithID(age int, idNumber string) bool {
	if len(idNumber) != 13 {
		return false
	}
	prefix, err := strconv.Atoi(idNumber[:2])
	if err != nil {
		return false
	}

	currentYear := NowFunc().Year()
	birthYear := 1900 + prefix
	if prefix <= currentYear%100 {
		birthYear = 2000 + prefix
	}

	diff := currentYear - birthYear - age
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func learnerApplicationStructValidation(sl validator.StructLevel) {
	if la, ok := sl.Current().Interface().(LearnerApplication); ok {
		validateApplicantIdentity(sl, la.Age, la.IdentityNumber, la.Password, la.Email)
	}
}

func staffApplicationStructValidation(sl validator.StructLevel) {
	if sa, ok := sl.Current().Interface().(StaffApplication); ok {
		validateApplicantIdentity(sl, sa.Age, sa.IdentityNumber, sa.Password, sa.Email)
	}
}

func validateApplicantIdentity(sl validator.StructLevel, age int, idNumber, pwd, email string) {
	if saIDNumRegex.MatchString(idNumber) && !ValidateAgeWithID(age, idNumber) {
		sl.ReportError(age, "age", "Age", ageMismatchTag, "")
	}
	user.ValidatePassword(pwd, email, sl)
}
