package enrollment

import (
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/kagisom/imfundo/core"
	"github.com/kagisom/imfundo/core/user"
)

func newTestValidator() *validator.Validate {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestValidateAgeWithID(t *testing.T) {
	NowFunc = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { NowFunc = time.Now }()

	tests := []struct {
		name     string
		age      int
		idNumber string
		want     bool
	}{
		// prefix 99 > 26 resolves to 1999: real age 27
		{name: "exact match", age: 27, idNumber: "9901015800086", want: true},
		{name: "one year under", age: 26, idNumber: "9901015800086", want: true},
		{name: "one year over", age: 28, idNumber: "9901015800086", want: true},
		{name: "two years off", age: 25, idNumber: "9901015800086", want: false},
		// prefix 20 <= 26 resolves to 2020: real age 6
		{name: "2000s prefix", age: 6, idNumber: "2001015800086", want: true},
		{name: "2000s prefix off", age: 9, idNumber: "2001015800086", want: false},
		{name: "short ID", age: 27, idNumber: "990101", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateAgeWithID(tt.age, tt.idNumber))
		})
	}
}

func Test_saPhoneValidation(t *testing.T) {
	validate := newTestValidator()

	type form struct {
		Phone string `validate:"saphone"`
	}
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{name: "local format", phone: "0821234567"},
		{name: "international format", phone: "+27821234567"},
		{name: "spaces stripped", phone: "082 123 4567"},
		{name: "too short", phone: "082123456", wantErr: true},
		{name: "too long", phone: "08212345678", wantErr: true},
		{name: "bad prefix", phone: "27821234567", wantErr: true},
		{name: "not dialable", phone: "0001234567", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(form{Phone: tt.phone})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_gmailValidation(t *testing.T) {
	validate := newTestValidator()

	type form struct {
		Email string `validate:"email,gmail"`
	}
	assert.NoError(t, validate.Struct(form{Email: "jane@gmail.com"}))
	assert.NoError(t, validate.Struct(form{Email: "jane@GMAIL.COM"}))
	assert.Error(t, validate.Struct(form{Email: "jane@yahoo.com"}))
}

func TestLearnerApplication_Validate_structLevel(t *testing.T) {
	NowFunc = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { NowFunc = time.Now }()

	validate := newTestValidator()

	app := func() LearnerApplication {
		return LearnerApplication{
			FirstName:           "Jane",
			LastName:            "Dlamini",
			Email:               "jane@gmail.com",
			Password:            "xK9#mPl2qR",
			PasswordConfirm:     "xK9#mPl2qR",
			PhoneNumber:         "0821234567",
			IdentityNumber:      "1901015800086", // prefix 19 -> 2019, age 7
			Age:                 7,
			PhysicalAddress:     "12 Vilakazi Street, Orlando West",
			ApplyingForGrade:    Grade1,
			ParentGuardianName:  "Thandi Dlamini",
			ParentGuardianPhone: "0831234567",
			IdentityDocumentURL: "http://localhost:8000/uploads/identity-documents/id.pdf",
			ParentGuardianIDURL: "http://localhost:8000/uploads/parent-ids/id.pdf",
			PreviousReportURL:   "http://localhost:8000/uploads/report-cards/report.pdf",
			BankingDetailsURL:   "http://localhost:8000/uploads/banking-details/proof.pdf",
		}
	}

	t.Run("valid application", func(t *testing.T) {
		assert.NoError(t, validate.Struct(app()))
	})

	t.Run("age does not match ID", func(t *testing.T) {
		a := app()
		a.Age = 12
		err := validate.Struct(a)
		assert.Error(t, err)
		assertFieldError(t, err, "age", ageMismatchTag)
	})

	t.Run("password too similar to email", func(t *testing.T) {
		a := app()
		a.Password = "jane@gmail.comX"
		a.PasswordConfirm = a.Password
		err := validate.Struct(a)
		assert.Error(t, err)
		assertFieldError(t, err, "password", "pwdtoosim")
	})

	t.Run("learner age out of range", func(t *testing.T) {
		a := app()
		a.Age = 17
		a.IdentityNumber = "0901015800086"
		assert.Error(t, validate.Struct(a))
	})
}

func TestStaffApplication_Validate_structLevel(t *testing.T) {
	NowFunc = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	defer func() { NowFunc = time.Now }()

	validate := newTestValidator()

	app := func() StaffApplication {
		return StaffApplication{
			FirstName:                "Sipho",
			LastName:                 "Ndlovu",
			Email:                    "sipho@gmail.com",
			Password:                 "xK9#mPl2qR",
			PasswordConfirm:          "xK9#mPl2qR",
			PhoneNumber:              "0821234567",
			IdentityNumber:           "9901015800086", // 1999, age 27
			Age:                      27,
			PhysicalAddress:          "45 Main Road, Athlone, Cape Town",
			Role:                     RoleTeacher,
			GradesTeaching:           []GradeLevel{Grade4, Grade5},
			SubjectsTeaching:         []string{"Mathematics"},
			NextOfKinContact:         "0831234567",
			IdentityDocumentURL:      "http://localhost:8000/uploads/identity-documents/id.pdf",
			ProofOfAddressURL:        "http://localhost:8000/uploads/proof-of-address/util.pdf",
			QualificationDocumentURL: "http://localhost:8000/uploads/qualifications/cert.pdf",
		}
	}

	t.Run("valid application", func(t *testing.T) {
		assert.NoError(t, validate.Struct(app()))
	})

	t.Run("learner is not a staff role", func(t *testing.T) {
		a := app()
		a.Role = RoleLearner
		err := validate.Struct(a)
		assert.Error(t, err)
		assertFieldError(t, err, "role", staffRoleTag)
	})

	t.Run("sgb is not an applicable staff role", func(t *testing.T) {
		a := app()
		a.Role = RoleSGB
		assert.Error(t, validate.Struct(a))
	})

	t.Run("staff age below minimum", func(t *testing.T) {
		a := app()
		a.Age = 19
		a.IdentityNumber = "0701015800086" // 2007
		assert.Error(t, validate.Struct(a))
	})

	t.Run("invalid teaching grade", func(t *testing.T) {
		a := app()
		a.GradesTeaching = []GradeLevel{GradeLevel("9")}
		assert.Error(t, validate.Struct(a))
	})
}

func assertFieldError(t *testing.T, err error, field, tag string) {
	t.Helper()

	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		t.Fatalf("expected validator.ValidationErrors, got %T", err)
	}
	for _, vErr := range vErrs {
		if vErr.Field() == field && vErr.Tag() == tag {
			return
		}
	}
	t.Errorf("no %q error on field %q in %v", tag, field, vErrs)
}
