package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error codes surfaced to clients on validation failure.
const (
	CodeMissingField  = "MISSING_FIELD"
	CodeEmptyField    = "EMPTY_FIELD"
	CodeInvalidLength = "INVALID_LENGTH"
	CodeInvalidFormat = "INVALID_FORMAT"
	CodeInvalidType   = "INVALID_TYPE"
	CodeFormatError   = "FORMAT_ERROR"
)

// Failure categories.
const (
	TypeFieldError  = "FIELD_ERROR"
	TypeValueError  = "VALUE_ERROR"
	TypeFormatError = "FORMAT_ERROR"
)

// Failure is a client-facing description of why a payload was rejected.
type Failure struct {
	Code    string            `json:"code"`
	Type    string            `json:"error_type"`
	Field   string            `json:"field,omitempty"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (f *Failure) Error() string {
	if f.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Field, f.Message, f.Code)
	}
	return fmt.Sprintf("%s (%s)", f.Message, f.Code)
}

// LoginRequest starts a login challenge for a mobile number.
type LoginRequest struct {
	MobileNo string `json:"mobile_no" validate:"required,numeric,min=10,max=15"`
	DeviceID string `json:"device_id" validate:"required"`
	FCMToken string `json:"fcm_token" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// OTPRequest submits a code against an outstanding challenge.
type OTPRequest struct {
	MobileNo     string `json:"mobile_no" validate:"required,numeric,min=10,max=15"`
	SessionToken string `json:"session_token" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
}

// ProfileRequest fills in identity fields after verification.
type ProfileRequest struct {
	MobileNo     string            `json:"mobile_no" validate:"required,numeric,min=10,max=15"`
	SessionToken string            `json:"session_token" validate:"required"`
	FullName     string            `json:"full_name" validate:"required,min=1,max=100"`
	State        string            `json:"state" validate:"required,min=1,max=50"`
	ReferralCode string            `json:"referral_code" validate:"omitempty,alphanum,min=4,max=20"`
	ReferredBy   string            `json:"referred_by" validate:"omitempty,alphanum,min=4,max=20"`
	Extra        map[string]string `json:"extra" validate:"omitempty"`
}

// LocaleRequest sets language and regional preferences.
type LocaleRequest struct {
	MobileNo     string            `json:"mobile_no" validate:"required,numeric,min=10,max=15"`
	SessionToken string            `json:"session_token" validate:"required"`
	LanguageCode string            `json:"language_code" validate:"required,alpha,len=2"`
	LanguageName string            `json:"language_name" validate:"required,min=1,max=50"`
	RegionCode   string            `json:"region_code" validate:"omitempty,alpha,len=2"`
	Timezone     string            `json:"timezone" validate:"omitempty,max=64"`
	Preferences  map[string]string `json:"preferences" validate:"omitempty"`
}

// DeviceInfoRequest carries client device metadata for auditing.
type DeviceInfoRequest struct {
	DeviceID        string   `json:"device_id" validate:"required"`
	DeviceType      string   `json:"device_type" validate:"required,max=32"`
	Manufacturer    string   `json:"manufacturer" validate:"omitempty,min=1,max=64"`
	Model           string   `json:"model" validate:"omitempty,min=1,max=64"`
	FirmwareVersion string   `json:"firmware_version" validate:"omitempty,min=1,max=64"`
	Capabilities    []string `json:"capabilities" validate:"omitempty,dive,min=1"`
}

// Validator decodes raw event payloads into typed requests and runs the
// declared constraints over them.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()
	// Report failures against JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) DecodeLogin(data []byte) (*LoginRequest, *Failure) {
	var req LoginRequest
	if f := v.decode(data, &req); f != nil {
		return nil, f
	}
	return &req, nil
}

func (v *Validator) DecodeOTP(data []byte) (*OTPRequest, *Failure) {
	var req OTPRequest
	if f := v.decode(data, &req); f != nil {
		return nil, f
	}
	return &req, nil
}

func (v *Validator) DecodeProfile(data []byte) (*ProfileRequest, *Failure) {
	var req ProfileRequest
	if f := v.decode(data, &req); f != nil {
		return nil, f
	}
	return &req, nil
}

func (v *Validator) DecodeLocale(data []byte) (*LocaleRequest, *Failure) {
	var req LocaleRequest
	if f := v.decode(data, &req); f != nil {
		return nil, f
	}
	return &req, nil
}

func (v *Validator) DecodeDeviceInfo(data []byte) (*DeviceInfoRequest, *Failure) {
	var req DeviceInfoRequest
	if f := v.decode(data, &req); f != nil {
		return nil, f
	}
	return &req, nil
}

func (v *Validator) decode(data []byte, dst any) *Failure {
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Failure{
				Code:    CodeInvalidType,
				Type:    TypeFormatError,
				Field:   typeErr.Field,
				Message: fmt.Sprintf("expected %s", typeErr.Type),
			}
		}
		return &Failure{
			Code:    CodeFormatError,
			Type:    TypeFormatError,
			Message: "payload is not valid JSON",
		}
	}
	return v.check(data, dst)
}

func (v *Validator) check(raw []byte, dst any) *Failure {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Failure{Code: CodeFormatError, Type: TypeFormatError, Message: err.Error()}
	}

	fe := verrs[0]
	code := codeForTag(fe.Tag())
	if code == CodeMissingField && fieldPresent(raw, fe.Field()) {
		code = CodeEmptyField
	}
	return &Failure{
		Code:    code,
		Type:    typeForCode(code),
		Field:   fe.Field(),
		Message: messageFor(code, fe),
		Details: map[string]string{"constraint": fe.Tag()},
	}
}

// fieldPresent distinguishes a key that was sent empty from one that was
// omitted entirely.
func fieldPresent(raw []byte, field string) bool {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return false
	}
	_, ok := keys[field]
	return ok
}

func codeForTag(tag string) string {
	switch tag {
	case "required":
		return CodeMissingField
	case "len", "min", "max":
		return CodeInvalidLength
	default:
		return CodeInvalidFormat
	}
}

func typeForCode(code string) string {
	switch code {
	case CodeMissingField, CodeEmptyField:
		return TypeFieldError
	case CodeInvalidLength, CodeInvalidFormat:
		return TypeValueError
	default:
		return TypeFormatError
	}
}

func messageFor(code string, fe validator.FieldError) string {
	if code == CodeEmptyField {
		return "field must not be empty"
	}
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "alpha":
		return "must contain only letters"
	case "alphanum":
		return "must contain only letters and digits"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}
