package gateway

// Event names received from clients.
const (
	EventLogin       = "login"
	EventVerifyOTP   = "verify:otp"
	EventSetProfile  = "set:profile"
	EventSetLanguage = "set:language"
	EventDeviceInfo  = "device:info"
)

// Event names emitted to clients.
const (
	EventConnectResponse       = "connect_response"
	EventConnectionError       = "connection_error"
	EventLoginSuccess          = "login:success"
	EventOTPVerified           = "otp:verified"
	EventOTPVerificationFailed = "otp:verification_failed"
	EventProfileSet            = "profile:set"
	EventLanguageSet           = "language:set"
	EventDeviceInfoAck         = "device:info:ack"
)

// Error codes carried on connection_error and otp:verification_failed.
const (
	CodeInvalidOTP           = "INVALID_OTP"
	CodeOTPExpired           = "OTP_EXPIRED"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeSessionNotVerified   = "SESSION_NOT_VERIFIED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeReferralCodeTaken    = "REFERRAL_CODE_TAKEN"
	CodeReferralCodeInvalid  = "REFERRAL_CODE_INVALID"
	CodeReferralCodeAssigned = "REFERRAL_CODE_ASSIGNED"
	CodeReferrerNotFound     = "REFERRER_NOT_FOUND"
	CodeUnknownEvent         = "UNKNOWN_EVENT"
	CodeInvalidFormat        = "INVALID_FORMAT"
	CodeSystemError          = "SYSTEM_ERROR"
)

type connectResponse struct {
	Status   string `json:"status"`
	PeerID   string `json:"peer_id"`
	ServerTS int64  `json:"server_ts"`
	Message  string `json:"message"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type loginSuccessResponse struct {
	MobileNo     string `json:"mobile_no"`
	DeviceID     string `json:"device_id"`
	SessionToken string `json:"session_token"`
	OTP          string `json:"otp"`
	IsNewUser    bool   `json:"is_new_user"`
	ExpiresAt    int64  `json:"expires_at"`
}

type otpVerifiedResponse struct {
	MobileNo     string `json:"mobile_no"`
	SessionToken string `json:"session_token"`
	UserID       string `json:"user_id"`
	UserNumber   uint64 `json:"user_number"`
	UserStatus   string `json:"user_status"`
	JWTToken     string `json:"jwt_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type otpFailedResponse struct {
	MobileNo string `json:"mobile_no"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type profileSetResponse struct {
	MobileNo     string `json:"mobile_no"`
	FullName     string `json:"full_name"`
	State        string `json:"state"`
	ReferralCode string `json:"referral_code,omitempty"`
	ReferredBy   string `json:"referred_by,omitempty"`
	Message      string `json:"message"`
}

type languageSetResponse struct {
	MobileNo          string            `json:"mobile_no"`
	LanguageCode      string            `json:"language_code"`
	LanguageName      string            `json:"language_name"`
	LocalizedMessages map[string]string `json:"localized_messages"`
}

type deviceInfoAckResponse struct {
	DeviceID string `json:"device_id"`
	Received bool   `json:"received"`
}
