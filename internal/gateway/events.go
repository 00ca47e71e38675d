package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"otp-auth-service/internal/audit"
	"otp-auth-service/internal/directory"
	"otp-auth-service/internal/i18n"
	"otp-auth-service/internal/model"
	"otp-auth-service/internal/referral"
	"otp-auth-service/internal/session"
	"otp-auth-service/internal/util"
	"otp-auth-service/internal/verifier"
)

func (e *Engine) handleLogin(ctx context.Context, peer Peer, data json.RawMessage) {
	req, failure := e.validator.DecodeLogin(data)
	if failure != nil {
		e.sendValidationError(ctx, peer, EventLogin, failure)
		return
	}

	exists, err := e.directory.Exists(ctx, req.MobileNo)
	if err != nil {
		e.logger.Error("Failed to check user existence", util.ErrorField(err))
		e.sendError(ctx, peer, EventLogin, CodeSystemError, "internal error")
		return
	}
	if exists {
		if err := e.directory.UpdateFCMToken(ctx, req.MobileNo, req.FCMToken); err != nil {
			e.logger.Warn("Failed to refresh FCM token",
				util.String("mobile_no", req.MobileNo),
				util.ErrorField(err))
		}
	}

	otp, err := session.GenerateOTP(e.otpDigits)
	if err != nil {
		e.logger.Error("Failed to generate OTP", util.ErrorField(err))
		e.sendError(ctx, peer, EventLogin, CodeSystemError, "internal error")
		return
	}

	challenge, err := e.ledger.Issue(ctx, session.IssueParams{
		MobileNo: req.MobileNo,
		DeviceID: req.DeviceID,
		FCMToken: req.FCMToken,
		Email:    req.Email,
		OTP:      otp,
	})
	if err != nil {
		e.logger.Error("Failed to issue login challenge", util.ErrorField(err))
		e.sendError(ctx, peer, EventLogin, CodeSystemError, "internal error")
		return
	}

	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindLogin,
		PeerID:    peer.ID(),
		MobileNo:  req.MobileNo,
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"device_id": req.DeviceID, "is_new_user": !exists},
	})
	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindLoginSuccess,
		PeerID:    peer.ID(),
		MobileNo:  req.MobileNo,
		Timestamp: time.Now().UTC(),
		Fields: map[string]any{
			"device_id":   req.DeviceID,
			"is_new_user": !exists,
			"expires_at":  challenge.ExpiresAt.Unix(),
		},
	})

	e.send(peer, EventLoginSuccess, loginSuccessResponse{
		MobileNo:     req.MobileNo,
		DeviceID:     req.DeviceID,
		SessionToken: challenge.SessionToken,
		OTP:          challenge.OTP,
		IsNewUser:    !exists,
		ExpiresAt:    challenge.ExpiresAt.Unix(),
	})
}

func (e *Engine) handleVerifyOTP(ctx context.Context, peer Peer, data json.RawMessage) {
	req, failure := e.validator.DecodeOTP(data)
	if failure != nil {
		e.sendValidationError(ctx, peer, EventVerifyOTP, failure)
		return
	}

	result, err := e.verifier.Verify(ctx, req.MobileNo, req.SessionToken, req.OTP)
	if err != nil {
		e.logger.Error("OTP verification errored", util.ErrorField(err))
		e.sendError(ctx, peer, EventVerifyOTP, CodeSystemError, "internal error")
		return
	}

	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindOTPVerification,
		PeerID:    peer.ID(),
		MobileNo:  req.MobileNo,
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"outcome": result.Outcome.String()},
	})

	if result.Outcome != verifier.OutcomeVerified {
		code, message := verificationFailure(result.Outcome)
		e.send(peer, EventOTPVerificationFailed, otpFailedResponse{
			MobileNo: req.MobileNo,
			Code:     code,
			Message:  message,
		})
		return
	}

	if result.UserStatus == verifier.UserStatusNew {
		e.audit.Record(ctx, audit.Event{
			Kind:      audit.KindUserRegistration,
			PeerID:    peer.ID(),
			MobileNo:  req.MobileNo,
			Timestamp: time.Now().UTC(),
			Fields:    map[string]any{"user_id": result.User.UserID, "user_number": result.User.UserNumber},
		})
	}

	e.send(peer, EventOTPVerified, otpVerifiedResponse{
		MobileNo:     req.MobileNo,
		SessionToken: req.SessionToken,
		UserID:       result.User.UserID,
		UserNumber:   result.User.UserNumber,
		UserStatus:   result.UserStatus,
		JWTToken:     result.Token,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
	})
}

func verificationFailure(outcome verifier.Outcome) (code, message string) {
	switch outcome {
	case verifier.OutcomeExpired:
		return CodeOTPExpired, "OTP has expired, request a new one"
	case verifier.OutcomeNotFound:
		return CodeSessionNotFound, "no login session found for this mobile number"
	case verifier.OutcomeRateLimited:
		return CodeRateLimitExceeded, "too many verification attempts, request a new OTP"
	default:
		return CodeInvalidOTP, "incorrect OTP"
	}
}

func (e *Engine) handleSetProfile(ctx context.Context, peer Peer, data json.RawMessage) {
	req, failure := e.validator.DecodeProfile(data)
	if failure != nil {
		e.sendValidationError(ctx, peer, EventSetProfile, failure)
		return
	}

	if !e.requireVerified(ctx, peer, EventSetProfile, req.MobileNo, req.SessionToken) {
		return
	}

	user, err := e.directory.GetByMobile(ctx, req.MobileNo)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			e.sendError(ctx, peer, EventSetProfile, CodeUserNotFound, "user not registered")
			return
		}
		e.logger.Error("Failed to load user", util.ErrorField(err))
		e.sendError(ctx, peer, EventSetProfile, CodeSystemError, "internal error")
		return
	}

	referralCode := user.ReferralCode
	if referralCode != "" && req.ReferralCode != "" && req.ReferralCode != referralCode {
		e.sendError(ctx, peer, EventSetProfile, CodeReferralCodeAssigned, "referral code already assigned and cannot be changed")
		return
	}
	if referralCode == "" {
		referralCode, err = e.allocator.Allocate(ctx, req.ReferralCode)
		if err != nil {
			switch {
			case errors.Is(err, referral.ErrCodeTaken):
				e.sendError(ctx, peer, EventSetProfile, CodeReferralCodeTaken, "referral code already taken")
			case errors.Is(err, referral.ErrInvalidCode):
				e.sendError(ctx, peer, EventSetProfile, CodeReferralCodeInvalid, "referral code must be 4-20 alphanumeric characters")
			default:
				e.logger.Error("Failed to allocate referral code", util.ErrorField(err))
				e.sendError(ctx, peer, EventSetProfile, CodeSystemError, "internal error")
			}
			return
		}
	}

	fullName := util.SanitizeInput(req.FullName)
	state := util.SanitizeInput(req.State)
	upd := model.ProfileUpdate{
		FullName:     &fullName,
		State:        &state,
		ReferralCode: &referralCode,
	}
	if req.ReferredBy != "" {
		referredBy := req.ReferredBy
		upd.ReferredBy = &referredBy
	}
	if len(req.Extra) > 0 {
		upd.Extra = make(map[string]interface{}, len(req.Extra))
		for k, v := range req.Extra {
			upd.Extra[util.SanitizeInput(k)] = util.SanitizeInput(v)
		}
	}

	if err := e.directory.UpdateProfile(ctx, req.MobileNo, upd); err != nil {
		if errors.Is(err, directory.ErrReferralNotFound) {
			e.sendError(ctx, peer, EventSetProfile, CodeReferrerNotFound, "referrer code does not exist")
			return
		}
		e.logger.Error("Failed to update profile", util.ErrorField(err))
		e.sendError(ctx, peer, EventSetProfile, CodeSystemError, "internal error")
		return
	}

	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindProfileUpdate,
		PeerID:    peer.ID(),
		MobileNo:  req.MobileNo,
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"referral_code": referralCode, "referred_by": req.ReferredBy},
	})

	lang := user.LanguageCode
	e.send(peer, EventProfileSet, profileSetResponse{
		MobileNo:     req.MobileNo,
		FullName:     fullName,
		State:        state,
		ReferralCode: referralCode,
		ReferredBy:   req.ReferredBy,
		Message:      i18n.Messages(lang)["profile_updated"],
	})
}

func (e *Engine) handleSetLanguage(ctx context.Context, peer Peer, data json.RawMessage) {
	req, failure := e.validator.DecodeLocale(data)
	if failure != nil {
		e.sendValidationError(ctx, peer, EventSetLanguage, failure)
		return
	}

	if !e.requireVerified(ctx, peer, EventSetLanguage, req.MobileNo, req.SessionToken) {
		return
	}

	langCode := req.LanguageCode
	langName := util.SanitizeInput(req.LanguageName)
	upd := model.LocaleUpdate{
		LanguageCode: &langCode,
		LanguageName: &langName,
	}
	if req.RegionCode != "" {
		region := req.RegionCode
		upd.RegionCode = &region
	}
	if req.Timezone != "" {
		tz := util.SanitizeInput(req.Timezone)
		upd.Timezone = &tz
	}
	if len(req.Preferences) > 0 {
		upd.Preferences = make(map[string]interface{}, len(req.Preferences))
		for k, v := range req.Preferences {
			upd.Preferences[util.SanitizeInput(k)] = util.SanitizeInput(v)
		}
	}

	if err := e.directory.UpdateLocale(ctx, req.MobileNo, upd); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			e.sendError(ctx, peer, EventSetLanguage, CodeUserNotFound, "user not registered")
			return
		}
		e.logger.Error("Failed to update locale", util.ErrorField(err))
		e.sendError(ctx, peer, EventSetLanguage, CodeSystemError, "internal error")
		return
	}

	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindLanguageSetting,
		PeerID:    peer.ID(),
		MobileNo:  req.MobileNo,
		Timestamp: time.Now().UTC(),
		Fields:    map[string]any{"language_code": langCode},
	})

	e.send(peer, EventLanguageSet, languageSetResponse{
		MobileNo:          req.MobileNo,
		LanguageCode:      langCode,
		LanguageName:      langName,
		LocalizedMessages: i18n.Messages(langCode),
	})
}

func (e *Engine) handleDeviceInfo(ctx context.Context, peer Peer, data json.RawMessage) {
	req, failure := e.validator.DecodeDeviceInfo(data)
	if failure != nil {
		e.sendValidationError(ctx, peer, EventDeviceInfo, failure)
		return
	}

	e.audit.Record(ctx, audit.Event{
		Kind:      audit.KindDeviceInfo,
		PeerID:    peer.ID(),
		Timestamp: time.Now().UTC(),
		Fields: map[string]any{
			"device_id":        req.DeviceID,
			"device_type":      req.DeviceType,
			"manufacturer":     req.Manufacturer,
			"model":            req.Model,
			"firmware_version": req.FirmwareVersion,
			"capabilities":     req.Capabilities,
		},
	})

	e.send(peer, EventDeviceInfoAck, deviceInfoAckResponse{
		DeviceID: req.DeviceID,
		Received: true,
	})
}

// requireVerified gates profile and locale mutations behind a verified
// login challenge for the same mobile number.
func (e *Engine) requireVerified(ctx context.Context, peer Peer, event, mobileNo, sessionToken string) bool {
	challenge, err := e.ledger.Find(ctx, mobileNo, sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrChallengeNotFound) {
			e.sendError(ctx, peer, event, CodeSessionNotFound, "no login session found for this mobile number")
			return false
		}
		e.logger.Error("Failed to look up login challenge", util.ErrorField(err))
		e.sendError(ctx, peer, event, CodeSystemError, "internal error")
		return false
	}
	if challenge.VerifiedAt == nil {
		e.sendError(ctx, peer, event, CodeSessionNotVerified, "session has not completed OTP verification")
		return false
	}
	return true
}
