package scylla

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"otp-auth-service/internal/config"
	"otp-auth-service/internal/util"
)

// PreparedStatements holds every statement the stores execute. Statements
// are prepared once at startup; gocql reuses the prepared id per host.
type PreparedStatements struct {
	InsertUser            *gocql.Query
	GetUserByMobile       *gocql.Query
	UserExists            *gocql.Query
	UpdateLoginStats      *gocql.Query
	UpdateFCMToken        *gocql.Query
	InsertReferralCode    *gocql.Query
	GetReferralCode       *gocql.Query
	InsertChallenge       *gocql.Query
	GetChallenge          *gocql.Query
	MarkChallengeVerified *gocql.Query
	DeleteChallenge       *gocql.Query
	InsertAttempt         *gocql.Query
	CountAttempts         *gocql.Query
	ScanChallenges        *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	challengeTTL time.Duration
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.MaxPreparedStmts = 1000
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session:      session,
		config:       &scyllaConfig,
		challengeTTL: cfg.OTP.Lifetime * 2,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.InsertUser = s.Session.Query(`
        INSERT INTO users (
            user_bucket, mobile_no, user_id, user_number, device_id, fcm_token,
            email, full_name, state, referral_code, referred_by, language_code,
            language_name, region_code, timezone, preferences, login_count,
            is_active, created_at, updated_at, last_login_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        IF NOT EXISTS`)

	prepared.GetUserByMobile = s.Session.Query(`
        SELECT user_bucket, mobile_no, user_id, user_number, device_id, fcm_token,
            email, full_name, state, referral_code, referred_by, language_code,
            language_name, region_code, timezone, preferences, login_count,
            is_active, created_at, updated_at, last_login_at
        FROM users WHERE user_bucket = ? AND mobile_no = ?`)

	prepared.UserExists = s.Session.Query(`
        SELECT mobile_no FROM users WHERE user_bucket = ? AND mobile_no = ?`)

	prepared.UpdateLoginStats = s.Session.Query(`
        UPDATE users SET login_count = ?, last_login_at = ?, updated_at = ?
        WHERE user_bucket = ? AND mobile_no = ?`)

	prepared.UpdateFCMToken = s.Session.Query(`
        UPDATE users SET fcm_token = ?, updated_at = ?
        WHERE user_bucket = ? AND mobile_no = ?`)

	prepared.InsertReferralCode = s.Session.Query(`
        INSERT INTO referral_codes (referral_code, mobile_no, created_at)
        VALUES (?, ?, ?) IF NOT EXISTS`)

	prepared.GetReferralCode = s.Session.Query(`
        SELECT mobile_no FROM referral_codes WHERE referral_code = ?`)

	prepared.InsertChallenge = s.Session.Query(`
        INSERT INTO login_challenges (
            mobile_no, session_token, device_id, fcm_token, email, otp,
            issued_at, expires_at, verified_at, credential_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) USING TTL ?`)

	prepared.GetChallenge = s.Session.Query(`
        SELECT mobile_no, session_token, device_id, fcm_token, email, otp,
            issued_at, expires_at, verified_at, credential_id
        FROM login_challenges WHERE mobile_no = ? AND session_token = ?`)

	prepared.MarkChallengeVerified = s.Session.Query(`
        UPDATE login_challenges SET verified_at = ?, credential_id = ?
        WHERE mobile_no = ? AND session_token = ?`)

	prepared.DeleteChallenge = s.Session.Query(`
        DELETE FROM login_challenges WHERE mobile_no = ? AND session_token = ?`)

	prepared.InsertAttempt = s.Session.Query(`
        INSERT INTO verification_attempts (
            mobile_no, session_token, attempt_id, code, success, attempted_at
        ) VALUES (?, ?, ?, ?, ?, ?) USING TTL ?`)

	prepared.CountAttempts = s.Session.Query(`
        SELECT COUNT(*) FROM verification_attempts
        WHERE mobile_no = ? AND session_token = ?`)

	prepared.ScanChallenges = s.Session.Query(`
        SELECT mobile_no, session_token, expires_at FROM login_challenges`)

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created successfully")
	return nil
}

// ChallengeTTL is the row-level TTL backstop on login challenges. Rows
// outlive ExpiresAt so late verification attempts classify as expired rather
// than not-found, then Scylla reclaims them.
func (s *ScyllaClient) ChallengeTTL() int {
	return int(s.challengeTTL.Seconds())
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) Query(stmt string, values ...interface{}) *gocql.Query {
	return s.Session.Query(stmt, values...)
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}
