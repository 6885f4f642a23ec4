// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/serif/internal/model"
	"github.com/hitoshi/serif/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string // プロフィール画像URL（提供されない場合は空）
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ProfileCreator はプロフィール作成のインターフェース。
// profile.Serviceの部分集合として定義する。
// プロフィール行の作成は初回ログインでのみトリガーされ、
// 編集フローからは決して行われない。
type ProfileCreator interface {
	Create(ctx context.Context, profile *model.Profile) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	profiles    ProfileCreator
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	profiles ProfileCreator,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		profiles:    profiles,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーの場合はプロフィール行とidentity行を自動作成する。
// これが仕様上の「アカウント作成時の外部トリガー」に相当し、
// プロフィール編集サブシステムは作成済みの行だけを扱う。
// 登録済みユーザーの場合はidentitiesテーブルで既存プロフィールを特定しログインする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. identitiesテーブルで既存プロフィールを検索
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var profileID string

	if identity != nil {
		// 3a. 既存ユーザー: identityからプロフィールIDを取得
		profileID = identity.ProfileID
		slog.Info("existing user logged in",
			slog.String("profile_id", profileID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		// 3b. 新規ユーザー: プロフィール行とidentity行を作成
		newProfileID := uuid.New().String()
		now := time.Now()

		newProfile := &model.Profile{
			ID:        newProfileID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if userInfo.Name != "" {
			name := userInfo.Name
			newProfile.FirstName = &name
		}
		if userInfo.Picture != "" {
			picture := userInfo.Picture
			newProfile.AvatarURL = &picture
		}
		if userInfo.Email != "" {
			email := userInfo.Email
			newProfile.Email = &email
		}

		if err := s.profiles.Create(ctx, newProfile); err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}

		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			ProfileID:      newProfileID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.identRepo.Create(ctx, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create identity: %w", err)
		}

		profileID = newProfileID
		slog.Info("new profile created",
			slog.String("profile_id", profileID),
			slog.String("provider", userInfo.Provider),
		)
	}

	// 4. セッションを発行
	session, err := s.createSession(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, profileID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		ProfileID: profileID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
