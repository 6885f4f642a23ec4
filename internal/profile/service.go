// Package profile はプロフィールストアアクセサを提供する。
// 外部永続ストアに対するプロフィールの読み書きをすべて仲介する。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/serif/internal/model"
	"github.com/hitoshi/serif/internal/repository"
)

// NameSanitizer は表示名サニタイズのインターフェース。
// security.NameSanitizerServiceを抽象化してテスタビリティを向上させる。
type NameSanitizer interface {
	Sanitize(rawName string) string
}

// URLValidator はアバターURLの静的検証のインターフェース。
// 到達性やフォーマットの厳密な検証は行わず、スキームとホストのみを見る。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ViewInvalidator はレンダリング済みビューの無効化インターフェース。
// 更新成功の副作用として、次回の読み取りが最新値を反映するようにする。
type ViewInvalidator interface {
	Invalidate(userID string)
}

// MetricsRecorder はアクセサが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordProfileFetchMiss(reason string)
	RecordProfileUpdate(success bool)
}

// Service はプロフィールストアアクセサの実装。
// 呼び出し側は認証済みの本人のuserIDのみを渡す責務を負う
// （他ユーザーのプロフィールを取得する経路は公開しない）。
type Service struct {
	repo      repository.ProfileRepository
	sanitizer NameSanitizer
	validator URLValidator
	views     ViewInvalidator
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。
// viewsとmetricsはnilを許容する（テストや一部のワイヤリングで省略可能）。
func NewService(
	repo repository.ProfileRepository,
	sanitizer NameSanitizer,
	validator URLValidator,
	views ViewInvalidator,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		validator: validator,
		views:     views,
		metrics:   metrics,
	}
}

// Fetch は指定userIDのプロフィールを取得する。
// ストア障害と行の不存在はいずれも「プロフィールなし」(nil)に潰して返し、
// 原因は診断ログとメトリクスにのみ記録する。
// 呼び出し側はnilを静的な「not found」表示として扱う。
func (s *Service) Fetch(ctx context.Context, userID string) *model.Profile {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		slog.Error("プロフィールの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordFetchMiss("store_error")
		return nil
	}
	if p == nil {
		slog.Warn("認証済みユーザーのプロフィールが存在しません",
			slog.String("user_id", userID),
		)
		s.recordFetchMiss("not_found")
		return nil
	}
	return p
}

// Update は部分更新ペイロードをストアに適用し、updated_atを現在時刻で更新する。
// ペイロードはfirst_nameとavatar_urlのみを転送する（emailは構造的に含まれない）。
// 成功フラグと、失敗時はストアのエラーレスポンス由来のメッセージを返す。
// 副作用: 成功時にレンダリング済みプロフィールビューを無効化する。
func (s *Service) Update(ctx context.Context, userID string, partial model.ProfilePartial) (bool, string) {
	// 表示名はタグ除去してから保存する
	if partial.FirstName != nil && s.sanitizer != nil {
		cleaned := s.sanitizer.Sanitize(*partial.FirstName)
		partial.FirstName = &cleaned
	}

	// アバターURLはスキーム・ホストの静的検証のみ（到達性は確認しない）
	if partial.AvatarURL != nil && *partial.AvatarURL != "" && s.validator != nil {
		if err := s.validator.ValidateURL(*partial.AvatarURL); err != nil {
			slog.Warn("アバターURLの検証に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			s.recordUpdate(false)
			return false, model.NewInvalidAvatarURLError(err.Error()).Message
		}
	}

	if err := s.repo.UpdatePartial(ctx, userID, partial, time.Now()); err != nil {
		slog.Error("プロフィールの更新に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordUpdate(false)
		return false, err.Error()
	}

	if s.views != nil {
		s.views.Invalidate(userID)
	}
	s.recordUpdate(true)
	return true, ""
}

// Create はプロフィールを作成する。
// アカウント作成（初回ログイン）時にのみ呼び出される。
func (s *Service) Create(ctx context.Context, profile *model.Profile) error {
	if err := s.repo.Create(ctx, profile); err != nil {
		return fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定userIDのプロフィールを削除する。
// アクセサの契約として提供するが、スコープ内のUIからは呼び出されない。
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("プロフィールの削除に失敗しました: %w", err)
	}

	if s.views != nil {
		s.views.Invalidate(userID)
	}
	return nil
}

func (s *Service) recordFetchMiss(reason string) {
	if s.metrics != nil {
		s.metrics.RecordProfileFetchMiss(reason)
	}
}

func (s *Service) recordUpdate(success bool) {
	if s.metrics != nil {
		s.metrics.RecordProfileUpdate(success)
	}
}
