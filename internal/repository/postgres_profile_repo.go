package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/serif/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, first_name, avatar_url, email, created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.FirstName, &profile.AvatarURL, &profile.Email,
		&profile.CreatedAt, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, first_name, avatar_url, email, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.FirstName, profile.AvatarURL, profile.Email,
		profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// UpdatePartial はプロフィールを部分更新する。
// partialの非nilフィールドのみをSET句に含めるため、含まれないフィールド
// （email、created_at等）はSQLレベルで変更されない。
// updated_atは部分更新の内容に関わらず常に更新する。
func (r *PostgresProfileRepo) UpdatePartial(ctx context.Context, id string, partial model.ProfilePartial, updatedAt time.Time) error {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if partial.FirstName != nil {
		sets = append(sets, fmt.Sprintf("first_name = $%d", argPos))
		args = append(args, *partial.FirstName)
		argPos++
	}
	if partial.AvatarURL != nil {
		sets = append(sets, fmt.Sprintf("avatar_url = $%d", argPos))
		args = append(args, *partial.AvatarURL)
		argPos++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, updatedAt)
	argPos++

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), argPos)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}

	return nil
}

// DeleteByID は指定IDのプロフィールを削除する。
// 関連するidentities、sessionsはCASCADE削除される。
func (r *PostgresProfileRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
