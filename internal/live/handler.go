// Package live はプロフィール編集状態のWebSocket配信を提供する。
// 同一ユーザーの別タブ・別ウィンドウが楽観的表示値の遷移を
// リアルタイムに受信できるようにする。
package live

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/serif/internal/middleware"
	"github.com/hitoshi/serif/internal/model"
	"github.com/hitoshi/serif/internal/optimistic"
)

const (
	// writeWait は1メッセージの書き込みタイムアウト。
	writeWait = 10 * time.Second
	// pongWait はクライアントからのpong待ち時間。
	pongWait = 60 * time.Second
	// pingPeriod はping送信間隔。pongWaitより短くする必要がある
	pingPeriod = (pongWait * 9) / 10
)

// ProfileFetcher はプロフィール取得のインターフェース。
// profile.Serviceの部分集合として定義する。
type ProfileFetcher interface {
	Fetch(ctx context.Context, userID string) *model.Profile
}

// snapshotPayload はWebSocketで配信する状態スナップショットのJSON表現。
type snapshotPayload struct {
	FirstName string `json:"first_name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	Phase     string `json:"phase"`
	InFlight  int    `json:"in_flight"`
	LastError string `json:"last_error,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// Handler はWebSocket接続を受け付け、楽観的編集コントローラの
// 状態遷移を購読してクライアントへ配信する。
type Handler struct {
	registry *optimistic.Registry
	profiles ProfileFetcher
	upgrader websocket.Upgrader
}

// NewHandler はHandlerを生成する。
func NewHandler(registry *optimistic.Registry, profiles ProfileFetcher) *Handler {
	return &Handler{
		registry: registry,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 認証済みルート配下のみで使用するため同一オリジンを要求する
			CheckOrigin: sameOriginCheck,
		},
	}
}

// ServeHTTP はWebSocket接続を確立し、状態スナップショットの配信を開始する。
// 認証ミドルウェアの内側に配置されている前提で、コンテキストからユーザーIDを取る。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile := h.profiles.Fetch(r.Context(), userID)
	if profile == nil {
		// 取得失敗（不在・ストア障害とも）は接続を確立しない
		http.Error(w, "Profile unavailable", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocketアップグレードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	controller := h.registry.GetOrCreate(userID, *profile)
	snapshots, cancel := controller.Subscribe()

	slog.Info("WebSocket接続を確立しました", slog.String("user_id", userID))

	go h.readLoop(conn, userID, cancel)
	h.writeLoop(conn, userID, snapshots, cancel)
}

// readLoop はクライアントからの受信を待つ。状態はサーバー起点で配信するため
// 受信メッセージは読み捨てるが、切断検知とpong処理のために必要。
func (h *Handler) readLoop(conn *websocket.Conn, userID string, cancel func()) {
	defer cancel()
	defer conn.Close()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket読み取りエラー",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writeLoop は購読チャネルからのスナップショットをJSONで配信する。
// チャネルのクローズ（購読解除）または書き込み失敗で終了する。
func (h *Handler) writeLoop(conn *websocket.Conn, userID string, snapshots <-chan optimistic.Snapshot, cancel func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toPayload(snap)); err != nil {
				slog.Warn("WebSocket書き込みエラー",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// toPayload はSnapshotをJSON配信用のペイロードに変換する。
func toPayload(snap optimistic.Snapshot) snapshotPayload {
	payload := snapshotPayload{
		Phase:     string(snap.Phase),
		InFlight:  snap.InFlight,
		LastError: snap.LastError,
		UpdatedAt: snap.Profile.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if snap.Profile.FirstName != nil {
		payload.FirstName = *snap.Profile.FirstName
	}
	if snap.Profile.AvatarURL != nil {
		payload.AvatarURL = *snap.Profile.AvatarURL
	}
	if snap.Profile.Email != nil {
		payload.Email = *snap.Profile.Email
	}
	return payload
}

// sameOriginCheck はOriginヘッダーがリクエストのHostと一致するかを検証する。
func sameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
