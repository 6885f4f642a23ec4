// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// templateFuncs はテンプレートから使用するヘルパー関数。
var templateFuncs = template.FuncMap{
	"fmtDate": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
}

// Renderer は埋め込みテンプレートのレンダリングを提供する。
type Renderer struct {
	templates *template.Template
}

// NewRenderer は埋め込みテンプレートをパースしたRendererを生成する。
// パース失敗は起動時のプログラミングエラーとしてpanicする。
func NewRenderer() *Renderer {
	t := template.Must(
		template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"),
	)
	return &Renderer{templates: t}
}

// Render は指定テンプレートをレンダリングしてレスポンスに書き込む。
// レンダリングエラー時は途中までのボディを送らないよう、バッファを経由する。
func (r *Renderer) Render(w http.ResponseWriter, statusCode int, name string, data any) {
	body, err := r.RenderBytes(name, data)
	if err != nil {
		slog.Error("テンプレートのレンダリングに失敗しました",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write(body)
}

// RenderBytes は指定テンプレートをバイト列にレンダリングする。
// ビューキャッシュへの格納用。
func (r *Renderer) RenderBytes(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StaticHandler は埋め込み静的アセット（CSS、JS）を配信するハンドラーを返す。
func StaticHandler() http.Handler {
	return http.FileServer(http.FS(staticFS))
}
