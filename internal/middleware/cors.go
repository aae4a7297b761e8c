package middleware

import (
	"net/http"
	"strings"
)

// NewCORSMiddleware は許可したオリジンからのリクエストにCORSヘッダーを付与するミドルウェアを返す。
// allowedOriginsはカンマ区切りで複数指定できる。空の場合はCORSヘッダーを付与しない。
// OPTIONSプリフライトリクエストには204で応答し、後続のハンドラーは呼ばない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	allowed := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) > 0 {
				h := w.Header()
				h.Add("Vary", "Origin")
				if origin, ok := matchOrigin(allowed, r.Header.Get("Origin")); ok {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type")
					h.Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// matchOrigin はリクエストのOriginが許可リストにあればそれを返す。
// Originヘッダーがない場合（同一オリジンやcurl）は先頭の許可オリジンを返す。
func matchOrigin(allowed []string, origin string) (string, bool) {
	if origin == "" {
		return allowed[0], true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) {
			return origin, true
		}
	}
	return "", false
}
