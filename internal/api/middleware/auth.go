package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

type contextKey string

const userIDKey contextKey = "user_id"

// DefaultUserID используется при отсутствии заголовка X-User-ID.
// Для локального развертывания с одним пользователем этого достаточно.
const DefaultUserID = "default"

// Auth - middleware для аутентификации запросов
//
// Проверяет статический API токен из заголовка Authorization: Bearer <token>
// (constant-time сравнение для предотвращения timing attacks) и извлекает
// идентификатор пользователя из заголовка X-User-ID в context запроса.
//
// Если токен не сконфигурирован (пустая строка), проверка Authorization
// пропускается: режим для локального развертывания без внешнего доступа.
func Auth(apiToken string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiToken != "" {
				header := r.Header.Get("Authorization")
				token, ok := strings.CutPrefix(header, "Bearer ")
				if !ok {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}

			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				userID = DefaultUserID
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID возвращает идентификатор пользователя из context запроса
func UserID(r *http.Request) string {
	if userID, ok := r.Context().Value(userIDKey).(string); ok && userID != "" {
		return userID
	}
	return DefaultUserID
}
