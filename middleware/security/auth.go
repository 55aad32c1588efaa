package security

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"SocialNet/tools/apiresp"
	"SocialNet/tools/errs"
	"SocialNet/tools/security"
)

// CtxUserIDKey 后续 handler 统一用 UserID(c) 读取
const CtxUserIDKey = "userId"

type Options struct {
	JWT        security.Options
	CookieName string // 默认 "token"
	// Optional 为 true 时缺少令牌也放行，只是不写入 userId
	Optional bool
}

func (o *Options) norm() {
	if o.CookieName == "" {
		o.CookieName = "token"
	}
}

// TokenFrom 依次读取 cookie、Authorization: Bearer、?token=
func TokenFrom(r *http.Request, cookieName string) string {
	if cookieName == "" {
		cookieName = "token"
	}
	if ck, err := r.Cookie(cookieName); err == nil && strings.TrimSpace(ck.Value) != "" {
		return strings.TrimSpace(ck.Value)
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Authenticate 解析请求携带的令牌，返回用户 ID；没有令牌返回 ErrTokenMissing
func Authenticate(r *http.Request, opts Options) (string, error) {
	opts.norm()
	return security.Verify(opts.JWT, TokenFrom(r, opts.CookieName))
}

func Middleware(opts Options) gin.HandlerFunc {
	opts.norm()
	return func(c *gin.Context) {
		uid, err := Authenticate(c.Request, opts)
		if err != nil {
			if opts.Optional && errors.Is(err, errs.ErrTokenMissing) {
				c.Next()
				return
			}
			apiresp.Fail(c, err)
			return
		}
		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

// UserID 读取鉴权中间件写入的用户 ID
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
