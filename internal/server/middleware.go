package server

import (
	"compress/gzip"
	"io"
	"log"
	"net/http"
	"strings"

	"taskboard/internal/auth"
	"taskboard/internal/domain/errors"

	"github.com/gin-gonic/gin"
)

const (
	tokenCookie = "jwt_token"

	// maxBodyBytes caps request bodies, after decompression for gzip ones.
	maxBodyBytes = 1 << 20

	ctxUserID = "userID"
	ctxClaims = "claims"
)

type gzipBody struct {
	*gzip.Reader
	body io.Closer
}

func (b *gzipBody) Close() error {
	err := b.Reader.Close()
	if cerr := b.body.Close(); err == nil {
		err = cerr
	}
	return err
}

// BodyLimit rejects request bodies larger than limit bytes once they are read.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Body != nil {
			ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, limit)
		}
		ctx.Next()
	}
}

// GzipRequestDecompress transparently inflates gzip encoded request bodies.
// The inflated stream is capped at limit bytes.
func GzipRequestDecompress(limit int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}
		gr, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": errors.ErrInvalidGzipRequest.Error()})
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, &gzipBody{Reader: gr, body: ctx.Request.Body}, limit)
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	gw *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(code int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(code)
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	w.Header().Del("Content-Length")
	n, err := w.gw.Write(data)
	if err != nil {
		return n, errors.ErrGzipCompressionFailed
	}
	return n, nil
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

func (w *gzipResponseWriter) Flush() {
	_ = w.gw.Flush()
	w.ResponseWriter.Flush()
}

// GzipResponseCompress compresses responses for clients that accept gzip.
// Websocket upgrades and HEAD requests pass through untouched.
func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") ||
			strings.EqualFold(ctx.GetHeader("Upgrade"), "websocket") {
			ctx.Next()
			return
		}

		ctx.Header("Content-Encoding", "gzip")
		ctx.Header("Vary", "Accept-Encoding")
		gw := gzip.NewWriter(ctx.Writer)
		ctx.Writer = &gzipResponseWriter{ResponseWriter: ctx.Writer, gw: gw}

		ctx.Next()

		if err := gw.Close(); err != nil {
			_ = ctx.Error(errors.ErrGzipCompressionFailed)
		}
	}
}

func tokenFromRequest(ctx *gin.Context) string {
	if header := ctx.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(tokenCookie); err == nil {
		return cookie
	}
	// browsers cannot set headers on websocket handshakes
	if strings.EqualFold(ctx.GetHeader("Upgrade"), "websocket") {
		return ctx.Query("token")
	}
	return ""
}

// AuthRequired verifies the bearer token (or the jwt_token cookie) and
// stores the caller id in the gin context.
func AuthRequired(tokens *auth.Tokens, revoker auth.Revoker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := tokenFromRequest(ctx)
		if raw == "" {
			abortWith(ctx, http.StatusUnauthorized, errors.ErrUnauthorized.Error())
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			abortWith(ctx, http.StatusUnauthorized, errors.ErrTokenInvalid.Error())
			return
		}
		if revoker != nil {
			revoked, err := revoker.IsRevoked(ctx.Request.Context(), claims.ID)
			if err != nil {
				log.Println("[ERROR] Revocation lookup failed:", err)
				abortWith(ctx, http.StatusInternalServerError, errors.ErrInternalServer.Error())
				return
			}
			if revoked {
				abortWith(ctx, http.StatusUnauthorized, errors.ErrTokenRevoked.Error())
				return
			}
		}
		ctx.Set(ctxUserID, claims.UserID)
		ctx.Set(ctxClaims, claims)
		ctx.Next()
	}
}

func callerID(ctx *gin.Context) string {
	return ctx.GetString(ctxUserID)
}

func callerClaims(ctx *gin.Context) *auth.Claims {
	if v, ok := ctx.Get(ctxClaims); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
