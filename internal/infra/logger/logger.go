package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns a singleton zap.Logger configured for structured logging.
// Production builds emit JSON with ISO8601 timestamps; everything else gets
// the colored console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		var cfg zap.Config
		switch env {
		case "production":
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		default:
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		lg, err = cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	})

	return lg, err
}

// RequestIDKey is the context key carrying the request correlation ID.
type RequestIDKey struct{}

// MaskEmail masks email addresses, showing up to the first 3 characters and
// the domain. Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return MaskString(email)
	}

	if len(local) <= 3 {
		return "***@" + domain
	}
	return local[:3] + "***@" + domain
}

// MaskIP masks the final octet of an IPv4 address or the tail of an IPv6
// address. Example: "203.0.113.7" -> "203.0.113.xxx"
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if idx := strings.LastIndex(ip, "."); idx > 0 {
		return ip[:idx] + ".xxx"
	}
	if idx := strings.LastIndex(ip, ":"); idx > 0 {
		return ip[:idx] + ":xxxx"
	}
	return MaskString(ip)
}

// MaskString is a generic mask for arbitrary sensitive strings, keeping the
// first and last 2 characters. Example: "482913" -> "48***13"
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
