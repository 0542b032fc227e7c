package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	apperrors "github.com/glefebvre/listcatalog/internal/errors"
	"github.com/glefebvre/listcatalog/internal/logger"
	"github.com/glefebvre/listcatalog/internal/models"
)

// MaxInflatedSize bounds the decompressed size of a token
const MaxInflatedSize = 1 << 20

var encoding = base64.RawURLEncoding

// Compress serializes the configuration into an opaque token
func Compress(cfg *models.UserConfig) (string, error) {
	if cfg == nil {
		cfg = models.DefaultConfig()
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeConfigEncode, "failed to marshal config")
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeConfigEncode, "failed to create deflate writer")
	}
	if _, err := w.Write(raw); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeConfigEncode, "failed to deflate config")
	}
	if err := w.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeConfigEncode, "failed to flush deflate stream")
	}

	return encoding.EncodeToString(buf.Bytes()), nil
}

// CompressShareable encodes a copy of the configuration without any credential
func CompressShareable(cfg *models.UserConfig) (string, error) {
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	return Compress(cfg.Sanitized())
}

// Decode reverses Compress and reports why a token could not be read
func Decode(token string) (*models.UserConfig, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return nil, apperrors.ConfigDecodeError("empty token", nil)
	}

	compressed, err := encoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.ConfigDecodeError("token is not base64url", err)
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, MaxInflatedSize+1))
	if err != nil {
		return nil, apperrors.ConfigDecodeError("corrupt deflate stream", err)
	}
	if len(raw) > MaxInflatedSize {
		return nil, apperrors.ConfigDecodeError("token exceeds maximum size", nil).
			WithContext("limit", MaxInflatedSize)
	}

	var cfg models.UserConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, apperrors.ConfigDecodeError("malformed config document", err)
	}
	cfg.ApplyDefaults()

	return &cfg, nil
}

// Decompress is the fail-soft form of Decode: an unreadable token yields the default
// configuration.
func Decompress(token string) *models.UserConfig {
	cfg, err := Decode(token)
	if err != nil {
		logger.AppLogger().WithFields(map[string]interface{}{
			"token_length": len(token),
			"error":        err,
		}).Warn("Falling back to default config")
		return models.DefaultConfig()
	}
	return cfg
}
