package providers

import (
	"encoding/hex"

	"github.com/samber/do/v2"

	"github.com/openshelf/openshelf-server/internal/auth"
	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/logger"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the authentication key. An explicit
// ACCESS_TOKEN_KEY takes precedence over the key file.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Auth.AccessTokenKey != "" {
		key, err := hex.DecodeString(cfg.Auth.AccessTokenKey)
		if err != nil {
			return nil, err
		}
		return AuthKey(key), nil
	}

	key, err := auth.LoadOrGenerateKey(cfg.DataDir())
	if err != nil {
		return nil, err
	}
	cfg.Auth.AccessTokenKey = hex.EncodeToString(key)

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
		"refresh_token_duration", cfg.Auth.RefreshTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	keyHex := hex.EncodeToString([]byte(authKey))
	return auth.NewTokenService(keyHex, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
}
