package auth

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"jazz-tools/jazz-crypto/config"
)

var Module = fx.Provide(
	newAuthManagerProvider,
)

func newAuthManagerProvider(lc fx.Lifecycle, configProvider config.ConfigProvider, logger *zap.Logger) (*AuthManager, error) {
	manager := NewAuthManager(logger)

	authCfg := configProvider.GetConfig().Authentication
	if authCfg == nil {
		logger.Warn("authentication disabled")
		return manager, nil
	}

	authenticator, err := NewAuthenticator(context.Background(), *authCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := manager.RegisterAuthenticator(authenticator); err != nil {
		return nil, err
	}
	if err := manager.Require(authenticator.Type()); err != nil {
		return nil, err
	}

	logger.Info("authentication enabled", zap.String("auth_type", authenticator.Type()))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close()
		},
	})

	return manager, nil
}
