package translator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/notebook-translator/internal/profile"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
)

// SwitchProfile 带验证的配置档切换。
// 先切换再对新后端做健康检查，检查失败时回退到上一个配置档。
// 返回操作结束后真正生效的名称。
func SwitchProfile(ctx context.Context, mgr *profile.Manager, name string, logger *zap.Logger) (string, error) {
	target, err := mgr.Get(name)
	if err != nil {
		return mgr.Active().Name, err
	}

	if err := mgr.SetActive(name); err != nil {
		return mgr.Active().Name, err
	}

	opts, err := mgr.ProviderOptions(target)
	if err != nil {
		return rollback(mgr, logger, err)
	}

	provider, err := factory.New(opts)
	if err != nil {
		return rollback(mgr, logger, err)
	}

	if err := provider.HealthCheck(ctx); err != nil {
		return rollback(mgr, logger, fmt.Errorf("health check failed for profile %s: %w", name, err))
	}

	logger.Info("配置档已切换", zap.String("profile", name))
	return name, nil
}

// rollback 切换失败的补偿路径，报告回退后生效的名称
func rollback(mgr *profile.Manager, logger *zap.Logger, cause error) (string, error) {
	active, rbErr := mgr.RollbackToPrevious()
	if rbErr != nil {
		// 无处可退：保持现状，报告原始失败
		return mgr.Active().Name, cause
	}
	logger.Warn("切换失败，已回退",
		zap.String("active", active),
		zap.Error(cause))
	return active, cause
}
