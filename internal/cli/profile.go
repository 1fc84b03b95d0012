package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/notebook-translator/internal/profile"
	"github.com/nerdneilsfield/notebook-translator/internal/secrets"
	"github.com/nerdneilsfield/notebook-translator/internal/translator"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
)

var (
	// profile add/update 的标志变量
	addProvider string
	addBaseURL  string
	addModel    string
	addAppID    string
	addPrompt   string
	addAPIKey   string
)

func newProfileCommand() *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "管理翻译配置档",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "列出全部配置档",
		Args:  cobra.NoArgs,
		RunE:  runProfileList,
	}

	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "新增配置档",
		Long: `新增一个命名配置档。通过 --api-key 传入的密钥立即转入系统钥匙串，
不会写进配置文件。`,
		Args: cobra.ExactArgs(1),
		RunE: runProfileAdd,
	}
	addCmd.Flags().StringVar(&addProvider, "provider", factory.ProviderMock,
		fmt.Sprintf("后端类型 %v", factory.SupportedProviders()))
	addCmd.Flags().StringVar(&addBaseURL, "base-url", "", "后端基础 URL 或本地端点")
	addCmd.Flags().StringVar(&addModel, "model", "", "模型标识")
	addCmd.Flags().StringVar(&addAppID, "app-id", "", "signed-query 后端的应用 ID")
	addCmd.Flags().StringVar(&addPrompt, "prompt", "", "自定义翻译指令")
	addCmd.Flags().StringVar(&addAPIKey, "api-key", "", "API 密钥（存入钥匙串）")

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "删除配置档及其密钥",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileRemove,
	}

	useCmd := &cobra.Command{
		Use:   "use <name>",
		Short: "切换配置档（带健康检查，失败自动回退）",
		Args:  cobra.ExactArgs(1),
		RunE:  runProfileUse,
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "回退到上一个配置档",
		Args:  cobra.NoArgs,
		RunE:  runProfileRollback,
	}

	testCmd := &cobra.Command{
		Use:   "test [name]",
		Short: "对配置档做一次健康检查",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfileTest,
	}

	setKeyCmd := &cobra.Command{
		Use:   "set-key <name> <secret>",
		Short: "写入或更新配置档的密钥",
		Args:  cobra.ExactArgs(2),
		RunE:  runProfileSetKey,
	}

	profileCmd.AddCommand(listCmd, addCmd, removeCmd, useCmd, rollbackCmd, testCmd, setKeyCmd)
	return profileCmd
}

func runProfileSetKey(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	// 名称必须存在，避免把密钥写到无主条目下
	if _, err := env.mgr.Get(args[0]); err != nil {
		return err
	}
	if err := env.mgr.SetSecret(args[0], args[1]); err != nil {
		return err
	}
	pterm.Success.Printfln("配置档 %s 的密钥已更新", args[0])
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	active := env.mgr.Active().Name

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"", "名称", "后端", "模型", "端点 / AppID"})
	for _, p := range env.mgr.List() {
		marker := ""
		if p.Name == active {
			marker = "*"
		}
		endpoint := p.BaseURL
		if p.Provider == factory.ProviderSignedQuery {
			endpoint = p.AppID
		}
		tw.AppendRow(table.Row{marker, p.Name, p.Provider, p.Model, endpoint})
	}
	tw.SetStyle(table.StyleLight)
	tw.Render()
	return nil
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	p := profile.Profile{
		Name:     args[0],
		Provider: addProvider,
		BaseURL:  addBaseURL,
		Model:    addModel,
		AppID:    addAppID,
		Prompt:   addPrompt,
		APIKey:   addAPIKey,
	}
	if err := env.mgr.Add(p); err != nil {
		return err
	}
	pterm.Success.Printfln("配置档 %s 已添加", p.Name)

	// 后端声明需要密钥而存储里还没有时提前提醒，不要等到翻译时才失败
	if missing, err := needsSecret(env.mgr, p); err == nil && missing {
		pterm.Warning.Printfln("该后端需要密钥，翻译前请先配置: nbtranslate profile set-key %s <密钥>", p.Name)
	}
	return nil
}

// needsSecret 报告配置档的后端需要密钥但安全存储中尚未配置
func needsSecret(mgr *profile.Manager, p profile.Profile) (bool, error) {
	opts, err := mgr.ProviderOptions(p)
	if err != nil {
		return false, err
	}
	provider, err := factory.New(opts)
	if err != nil {
		return false, err
	}
	if !provider.GetCapabilities().RequiresAPIKey {
		return false, nil
	}

	_, err = mgr.GetSecret(p.Name)
	if errors.Is(err, secrets.ErrNotFound) {
		return true, nil
	}
	return false, err
}

func runProfileRemove(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	if err := env.mgr.Delete(args[0]); err != nil {
		return err
	}
	pterm.Success.Printfln("配置档 %s 已删除", args[0])
	return nil
}

func runProfileUse(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() {
		_ = env.log.Sync()
	}()

	active, err := translator.SwitchProfile(cmd.Context(), env.mgr, args[0], env.log)
	if err != nil {
		pterm.Warning.Printfln("切换失败: %v", err)
		pterm.Info.Printfln("当前生效的配置档: %s", active)
		return err
	}
	pterm.Success.Printfln("已切换到 %s", active)
	return nil
}

func runProfileRollback(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	name, err := env.mgr.RollbackToPrevious()
	if errors.Is(err, profile.ErrNoRollback) {
		pterm.Warning.Printfln("没有可以回退的配置档")
		return nil
	}
	if err != nil {
		return err
	}
	pterm.Success.Printfln("已回退到 %s", name)
	return nil
}

func runProfileTest(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	p := env.mgr.Active()
	if len(args) == 1 {
		p, err = env.mgr.Get(args[0])
		if err != nil {
			return err
		}
	}

	opts, err := env.mgr.ProviderOptions(p)
	if err != nil {
		return err
	}
	opts.Timeout = time.Duration(env.cfg.RequestTimeout) * time.Second
	provider, err := factory.New(opts)
	if err != nil {
		return err
	}

	if missing, err := needsSecret(env.mgr, p); err == nil && missing {
		pterm.Warning.Printfln("配置档 %s 的后端需要密钥，尚未配置: nbtranslate profile set-key %s <密钥>", p.Name, p.Name)
	}

	if err := provider.HealthCheck(cmd.Context()); err != nil {
		pterm.Error.Printfln("配置档 %s 检查失败: %v", p.Name, err)
		return err
	}
	pterm.Success.Printfln("配置档 %s 工作正常", p.Name)
	return nil
}
