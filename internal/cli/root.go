// Package cli 实现 nbtranslate 的命令行界面。
package cli

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/notebook-translator/internal/config"
	"github.com/nerdneilsfield/notebook-translator/internal/logger"
	"github.com/nerdneilsfield/notebook-translator/internal/notebook"
	"github.com/nerdneilsfield/notebook-translator/internal/profile"
	"github.com/nerdneilsfield/notebook-translator/internal/secrets"
	"github.com/nerdneilsfield/notebook-translator/internal/stats"
	"github.com/nerdneilsfield/notebook-translator/internal/translator"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/factory"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

var (
	// 命令行标志变量
	cfgFile     string
	modeFlag    string
	profileFlag string
	noCache     bool
	debugMode   bool
)

// NewRootCommand 创建根命令
func NewRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nbtranslate [flags] notebook.ipynb [output.ipynb]",
		Short: "把 Jupyter 笔记本里的英文 Markdown 翻译成中文",
		Long: `nbtranslate 逐个翻译 .ipynb 文件中的 Markdown 单元，代码单元、输出
和元数据原样保留。翻译后端通过命名配置档选择，密钥保存在系统
钥匙串里，配置文件中不出现明文密钥。

支持的翻译后端:
  - mock: 内置模拟后端，离线演练用
  - chat-completion: OpenAI 风格的聊天补全接口
  - local-chat: Ollama 本地模型
  - signed-query: 百度翻译签名接口`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		Args:    cobra.RangeArgs(1, 2),
		RunE:    runTranslate,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 ~/.nbtranslate.yaml）")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "输出调试日志")

	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "输出模式：replace 或 bilingual（默认取配置文件）")
	rootCmd.Flags().StringVar(&profileFlag, "profile", "", "本次运行使用的配置档（默认当前生效的档）")
	rootCmd.Flags().BoolVar(&noCache, "no-cache", false, "本次运行禁用翻译缓存")

	rootCmd.AddCommand(newProfileCommand())
	rootCmd.AddCommand(newCacheCommand())

	return rootCmd
}

// environment 各子命令共用的运行环境
type environment struct {
	cfg *config.Config
	log *zap.Logger
	mgr *profile.Manager
}

func loadConfigOnly() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Debug = true
	}
	return cfg, nil
}

func loadEnvironment() (*environment, error) {
	cfg, err := loadConfigOnly()
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger(cfg.Debug)

	store, err := profile.OpenStore(cfg.ProfilesFile)
	if err != nil {
		return nil, err
	}
	mgr, err := profile.NewManager(store, secrets.NewKeyringStore(""))
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, log: log, mgr: mgr}, nil
}

func runTranslate(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() {
		_ = env.log.Sync()
	}()

	// 选定本次运行的配置档
	active := env.mgr.Active()
	if profileFlag != "" {
		active, err = env.mgr.Get(profileFlag)
		if err != nil {
			return err
		}
	}

	opts, err := env.mgr.ProviderOptions(active)
	if err != nil {
		return err
	}
	opts.Timeout = time.Duration(env.cfg.RequestTimeout) * time.Second
	provider, err := factory.New(opts)
	if err != nil {
		return err
	}

	cache, err := translation.NewCache(env.cfg.UseCache && !noCache, env.cfg.CacheDir)
	if err != nil {
		return err
	}

	var statsLog stats.Logger = stats.NopLogger{}
	if env.cfg.EnableStats {
		statsLog = stats.NewFileLogger(env.cfg.StatsFile)
	}

	mode := env.cfg.Mode
	if modeFlag != "" {
		mode = modeFlag
	}
	if mode != translator.ModeReplace && mode != translator.ModeBilingual {
		return fmt.Errorf("invalid mode %q", mode)
	}

	inputPath := args[0]
	outputPath := inputPath
	if len(args) == 2 {
		outputPath = args[1]
	}

	nb, err := notebook.Open(inputPath)
	if err != nil {
		return err
	}
	cells := nb.MarkdownCells()
	if len(cells) == 0 {
		pterm.Info.Printfln("%s 中没有 Markdown 单元", inputPath)
		return nil
	}

	env.log.Info("开始翻译",
		zap.String("input", inputPath),
		zap.String("profile", active.Name),
		zap.String("provider", active.Provider),
		zap.Int("cells", len(cells)))

	bar, err := pterm.DefaultProgressbar.WithTotal(len(cells)).WithTitle("翻译进度").Start()
	if err != nil {
		return err
	}

	coordinator := translator.New(provider, cache, env.log, statsLog, translator.Options{
		Mode:        mode,
		ProfileName: active.Name,
	})
	coordinator.OnProgress = func(done, total int) {
		bar.Increment()
	}

	result, outputs, runErr := coordinator.TranslateCells(cmd.Context(), cells)
	_, _ = bar.Stop()

	// 取消时也要落盘：已完成的单元有效，只有剩余单元保持原样
	if err := writeOutputs(nb, outputs, outputPath); err != nil {
		return err
	}

	if runErr != nil {
		pterm.Warning.Printfln("翻译被中断，已完成的 %d 个单元写入 %s",
			result.Translated+result.CacheHits, outputPath)
		return runErr
	}

	printResult(result, outputPath)
	return nil
}

// writeOutputs 把发生变化的单元写回文档并保存
func writeOutputs(nb *notebook.Notebook, outputs []translator.CellOutput, outputPath string) error {
	for _, out := range outputs {
		if !out.Changed {
			continue
		}
		if err := nb.SetSource(out.Index, out.Text); err != nil {
			return err
		}
	}
	return nb.Save(outputPath)
}

func printResult(result translator.Result, outputPath string) {
	pterm.Success.Printfln("已写入 %s", outputPath)
	fmt.Printf("翻译 %d，缓存命中 %d，跳过 %d，失败 %d\n",
		result.Translated, result.CacheHits, result.Skipped, result.Failed)
	if result.Failed > 0 {
		pterm.Warning.Printfln("%d 个单元翻译失败，原文保持不动", result.Failed)
	}
}
