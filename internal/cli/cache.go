package cli

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

func newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "管理翻译缓存",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "清空翻译缓存",
		Args:  cobra.NoArgs,
		RunE:  runCacheClear,
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "显示缓存条目数",
		Args:  cobra.NoArgs,
		RunE:  runCacheStats,
	}

	cacheCmd.AddCommand(clearCmd, statsCmd)
	return cacheCmd
}

func openCache() (translation.Cache, string, error) {
	cfg, err := loadConfigOnly()
	if err != nil {
		return nil, "", err
	}
	cache, err := translation.NewCache(true, cfg.CacheDir)
	if err != nil {
		return nil, "", err
	}
	return cache, cfg.CacheDir, nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cache, dir, err := openCache()
	if err != nil {
		return err
	}

	removed := cache.Size()
	if err := cache.Clear(); err != nil {
		return err
	}
	pterm.Success.Printfln("已清空 %s 下的 %d 条缓存", dir, removed)
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	cache, dir, err := openCache()
	if err != nil {
		return err
	}

	fmt.Printf("缓存目录: %s\n", dir)
	fmt.Printf("缓存条目: %d\n", cache.Size())
	return nil
}
