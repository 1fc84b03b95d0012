// Package translator 驱动逐单元的翻译流程。
// 协调器只依赖后端接口、缓存和单元列表，不关心宿主文档格式；
// 单元之间严格串行，任何时刻最多一个后端调用在途。
package translator

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/notebook-translator/internal/notebook"
	"github.com/nerdneilsfield/notebook-translator/internal/stats"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

// 输出模式
const (
	ModeReplace   = "replace"   // 译文替换原文
	ModeBilingual = "bilingual" // 原文注释 + 译文
)

// Options 协调器的运行参数
type Options struct {
	Mode        string // 输出模式，默认 bilingual
	ProfileName string // 写入用量日志的配置档名
}

// Result 一次运行的统计
type Result struct {
	Translated int // 真正经过后端的单元数
	Skipped    int // 空白或已含中文而跳过的单元数
	CacheHits  int // 命中缓存的单元数
	Failed     int // 后端失败的单元数
}

// CellOutput 一个单元的处理结果
type CellOutput struct {
	Index   int    // 单元在文档中的下标
	Text    string // 按模式格式化后的新文本
	Changed bool   // false 表示跳过或失败，原文保持不动
}

// Coordinator 逐单元翻译协调器
type Coordinator struct {
	provider providers.Provider
	cache    translation.Cache
	logger   *zap.Logger
	stats    stats.Logger
	opts     Options

	// OnProgress 每处理完一个单元回调一次，CLI 用它驱动进度条
	OnProgress func(done, total int)
}

// New 创建协调器
func New(provider providers.Provider, cache translation.Cache, logger *zap.Logger, statsLog stats.Logger, opts Options) *Coordinator {
	if opts.Mode == "" {
		opts.Mode = ModeBilingual
	}
	if statsLog == nil {
		statsLog = stats.NopLogger{}
	}
	return &Coordinator{
		provider: provider,
		cache:    cache,
		logger:   logger,
		stats:    statsLog,
		opts:     opts,
	}
}

// TranslateCells 逐个处理单元。
// 取消只在单元边界生效，已返回的部分结果仍然有效；
// 单个单元失败只计数并记日志，不中断整个运行。
func (c *Coordinator) TranslateCells(ctx context.Context, cells []notebook.Cell) (Result, []CellOutput, error) {
	var result Result
	outputs := make([]CellOutput, 0, len(cells))

	for i, cell := range cells {
		if err := ctx.Err(); err != nil {
			return result, outputs, err
		}

		output := c.translateCell(ctx, cell, &result)
		outputs = append(outputs, output)

		if c.OnProgress != nil {
			c.OnProgress(i+1, len(cells))
		}
	}
	return result, outputs, nil
}

func (c *Coordinator) translateCell(ctx context.Context, cell notebook.Cell, result *Result) CellOutput {
	output := CellOutput{Index: cell.Index, Text: cell.Source}

	if shouldSkip(cell.Source) {
		result.Skipped++
		c.logger.Debug("跳过单元", zap.Int("cell", cell.Index))
		return output
	}

	if c.cache != nil {
		if translated, ok := c.cache.Get(cell.Source); ok {
			result.CacheHits++
			output.Text = c.format(cell.Source, translated)
			output.Changed = true
			c.logger.Debug("缓存命中", zap.Int("cell", cell.Index))
			return output
		}
	}

	start := time.Now()
	resp, err := c.provider.Translate(ctx, &providers.Request{Text: cell.Source})
	if err != nil {
		result.Failed++
		c.logger.Warn("单元翻译失败",
			zap.Int("cell", cell.Index),
			zap.Error(err))
		return output
	}
	result.Translated++

	if c.cache != nil {
		if err := c.cache.Put(cell.Source, resp.Text); err != nil {
			c.logger.Warn("缓存写入失败", zap.Error(err))
		}
	}

	if err := c.stats.Log(stats.Record{
		Time:       time.Now(),
		Model:      resp.Model,
		Profile:    c.opts.ProfileName,
		Chars:      utf8.RuneCountInString(cell.Source),
		DurationMS: time.Since(start).Milliseconds(),
	}); err != nil {
		c.logger.Warn("用量记录失败", zap.Error(err))
	}

	output.Text = c.format(cell.Source, resp.Text)
	output.Changed = true
	return output
}

// format 按输出模式组装最终文本
func (c *Coordinator) format(source, translated string) string {
	if c.opts.Mode == ModeReplace {
		return translated
	}
	return "<!-- Original English:\n" + source + "\n-->\n\n" + translated
}

// shouldSkip 空白单元和已含汉字的单元不送后端
func shouldSkip(source string) bool {
	if strings.TrimSpace(source) == "" {
		return true
	}
	for _, r := range source {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
