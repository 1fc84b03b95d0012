package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/notebook-translator/internal/notebook"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers"
	"github.com/nerdneilsfield/notebook-translator/pkg/providers/mock"
	"github.com/nerdneilsfield/notebook-translator/pkg/translation"
)

// countingProvider 记录后端被调用的次数，可按需失败
type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) Translate(_ context.Context, req *providers.Request) (*providers.Response, error) {
	p.calls++
	if p.fail {
		return nil, errors.New("backend exploded")
	}
	return &providers.Response{Text: "译文:" + req.Text, Model: "counting"}, nil
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) HealthCheck(context.Context) error { return nil }

func newCoordinator(provider providers.Provider, opts Options) *Coordinator {
	return New(provider, translation.NewMemoryCache(), zap.NewNop(), nil, opts)
}

func TestTranslateCells_ReplaceMode(t *testing.T) {
	c := newCoordinator(mock.New(mock.Config{}), Options{Mode: ModeReplace})

	result, outputs, err := c.TranslateCells(context.Background(), []notebook.Cell{
		{Index: 0, Source: "Hello world"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Translated)
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].Changed)
	assert.Equal(t, "[模拟翻译]\nHello world", outputs[0].Text)
}

func TestTranslateCells_BilingualMode(t *testing.T) {
	// bilingual 是默认模式
	c := newCoordinator(mock.New(mock.Config{}), Options{})

	_, outputs, err := c.TranslateCells(context.Background(), []notebook.Cell{
		{Index: 0, Source: "Hello world"},
	})
	require.NoError(t, err)

	want := "<!-- Original English:\nHello world\n-->\n\n[模拟翻译]\nHello world"
	assert.Equal(t, want, outputs[0].Text)
}

func TestTranslateCells_SkipRules(t *testing.T) {
	provider := &countingProvider{}
	c := newCoordinator(provider, Options{Mode: ModeReplace})

	result, outputs, err := c.TranslateCells(context.Background(), []notebook.Cell{
		{Index: 0, Source: "你好"},
		{Index: 1, Source: "   \n\t"},
		{Index: 2, Source: "Mixed 文本 here"},
	})
	require.NoError(t, err)

	// 含汉字和空白的单元都不进后端
	assert.Equal(t, 0, provider.calls)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 0, result.Translated)

	for _, out := range outputs {
		assert.False(t, out.Changed)
	}
}

func TestTranslateCells_CacheHit(t *testing.T) {
	provider := &countingProvider{}
	c := newCoordinator(provider, Options{Mode: ModeReplace})

	cells := []notebook.Cell{
		{Index: 0, Source: "Repeated text"},
		{Index: 1, Source: "Repeated text"},
	}

	result, outputs, err := c.TranslateCells(context.Background(), cells)
	require.NoError(t, err)

	// 第二个单元命中缓存，后端只被调用一次
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, result.Translated)
	assert.Equal(t, 1, result.CacheHits)
	assert.Equal(t, outputs[0].Text, outputs[1].Text)
}

func TestTranslateCells_FailureDoesNotAbort(t *testing.T) {
	provider := &countingProvider{fail: true}
	c := newCoordinator(provider, Options{Mode: ModeReplace})

	result, outputs, err := c.TranslateCells(context.Background(), []notebook.Cell{
		{Index: 0, Source: "First"},
		{Index: 1, Source: "Second"},
	})
	require.NoError(t, err)

	// 每个单元都尝试过，失败只计数
	assert.Equal(t, 2, provider.calls)
	assert.Equal(t, 2, result.Failed)
	for _, out := range outputs {
		assert.False(t, out.Changed)
	}
}

func TestTranslateCells_CancelledBetweenCells(t *testing.T) {
	c := newCoordinator(&countingProvider{}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, outputs, err := c.TranslateCells(ctx, []notebook.Cell{
		{Index: 0, Source: "Hello"},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outputs)
}

func TestTranslateCells_MidRunCancelKeepsPartialResults(t *testing.T) {
	provider := &countingProvider{}
	c := newCoordinator(provider, Options{Mode: ModeReplace})

	// 第一个单元完成后取消，循环在下一个单元边界退出
	ctx, cancel := context.WithCancel(context.Background())
	c.OnProgress = func(done, total int) {
		if done == 1 {
			cancel()
		}
	}

	result, outputs, err := c.TranslateCells(ctx, []notebook.Cell{
		{Index: 0, Source: "First"},
		{Index: 1, Source: "Second"},
		{Index: 2, Source: "Third"},
	})
	require.ErrorIs(t, err, context.Canceled)

	// 已完成的单元保留在部分结果里
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, 1, result.Translated)
	require.Len(t, outputs, 1)
	assert.True(t, outputs[0].Changed)
	assert.Equal(t, "译文:First", outputs[0].Text)
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"", true},
		{"  \n ", true},
		{"你好", true},
		{"# Heading with 中文", true},
		{"Hello world", false},
		{"code `fmt.Println` inline", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldSkip(tt.source), "source=%q", tt.source)
	}
}
