// Package notebook 提供对 .ipynb 文档的最小访问。
// 用 gjson/sjson 做定点读写，未触碰的字节原样保留，
// 代码单元、输出和元数据在读改写之间不会被重排或重新编码。
package notebook

import (
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Cell 文档中的一个 Markdown 单元
type Cell struct {
	Index  int    // 在 cells 数组中的下标
	Source string // source 行拼接后的完整文本
}

// Notebook 一个已载入的 .ipynb 文档
type Notebook struct {
	raw []byte
}

// Open 载入 .ipynb 文件
func Open(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid notebook file: %s is not valid JSON", path)
	}
	if !gjson.GetBytes(data, "cells").IsArray() {
		return nil, fmt.Errorf("invalid notebook file: %s has no cells array", path)
	}
	return &Notebook{raw: data}, nil
}

// MarkdownCells 返回全部 Markdown 单元。
// nbformat 的 source 可以是字符串或行数组，这里统一拼接成完整文本。
func (n *Notebook) MarkdownCells() []Cell {
	var cells []Cell

	gjson.GetBytes(n.raw, "cells").ForEach(func(key, cell gjson.Result) bool {
		if cell.Get("cell_type").String() != "markdown" {
			return true
		}

		source := cell.Get("source")
		var text string
		if source.IsArray() {
			var b strings.Builder
			source.ForEach(func(_, line gjson.Result) bool {
				b.WriteString(line.String())
				return true
			})
			text = b.String()
		} else {
			text = source.String()
		}

		cells = append(cells, Cell{Index: int(key.Int()), Source: text})
		return true
	})
	return cells
}

// SetSource 用新文本替换指定单元的 source，写回 nbformat 惯用的按行数组形式
func (n *Notebook) SetSource(index int, text string) error {
	path := fmt.Sprintf("cells.%d", index)
	if !gjson.GetBytes(n.raw, path).Exists() {
		return fmt.Errorf("cell %d does not exist", index)
	}

	updated, err := sjson.SetBytes(n.raw, path+".source", splitLines(text))
	if err != nil {
		return fmt.Errorf("failed to update cell %d: %w", index, err)
	}
	n.raw = updated
	return nil
}

// Save 写出文档。
// 先写临时文件再改名：原地覆盖源文件时，中途崩溃不会损坏原件。
func (n *Notebook) Save(path string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, n.raw, 0o644); err != nil {
		return fmt.Errorf("failed to write notebook: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace notebook: %w", err)
	}
	return nil
}

// splitLines 按 nbformat 约定切分：每行保留结尾换行符，最后一行可以没有
func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
