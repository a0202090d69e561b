package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// Цвета статусов узлов.
var (
	styleErrored  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleComplete = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleReady    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	styleOther    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleRoot     = lipgloss.NewStyle().Bold(true)
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        os.Stdout,
		errW:     os.Stderr,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	// Заголовки
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	// Разделитель
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	// Строки данных
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Tree выводит дерево workflow. В JSON-режиме выводится проекция как есть.
func (o *Output) Tree(root TreeNode) {
	if o.jsonMode {
		o.JSON(root)
		return
	}
	t := tree.Root(styleRoot.Render(root.Name + " (workflow " + root.ID + ")")).
		Enumerator(tree.RoundedEnumerator)
	for _, child := range root.Children {
		t.Child(buildTree(child))
	}
	fmt.Fprintln(o.w, t.String())
}

func buildTree(n TreeNode) any {
	label := nodeStyle(n.CurrentServerStatus, n.CurrentClientStatus).Render(
		fmt.Sprintf("%s [%s/%s] %s", n.Name, n.CurrentServerStatus, n.CurrentClientStatus, n.ID))
	if len(n.Children) == 0 {
		return label
	}
	t := tree.Root(label)
	for _, child := range n.Children {
		t.Child(buildTree(child))
	}
	return t
}

// nodeStyle: красный — ошибка, зелёный — complete/complete,
// белый — ready/ready, жёлтый — всё остальное.
func nodeStyle(server, client string) lipgloss.Style {
	switch {
	case server == "errored" || client == "errored":
		return styleErrored
	case server == "complete" && client == "complete":
		return styleComplete
	case server == "ready" && client == "ready":
		return styleReady
	default:
		return styleOther
	}
}
