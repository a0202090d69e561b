package tree

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
)

// NodeView — вложенная проекция узла для ответов API.
type NodeView struct {
	ID                  uuid.UUID           `json:"id"`
	Name                string              `json:"name"`
	CurrentServerStatus domain.ServerStatus `json:"current_server_status,omitempty"`
	CurrentClientStatus domain.ClientStatus `json:"current_client_status,omitempty"`
	Children            []NodeView          `json:"children"`
}

// View возвращает вложенную проекцию всего дерева начиная с корня.
// У корня статусы не заполняются.
func (t *Tree) View() NodeView {
	v := t.view(t.root)
	v.CurrentServerStatus = ""
	v.CurrentClientStatus = ""
	return v
}

func (t *Tree) view(n *domain.Node) NodeView {
	v := NodeView{
		ID:                  n.ID,
		Name:                n.Name,
		CurrentServerStatus: n.CurrentServerStatus,
		CurrentClientStatus: n.CurrentClientStatus,
		Children:            []NodeView{},
	}
	for _, child := range t.children[n.ID] {
		v.Children = append(v.Children, t.view(child))
	}
	return v
}

// Цвета статусов.
var (
	colorErrored  = lipgloss.Color("#FF5F5F")
	colorComplete = lipgloss.Color("#5FD75F")
	colorReady    = lipgloss.Color("#FFFFFF")
	colorOther    = lipgloss.Color("#FFD75F")
)

// StatusColor возвращает цвет строки узла:
// красный — ошибка, зелёный — complete/complete, белый — ready/ready,
// жёлтый — всё остальное.
func StatusColor(n *domain.Node) lipgloss.Color {
	switch {
	case n.CurrentServerStatus == domain.ServerStatusErrored || n.CurrentClientStatus == domain.ClientStatusErrored:
		return colorErrored
	case n.CurrentServerStatus == domain.ServerStatusComplete && n.CurrentClientStatus == domain.ClientStatusComplete:
		return colorComplete
	case n.CurrentServerStatus == domain.ServerStatusReady && n.CurrentClientStatus == domain.ClientStatusReady:
		return colorReady
	default:
		return colorOther
	}
}

// Render возвращает дерево в виде строк с отступами, по строке на узел.
func (t *Tree) Render() string {
	var b strings.Builder
	b.WriteString(t.root.Name)
	b.WriteString(" (workflow ")
	b.WriteString(t.root.ID.String())
	b.WriteString(")\n")
	t.render(&b, t.root.ID, 1)
	return b.String()
}

func (t *Tree) render(b *strings.Builder, id uuid.UUID, depth int) {
	for _, child := range t.children[id] {
		line := strings.Repeat("  ", depth) + "- " + child.Name +
			" [" + string(child.CurrentServerStatus) + "/" + string(child.CurrentClientStatus) + "] " +
			string(child.Mode) + " " + child.ID.String()
		b.WriteString(lipgloss.NewStyle().Foreground(StatusColor(child)).Render(line))
		b.WriteString("\n")
		t.render(b, child.ID, depth+1)
	}
}
