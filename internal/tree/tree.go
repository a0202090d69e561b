// Package tree строит дерево узлов одного workflow за одно чтение
// и даёт обход, проекцию для API и цветной вывод для диагностики.
package tree

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"
	"github.com/groupon/backbeat-sub000/internal/domain"
)

// NodeLister — источник узлов workflow.
type NodeLister interface {
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]domain.Node, error)
}

// Tree — дерево узлов workflow с корнем-псевдоузлом.
type Tree struct {
	root     *domain.Node
	nodes    map[uuid.UUID]*domain.Node
	children map[uuid.UUID][]*domain.Node
}

// Load читает все узлы workflow и строит дерево.
func Load(ctx context.Context, nodes NodeLister, wf *domain.Workflow) (*Tree, error) {
	list, err := nodes.ListByWorkflow(ctx, wf.ID)
	if err != nil {
		return nil, fmt.Errorf("load workflow nodes: %w", err)
	}
	return Build(wf, list), nil
}

// Build строит дерево из уже прочитанных узлов.
// Порядок детей — по seq; узлы верхнего уровня висят на корне.
func Build(wf *domain.Workflow, list []domain.Node) *Tree {
	t := &Tree{
		root:     wf.AsNode(),
		nodes:    make(map[uuid.UUID]*domain.Node, len(list)),
		children: make(map[uuid.UUID][]*domain.Node),
	}

	for i := range list {
		t.nodes[list[i].ID] = &list[i]
	}
	for i := range list {
		n := &list[i]
		parent := t.root.ID
		if n.ParentID != nil {
			parent = *n.ParentID
		}
		t.children[parent] = append(t.children[parent], n)
	}
	for id := range t.children {
		sortBySeq(t.children[id])
	}
	return t
}

// Root возвращает псевдоузел корня.
func (t *Tree) Root() *domain.Node {
	return t.root
}

// Node возвращает узел по ID.
func (t *Tree) Node(id uuid.UUID) (*domain.Node, bool) {
	if id == t.root.ID {
		return t.root, true
	}
	n, ok := t.nodes[id]
	return n, ok
}

// Children возвращает прямых детей узла в порядке seq.
func (t *Tree) Children(id uuid.UUID) []*domain.Node {
	return t.children[id]
}

// Len возвращает число узлов без корня.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Traverse обходит дерево в глубину (pre-order), каждый узел — один раз.
func (t *Tree) Traverse(withRoot bool) iter.Seq[*domain.Node] {
	return t.Subtree(t.root.ID, withRoot)
}

// Subtree обходит поддерево узла id в глубину (pre-order).
func (t *Tree) Subtree(id uuid.UUID, withRoot bool) iter.Seq[*domain.Node] {
	return func(yield func(*domain.Node) bool) {
		start, ok := t.Node(id)
		if !ok {
			return
		}
		if withRoot && !yield(start) {
			return
		}
		t.walk(id, yield)
	}
}

func (t *Tree) walk(id uuid.UUID, yield func(*domain.Node) bool) bool {
	for _, child := range t.children[id] {
		if !yield(child) {
			return false
		}
		if !t.walk(child.ID, yield) {
			return false
		}
	}
	return true
}

func sortBySeq(nodes []*domain.Node) {
	slices.SortFunc(nodes, func(a, b *domain.Node) int { return cmp.Compare(a.Seq, b.Seq) })
}
