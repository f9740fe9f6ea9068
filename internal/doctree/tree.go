// Package doctree turns flat, parent-referencing document records into ordered trees.
package doctree

import (
	"sort"

	"github.com/hyperjump/pagebind/internal/models"
)

// Build returns the children of parentID (nil for the root level) as an ordered
// forest. Siblings are sorted by Order; ties keep their input order. Folders are
// expanded recursively. Every call builds fresh nodes.
func Build(docs []models.Document, parentID *string) []*models.DocumentNode {
	byParent := make(map[string][]models.Document)
	var roots []models.Document
	for _, d := range docs {
		if d.ParentID == nil {
			roots = append(roots, d)
			continue
		}
		byParent[*d.ParentID] = append(byParent[*d.ParentID], d)
	}
	level := roots
	seen := map[string]bool{}
	if parentID != nil {
		level = byParent[*parentID]
		seen[*parentID] = true
	}
	return build(level, byParent, seen)
}

func build(level []models.Document, byParent map[string][]models.Document, seen map[string]bool) []*models.DocumentNode {
	sorted := make([]models.Document, len(level))
	copy(sorted, level)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	nodes := make([]*models.DocumentNode, 0, len(sorted))
	for _, d := range sorted {
		n := &models.DocumentNode{
			ID:          d.ID,
			ParentID:    d.ParentID,
			Name:        d.Name,
			Kind:        d.Kind,
			Order:       d.Order,
			StoragePath: d.StoragePath,
		}
		// A bad record cannot make the walk loop forever.
		if d.Kind == models.KindFolder && !seen[d.ID] {
			seen[d.ID] = true
			n.Children = build(byParent[d.ID], byParent, seen)
			delete(seen, d.ID)
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Walk visits nodes in pre-order with their 0-based depth. Returning false from fn
// skips that node's children.
func Walk(nodes []*models.DocumentNode, fn func(n *models.DocumentNode, depth int) bool) {
	walk(nodes, 0, fn)
}

func walk(nodes []*models.DocumentNode, depth int, fn func(*models.DocumentNode, int) bool) {
	for _, n := range nodes {
		if fn(n, depth) && len(n.Children) > 0 {
			walk(n.Children, depth+1, fn)
		}
	}
}

// FirstFile returns the first file reachable depth-first from n (n itself when it
// is a file), or nil.
func FirstFile(n *models.DocumentNode) *models.DocumentNode {
	if n.IsFile() {
		return n
	}
	for _, c := range n.Children {
		if f := FirstFile(c); f != nil {
			return f
		}
	}
	return nil
}

// CountFiles returns the number of file leaves in the forest.
func CountFiles(nodes []*models.DocumentNode) int {
	n := 0
	Walk(nodes, func(node *models.DocumentNode, _ int) bool {
		if node.IsFile() {
			n++
		}
		return true
	})
	return n
}
