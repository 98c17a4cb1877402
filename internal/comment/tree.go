package comment

import "slangdict/api/internal/store"

type Node struct {
	Comment store.Comment
	Replies []*Node
}

// BuildTree groups comments under their parents. Siblings keep the order
// of the input. A comment whose parent is not in the input becomes a root.
func BuildTree(comments []store.Comment) []*Node {
	nodes := make(map[int64]*Node, len(comments))
	ordered := make([]*Node, 0, len(comments))
	for _, c := range comments {
		node := &Node{Comment: c}
		nodes[c.ID] = node
		ordered = append(ordered, node)
	}

	roots := make([]*Node, 0)
	for _, node := range ordered {
		parentID := node.Comment.ParentID
		if parentID != nil && *parentID != node.Comment.ID {
			if parent, ok := nodes[*parentID]; ok {
				parent.Replies = append(parent.Replies, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
