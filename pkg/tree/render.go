package tree

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	ltree "github.com/charmbracelet/lipgloss/tree"
	"github.com/dustin/go-humanize"

	"github.com/kabkimd/userprov/pkg/ui/styles"
)

// Render draws n as an indented terminal tree.
func Render(n *Node) string {
	t := toLipgloss(n).
		Enumerator(ltree.RoundedEnumerator).
		EnumeratorStyle(styles.GetStyle("Muted")).
		RootStyle(styles.GetStyle("Directory"))
	return t.String()
}

func toLipgloss(n *Node) *ltree.Tree {
	t := ltree.Root(n.Name + "/")
	for _, c := range n.Children {
		if c.IsDirectory {
			t.Child(toLipgloss(c).RootStyle(styles.GetStyle("Directory")))
			continue
		}
		t.Child(fileLabel(c))
	}
	return t
}

func fileLabel(n *Node) string {
	size := styles.GetStyle("Muted").Render(fmt.Sprintf("(%s)", humanize.Bytes(uint64(n.Size))))
	return lipgloss.JoinHorizontal(lipgloss.Top, n.Name, " ", size)
}
