// Package tree lists a provisioned directory as a nested node structure,
// for JSON output or a rendered terminal tree.
package tree

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/afero"

	perrors "github.com/kabkimd/userprov/pkg/errors"
)

// Node is one file or directory. Directories carry Children, files carry
// Size.
type Node struct {
	Name        string
	Path        string
	IsDirectory bool
	Size        int64
	Children    []*Node
}

type wireNode struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	IsDirectory bool     `json:"isDirectory"`
	Size        *int64   `json:"size,omitempty"`
	Children    *[]*Node `json:"children,omitempty"`
}

// MarshalJSON always emits children for directories, even when empty, and
// size for files only.
func (n *Node) MarshalJSON() ([]byte, error) {
	w := wireNode{Name: n.Name, Path: n.Path, IsDirectory: n.IsDirectory}
	if n.IsDirectory {
		children := n.Children
		if children == nil {
			children = []*Node{}
		}
		w.Children = &children
	} else {
		size := n.Size
		w.Size = &size
	}
	return json.Marshal(w)
}

// Build walks root and returns its node tree. Children are sorted by name.
// Symbolic links are reported as files and never descended into.
func Build(fsys afero.Fs, root string) (*Node, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrFilesystem, "cannot read tree root").
			WithDetail(perrors.DetailPath, root)
	}
	if !info.IsDir() {
		return nil, perrors.New(perrors.ErrFilesystem, "tree root is not a directory").
			WithDetail(perrors.DetailPath, root)
	}

	node := &Node{Name: filepath.Base(root), Path: root, IsDirectory: true}
	children, err := buildChildren(fsys, root)
	if err != nil {
		return nil, err
	}
	node.Children = children
	return node, nil
}

func buildChildren(fsys afero.Fs, dir string) ([]*Node, error) {
	// ReadDir returns entries sorted by name.
	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrFilesystem, "cannot list directory").
			WithDetail(perrors.DetailPath, dir)
	}

	nodes := make([]*Node, 0, len(entries))
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			children, err := buildChildren(fsys, path)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, &Node{Name: entry.Name(), Path: path, IsDirectory: true, Children: children})
			continue
		}

		size := entry.Size()
		if info, err := fsys.Stat(path); err == nil {
			size = info.Size()
		}
		nodes = append(nodes, &Node{Name: entry.Name(), Path: path, Size: size})
	}
	return nodes, nil
}

// Count returns the number of files and directories below n.
func (n *Node) Count() (files, dirs int) {
	for _, c := range n.Children {
		if c.IsDirectory {
			dirs++
			f, d := c.Count()
			files += f
			dirs += d
			continue
		}
		files++
	}
	return files, dirs
}
