package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	synccit "github.com/synccit/synccit"
)

// visibleDotfiles are hidden names that still appear in the tree.
var visibleDotfiles = map[string]bool{".env": true, ".gitignore": true}

// opaqueDirs are listed but never descended into.
var opaqueDirs = map[string]bool{"node_modules": true, ".git": true, "__pycache__": true, ".venv": true}

// Tree returns the recursive listing of path.
func (w *Workspace) Tree(path string) (*synccit.FileNode, error) {
	base := w.Resolve(path)
	fi, err := os.Stat(base)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", base, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s: %w", base, ErrNotDir)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", base, err)
	}
	return buildTree(base, entries), nil
}

func buildTree(dir string, entries []os.DirEntry) *synccit.FileNode {
	name := filepath.Base(dir)
	if name == string(filepath.Separator) || name == "." {
		name = dir
	}
	node := folder(dir, name)
	for _, e := range entries {
		n := e.Name()
		if strings.HasPrefix(n, ".") && !visibleDotfiles[n] {
			continue
		}
		full := filepath.Join(dir, n)
		if !isDir(e, full) {
			node.Children = append(node.Children, &synccit.FileNode{ID: full, Name: n, Type: synccit.NodeFile, Path: full})
			continue
		}
		if opaqueDirs[n] {
			node.Children = append(node.Children, folder(full, n))
			continue
		}
		sub, err := os.ReadDir(full)
		if err != nil {
			node.Children = append(node.Children, folder(full, n))
			continue
		}
		node.Children = append(node.Children, buildTree(full, sub))
	}
	sortNodes(node.Children)
	return node
}

func folder(path, name string) *synccit.FileNode {
	return &synccit.FileNode{ID: path, Name: name, Type: synccit.NodeFolder, Path: path, Children: []*synccit.FileNode{}}
}

// isDir follows symlinks, so a link to a directory is listed as a folder.
func isDir(e os.DirEntry, full string) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.IsDir()
	}
	fi, err := os.Stat(full)
	return err == nil && fi.IsDir()
}

// sortNodes orders folders before files, then by case-insensitive name.
func sortNodes(nodes []*synccit.FileNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		fi, fj := nodes[i].Type == synccit.NodeFolder, nodes[j].Type == synccit.NodeFolder
		if fi != fj {
			return fi
		}
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})
}
