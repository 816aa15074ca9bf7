package netconf

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrEmptyDocument indicates the reader held no XML content.
	ErrEmptyDocument = errors.New("netconf: empty document")
	// ErrMalformedDocument indicates the XML content could not be parsed.
	ErrMalformedDocument = errors.New("netconf: malformed document")
)

// Node is one element of a structured RPC or configuration document.
// Leaf nodes carry their character data in Value; interior nodes carry
// their element children in Children. The tree is immutable once parsed.
type Node struct {
	Name     string
	Value    string
	Children []*Node
}

// Parse reads an XML document into a Node tree. Namespace prefixes on
// element names are dropped so lookups work on local names. Character
// data is only retained for leaf elements.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformedDocument)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
				parent.Value = ""
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced end element", ErrMalformedDocument)
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			cur := stack[len(stack)-1]
			if len(cur.Children) == 0 {
				cur.Value += string(t)
			}
		}
	}
	if root == nil {
		return nil, ErrEmptyDocument
	}
	root.trimValues()
	return root, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(doc string) (*Node, error) {
	return Parse(strings.NewReader(doc))
}

func (n *Node) trimValues() {
	n.Value = strings.TrimSpace(n.Value)
	for _, c := range n.Children {
		c.trimValues()
	}
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// FindPath returns the nodes matched by a slash-separated selector rooted
// at n. The first segment must match n itself. A segment of "*" matches
// any child. Segments may carry a "prefix:" qualifier which is ignored,
// mirroring how callers address nodes by qualified name.
//
//	FindPath(rpc, "/delete-config/target/*")
func FindPath(n *Node, path string) []*Node {
	if n == nil {
		return nil
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}
	if !segmentMatches(segments[0], n.Name) {
		return nil
	}
	current := []*Node{n}
	for _, seg := range segments[1:] {
		var next []*Node
		for _, cand := range current {
			for _, c := range cand.Children {
				if segmentMatches(seg, c.Name) {
					next = append(next, c)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func splitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func segmentMatches(segment, name string) bool {
	if segment == "*" {
		return true
	}
	if i := strings.IndexByte(segment, ':'); i >= 0 {
		segment = segment[i+1:]
	}
	return segment == name
}
