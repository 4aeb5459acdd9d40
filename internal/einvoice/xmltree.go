package einvoice

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// node is a namespace-agnostic element tree. Lookups use local names only, so
// the validator accepts documents regardless of the prefixes they declare.
type node struct {
	Name     string
	Space    string
	Attrs    map[string]string
	Text     string
	Children []*node
}

func parseTree(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := ianaindex.IANA.Encoding(label)
		if err != nil || enc == nil {
			return nil, fmt.Errorf("unsupported charset %q", label)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var (
		root  *node
		stack []*node
		text  []*strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Name: t.Name.Local, Space: t.Name.Space, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				n.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("document has more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
			text = append(text, &strings.Builder{})
		case xml.EndElement:
			top := stack[len(stack)-1]
			top.Text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

func (n *node) child(name string) *node {
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

func (n *node) children(name string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// find follows path from n and returns the first match.
func (n *node) find(path ...string) *node {
	cur := n
	for _, name := range path {
		cur = cur.child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (n *node) text(path ...string) string {
	if f := n.find(path...); f != nil {
		return f.Text
	}
	return ""
}

func (n *node) attr(name string) string {
	if n == nil {
		return ""
	}
	return n.Attrs[name]
}
