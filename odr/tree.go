package odr

import "slices"

// Node is one type in a debug dump of the schema.
type Node struct {
	Addr     Addr    `yaml:"addr"`
	Ord      int     `yaml:"ord,omitempty"`
	Name     string  `yaml:"name,omitempty"`
	Tag      string  `yaml:"tag,omitempty"`
	Kind     string  `yaml:"kind"`
	Codec    string  `yaml:"codec,omitempty"`
	Optional bool    `yaml:"optional,omitempty"`
	Loop     bool    `yaml:"loop,omitempty"`
	Children []*Node `yaml:"children,omitempty"`
}

// Kind names used in Node.Kind.
const (
	KindSimple      = "simple"
	KindConstructed = "constructed"
	KindChoice      = "choice"
	KindTypeOf      = "type-of"
	KindExplicit    = "explicit"
)

// Tree returns the type tree rooted at a. A record that already appears on
// the path from the root is reported with Loop set instead of being
// expanded again.
func (s *Schema) Tree(a Addr) *Node {
	return s.tree(a, nil)
}

func (s *Schema) tree(a Addr, path []Addr) *Node {
	r := s.Record(a)
	n := &Node{
		Addr:     a,
		Ord:      int(r.Ord),
		Optional: r.Has(FlagOptional),
	}
	if r.Name != 0 {
		n.Name = s.Name(r.Name)
	}
	if r.Tag != 0 {
		n.Tag = r.Tag.String()
	}
	switch {
	case r.Has(FlagSimple):
		n.Kind = KindSimple
		n.Codec = r.Codec().String()
		return n
	case r.Has(FlagChoice):
		n.Kind = KindChoice
	case r.Has(FlagTypeOf):
		n.Kind = KindTypeOf
	case r.Has(FlagExplicit):
		n.Kind = KindExplicit
	default:
		n.Kind = KindConstructed
	}
	if slices.Contains(path, a) {
		n.Loop = true
		return n
	}
	path = append(path, a)
	switch {
	case r.Has(FlagTypeOf), r.Has(FlagExplicit):
		if r.Sub != NoAddr {
			n.Children = append(n.Children, s.tree(r.Sub, path))
		}
	default:
		for c := r.Sub; c != NoAddr; c = s.Record(c).Next {
			n.Children = append(n.Children, s.tree(c, path))
			if len(n.Children) > len(s.records) {
				break
			}
		}
	}
	return n
}

// ModuleDump is the debug view of one indexed module.
type ModuleDump struct {
	Name string `yaml:"name"`
	OID  string `yaml:"oid"`
	Root *Node  `yaml:"root"`
}

// Dump returns the debug view of every indexed module in index order.
func (s *Schema) Dump() []ModuleDump {
	out := make([]ModuleDump, 0, len(s.modules))
	for _, m := range s.modules {
		oid, err := FormatOID(m.Bytes())
		if err != nil {
			oid = "-"
		}
		out = append(out, ModuleDump{
			Name: s.Name(m.Name),
			OID:  oid,
			Root: s.Tree(m.Root),
		})
	}
	return out
}
