package ber

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/golangsnmp/goodr/odr"
)

// YAML tags for the scalar kinds that have no core YAML type.
const (
	TagOID  = "!oid"
	TagBits = "!bits"
)

// MarshalYAML renders v as YAML. Tables become mappings keyed by ordinal,
// printable octet strings become strings and other octet strings become
// !!binary. OIDs use the !oid tag with dotted notation and bit strings the
// !bits tag with one '0' or '1' per bit.
func (v Value) MarshalYAML() (any, error) {
	return v.yamlNode()
}

func (v Value) yamlNode() (*yaml.Node, error) {
	switch v.kind {
	case KindNull:
		return scalarNode("!!null", "null"), nil
	case KindBool:
		return scalarNode("!!bool", strconv.FormatBool(v.Bool())), nil
	case KindInt:
		return scalarNode("!!int", strconv.FormatInt(v.num, 10)), nil
	case KindBytes:
		if printable(v.bytes) {
			return scalarNode("!!str", string(v.bytes)), nil
		}
		return scalarNode("!!binary", base64.StdEncoding.EncodeToString(v.bytes)), nil
	case KindBits:
		return scalarNode(TagBits, formatBits(v.bytes, v.Unused())), nil
	case KindOID:
		s, err := odr.FormatOID(v.bytes)
		if err != nil {
			return nil, err
		}
		return scalarNode(TagOID, s), nil
	case KindTable:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Ords() {
			child, err := v.table[k].yamlNode()
			if err != nil {
				return nil, fmt.Errorf("ordinal %d: %w", k, err)
			}
			n.Content = append(n.Content, scalarNode("!!int", strconv.Itoa(k)), child)
		}
		return n, nil
	}
	return nil, errors.New("ber: cannot marshal invalid value")
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func printable(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) && r != '\n' && r != '\t' {
			return false
		}
	}
	return true
}

// UnmarshalYAML reads the form written by MarshalYAML. Sequences are also
// accepted and become tables keyed from 1.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := fromNode(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func fromNode(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.SequenceNode:
		elems := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			e, err := fromNode(c)
			if err != nil {
				return Value{}, err
			}
			elems = append(elems, e)
		}
		return List(elems...), nil
	case yaml.MappingNode:
		m := make(map[int]Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, err := strconv.Atoi(n.Content[i].Value)
			if err != nil || k < 1 {
				return Value{}, fmt.Errorf("line %d: component key %q is not an ordinal", n.Content[i].Line, n.Content[i].Value)
			}
			e, err := fromNode(n.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			m[k] = e
		}
		return Table(m), nil
	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch tag := n.ShortTag(); tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case "!!str":
		return Text(n.Value), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bytes(b), nil
	case TagOID:
		b, err := odr.ParseOID(n.Value)
		if err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return OID(b), nil
	case TagBits:
		b, unused, err := parseBits(n.Value)
		if err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bits(b, unused), nil
	default:
		return Value{}, fmt.Errorf("line %d: unsupported scalar %s %q", n.Line, tag, n.Value)
	}
}
