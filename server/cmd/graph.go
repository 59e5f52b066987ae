package cmd

import (
	"github.com/qexed/qexed/server/protocol/packet"
)

// buildGraph synthesises the command graph of the entries perms allows. Node 0
// is the root; every command gets a literal under it, followed by its
// parameters. Aliases are literals redirecting to the command's literal.
func buildGraph(entries []*entry, perms Permissions) *packet.Commands {
	b := &graphBuilder{nodes: []packet.CommandNode{{Flags: packet.NodeRoot}}}
	var root []int32
	for _, e := range entries {
		if !perms.Has(e.cmd.Permission) {
			continue
		}
		c := e.cmd
		flags := uint8(packet.NodeLiteral)
		if executableAt(c.Params, 0) {
			flags |= packet.NodeExecutable
		}
		lit := b.add(packet.CommandNode{Flags: flags, Name: c.Name})
		b.nodes[lit].Children = b.params(c.Params, 0)
		root = append(root, lit)

		for _, a := range c.Aliases {
			aliasFlags := uint8(packet.NodeLiteral|packet.NodeHasRedirect) | flags&packet.NodeExecutable
			root = append(root, b.add(packet.CommandNode{Flags: aliasFlags, Name: a, Redirect: lit}))
		}
	}
	b.nodes[0].Children = root
	return &packet.Commands{Nodes: b.nodes, Root: 0}
}

// executableAt reports whether a command line may end before params[i].
func executableAt(params []Param, i int) bool {
	return i >= len(params) || params[i].Optional
}

type graphBuilder struct {
	nodes []packet.CommandNode
}

func (b *graphBuilder) add(n packet.CommandNode) int32 {
	b.nodes = append(b.nodes, n)
	return int32(len(b.nodes) - 1)
}

// params adds the nodes of params[i] and everything after it, returning the
// indices of the nodes for params[i].
func (b *graphBuilder) params(params []Param, i int) []int32 {
	if i >= len(params) {
		return nil
	}
	p := params[i]
	var flags uint8
	if executableAt(params, i+1) {
		flags = packet.NodeExecutable
	}
	if p.Type == ParamEnum {
		next := b.params(params, i+1)
		nodes := make([]int32, 0, len(p.Options))
		for _, o := range p.Options {
			nodes = append(nodes, b.add(packet.CommandNode{Flags: packet.NodeLiteral | flags, Name: o, Children: next}))
		}
		return nodes
	}
	n := packet.CommandNode{Flags: packet.NodeArgument | flags, Name: p.Name}
	switch p.Type {
	case ParamInt:
		n.Parser = packet.ParserInteger
		if p.Min != nil {
			n.Properties.Flags |= packet.IntegerHasMin
			n.Properties.Min = *p.Min
		}
		if p.Max != nil {
			n.Properties.Flags |= packet.IntegerHasMax
			n.Properties.Max = *p.Max
		}
	case ParamBool:
		n.Parser = packet.ParserBool
	case ParamPlayer:
		n.Parser = packet.ParserGameProfile
		n.Flags |= packet.NodeHasSuggestions
		n.Suggestions = packet.SuggestAskServer
	case ParamText:
		n.Parser = packet.ParserString
		n.Properties.StringMode = packet.StringGreedy
	case ParamQuotable:
		n.Parser = packet.ParserString
		n.Properties.StringMode = packet.StringQuotable
	default:
		n.Parser = packet.ParserString
		n.Properties.StringMode = packet.StringSingleWord
	}
	if len(p.Suggestions) != 0 && n.Flags&packet.NodeHasSuggestions == 0 {
		n.Flags |= packet.NodeHasSuggestions
		n.Suggestions = packet.SuggestAskServer
	}
	idx := b.add(n)
	b.nodes[idx].Children = b.params(params, i+1)
	return []int32{idx}
}
