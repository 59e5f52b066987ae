package packet

import (
	"github.com/qexed/qexed/server/protocol"
)

// Command node types and flags.
const (
	NodeRoot     = 0x00
	NodeLiteral  = 0x01
	NodeArgument = 0x02

	NodeTypeMask       = 0x03
	NodeExecutable     = 0x04
	NodeHasRedirect    = 0x08
	NodeHasSuggestions = 0x10
)

// Argument parser IDs of the minecraft:command_argument_type registry.
const (
	ParserBool        = 0
	ParserFloat       = 1
	ParserDouble      = 2
	ParserInteger     = 3
	ParserLong        = 4
	ParserString      = 5
	ParserEntity      = 6
	ParserGameProfile = 7
)

// Integer parser flags.
const (
	IntegerHasMin = 0x01
	IntegerHasMax = 0x02
)

// String parser modes.
const (
	StringSingleWord = 0
	StringQuotable   = 1
	StringGreedy     = 2
)

// SuggestAskServer makes the client request completions with
// CommandSuggestion.
const SuggestAskServer = "minecraft:ask_server"

// CommandNode is one node of the command graph.
type CommandNode struct {
	Flags       uint8
	Children    []int32
	Redirect    int32
	Name        string
	Parser      int32
	Properties  ParserProperties
	Suggestions string
}

// ParserProperties are the parser-specific properties of an argument node.
type ParserProperties struct {
	Flags      uint8
	Min, Max   int32
	StringMode int32
}

func (n *CommandNode) Marshal(io protocol.IO) {
	io.Uint8(&n.Flags)
	protocol.Slice(io, &n.Children, io.Varint32)
	if n.Flags&NodeHasRedirect != 0 {
		io.Varint32(&n.Redirect)
	}
	kind := n.Flags & NodeTypeMask
	if kind == NodeLiteral || kind == NodeArgument {
		io.String(&n.Name)
	}
	if kind == NodeArgument {
		io.Varint32(&n.Parser)
		n.Properties.marshal(io, n.Parser)
	}
	if n.Flags&NodeHasSuggestions != 0 {
		io.String(&n.Suggestions)
	}
}

func (p *ParserProperties) marshal(io protocol.IO, parser int32) {
	switch parser {
	case ParserInteger:
		io.Uint8(&p.Flags)
		if p.Flags&IntegerHasMin != 0 {
			io.Int32(&p.Min)
		}
		if p.Flags&IntegerHasMax != 0 {
			io.Int32(&p.Max)
		}
	case ParserString:
		io.Varint32(&p.StringMode)
	case ParserEntity:
		io.Uint8(&p.Flags)
	}
}

// Commands sends the command graph used for client-side parsing and
// completion.
type Commands struct {
	Nodes []CommandNode
	Root  int32
}

func (*Commands) ID() int32 { return IDCommands }

func (pk *Commands) Marshal(io protocol.IO) {
	protocol.SliceOf(io, &pk.Nodes)
	io.Varint32(&pk.Root)
}
