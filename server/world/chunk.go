package world

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
	"github.com/qexed/qexed/server/world/chunk"
)

// ErrChunkNotLoaded is the answer to a request for a chunk outside the
// world's map range.
var ErrChunkNotLoaded = errors.New("world: chunk not loaded")

// ChunkRequest is a message addressed to one chunk. The world and region
// forward it unchanged; if the chunk does not exist the request is refused.
type ChunkRequest interface {
	chunkRequest()
	refuse(err error)
}

// PlayerJoin asks a chunk to send itself to a joining player. The chunk packet
// is queued on Conn before the reply is sent.
type PlayerJoin struct {
	Player uuid.UUID
	Pos    mgl64.Vec3
	Conn   packet.Sender
	*actor.Reply[error]
}

// GetBlock asks for the block state at a world position.
type GetBlock struct {
	X, Y, Z int
	*actor.Reply[BlockResult]
}

// BlockResult is the answer to GetBlock.
type BlockResult struct {
	State int32
	Err   error
}

// SetBlock places a block state at a world position.
type SetBlock struct {
	X, Y, Z int
	State   int32
	*actor.Reply[error]
}

// Neighbours asks a chunk which of its horizontal neighbours are loaded.
type Neighbours struct {
	*actor.Reply[[]Direction]
}

// chunkClose stops a chunk. The reply carries its encoded form.
type chunkClose struct {
	*actor.Reply[chunkSave]
}

type chunkSave struct {
	pos   ChunkPos
	data  []byte
	dirty bool
	err   error
}

func (PlayerJoin) chunkRequest() {}
func (GetBlock) chunkRequest()   {}
func (SetBlock) chunkRequest()   {}
func (Neighbours) chunkRequest() {}
func (chunkClose) chunkRequest() {}

func (m PlayerJoin) refuse(err error) { m.Send(err) }
func (m GetBlock) refuse(err error)   { m.Send(BlockResult{Err: err}) }
func (m SetBlock) refuse(err error)   { m.Send(err) }
func (m Neighbours) refuse(error)     { m.Drop() }
func (m chunkClose) refuse(err error) { m.Send(chunkSave{err: err}) }

// chunkIndex is the world-wide arena of chunk mailboxes. Chunks find their
// neighbours through it instead of holding references to each other.
type chunkIndex = actor.Registry[ChunkPos, *actor.Sender[ChunkRequest]]

func chunkHash(p ChunkPos) uint64 { return actor.CoordHash(p) }

type chunkActor struct {
	pos   ChunkPos
	col   *chunk.Column
	dirty bool
	index *chunkIndex
}

func (c *chunkActor) Handle(self *actor.Sender[ChunkRequest], msg ChunkRequest) bool {
	switch m := msg.(type) {
	case PlayerJoin:
		m.Send(m.Conn.SendPacket(c.col.Packet()))
	case GetBlock:
		m.Send(BlockResult{State: c.col.Block(m.X&15, m.Y, m.Z&15)})
	case SetBlock:
		err := c.col.SetBlock(m.X&15, m.Y, m.Z&15, m.State)
		if err == nil {
			c.dirty = true
		}
		m.Send(err)
	case Neighbours:
		var dirs []Direction
		for _, d := range Directions {
			if _, ok := c.index.Load(d.Offset(c.pos)); ok {
				dirs = append(dirs, d)
			}
		}
		m.Send(dirs)
	case chunkClose:
		c.index.CompareAndDelete(c.pos, func(s *actor.Sender[ChunkRequest]) bool { return s == self })
		save := chunkSave{pos: c.pos, dirty: c.dirty}
		if c.dirty {
			save.data, save.err = chunk.Encode(c.col)
		}
		m.Send(save)
		return true
	}
	return false
}
