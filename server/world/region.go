package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/registry"
	"github.com/qexed/qexed/server/world/anvil"
	"github.com/qexed/qexed/server/world/chunk"
)

type regionMessage interface{ regionMessage() }

// forward routes a chunk request towards its chunk. It is accepted by both
// worlds and regions.
type forward struct {
	pos ChunkPos
	req ChunkRequest
}

type regionInit struct {
	*actor.Reply[error]
}

type regionClose struct {
	*actor.Reply[regionReport]
}

type regionReport struct {
	chunks int
	saved  int
}

func (forward) regionMessage()     {}
func (regionInit) regionMessage()  {}
func (regionClose) regionMessage() {}

// regionActor owns one region file and the chunks stored in it.
type regionActor struct {
	actor.Children[ChunkPos, ChunkRequest]

	pos   RegionPos
	conf  Config
	file  *anvil.Region
	index *chunkIndex
	log   *slog.Logger
}

func newRegion(pos RegionPos, conf Config, index *chunkIndex) *regionActor {
	return &regionActor{
		Children: actor.NewChildren[ChunkPos, ChunkRequest](chunkHash),
		pos:      pos,
		conf:     conf,
		index:    index,
		log:      conf.Log.With("region", fmt.Sprintf("%d,%d", pos[0], pos[1])),
	}
}

func (r *regionActor) Handle(_ *actor.Sender[regionMessage], msg regionMessage) bool {
	switch m := msg.(type) {
	case regionInit:
		m.Send(r.init())
	case forward:
		c, ok := r.Load(m.pos)
		if !ok {
			m.req.refuse(ErrChunkNotLoaded)
			return false
		}
		if err := c.Send(m.req); err != nil {
			r.Delete(m.pos)
			m.req.refuse(ErrChunkNotLoaded)
		}
	case regionClose:
		m.Send(r.close())
		return true
	}
	return false
}

// init opens the region file and spawns a chunk actor for every chunk of the
// map range in this region.
func (r *regionActor) init() error {
	path := filepath.Join(r.conf.RegionDir(), anvil.FileName(int32(r.pos[0]), int32(r.pos[1])))
	f, err := anvil.Open(path, r.conf.Compression)
	if err != nil {
		return err
	}
	r.file = f

	plains := registry.MustLookup(registry.Biome, "minecraft:plains")
	for _, pos := range r.conf.MapRange.Chunks(r.pos) {
		col, err := r.read(pos)
		// A chunk made here is not on disk yet. A chunk that failed to load
		// is left alone on disk until it changes.
		fresh := errors.Is(err, anvil.ErrNotGenerated)
		switch {
		case fresh:
			col = chunk.NewColumn(int32(pos[0]), int32(pos[1]), plains)
		case err != nil:
			r.log.Error("load chunk: "+err.Error(), "X", pos[0], "Z", pos[1])
			col = chunk.NewColumn(int32(pos[0]), int32(pos[1]), plains)
		}
		c := &chunkActor{pos: pos, col: col, index: r.index, dirty: fresh}
		s := actor.Spawn[ChunkRequest](c, actor.Config{Name: "chunk", Log: r.log})
		r.Store(pos, s)
		r.index.Store(pos, s)
	}
	return nil
}

func (r *regionActor) read(pos ChunkPos) (*chunk.Column, error) {
	data, err := r.file.ReadChunk(int32(pos[0]), int32(pos[1]))
	if err != nil {
		return nil, err
	}
	col, err := chunk.Decode(data)
	if err != nil {
		return nil, err
	}
	if int64(col.X) != pos[0] || int64(col.Z) != pos[1] {
		return nil, fmt.Errorf("chunk stored at %v claims position %d,%d", pos, col.X, col.Z)
	}
	return col, nil
}

// close stops every chunk, waiting for each reply, and writes back the chunks
// that changed.
func (r *regionActor) close() regionReport {
	var pending []*actor.Reply[chunkSave]
	r.Range(func(_ ChunkPos, c *actor.Sender[ChunkRequest]) bool {
		reply := actor.NewReply[chunkSave]()
		if err := c.Send(chunkClose{reply}); err == nil {
			pending = append(pending, reply)
		}
		return true
	})
	var report regionReport
	for _, reply := range pending {
		save, err := reply.Wait(context.Background())
		if err != nil {
			continue
		}
		report.chunks++
		if !save.dirty || r.file == nil {
			continue
		}
		if save.err == nil {
			save.err = r.file.WriteChunk(int32(save.pos[0]), int32(save.pos[1]), save.data)
		}
		if save.err != nil {
			r.log.Error("save chunk: "+save.err.Error(), "X", save.pos[0], "Z", save.pos[1])
			continue
		}
		report.saved++
	}
	r.Clear()
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			r.log.Error("close region file: " + err.Error())
		}
	}
	return report
}
