// Package world serves the chunks of the loaded worlds. Each world is an actor
// owning one region actor per region of its map range, and each region owns
// one actor per chunk. Requests for a chunk travel world, region, chunk.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/protocol/packet"
)

type worldMessage interface{ worldMessage() }

type worldInit struct {
	*actor.Reply[error]
}

type worldClose struct {
	*actor.Reply[CloseReport]
}

type worldStats struct {
	*actor.Reply[Stats]
}

func (forward) worldMessage()    {}
func (worldInit) worldMessage()  {}
func (worldClose) worldMessage() {}
func (worldStats) worldMessage() {}

// CloseReport summarises the replies collected while closing a world.
type CloseReport struct {
	// Regions is the number of regions that replied.
	Regions int
	// Chunks is the number of chunks that replied to their region.
	Chunks int
	// Saved is the number of chunks written back to region files.
	Saved int
}

// Stats describes the actors of a world.
type Stats struct {
	Regions int
	Chunks  int
}

// World is a handle to a running world. It is safe for concurrent use.
type World struct {
	conf  Config
	s     *actor.Sender[worldMessage]
	index *chunkIndex
}

// UUID returns the world's identity.
func (w *World) UUID() uuid.UUID { return w.conf.UUID }

// Name returns the world's name.
func (w *World) Name() string { return w.conf.Name }

// Namespace returns the dimension identifier of the world.
func (w *World) Namespace() string { return w.conf.Namespace }

// Seed returns the world seed.
func (w *World) Seed() int64 { return w.conf.Seed }

// Spawn returns where players join the world.
func (w *World) Spawn() mgl64.Vec3 { return w.conf.Spawn }

// RegionOf returns the region holding chunk c.
func (w *World) RegionOf(c ChunkPos) RegionPos { return c.Region() }

// Request routes req to the chunk at pos. The request's reply reports
// ErrChunkNotLoaded, or is dropped, if the chunk does not exist.
func (w *World) Request(pos ChunkPos, req ChunkRequest) {
	if err := w.s.Send(forward{pos: pos, req: req}); err != nil {
		req.refuse(ErrChunkNotLoaded)
	}
}

// SendChunk sends the chunk at pos to a player.
func (w *World) SendChunk(ctx context.Context, pos ChunkPos, player uuid.UUID, at mgl64.Vec3, conn packet.Sender) error {
	reply := actor.NewReply[error]()
	w.Request(pos, PlayerJoin{Player: player, Pos: at, Conn: conn, Reply: reply})
	err, waitErr := reply.Wait(ctx)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Join sends a joining player every loaded chunk within radius of pos as one
// chunk batch. It returns the number of chunks sent.
func (w *World) Join(ctx context.Context, player uuid.UUID, pos mgl64.Vec3, radius int, conn packet.Sender) (int, error) {
	centre := ChunkAt(pos)
	if err := conn.SendPacket(&packet.ChunkBatchStart{}); err != nil {
		return 0, err
	}
	sent := 0
	r := int64(radius)
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			if dx*dx+dz*dz > r*r {
				continue
			}
			err := w.SendChunk(ctx, centre.Add(dx, dz), player, pos, conn)
			switch {
			case err == nil:
				sent++
			case errors.Is(err, ErrChunkNotLoaded):
			default:
				return sent, fmt.Errorf("send chunk %v: %w", centre.Add(dx, dz), err)
			}
		}
	}
	return sent, conn.SendPacket(&packet.ChunkBatchFinished{BatchSize: int32(sent)})
}

// Block returns the block state at a world position.
func (w *World) Block(ctx context.Context, x, y, z int) (int32, error) {
	reply := actor.NewReply[BlockResult]()
	w.Request(ChunkAt(mgl64.Vec3{float64(x), 0, float64(z)}), GetBlock{X: x, Y: y, Z: z, Reply: reply})
	res, err := reply.Wait(ctx)
	if err != nil {
		return 0, err
	}
	return res.State, res.Err
}

// SetBlock places a block state at a world position. The chunk is written to
// its region file when the world closes.
func (w *World) SetBlock(ctx context.Context, x, y, z int, state int32) error {
	reply := actor.NewReply[error]()
	w.Request(ChunkAt(mgl64.Vec3{float64(x), 0, float64(z)}), SetBlock{X: x, Y: y, Z: z, State: state, Reply: reply})
	err, waitErr := reply.Wait(ctx)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Neighbours returns the loaded horizontal neighbours of the chunk at pos.
func (w *World) Neighbours(ctx context.Context, pos ChunkPos) ([]Direction, error) {
	reply := actor.NewReply[[]Direction]()
	w.Request(pos, Neighbours{Reply: reply})
	return reply.Wait(ctx)
}

// Stats returns the number of live regions and chunks.
func (w *World) Stats(ctx context.Context) (Stats, error) {
	return actor.Ask(ctx, w.s, func(r *actor.Reply[Stats]) worldMessage { return worldStats{r} })
}

// Close closes every region and chunk of the world, depth first, and stops
// the world.
func (w *World) Close(ctx context.Context) (CloseReport, error) {
	return actor.Ask(ctx, w.s, func(r *actor.Reply[CloseReport]) worldMessage { return worldClose{r} })
}

// Done is closed once the world actor has stopped.
func (w *World) Done() <-chan struct{} { return w.s.Done() }

// worldActor owns the regions of one world.
type worldActor struct {
	actor.Children[RegionPos, regionMessage]

	conf  Config
	index *chunkIndex
	log   *slog.Logger
}

func regionHash(p RegionPos) uint64 { return actor.CoordHash(p) }

// start creates the world actor for conf. The world is not usable until it has
// answered worldInit.
func start(conf Config, metrics *actor.Metrics) *World {
	index := actor.NewRegistry[ChunkPos, *actor.Sender[ChunkRequest]](chunkHash)
	w := &worldActor{
		Children: actor.NewChildren[RegionPos, regionMessage](regionHash),
		conf:     conf,
		index:    index,
		log:      conf.Log,
	}
	s := actor.Spawn[worldMessage](w, actor.Config{Name: "world", Log: conf.Log, Metrics: metrics})
	return &World{conf: conf, s: s, index: index}
}

func (w *worldActor) Handle(_ *actor.Sender[worldMessage], msg worldMessage) bool {
	switch m := msg.(type) {
	case worldInit:
		m.Send(w.init())
	case forward:
		r, ok := w.Load(m.pos.Region())
		if !ok {
			m.req.refuse(ErrChunkNotLoaded)
			return false
		}
		if err := r.Send(m); err != nil {
			m.req.refuse(ErrChunkNotLoaded)
		}
	case worldStats:
		m.Send(Stats{Regions: w.Len(), Chunks: w.index.Len()})
	case worldClose:
		report := w.close()
		w.log.Info("World closed.", "regions", report.Regions, "chunks", report.Chunks, "saved", report.Saved)
		m.Send(report)
		return true
	}
	return false
}

func (w *worldActor) init() error {
	if err := w.conf.validate(); err != nil {
		return err
	}
	if err := w.conf.prepare(); err != nil {
		return err
	}
	for _, pos := range w.conf.MapRange.Regions() {
		r := newRegion(pos, w.conf, w.index)
		s := actor.Spawn[regionMessage](r, actor.Config{Name: "region", Log: w.log})
		w.Store(pos, s)
		err, waitErr := actor.Ask(context.Background(), s, func(reply *actor.Reply[error]) regionMessage {
			return regionInit{reply}
		})
		if waitErr != nil {
			err = waitErr
		}
		if err != nil {
			w.close()
			return fmt.Errorf("init region %v: %w", pos, err)
		}
	}
	return nil
}

// close sends every region a close request, waits for all replies and empties
// the region map.
func (w *worldActor) close() CloseReport {
	var pending []*actor.Reply[regionReport]
	w.Range(func(_ RegionPos, r *actor.Sender[regionMessage]) bool {
		reply := actor.NewReply[regionReport]()
		if err := r.Send(regionClose{reply}); err == nil {
			pending = append(pending, reply)
		}
		return true
	})
	var report CloseReport
	for _, reply := range pending {
		res, err := reply.Wait(context.Background())
		if err != nil {
			continue
		}
		report.Regions++
		report.Chunks += res.chunks
		report.Saved += res.saved
	}
	w.Clear()
	return report
}
