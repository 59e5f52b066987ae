package builtin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qexed/qexed/server/access"
	"github.com/qexed/qexed/server/actor"
	"github.com/qexed/qexed/server/chat"
	"github.com/qexed/qexed/server/playerlist"
	"github.com/qexed/qexed/server/rule"
	"github.com/qexed/qexed/server/text"
	"github.com/qexed/qexed/server/title"
	"github.com/qexed/qexed/server/world"
)

type serverAdapter interface {
	PlayerList() *playerlist.List
	Chat() *chat.Manager
	Titles() *title.Manager
	Worlds() *world.Manager
	Rules() *rule.Handle
	Blacklist() *access.List
	Whitelist() *access.List
	Kick(ctx context.Context, id uuid.UUID, reason text.Component) error
	StartTime() time.Time
	Metrics() *actor.Metrics
	Close() error
}
