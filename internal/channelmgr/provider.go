// Package channelmgr implements the Channel Manager (C6): the lifecycle
// owner of one broadcaster.Broadcaster per enabled channel. Grounded on
// internal/tuner/server.go's UpdateChannels "swap the channel list across
// every handler without a restart" pattern, adapted to hold
// map[string]*broadcaster.Broadcaster instead of a []catalog.LiveChannel
// slice shared by sub-handlers.
package channelmgr

import (
	"time"

	"github.com/headend/streamtv/internal/catalog"
	"github.com/headend/streamtv/internal/schedule"
	"github.com/headend/streamtv/internal/store"
)

// scheduleProvider adapts a channel's schedule source (a YAML file parsed
// once at construction, or a DB-defined schedule read fresh on every
// Expand call) into the broadcaster.ScheduleProvider seam. Re-running C3's
// engine on every Expand keeps padToNext/padUntil/waitUntil ops correctly
// anchored to wall-clock time across a long-running continuous channel.
type scheduleProvider struct {
	channelNumber string
	engine        *schedule.Engine
	parsed        *schedule.ParsedSchedule // nil when falling back to a DB-defined schedule
	lookup        schedule.CollectionLookup
	st            *store.Store
}

// newScheduleProvider loads channel's schedule: a YAML file under
// cfg.ScheduleRoot takes precedence (per spec.md §3, "Schedule is either
// loaded from a YAML file ... or DB-defined"); its content collections
// resolve through st.CollectionLookup. Absent a YAML file, it falls back
// to st.LoadDBSchedule/st.DBScheduleLookup.
func newScheduleProvider(scheduleRoot string, ch catalog.Channel, st *store.Store) (*scheduleProvider, error) {
	engine := schedule.NewEngine()

	ps, err := schedule.LoadFile(scheduleRoot, ch.Number)
	if err != nil {
		return nil, err
	}
	if ps != nil {
		return &scheduleProvider{
			channelNumber: ch.Number,
			engine:        engine,
			parsed:        ps,
			lookup:        st.CollectionLookup,
			st:            st,
		}, nil
	}

	return &scheduleProvider{
		channelNumber: ch.Number,
		engine:        engine,
		st:            st,
	}, nil
}

// Expand implements broadcaster.ScheduleProvider.
func (p *scheduleProvider) Expand(now time.Time) ([]schedule.PlayoutItem, error) {
	ps := p.parsed
	lookup := p.lookup
	if ps == nil {
		dbPs, ok, err := p.st.LoadDBSchedule(p.channelNumber)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		ps = dbPs
		lookup = p.st.DBScheduleLookup(p.channelNumber)
	}
	return p.engine.Expand(ps, p.channelNumber, lookup, now), nil
}
