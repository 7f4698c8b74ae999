// Package explorer grows the stored knowledge of a topic by asking a Generator for the
// connections of every idea reachable from it, breadth first.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/psidex/graphmind/internal/store"
)

// ErrLimitReached is returned when an exploration stops because it generated as many
// ideas as it was allowed to.
var ErrLimitReached = errors.New("generation limit reached")

type Options struct {
	// MaxGenerated caps how many ideas one exploration may send to the generator. Ideas
	// already in the store do not count. Zero means no cap.
	MaxGenerated int `yaml:"maxGenerated" json:"maxGenerated"`
}

// Stats describes a finished exploration.
type Stats struct {
	Visited   int
	Cached    int
	Generated int
	Failed    int
}

type Explorer struct {
	store     store.Store
	generator Generator
	opts      Options
	logger    *slog.Logger
	// saved is called after connections are saved, nil if unset.
	saved func(principal string)
}

func New(st store.Store, gen Generator, opts Options, logger *slog.Logger) *Explorer {
	return &Explorer{
		store:     st,
		generator: gen,
		opts:      opts,
		logger:    logger,
	}
}

// OnSaved registers fn to be called with the principal topic every time new
// connections are saved under it.
func (e *Explorer) OnSaved(fn func(principal string)) {
	e.saved = fn
}

// Explore makes sure principal and every idea within depth levels below it has
// stored connections, walking the same links BuildSnapshot follows: the children of
// every sub-topic. Stored connections are reused, missing ones are generated and
// saved. A failed generation is logged and its branch skipped.
func (e *Explorer) Explore(ctx context.Context, principal string, depth int) (Stats, error) {
	var stats Stats
	f := newFrontier()
	f.add(task{idea: principal, query: principal, level: 0})

	for {
		t, ok := f.pop()
		if !ok {
			return stats, nil
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Visited++

		logger := e.logger.With("principal", principal, "idea", t.idea, "level", t.level)
		logger.Debug("exploring", "frontier", f.size())

		conns, err := e.store.Load(ctx, principal, t.idea)
		if err != nil {
			return stats, fmt.Errorf("exploring %q: %w", t.idea, err)
		}

		if conns != nil {
			stats.Cached++
		} else {
			if e.opts.MaxGenerated > 0 && stats.Generated >= e.opts.MaxGenerated {
				return stats, ErrLimitReached
			}
			stats.Generated++

			conns, err = e.generator.Connections(ctx, t.query)
			if err != nil {
				if ctx.Err() != nil {
					return stats, ctx.Err()
				}
				stats.Failed++
				logger.Warn("could not generate connections", "err", err)
				continue
			}
			if err := e.store.Save(ctx, principal, t.idea, conns); err != nil {
				return stats, fmt.Errorf("exploring %q: %w", t.idea, err)
			}
			logger.Info("saved connections", "subtopics", len(conns))
			if e.saved != nil && len(conns) > 0 {
				e.saved(principal)
			}
		}

		if t.level >= depth {
			continue
		}
		for _, c := range conns {
			for _, child := range c.Children {
				f.add(task{
					idea:  child,
					query: fmt.Sprintf("%s, as part of %s within %s", child, c.Subtopic, principal),
					level: t.level + 1,
				})
			}
		}
	}
}
