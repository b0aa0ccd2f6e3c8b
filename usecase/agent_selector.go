package usecase

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"salvage-market/model"
)

// AgentSelector picks one agent from the available candidates. loads is
// never empty and is ordered by agent id.
type AgentSelector interface {
	Select(loads []model.AgentLoad) model.Agent
}

func NewAgentSelector(policy string) (AgentSelector, error) {
	switch policy {
	case "", "least-loaded":
		return LeastLoaded{}, nil
	case "round-robin":
		return &RoundRobin{}, nil
	case "random":
		return NewRandomSelector(time.Now().UnixNano()), nil
	}
	return nil, fmt.Errorf("unknown agent policy %q", policy)
}

// LeastLoaded picks the agent with the fewest active assignments, lowest
// id first on ties.
type LeastLoaded struct{}

func (LeastLoaded) Select(loads []model.AgentLoad) model.Agent {
	best := loads[0]
	for _, l := range loads[1:] {
		if l.ActiveAssignments < best.ActiveAssignments {
			best = l
		}
	}
	return best.Agent
}

// RoundRobin cycles through the candidates. The counter is per process,
// so replicas rotate independently.
type RoundRobin struct {
	counter atomic.Uint64
}

func (r *RoundRobin) Select(loads []model.AgentLoad) model.Agent {
	idx := r.counter.Add(1) - 1
	return loads[idx%uint64(len(loads))].Agent
}

type RandomSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomSelector(seed int64) *RandomSelector {
	return &RandomSelector{rnd: rand.New(rand.NewSource(seed))}
}

func (r *RandomSelector) Select(loads []model.AgentLoad) model.Agent {
	r.mu.Lock()
	i := r.rnd.Intn(len(loads))
	r.mu.Unlock()
	return loads[i].Agent
}
