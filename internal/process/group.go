package process

import (
	"os/exec"
	"sync"
)

// Group tracks live guards so they can all be released at shutdown.
type Group struct {
	mu     sync.Mutex
	guards map[*Guard]struct{}
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{guards: map[*Guard]struct{}{}}
}

// Start starts cmd and registers the resulting guard with the group.
func (gr *Group) Start(name string, cmd *exec.Cmd) (*Guard, error) {
	g, err := Start(name, cmd)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.group = gr
	g.mu.Unlock()

	gr.mu.Lock()
	gr.guards[g] = struct{}{}
	gr.mu.Unlock()
	return g, nil
}

// Len reports the number of live guards.
func (gr *Group) Len() int {
	gr.mu.Lock()
	defer gr.mu.Unlock()
	return len(gr.guards)
}

// CloseAll kills and reaps every registered guard. It returns once all of them are gone.
func (gr *Group) CloseAll() {
	gr.mu.Lock()
	guards := make([]*Guard, 0, len(gr.guards))
	for g := range gr.guards {
		guards = append(guards, g)
	}
	gr.mu.Unlock()

	var wg sync.WaitGroup
	for _, g := range guards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Close()
		}()
	}
	wg.Wait()
}

func (gr *Group) forget(g *Guard) {
	gr.mu.Lock()
	delete(gr.guards, g)
	gr.mu.Unlock()
}
