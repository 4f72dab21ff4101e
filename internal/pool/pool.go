// Package pool owns the per-device model replicas and hands out exclusive
// leases on them. Every model invocation goes through a Slot from this
// package.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"scribeflow/internal/diarization"
	"scribeflow/internal/transcript"
	"scribeflow/internal/transcription"
)

var (
	ErrSlotReleased  = errors.New("pool: slot already released")
	ErrUnknownDevice = errors.New("pool: unknown device")
	ErrNoLoader      = errors.New("pool: replica does not support model loading")
)

type VoiceDetector interface {
	DetectSpeech(ctx context.Context, audio []float32) ([]transcript.Interval, error)
}

type ModelLoader interface {
	LoadModel(ctx context.Context, modelPath, language string) error
}

// Replica is the set of models bound to one device. The device binding is
// fixed for the lifetime of the pool.
type Replica struct {
	Device      int
	Transcriber transcription.Model
	Diarizer    diarization.Model
	VAD         VoiceDetector
	Loader      ModelLoader
}

type Observer interface {
	ObservePoolAcquire(wait time.Duration)
	SetPoolInUse(n int)
}

type Option func(*Pool)

func WithObserver(observer Observer) Option {
	return func(p *Pool) {
		p.observer = observer
	}
}

type waiter struct {
	// want is an arena index, or -1 for any replica.
	want int
	ch   chan int
}

type Pool struct {
	replicas []Replica
	byDevice map[int]int
	observer Observer

	mu      sync.Mutex
	busy    []bool
	inUse   int
	next    int
	waiters []*waiter
}

func New(replicas []Replica, opts ...Option) (*Pool, error) {
	if len(replicas) == 0 {
		return nil, errors.New("pool: at least one replica is required")
	}
	p := &Pool{
		replicas: make([]Replica, len(replicas)),
		byDevice: make(map[int]int, len(replicas)),
		busy:     make([]bool, len(replicas)),
	}
	for i, r := range replicas {
		if r.Device < 0 {
			return nil, fmt.Errorf("pool: invalid device index %d", r.Device)
		}
		if _, dup := p.byDevice[r.Device]; dup {
			return nil, fmt.Errorf("pool: duplicate device index %d", r.Device)
		}
		p.byDevice[r.Device] = i
		p.replicas[i] = r
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func (p *Pool) Size() int {
	return len(p.replicas)
}

func (p *Pool) Devices() []int {
	out := make([]int, len(p.replicas))
	for i, r := range p.replicas {
		out[i] = r.Device
	}
	return out
}

// Replicas returns a copy of the replica arena. Callers may only use it
// for out-of-band probes such as health checks; inference requires a Slot.
func (p *Pool) Replicas() []Replica {
	out := make([]Replica, len(p.replicas))
	copy(out, p.replicas)
	return out
}

func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Acquire blocks until any replica is free or ctx is done. Waiters are
// served in arrival order.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	return p.acquire(ctx, -1)
}

// AcquireDevice blocks until the replica bound to device is free.
func (p *Pool) AcquireDevice(ctx context.Context, device int) (*Slot, error) {
	idx, ok := p.byDevice[device]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, device)
	}
	return p.acquire(ctx, idx)
}

// Reconfigure runs fn while holding the lease of device, so it never races
// with inference on that replica.
func (p *Pool) Reconfigure(ctx context.Context, device int, fn func(context.Context, *Replica) error) error {
	slot, err := p.AcquireDevice(ctx, device)
	if err != nil {
		return err
	}
	defer func() { _ = slot.Release() }()
	return fn(ctx, slot.Replica())
}

func (p *Pool) acquire(ctx context.Context, want int) (*Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	p.mu.Lock()
	if idx := p.pickFreeLocked(want); idx >= 0 {
		p.busy[idx] = true
		p.inUse++
		inUse := p.inUse
		p.mu.Unlock()
		return p.grant(idx, started, inUse), nil
	}
	w := &waiter{want: want, ch: make(chan int, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case idx := <-w.ch:
		return p.grant(idx, started, p.InUse()), nil
	case <-ctx.Done():
		p.mu.Lock()
		removed := p.removeWaiterLocked(w)
		p.mu.Unlock()
		if !removed {
			// a release handed us the replica before we could leave the queue
			p.release(<-w.ch)
		}
		return nil, ctx.Err()
	}
}

func (p *Pool) grant(idx int, started time.Time, inUse int) *Slot {
	if p.observer != nil {
		p.observer.ObservePoolAcquire(time.Since(started))
		p.observer.SetPoolInUse(inUse)
	}
	return &Slot{pool: p, idx: idx}
}

// pickFreeLocked returns a free arena index usable by want, rotating the
// start position so load spreads across devices.
func (p *Pool) pickFreeLocked(want int) int {
	if want >= 0 {
		if !p.busy[want] {
			return want
		}
		return -1
	}
	n := len(p.replicas)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		if !p.busy[idx] {
			p.next = (idx + 1) % n
			return idx
		}
	}
	return -1
}

func (p *Pool) removeWaiterLocked(w *waiter) bool {
	for i, candidate := range p.waiters {
		if candidate == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// release hands idx to the oldest waiter that can use it, or marks it free.
func (p *Pool) release(idx int) {
	p.mu.Lock()
	for i, w := range p.waiters {
		if w.want < 0 || w.want == idx {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			w.ch <- idx
			p.mu.Unlock()
			return
		}
	}
	p.busy[idx] = false
	p.inUse--
	inUse := p.inUse
	p.mu.Unlock()

	if p.observer != nil {
		p.observer.SetPoolInUse(inUse)
	}
}

// Slot is an exclusive lease on one replica.
type Slot struct {
	pool     *Pool
	idx      int
	released atomic.Bool
}

func (s *Slot) Replica() *Replica {
	return &s.pool.replicas[s.idx]
}

func (s *Slot) Device() int {
	return s.pool.replicas[s.idx].Device
}

// Release returns the replica to the pool. Only the first call has an
// effect; later calls return ErrSlotReleased.
func (s *Slot) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return ErrSlotReleased
	}
	s.pool.release(s.idx)
	return nil
}
