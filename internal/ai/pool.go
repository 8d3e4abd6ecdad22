package ai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

var errBucketAtCapacity = errors.New("session bucket at capacity")

// Pool keeps warm engine processes per strength bucket so a game does not
// pay process startup on every move.
type Pool struct {
	binaryPath  string
	perStrength int

	mu       sync.Mutex
	buckets  map[int]*bucket // Elo -> bucket
	sessions map[*Session]*bucket
}

func NewPool(binaryPath string, perStrength int) (*Pool, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	if perStrength <= 0 {
		perStrength = 2
	}
	return &Pool{
		binaryPath:  binaryPath,
		perStrength: perStrength,
		buckets:     make(map[int]*bucket),
		sessions:    make(map[*Session]*bucket),
	}, nil
}

// Acquire hands out an idle session for the strength, creating one while
// the bucket has headroom, otherwise waiting for a return.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Session, error) {
	b := p.bucketFor(opt)
	for {
		select {
		case s := <-b.idle:
			if err := s.EnsureReady(ctx); err != nil {
				b.discard(s)
				continue
			}
			p.track(s, b)
			return s, nil
		default:
		}

		s, err := b.create(ctx)
		if err == nil {
			p.track(s, b)
			return s, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case s := <-b.idle:
			if err := s.EnsureReady(ctx); err != nil {
				b.discard(s)
				continue
			}
			p.track(s, b)
			return s, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a session to its bucket; a search error retires the
// process instead.
func (p *Pool) Release(s *Session, err error) {
	if s == nil {
		return
	}
	p.mu.Lock()
	b, ok := p.sessions[s]
	if ok {
		delete(p.sessions, s)
	}
	p.mu.Unlock()

	if !ok {
		_ = s.Close()
		return
	}
	if err != nil || !b.put(s) {
		b.discard(s)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.sessions = make(map[*Session]*bucket)
	p.mu.Unlock()

	var errs []error
	for _, b := range buckets {
		for drained := false; !drained; {
			select {
			case s := <-b.idle:
				if err := s.Close(); err != nil {
					errs = append(errs, err)
				}
				b.decrement()
			default:
				drained = true
			}
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) track(s *Session, b *bucket) {
	p.mu.Lock()
	p.sessions[s] = b
	p.mu.Unlock()
}

func (p *Pool) bucketFor(opt Options) *bucket {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[opt.Elo]
	if !ok {
		b = &bucket{
			binaryPath: p.binaryPath,
			opt:        opt,
			capacity:   p.perStrength,
			idle:       make(chan *Session, p.perStrength),
		}
		p.buckets[opt.Elo] = b
	}
	return b
}

type bucket struct {
	binaryPath string
	opt        Options
	capacity   int

	mu    sync.Mutex
	total int
	idle  chan *Session
}

func (b *bucket) create(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	s, err := NewSession(ctx, b.binaryPath, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return s, nil
}

func (b *bucket) put(s *Session) bool {
	select {
	case b.idle <- s:
		return true
	default:
		return false
	}
}

func (b *bucket) discard(s *Session) {
	if s != nil {
		_ = s.Close()
	}
	b.decrement()
}

func (b *bucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}
