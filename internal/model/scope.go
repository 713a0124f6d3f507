package model

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Pool recycles float64 backing buffers for matrices. The training set
// matrices are large (N × embeddingDim) and rebuilt on every Train call,
// so they are drawn from a Pool and handed back when the scope ends.
type Pool struct {
	mu   sync.Mutex
	free map[int][][]float64
	live int
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{free: make(map[int][][]float64)}
}

// Live returns the number of buffers currently checked out.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// get returns a zeroed buffer of length n.
func (p *Pool) get(n int) []float64 {
	p.mu.Lock()
	p.live++
	bufs := p.free[n]
	if len(bufs) == 0 {
		p.mu.Unlock()
		return make([]float64, n)
	}
	buf := bufs[len(bufs)-1]
	p.free[n] = bufs[:len(bufs)-1]
	p.mu.Unlock()

	clear(buf)
	return buf
}

func (p *Pool) put(buf []float64) {
	p.mu.Lock()
	p.live--
	p.free[len(buf)] = append(p.free[len(buf)], buf)
	p.mu.Unlock()
}

// Scope tracks buffers acquired during one computation. Everything
// acquired through a Scope goes back to its Pool when the scope ends.
type Scope struct {
	pool *Pool
	held [][]float64
}

// Dense returns a zeroed r × c matrix whose storage belongs to the scope.
// The matrix must not be used after the scope ends.
func (s *Scope) Dense(r, c int) *mat.Dense {
	buf := s.pool.get(r * c)
	s.held = append(s.held, buf)
	return mat.NewDense(r, c, buf)
}

func (s *Scope) release() {
	for _, buf := range s.held {
		s.pool.put(buf)
	}
	s.held = nil
}

// Tidy runs fn with a fresh Scope and releases every buffer fn acquired
// once fn returns, whether it returned an error or panicked.
func Tidy(p *Pool, fn func(s *Scope) error) error {
	s := &Scope{pool: p}
	defer s.release()
	return fn(s)
}
