package infra

import "context"

// ChanPool é um semáforo sobre channel com buffer: cada vaga ocupada é um
// elemento no buffer.
type ChanPool struct {
	sem chan struct{}
}

// NewChanPool devolve nil para max <= 0; o chamador trata nil como "sem limite".
func NewChanPool(max int) *ChanPool {
	if max <= 0 {
		return nil
	}
	return &ChanPool{sem: make(chan struct{}, max)}
}

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	// vaga livre tem prioridade sobre ctx já cancelado
	select {
	case p.sem <- struct{}{}:
		return p.release, true
	default:
	}

	select {
	case p.sem <- struct{}{}:
		return p.release, true
	case <-ctx.Done():
		return nil, false
	}
}

func (p *ChanPool) release() { <-p.sem }

func (p *ChanPool) InFlight() int { return len(p.sem) }

func (p *ChanPool) Capacity() int { return cap(p.sem) }
