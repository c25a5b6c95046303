package syncclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"
	"love-sync-backend/internal/sessions"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is how often a participant re-reads the shared record
const DefaultPollInterval = 800 * time.Millisecond

// ErrUnreachable is returned once MaxFailures consecutive polls have failed
var ErrUnreachable = errors.New("session server unreachable")

// SessionAPI is the part of the session API a poller needs
type SessionAPI interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Start(ctx context.Context, id string) (*services.TransitionResult, error)
}

// PollerConfig tunes a Poller
type PollerConfig struct {
	Interval time.Duration
	// MaxFailures bounds consecutive failed polls; 0 retries forever
	MaxFailures int
	// AutoStart issues start once both chocolate players are present
	AutoStart bool
	// Joined is whether this participant has already acted on the session
	Joined bool
}

// UpdateFunc receives every accepted record and the phase derived from it
type UpdateFunc func(sess *models.Session, phase sessions.Phase)

type pollResult struct {
	seq   uint64
	sess  *models.Session
	err   error
	start bool
}

// Poller keeps one participant's view of a session converged with the server.
// Every request is tagged with a sequence number and a reply older than the newest applied one is dropped.
type Poller struct {
	api      SessionAPI
	id       string
	clock    clockwork.Clock
	cfg      PollerConfig
	onUpdate UpdateFunc

	seq      uint64
	applied  uint64
	latest   *models.Session
	failures int
	// starting is set while a start is in flight and stays set once one succeeds
	starting bool
}

// NewPoller creates a poller for session id
func NewPoller(api SessionAPI, id string, clock clockwork.Clock, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	return &Poller{
		api:   api,
		id:    id,
		clock: clock,
		cfg:   cfg,
	}
}

// OnUpdate registers the callback. It runs on the Run goroutine.
func (p *Poller) OnUpdate(fn UpdateFunc) {
	p.onUpdate = fn
}

// Run polls until the session resolves, the session is not found, the server stays unreachable
// or ctx ends. It returns the last accepted record.
func (p *Poller) Run(ctx context.Context) (*models.Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pollResult, 4)

	p.poll(runCtx, results)

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return p.latest, ctx.Err()

		case <-ticker.Chan():
			p.poll(runCtx, results)

		case res := <-results:
			done, err := p.handle(runCtx, res, results)
			if err != nil || done {
				return p.latest, err
			}
		}
	}
}

// Latest returns the newest accepted record. Only safe once Run has returned.
func (p *Poller) Latest() *models.Session {
	return p.latest
}

func (p *Poller) nextSeq() uint64 {
	p.seq++
	return p.seq
}

// poll fetches the record on its own goroutine so a slow reply never delays the next tick
func (p *Poller) poll(ctx context.Context, results chan<- pollResult) {
	seq := p.nextSeq()
	go func() {
		sess, err := p.api.Get(ctx, p.id)
		deliver(ctx, results, pollResult{seq: seq, sess: sess, err: err})
	}()
}

func (p *Poller) start(ctx context.Context, results chan<- pollResult) {
	seq := p.nextSeq()
	go func() {
		res, err := p.api.Start(ctx, p.id)
		r := pollResult{seq: seq, err: err, start: true}
		if err == nil {
			r.sess = res.Session
		}
		deliver(ctx, results, r)
	}()
}

func deliver(ctx context.Context, results chan<- pollResult, r pollResult) {
	select {
	case results <- r:
	case <-ctx.Done():
	}
}

func (p *Poller) handle(ctx context.Context, res pollResult, results chan<- pollResult) (bool, error) {
	if res.err != nil {
		if res.start {
			// the next ready poll sends start again; the server ignores repeats
			p.starting = false
		}
		if errors.Is(res.err, models.ErrSessionNotFound) {
			return true, res.err
		}
		if ctx.Err() != nil {
			return false, nil
		}
		p.failures++
		log.Debug().Err(res.err).Str("session_id", p.id).Int("failures", p.failures).Msg("Poll failed")
		if p.cfg.MaxFailures > 0 && p.failures >= p.cfg.MaxFailures {
			return true, fmt.Errorf("%w after %d attempts: %v", ErrUnreachable, p.failures, res.err)
		}
		return false, nil
	}
	p.failures = 0

	if res.seq <= p.applied {
		log.Debug().Uint64("seq", res.seq).Uint64("applied", p.applied).Msg("Dropping stale poll reply")
		return false, nil
	}
	if p.latest != nil && res.sess.Version < p.latest.Version {
		return false, nil
	}
	p.applied = res.seq
	p.latest = res.sess

	if p.cfg.AutoStart && !p.starting && readyToStart(res.sess) {
		p.starting = true
		p.start(ctx, results)
	}

	if p.onUpdate != nil {
		p.onUpdate(res.sess, sessions.PhaseOf(res.sess, p.cfg.Joined, p.clock.Now()))
	}
	return res.sess.Outcome != nil, nil
}

func readyToStart(s *models.Session) bool {
	return s.Kind == models.KindChocolate && s.HasResponder() && s.CountdownAt == nil && s.Outcome == nil
}
