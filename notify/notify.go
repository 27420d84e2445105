package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arbflow/logger"
	"arbflow/models"
)

// Sender delivers one rendered notification. Implementations must be safe
// for concurrent use.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Pump consumes failure events and escalates the user-actionable ones to
// the configured senders. Transient and data failures stay in the logs;
// auth and geo failures reach a human, rate limited per (exchange, kind) so
// a broken venue cannot flood the chat.
type Pump struct {
	failures <-chan models.FailureEvent
	senders  []Sender
	cooldown time.Duration

	lastSent map[string]time.Time

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
	now     func() time.Time
}

func NewPump(failures <-chan models.FailureEvent, senders []Sender) *Pump {
	return &Pump{
		failures: failures,
		senders:  senders,
		cooldown: 30 * time.Minute,
		lastSent: make(map[string]time.Time),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
		now:      time.Now,
	}
}

func (p *Pump) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("notify pump already running")
	}
	p.running = true
	p.ctx = ctx
	p.mu.Unlock()

	p.log.WithComponent("notify").WithFields(logger.Fields{
		"senders":  len(p.senders),
		"cooldown": p.cooldown,
	}).Info("starting notify pump")

	p.wg.Add(1)
	go p.run()

	return nil
}

func (p *Pump) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case event, ok := <-p.failures:
			if !ok {
				return
			}
			p.handle(event)
		}
	}
}

func (p *Pump) handle(event models.FailureEvent) {
	log := p.log.WithComponent("notify").WithFields(logger.Fields{
		"exchange": event.Exchange,
		"pair":     event.Pair,
		"kind":     string(event.Kind),
	})

	if !event.Kind.Escalates() {
		log.Debug("failure is not user-actionable, logging only")
		return
	}

	key := event.Exchange + ":" + string(event.Kind)
	if last, ok := p.lastSent[key]; ok && p.now().Sub(last) < p.cooldown {
		log.Debug("suppressing repeat escalation within cooldown")
		return
	}
	p.lastSent[key] = p.now()

	title, message := render(event)
	for _, s := range p.senders {
		if err := s.Send(p.ctx, title, message); err != nil {
			log.WithError(err).WithFields(logger.Fields{"sender": s.Name()}).Warn("failed to deliver escalation")
		}
	}
}

func (p *Pump) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.wg.Wait()
	p.log.WithComponent("notify").Info("notify pump stopped")
}

// render turns a failure event into an operator-facing message with the
// concrete remediation for its kind.
func render(event models.FailureEvent) (title, message string) {
	title = fmt.Sprintf("%s excluded from scanning", event.Exchange)

	var remedy string
	switch event.Kind {
	case models.FailureAuth:
		remedy = "Check the API key and secret, and confirm this server's IP is whitelisted."
	case models.FailureGeo:
		remedy = "The venue rejects requests from this region. Route through a permitted egress or disable the venue."
	default:
		remedy = "See the service logs for details."
	}

	message = fmt.Sprintf("%s\n\n%s", event.Message, remedy)
	return title, message
}
