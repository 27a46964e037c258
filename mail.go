package authkit

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

type mailKind uint8

const (
	mailVerificationCode mailKind = iota
	mailPasswordResetLink
)

type mailJob struct {
	kind   mailKind
	email  string
	secret string
}

// mailDispatcher delivers mail off the request path. Delivery is
// fire-and-forget: a full buffer drops the job, and a failing Mailer is
// logged, never surfaced to the caller. Either way the triggering operation
// still returns its generic message.
type mailDispatcher struct {
	mailer    Mailer
	ch        chan mailJob
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newMailDispatcher(cfg MailConfig, mailer Mailer) *mailDispatcher {
	if mailer == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &mailDispatcher{
		mailer: mailer,
		ch:     make(chan mailJob, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *mailDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.deliver(job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (d *mailDispatcher) deliver(job mailJob) {
	var err error
	switch job.kind {
	case mailVerificationCode:
		err = d.mailer.SendVerificationCode(context.Background(), job.email, job.secret)
	case mailPasswordResetLink:
		err = d.mailer.SendPasswordResetLink(context.Background(), job.email, job.secret)
	}
	if err != nil {
		log.Printf("authkit: mail delivery failed: %v", err)
	}
}

func (d *mailDispatcher) enqueue(job mailJob) {
	if d == nil || d.closed.Load() {
		return
	}

	select {
	case d.ch <- job:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

func (d *mailDispatcher) SendVerificationCode(email, code string) {
	d.enqueue(mailJob{kind: mailVerificationCode, email: email, secret: code})
}

func (d *mailDispatcher) SendPasswordResetLink(email, token string) {
	d.enqueue(mailJob{kind: mailPasswordResetLink, email: email, secret: token})
}

func (d *mailDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *mailDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
