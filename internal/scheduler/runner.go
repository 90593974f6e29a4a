package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookstore/internal/logger"

	"github.com/sirupsen/logrus"
)

// Job は定期実行する処理
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker はレプリカ間の排他。nilなら常に実行する
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

type Runner struct {
	jobs   []Job
	locker Locker
	log    *logrus.Logger
}

func NewRunner(log *logrus.Logger, locker Locker, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, locker: locker, log: log}
}

// Run はジョブごとにgoroutineを起動し、ctxが終わるまで待つ
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range r.jobs {
		if job.Interval <= 0 {
			r.log.WithField("job", job.Name).Warn("job disabled: interval <= 0")
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx, job)
		}
	}
}

// RunOnce はジョブを1回実行する。panicはログに残して握る
func (r *Runner) RunOnce(ctx context.Context, job Job) {
	entry := r.log.WithField("job", job.Name)
	ctx = logger.WithContext(ctx, entry)

	if r.locker != nil {
		unlock, ok, err := r.locker.TryLock(ctx, job.Name)
		if err != nil {
			entry.WithError(err).Warn("sweep lock failed")
			return
		}
		if !ok {
			entry.Debug("sweep lock held by another instance")
			return
		}
		defer unlock()
	}

	defer func() {
		if rec := recover(); rec != nil {
			entry.WithField("panic", fmt.Sprint(rec)).Error("job panicked")
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		entry.WithError(err).WithField("elapsed", time.Since(start).String()).Warn("job finished with errors")
		return
	}
	entry.WithField("elapsed", time.Since(start).String()).Debug("job finished")
}
