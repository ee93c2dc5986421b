/**
 * @description
 * Cron-driven housekeeping: prunes expired quotes from the store so the quote
 * registry only holds offers that can still be committed.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stablepath/remit-orchestrator/internal/store"
)

// QuoteSweeper periodically deletes expired quotes.
type QuoteSweeper struct {
	cron     *cron.Cron
	repo     store.Repository
	schedule string
}

// NewQuoteSweeper creates a sweeper with the given cron schedule
// (e.g. "*/5 * * * *").
func NewQuoteSweeper(repo store.Repository, schedule string) *QuoteSweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	return &QuoteSweeper{cron: c, repo: repo, schedule: schedule}
}

// Start registers the sweep job and starts the scheduler.
func (s *QuoteSweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("level=info component=quote_sweeper msg=\"scheduled expired quote sweep\" schedule=%q", s.schedule)
	return nil
}

// Stop gracefully stops the scheduler; the returned context is done once any
// running job has finished.
func (s *QuoteSweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *QuoteSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pruned, err := s.repo.DeleteExpiredQuotes(ctx, time.Now())
	if err != nil {
		log.Printf("level=error component=quote_sweeper msg=\"sweep failed\" err=%v", err)
		return
	}
	if pruned > 0 {
		log.Printf("level=info component=quote_sweeper msg=\"expired quotes pruned\" count=%d", pruned)
	}
}
