package proc

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/leeineian/olympiad/sys"
)

var ticketSweeperRunning = false

func init() {
	sys.OnClientReady(func(ctx context.Context, client *bot.Client) {
		InitTicketing(client)
		sys.RegisterDaemon(sys.LogSweeper, StartTicketSweeper)
	})
}

// StartTicketSweeper starts the expiry reconciliation loop. It only runs
// once the client is ready, so no tick can fire before the transport is
// connected, and it stops issuing ticks on shutdown.
func StartTicketSweeper(ctx context.Context) (bool, func(), func()) {
	if ticketSweeperRunning {
		return false, nil, nil
	}
	ticketSweeperRunning = true

	sweepCtx, cancel := context.WithCancel(ctx)

	run := func() {
		interval := sys.GlobalConfig.SweepInterval
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				expired, failures := Tickets.Sweep(sweepCtx)
				if failures > 0 {
					sys.LogSweeper(sys.MsgSweeperPassFail, failures)
				} else if expired > 0 {
					sys.LogSweeper(sys.MsgSweeperPass, expired)
				}
			case <-sweepCtx.Done():
				ticketSweeperRunning = false
				sys.LogSweeper(sys.MsgSweeperStopped)
				return
			}
		}
	}

	return true, run, cancel
}
