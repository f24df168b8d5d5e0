package orchestrator

import (
    "context"
    "time"

    "github.com/rs/zerolog/log"
)

// monitorJob watches a single job until it reaches a terminal state. If the
// job timeout passes first the job is cancelled so a stuck worker cannot
// leave it in "processing" forever.
func (o *Orchestrator) monitorJob(jobID string) {
    ticker := time.NewTicker(2 * time.Second)
    defer ticker.Stop()
    deadline := time.NewTimer(o.deps.JobTimeout)
    defer deadline.Stop()

    log.Debug().Str("job_id", jobID).Dur("timeout", o.deps.JobTimeout).Msg("started job monitor")

    for {
        select {
        case <-deadline.C:
            log.Warn().Str("job_id", jobID).Dur("timeout", o.deps.JobTimeout).Msg("job timeout reached - cancelling")

            ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            _ = o.deps.Queue.CancelJob(ctx, jobID)
            st, ok, _ := o.deps.Status.Get(ctx, jobID)
            if ok && !isTerminal(st.Status) {
                now := time.Now()
                st.Status = "failed"
                st.Message = "timed out"
                st.End = &now
                _ = o.deps.Status.Set(ctx, jobID, st)
            }
            cancel()
            return

        case <-ticker.C:
            ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
            if cancelled, _ := o.deps.Queue.IsCancelled(ctx, jobID); cancelled {
                cancel()
                log.Info().Str("job_id", jobID).Msg("job cancelled - stopping monitor")
                return
            }
            st, ok, err := o.deps.Status.Get(ctx, jobID)
            cancel()
            if err != nil || !ok {
                continue
            }
            if isTerminal(st.Status) {
                log.Debug().Str("job_id", jobID).Str("status", st.Status).Msg("job reached terminal state - stopping monitor")
                return
            }
        }
    }
}

func isTerminal(status string) bool {
    switch status {
    case "success", "failed", "cancelled":
        return true
    }
    return false
}
