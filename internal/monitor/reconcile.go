package monitor

import "context"

// reconcile fetches the authoritative door state in the background. A fetch
// that fails leaves the record untouched; one that completes after its
// connection was superseded or stopped is discarded by the generation guard.
func (s *supervisor) reconcile(ctx context.Context, gen uint64) {
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()

		state, err := s.m.cloud.FetchDoorState(ctx, string(s.id))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.m.metrics.Reconciled(s.id, "error")
			s.log.Error().Err(err).Msg("error checking door state")
			return
		}
		s.m.applyDoorState(s, gen, state)
	}()
}
