package rpc

import "time"

// SetClock replaces the time source used for call expiry.
func SetClock(p *Pending, now func() time.Time) { p.now = now }
