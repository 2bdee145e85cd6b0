package scrape

import "time"

func (s *Scraper) SetClock(now func() time.Time) { s.now = now }

func (s *Scraper) SetMaxBytes(n int64) { s.maxBytes = n }
