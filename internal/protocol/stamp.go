package protocol

import "time"

const stampLayout = "January 2, 2006 at 3:04:05 PM"

// Stamper formats event timestamps in the console's configured timezone.
type Stamper struct {
	location *time.Location
	now      func() time.Time
}

func NewStamper(location *time.Location) Stamper {
	return NewStamperWithClock(location, time.Now)
}

func NewStamperWithClock(location *time.Location, now func() time.Time) Stamper {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Stamper{location: location, now: now}
}

func (s Stamper) Now() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s Stamper) Stamp() string {
	location := s.location
	if location == nil {
		location = time.UTC
	}
	return s.Now().In(location).Format(stampLayout)
}
