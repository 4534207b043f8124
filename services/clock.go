package services

import "time"

// Clock supplies the current time. Services take it as a constructor argument
// so tests can pin "now" instead of depending on the wall clock; production
// code passes time.Now.
type Clock func() time.Time
