package chatview

import "time"

// timeNow is swapped in tests to pin presence and placeholder timestamps.
var timeNow = time.Now
