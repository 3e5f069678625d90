package capture

import (
	"fmt"
	"time"
)

// DisplayName formats t as yyyy-MM-dd-HH-mm-ss-SSS in t's location. Names
// sort in capture order.
func DisplayName(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}
