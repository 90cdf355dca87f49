package checkpointer

import (
	"fmt"
	"time"
)

// FileTimer returns a naming function that suffixes filename with the
// Unix time in nanoseconds at the moment of the call, so successive
// checkpoints land in distinct files without a shared counter.
func FileTimer(filename, extension string) func() string {
	return func() string {
		return fmt.Sprintf("%v-%d%v", filename, time.Now().UnixNano(),
			extension)
	}
}
