package metrics

import "os"

// hostname returns the name of this machine, for grouping pushed metrics.
func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
