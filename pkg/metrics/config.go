package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config selects where a Registry registers its collectors and how they are
// named.
type Config struct {
	// Enabled false makes NewRegistryWithConfig return nil, which readers and
	// writers treat as "no metrics".
	Enabled bool

	// Registry receives every collector. fgzcat leaves it nil, which means
	// prometheus.DefaultRegisterer, the registerer promhttp.Handler serves.
	// Tests pass a fresh prometheus.NewRegistry so runs do not collide.
	Registry prometheus.Registerer

	// Namespace prefixes every metric name, as in fgzip_reader_lines_total.
	// Empty means "fgzip".
	Namespace string

	// Labels are constant labels added to every series, for example the host
	// or the dataset a process is reading. Reader and writer names are
	// already variable labels and must not be repeated here.
	Labels prometheus.Labels
}

// DefaultConfig enables metrics under the "fgzip" namespace on the default
// registerer, without constant labels.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Namespace: "fgzip",
	}
}
