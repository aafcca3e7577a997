package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	testRegistry := prometheus.NewRegistry()
	registry := NewRegistry(testRegistry)

	registry.ChunkProduced("access_log", 131072)
	registry.ChunkProduced("access_log", 4096)
	registry.LineEmitted("access_log")

	fmt.Println(testutil.ToFloat64(registry.ChunksProduced.WithLabelValues("access_log")))
	fmt.Println(testutil.ToFloat64(registry.BytesDecompressed.WithLabelValues("access_log")))

	// Output:
	// 2
	// 135168
}

// Example_disabled shows that a disabled configuration yields a nil registry
// whose methods record nothing.
func Example_disabled() {
	registry := NewRegistryWithConfig(Config{Enabled: false})

	registry.ChunkProduced("ignored", 10)
	registry.WriterFlushed("ignored", 10)

	fmt.Println(registry == nil)

	// Output:
	// true
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	// Default configuration
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)
	fmt.Printf("Default namespace: %s\n", defaultConfig.Namespace)

	// Custom configuration
	customConfig := Config{
		Enabled:   false,
		Namespace: "myapp",
	}
	fmt.Printf("Custom enabled: %v\n", customConfig.Enabled)
	fmt.Printf("Custom namespace: %s\n", customConfig.Namespace)

	// Output:
	// Default enabled: true
	// Default namespace: fgzip
	// Custom enabled: false
	// Custom namespace: myapp
}
