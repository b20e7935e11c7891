package samples

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type SelfTestResult struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Hostname   string `json:"hostname"`
	TestResult int    `json:"test_result"`
}

// SelfTest prints basic runtime facts and a small computation. It needs nothing but the binary.
func SelfTest(w io.Writer, now time.Time) (*SelfTestResult, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}

	banner(w, "Test Script Running", 50)
	fmt.Fprintf(w, "Timestamp: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(w, "Hostname: %s\n", hostname)
	fmt.Fprintf(w, "Go: %s\n", runtime.Version())

	fmt.Fprintln(w, "\nEnvironment Variables (sample):")
	for _, key := range []string{"HOME", "USER", "PATH", "TZ"} {
		value, ok := os.LookupEnv(key)
		if !ok {
			value = "not set"
		}
		fmt.Fprintf(w, "  %s: %s\n", key, value)
	}

	sum := 0
	for i := 1; i <= 100; i++ {
		sum += i
	}
	fmt.Fprintln(w, "\nSimple test computation:")
	fmt.Fprintf(w, "  Sum of 1-100: %d\n", sum)

	res := &SelfTestResult{
		Status:     "success",
		Timestamp:  now.Format(time.RFC3339),
		Hostname:   hostname,
		TestResult: sum,
	}
	raw, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w, "\nJSON Output:")
	fmt.Fprintln(w, string(raw))

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 50))
	success.Fprintln(w, "Script completed successfully!")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	return res, nil
}
