package samples

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/snadboy/homelab-scripts/internal/httpclient"
)

const JokeURL = "https://official-joke-api.appspot.com/random_joke"

type Joke struct {
	Setup     string
	Punchline string
	// Raw is the response body, pretty-printed.
	Raw string
}

// FetchJoke gets a random joke. Missing fields read "N/A".
func FetchJoke(ctx context.Context, client *req.Client, url string) (*Joke, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err := httpclient.Check(resp, err, "fetch joke"); err != nil {
		return nil, err
	}

	body := resp.Bytes()
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("fetch joke: invalid JSON: %w", err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return nil, err
	}
	return &Joke{
		Setup:     stringField(fields, "setup"),
		Punchline: stringField(fields, "punchline"),
		Raw:       pretty.String(),
	}, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return "N/A"
}

func PrintJoke(w io.Writer, j *Joke, now time.Time) {
	banner(w, "Random Joke Fetcher", 50)
	fmt.Fprintf(w, "Timestamp: %s\n\n", now.Format(time.RFC3339))
	fmt.Fprintln(w, "Here's a joke for you:")
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintf(w, "Setup: %s\n", j.Setup)
	fmt.Fprintf(w, "Punchline: %s\n", j.Punchline)
	fmt.Fprintln(w, strings.Repeat("-", 30))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Raw JSON response:")
	fmt.Fprintln(w, j.Raw)
}
