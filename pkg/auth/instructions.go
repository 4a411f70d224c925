package auth

import (
	"fmt"
	"io"
	"strings"
)

type keyGuide struct {
	title string
	url   string
	steps []string
}

var guides = map[Service]keyGuide{
	ServiceAirtable: {
		title: "AIRTABLE PERSONAL ACCESS TOKEN",
		url:   "https://airtable.com/create/tokens",
		steps: []string{
			"Create a token with the data.records:read and data.records:write scopes",
			"Add schema.bases:write if you want 'enricher fields' to create the AI_* columns",
			"Grant it access to the base that holds the roster table",
		},
	},
	ServiceApify: {
		title: "APIFY API TOKEN",
		url:   "https://console.apify.com/settings/integrations",
		steps: []string{
			"Copy the personal API token shown under 'API tokens'",
			"The token is billed for every actor run the scrape stage starts",
		},
	},
	ServiceAnthropic: {
		title: "ANTHROPIC API KEY",
		url:   "https://console.anthropic.com/settings/keys",
		steps: []string{
			"Create a key for the workspace that should pay for trait extraction",
			"Keys start with sk-ant-",
		},
	},
}

// WriteKeyGuide prints where to obtain the key for s.
func WriteKeyGuide(w io.Writer, s Service) {
	g, ok := guides[s]
	if !ok {
		return
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "🔑 %s\n", g.title)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "   Open %s\n", g.url)
	for i, step := range g.steps {
		fmt.Fprintf(w, "   %d. %s\n", i+1, step)
	}
	fmt.Fprintf(w, "   Or export %s instead of storing it.\n\n", s.EnvVar())
}
