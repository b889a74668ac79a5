package narration

import "strings"

// UserPlaceholder is replaced by the relevant username in every phrase.
const UserPlaceholder = "{user}"

// Phrases holds the template pools the composer draws from.
type Phrases struct {
	FirstTime   []string `mapstructure:"first_time" yaml:"first_time"`
	Returning   []string `mapstructure:"returning" yaml:"returning"`
	Reply       []string `mapstructure:"reply" yaml:"reply"`
	LinkFirst   []string `mapstructure:"link_first" yaml:"link_first"`
	LinkSecond  []string `mapstructure:"link_second" yaml:"link_second"`
	QuoteIntro  []string `mapstructure:"quote_intro" yaml:"quote_intro"`
	QuoteEnding []string `mapstructure:"quote_ending" yaml:"quote_ending"`
}

// DefaultPhrases returns the built-in pools.
func DefaultPhrases() Phrases {
	return Phrases{
		FirstTime: []string{
			"Hey, {user} here.",
			"Hi, this is {user}.",
			"{user} here.",
		},
		Returning: []string{
			"Hey, it's {user} again.",
			"{user} again.",
			"It's {user} once more.",
		},
		Reply: []string{
			"Replying to {user}.",
			"In response to {user}.",
			"Responding to {user}.",
		},
		LinkFirst: []string{
			"see the link I shared",
			"check the link I posted",
			"there's a link in my comment",
		},
		LinkSecond: []string{
			"and another link I shared",
			"see my second link",
			"there's a second link too",
		},
		QuoteIntro: []string{
			"Quote:",
			"Quoting here:",
			"As was said:",
		},
		QuoteEnding: []string{
			"End quote.",
			"Unquote.",
			"End of quote.",
		},
	}
}

// WithDefaults fills every empty pool from DefaultPhrases.
func (p Phrases) WithDefaults() Phrases {
	d := DefaultPhrases()
	fill := func(pool *[]string, def []string) {
		if len(*pool) == 0 {
			*pool = def
		}
	}
	fill(&p.FirstTime, d.FirstTime)
	fill(&p.Returning, d.Returning)
	fill(&p.Reply, d.Reply)
	fill(&p.LinkFirst, d.LinkFirst)
	fill(&p.LinkSecond, d.LinkSecond)
	fill(&p.QuoteIntro, d.QuoteIntro)
	fill(&p.QuoteEnding, d.QuoteEnding)
	return p
}

func render(template, user string) string {
	if user == "" {
		user = "anonymous"
	}
	return strings.ReplaceAll(template, UserPlaceholder, user)
}
