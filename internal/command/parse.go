package command

import "strings"

// Parsed is a tokenized slash command.
type Parsed struct {
	Name string
	Args []string
	// Rest is everything after the command name, whitespace-trimmed but
	// otherwise verbatim.
	Rest string
}

// Parse tokenizes a line if it is a slash command. The boolean reports
// whether the line started with "/" at all.
func Parse(input string) (Parsed, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Parsed{}, false
	}
	body := strings.TrimSpace(trimmed[1:])
	if body == "" {
		return Parsed{}, true
	}
	name, rest, _ := strings.Cut(body, " ")
	rest = strings.TrimSpace(rest)
	parsed := Parsed{
		Name: strings.ToLower(name),
		Rest: rest,
	}
	if rest != "" {
		parsed.Args = strings.Fields(rest)
	}
	return parsed, true
}
