// Package flagx contains helpers for parsing a subset of command-line flags
// so several components (config file lookup, server flags, CLI subcommands)
// can share os.Args without tripping over each other's definitions.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns only the allowed flags (and their values) from args.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      -config=conf.json
//
// A separate value is consumed only when the next token does not start
// with '-'. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// Names returns every flag defined on fs in "-name" form, ready to be
// passed to FilterArgs.
func Names(fs *flag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *flag.Flag) {
		names = append(names, "-"+f.Name)
	})
	return names
}

// ConfigPath extracts the JSON config file path given via -c or -config.
// Other arguments are ignored. If neither is present, "" is returned.
func ConfigPath(args []string) string {
	var config string

	filtered := FilterArgs(args, []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(filtered)

	return config
}
