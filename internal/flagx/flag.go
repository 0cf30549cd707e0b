// Package flagx helps several flag consumers share one os.Args: each
// component filters the arguments down to the flags it owns before parsing,
// so the server config loader and the authadmin subcommands never trip over
// each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the flags named in allowed (plus their values) from
// args. Both the "-f value" and "-f=value" / "--flag=value" spellings
// survive. A kept flag followed by another flag is kept alone, which is how
// boolean flags pass through. The result is never nil.
func FilterArgs(args []string, allowed []string) []string {
	keep := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		keep[name] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, found := strings.Cut(arg, "="); found {
			if _, want := keep[name]; want {
				out = append(out, arg)
			}
			continue
		}

		if _, want := keep[arg]; want {
			out = append(out, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, args[i+1])
				i++
			}
		}
	}

	return out
}

// JsonConfigFlags extracts the JSON config file path given via -config or
// -c, ignoring every other argument so it can run before any component has
// registered its own flags. Returns "" when neither is set.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "path to the JSON config file")
	fs.StringVar(&config, "c", "", "path to the JSON config file (short)")
	_ = fs.Parse(args)

	return config
}
