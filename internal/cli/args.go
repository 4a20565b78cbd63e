package cli

import "strings"

// legacyFlags maps the two-letter single-dash spellings the command has
// always accepted to their long names. pflag shorthands are one letter, so
// these are rewritten before parsing.
var legacyFlags = map[string]string{
	"-dd": "--" + keyDataDir,
	"-od": "--" + keyOutputDir,
	"-vp": "--" + keyValPerc,
}

// rewriteLegacyArgs replaces legacy flags, including their -xx=value and
// attached -xxvalue forms. Arguments after "--" are left alone.
func rewriteLegacyArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, a := range args {
		if a == "--" {
			return append(out, args[i:]...)
		}
		out = append(out, rewriteLegacyArg(a))
	}
	return out
}

func rewriteLegacyArg(a string) string {
	name, value, hasValue := strings.Cut(a, "=")
	if long, ok := legacyFlags[name]; ok {
		if hasValue {
			return long + "=" + value
		}
		return long
	}
	for short, long := range legacyFlags {
		if rest, ok := strings.CutPrefix(a, short); ok && rest != "" {
			return long + "=" + rest
		}
	}
	return a
}
