package shell

import (
	"regexp"
	"strings"
)

// bareArg matches arguments no shell reinterprets.
var bareArg = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")

// Quote double quotes arg, escaping what stays special inside double
// quotes. wrapped adds the second level needed when the command is passed
// through su or ssh, whose login shell parses it once more.
func Quote(arg string, wrapped bool) string {
	q := `"` + quoteEscaper.Replace(arg) + `"`
	if wrapped {
		q = quoteEscaper.Replace(q)
	}
	return q
}

// QuoteIfNeeded leaves plain words such as user names untouched and quotes
// everything else, including the empty string.
func QuoteIfNeeded(arg string, wrapped bool) string {
	if bareArg.MatchString(arg) {
		return arg
	}
	return Quote(arg, wrapped)
}
