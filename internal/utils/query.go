package utils

import "strings"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a LIKE pattern matching s anywhere, with the
// wildcards in s taken literally. Use it with `ESCAPE '\'`.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
