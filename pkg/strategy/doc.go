// Package strategy widens a harvest with query variations when the base
// search falls short.
//
// A variation is the base query plus one qualifier from a fixed vocabulary
// ("singer", "red carpet", "portrait", ...). Queries written in a script
// listed in ScriptQualifiers (Hebrew, Arabic, Cyrillic, Greek, Hangul, Han)
// get that language's qualifiers first. Whether to generate variations at all depends on
// the shortfall and the tier threshold of the requested target.
package strategy
