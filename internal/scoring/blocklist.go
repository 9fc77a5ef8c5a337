package scoring

import "strings"

// FamousFiguresBlocklist lists historical and public figures that
// bibliographic databases index because works are written *about* them,
// not by them. Kept as a tunable policy table; the substring matching is
// deliberately loose and may catch unrelated living researchers, which is
// an accepted trade-off pending product guidance.
var FamousFiguresBlocklist = []string{
	"hitler",
	"benjamin netanyahu",
	"napoleon",
	"alexander the great",
	"julius caesar",
	"socrates",
	"plato",
	"aristotle",
	"jesus",
	"muhammad",
	"gandhi",
	"churchill",
	"stalin",
	"lenin",
	"mao",
	"confucius",
	"buddha",
	"newton",
	"einstein",
	"darwin",
	"freud",
}

// IsFamousFigure reports whether a display name fuzzy-matches the
// blocklist: case-insensitive substring containment in either direction,
// with the entry also checked against the name's first token.
func IsFamousFigure(name string) bool {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	if nameLower == "" {
		return false
	}
	firstToken := strings.Split(nameLower, " ")[0]
	for _, famous := range FamousFiguresBlocklist {
		if strings.Contains(nameLower, famous) || strings.Contains(famous, firstToken) {
			return true
		}
	}
	return false
}
