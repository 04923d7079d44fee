package record

import "strconv"

// Kind classifies a selector token.
type Kind int

const (
	// KindName selects the records with exactly this name.
	KindName Kind = iota
	// KindID selects the record with this numeric id.
	KindID
	// KindReserved is one of the reserved group tokens.
	KindReserved
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindReserved:
		return "special"
	default:
		return "name"
	}
}

// Reserved selector tokens.
const (
	SelectAll            = "all"
	SelectAllWithHidden  = "ALL"
	SelectHiddenOnly     = "hidden_only"
	SelectAutorunOnly    = "autorun_only"
	SelectAutorunEnabled = "autorun_enabled"
)

// Selector addresses one or more records.
type Selector struct {
	Token string `json:"token"`
	Kind  Kind   `json:"-"`
	ID    int    `json:"-"`
}

// ParseSelector classifies token. Reserved tokens match exactly and win over
// everything else; a bare integer is an id; anything else is a name.
func ParseSelector(token string) Selector {
	switch token {
	case SelectAll, SelectAllWithHidden, SelectHiddenOnly, SelectAutorunOnly, SelectAutorunEnabled:
		return Selector{Token: token, Kind: KindReserved}
	}
	if id, err := strconv.Atoi(token); err == nil {
		return Selector{Token: token, Kind: KindID, ID: id}
	}
	return Selector{Token: token, Kind: KindName}
}

// ByID returns a selector for a single id.
func ByID(id int) Selector {
	return Selector{Token: strconv.Itoa(id), Kind: KindID, ID: id}
}

// Matches reports whether r is selected.
func (s Selector) Matches(r Record) bool {
	switch s.Kind {
	case KindID:
		return r.ID == s.ID
	case KindName:
		return r.Name == s.Token
	}

	switch s.Token {
	case SelectAll:
		return !r.Hidden()
	case SelectAllWithHidden:
		return true
	case SelectHiddenOnly:
		return r.Hidden()
	case SelectAutorunOnly:
		return r.Autorun
	case SelectAutorunEnabled:
		return r.Autorun && !r.AutorunExclude
	}
	return false
}

// Filter returns the records selected by s, preserving order.
func (s Selector) Filter(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if s.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s Selector) String() string {
	return s.Kind.String() + "=" + s.Token
}
