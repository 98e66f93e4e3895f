package mutation

import (
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/profilesync/internal/model"
)

// reservedProperties is the fixed deny-list. The dispatcher owns these keys.
var reservedProperties = map[string]bool{
	model.PropDistinctID: true,
	model.PropToken:      true,
}

// IsReserved reports whether name is a protected property. Names are NFC
// normalized first, since the wire encoding normalizes them too.
func IsReserved(name string) bool {
	return reservedProperties[norm.NFC.String(name)]
}

// Filter returns a copy of props without reserved keys.
func Filter(props model.Object) model.Object {
	out := make(model.Object, len(props))
	for k, v := range props {
		if IsReserved(k) {
			continue
		}
		out[k] = v
	}
	return out
}
