package dialogue

import (
	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Session values come back from JSON-backed stores as generic maps and slices.
// These helpers decode them into their typed form.

func draftOf(sess *domain.Session) (domain.Draft, bool) {
	v, ok := sess.Get(domain.KeyDraft)
	if !ok {
		return domain.Draft{}, false
	}
	if d, ok := v.(domain.Draft); ok {
		return d, true
	}
	var d domain.Draft
	if err := mapstructure.Decode(v, &d); err != nil {
		return domain.Draft{}, false
	}
	return d, true
}

func walletListOf(sess *domain.Session) []string {
	v, ok := sess.Get(domain.KeyWalletList)
	if !ok {
		return nil
	}
	if list, ok := v.([]string); ok {
		return list
	}
	var list []string
	if err := mapstructure.Decode(v, &list); err != nil {
		return nil
	}
	return list
}
