package filtering

import (
	"github.com/spigell/hh-outreach/internal/conversation"
)

// Contacts is the list the filters work on.
type Contacts struct {
	Items []conversation.Contact
}

func NewContacts(items []conversation.Contact) *Contacts {
	return &Contacts{Items: append([]conversation.Contact(nil), items...)}
}

func (c *Contacts) Len() int {
	return len(c.Items)
}

// Exclude removes every contact drop matches and returns their ids. Order of
// the remaining contacts is preserved.
func (c *Contacts) Exclude(drop func(conversation.Contact) bool) []string {
	var excluded []string
	kept := c.Items[:0]
	for _, contact := range c.Items {
		if drop(contact) {
			excluded = append(excluded, contact.ID)
			continue
		}
		kept = append(kept, contact)
	}
	c.Items = kept
	return excluded
}
