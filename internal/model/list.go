package model

import "time"

// List is a to-do list. It has no name column: its name is the text of its
// first item, see Name.
//
// Owner is nil for lists created by anonymous visitors. SharedWith holds the
// users granted read/append access; it never contains duplicates and it is
// distinct from ownership.
type List struct {
	ID         string    `json:"id"`
	Owner      *User     `json:"owner,omitempty"`
	SharedWith []User    `json:"sharedWith"`
	Items      []Item    `json:"items"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Item is a single to-do entry. Text is unique within its list.
// Seq is the store-assigned creation order; lower means older.
type Item struct {
	ID        string    `json:"id"`
	ListID    string    `json:"listId"`
	Text      string    `json:"text"`
	Seq       int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Name returns the text of the list's earliest item. Items are kept in
// creation order by the repositories, so that is always Items[0].
func (l *List) Name() string {
	if len(l.Items) == 0 {
		return ""
	}
	return l.Items[0].Text
}

// URL is the canonical address of the list page.
func (l *List) URL() string {
	return "/lists/" + l.ID + "/"
}

// OwnerEmail returns the owner's email, or "" for anonymous lists.
func (l *List) OwnerEmail() string {
	if l.Owner == nil {
		return ""
	}
	return l.Owner.Email
}

// IsOwnedBy reports whether userID owns the list.
func (l *List) IsOwnedBy(userID string) bool {
	return l.Owner != nil && userID != "" && l.Owner.ID == userID
}

// IsSharedWith reports whether userID appears in SharedWith.
func (l *List) IsSharedWith(userID string) bool {
	for _, u := range l.SharedWith {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// HasItemText reports whether the list already contains an item with text.
func (l *List) HasItemText(text string) bool {
	for _, it := range l.Items {
		if it.Text == text {
			return true
		}
	}
	return false
}

// ItemTexts returns the texts of all items, in creation order.
func (l *List) ItemTexts() []string {
	texts := make([]string, len(l.Items))
	for i, it := range l.Items {
		texts[i] = it.Text
	}
	return texts
}
