package review

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Comment is one reviewer note on an asset. UnitIndex is the 1-based page
// for paged assets; Timestamp carries the offset label for video comments.
// Both nil means the comment applies to the whole asset.
type Comment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID   string         `gorm:"column:asset_id;not null;index" json:"asset_id"`
	UnitIndex *int           `gorm:"column:unit_index" json:"unit_index"`
	Timestamp *string        `gorm:"column:timestamp;size:16" json:"timestamp"`
	Body      string         `gorm:"column:body;type:text;not null" json:"comment"`
	Author    string         `gorm:"column:author;not null;index" json:"author"`
	Reactions datatypes.JSON `gorm:"column:reactions" json:"reactions"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (Comment) TableName() string { return "review_comment" }

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if len(c.Reactions) == 0 {
		c.Reactions = datatypes.JSON([]byte("{}"))
	}
	return nil
}

// Reactions maps a reaction label to the usernames that toggled it on.
// Each username appears at most once per label; labels with no users are
// dropped.
type Reactions map[string][]string

// DecodeReactions reads the stored column. Legacy rows that stored a bare
// username instead of a list are read as a one-element set.
func DecodeReactions(raw datatypes.JSON) (Reactions, error) {
	out := Reactions{}
	if len(raw) == 0 {
		return out, nil
	}
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, err
	}
	for label, v := range loose {
		var users []string
		if err := json.Unmarshal(v, &users); err != nil {
			var single string
			if err := json.Unmarshal(v, &single); err != nil {
				continue
			}
			if single != "" {
				users = []string{single}
			}
		}
		for _, u := range users {
			out.add(label, u)
		}
	}
	return out, nil
}

func (r Reactions) Encode() (datatypes.JSON, error) {
	if r == nil {
		r = Reactions{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// Toggle flips user's presence under label. Toggling twice restores the
// original state.
func (r Reactions) Toggle(label, user string) {
	if label == "" || user == "" {
		return
	}
	users := r[label]
	for i, u := range users {
		if u == user {
			users = append(users[:i:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, label)
			} else {
				r[label] = users
			}
			return
		}
	}
	r[label] = append(users, user)
}

func (r Reactions) Has(label, user string) bool {
	for _, u := range r[label] {
		if u == user {
			return true
		}
	}
	return false
}

func (r Reactions) add(label, user string) {
	if label == "" || user == "" || r.Has(label, user) {
		return
	}
	r[label] = append(r[label], user)
}

// Labels returns the labels in stable order.
func (r Reactions) Labels() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
