package directory

import (
	"sort"
	"strings"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

type Tab string

const (
	TabPrivate  Tab = "private"
	TabGroup    Tab = "group"
	TabArchived Tab = "archived"
)

// ChatView is a chat enriched for display: the counterpart profile for
// private chats, the course summary for group chats. Derived fields are
// never persisted.
type ChatView struct {
	models.Chat
	Counterpart *models.Profile `json:"counterpart,omitempty"`
	Course      *models.Course  `json:"course,omitempty"`
}

func (v ChatView) DisplayName() string {
	if v.Kind == models.ChatPrivate {
		if v.Counterpart != nil {
			return v.Counterpart.DisplayName
		}
		return "User"
	}
	if v.Name != "" {
		return v.Name
	}
	return "Group Chat"
}

// View is one materialized directory state: active private chats,
// active group chats, and archived chats from both partitions.
type View struct {
	Private  []ChatView `json:"private"`
	Group    []ChatView `json:"group"`
	Archived []ChatView `json:"archived"`
}

// Filter applies the tab selector and the case-insensitive search term
// over display name and last-message text. Pure; never blocks updates.
func (v View) Filter(tab Tab, search string) []ChatView {
	var chats []ChatView
	switch tab {
	case TabGroup:
		chats = v.Group
	case TabArchived:
		chats = v.Archived
	default:
		chats = v.Private
	}
	if search == "" {
		return chats
	}
	term := strings.ToLower(search)
	out := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.DisplayName()), term) ||
			strings.Contains(strings.ToLower(c.LastMessage), term) {
			out = append(out, c)
		}
	}
	return out
}

// SortPinnedFirst orders a materialized list pinned-first, most
// recently updated within each half. Pure function of the input list.
func SortPinnedFirst(chats []ChatView) []ChatView {
	out := make([]ChatView, len(chats))
	copy(out, chats)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

func split(views []ChatView) (active, archived []ChatView) {
	for _, v := range views {
		if v.IsArchived {
			archived = append(archived, v)
		} else {
			active = append(active, v)
		}
	}
	return active, archived
}
