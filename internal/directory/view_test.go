package directory

import (
	"testing"
	"time"

	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
)

func pv(id, counterpart, last string) ChatView {
	return ChatView{
		Chat: models.Chat{ID: id, Kind: models.ChatPrivate, LastMessage: last},
		Counterpart: &models.Profile{
			ID: counterpart, DisplayName: counterpart,
		},
	}
}

func TestFilterBySearch(t *testing.T) {
	v := View{
		Private: []ChatView{
			pv("1", "Alice", "see you tomorrow"),
			pv("2", "Bob", "ok"),
		},
	}
	got := v.Filter(TabPrivate, "ali")
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("Filter(ali) = %+v, want chat 1", got)
	}
	got = v.Filter(TabPrivate, "TOMORROW")
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("search should match last message case-insensitively, got %+v", got)
	}
	got = v.Filter(TabPrivate, "zzz")
	if len(got) != 0 {
		t.Fatalf("Filter(zzz) = %+v, want empty", got)
	}
}

func TestFilterTabs(t *testing.T) {
	v := View{
		Private:  []ChatView{pv("1", "Alice", "")},
		Group:    []ChatView{{Chat: models.Chat{ID: "2", Kind: models.ChatGroup, Name: "Go 101"}}},
		Archived: []ChatView{pv("3", "Carol", "")},
	}
	if got := v.Filter(TabGroup, ""); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("TabGroup = %+v", got)
	}
	if got := v.Filter(TabArchived, ""); len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("TabArchived = %+v", got)
	}
}

func TestSortPinnedFirst(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	newer := time.Now()
	chats := []ChatView{
		{Chat: models.Chat{ID: "a", UpdatedAt: newer}},
		{Chat: models.Chat{ID: "b", UpdatedAt: old, IsPinned: true}},
		{Chat: models.Chat{ID: "c", UpdatedAt: old}},
	}
	got := SortPinnedFirst(chats)
	if got[0].ID != "b" {
		t.Fatalf("pinned chat not first: %+v", got)
	}
	if got[1].ID != "a" || got[2].ID != "c" {
		t.Fatalf("unpinned order wrong: %v %v", got[1].ID, got[2].ID)
	}
}

func TestDisplayName(t *testing.T) {
	v := pv("1", "Alice", "")
	if v.DisplayName() != "Alice" {
		t.Fatalf("DisplayName = %q", v.DisplayName())
	}
	g := ChatView{Chat: models.Chat{Kind: models.ChatGroup, Name: "Go 101"}}
	if g.DisplayName() != "Go 101" {
		t.Fatalf("group DisplayName = %q", g.DisplayName())
	}
}
