// Package directory maintains the live set of chats visible to a user.
// Two independent live queries (private, group) feed one merged view;
// enrichment runs asynchronously per snapshot and is sequence-stamped
// so a slow pass can never overwrite a newer snapshot's state.
package directory

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amq10717-bit/SkillUp-sub001/internal/apperr"
	"github.com/amq10717-bit/SkillUp-sub001/internal/events"
	"github.com/amq10717-bit/SkillUp-sub001/internal/models"
	"github.com/amq10717-bit/SkillUp-sub001/internal/store"
)

// ProfileResolver is the total lookup the engine enriches private
// chats with; implementations must not fail.
type ProfileResolver interface {
	Resolve(ctx context.Context, id string) models.Profile
}

// CourseGetter supplies group-chat course summaries.
type CourseGetter interface {
	GetCourse(ctx context.Context, id string) (*models.Course, error)
}

type Engine struct {
	chats    store.ChatStore
	resolver ProfileResolver
	courses  CourseGetter
	events   *events.Producer
	log      *zap.SugaredLogger
}

func NewEngine(chats store.ChatStore, resolver ProfileResolver, courses CourseGetter, ev *events.Producer, log *zap.SugaredLogger) *Engine {
	return &Engine{chats: chats, resolver: resolver, courses: courses, events: ev, log: log}
}

// enrich resolves display data for one snapshot. Lookup failures
// degrade per-chat (fallback profile, missing course), never failing
// the snapshot as a whole.
func (e *Engine) enrich(ctx context.Context, userID string, chats []models.Chat) []ChatView {
	out := make([]ChatView, 0, len(chats))
	for _, c := range chats {
		v := ChatView{Chat: c}
		switch c.Kind {
		case models.ChatPrivate:
			p := e.resolver.Resolve(ctx, c.Counterpart(userID))
			v.Counterpart = &p
		case models.ChatGroup:
			if c.CourseID != "" {
				course, err := e.courses.GetCourse(ctx, c.CourseID)
				if err != nil {
					e.log.Debugw("course lookup failed", "course_id", c.CourseID, "err", err)
				} else {
					v.Course = course
				}
			}
		}
		out = append(out, v)
	}
	return out
}

// CreateOrFindPrivateChat returns the existing private chat between
// the two users, creating it when none exists yet.
func (e *Engine) CreateOrFindPrivateChat(ctx context.Context, userID, otherID string) (*ChatView, error) {
	if otherID == "" || otherID == userID {
		return nil, apperr.New(apperr.KindValidation, "invalid chat counterpart")
	}
	existing, err := e.chats.ListChats(ctx, models.ChatPrivate, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "list private chats", err)
	}
	for _, c := range existing {
		if c.HasParticipant(otherID) {
			view := e.enrich(ctx, userID, []models.Chat{c})
			return &view[0], nil
		}
	}

	now := time.Now().UTC()
	chat := &models.Chat{
		Kind:            models.ChatPrivate,
		Participants:    []string{userID, otherID},
		LastMessage:     "",
		LastMessageTime: now,
		CreatedAt:       now,
	}
	if err := chat.Validate(userID); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "new private chat", err)
	}
	if _, err := e.chats.CreateChat(ctx, chat); err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "create private chat", err)
	}
	e.events.ChatCreated(ctx, chat)
	view := e.enrich(ctx, userID, []models.Chat{*chat})
	return &view[0], nil
}

// CreateGroupChat creates a group chat owned by the given profile.
// Only tutors and admins may create groups.
func (e *Engine) CreateGroupChat(ctx context.Context, owner models.Profile, name, description, courseID string, members []string) (*ChatView, error) {
	if !owner.CanCreateGroups() {
		return nil, apperr.New(apperr.KindPermission, "only tutors can create group chats")
	}
	if strings.TrimSpace(name) == "" || len(members) == 0 {
		return nil, apperr.New(apperr.KindValidation, "group needs a name and at least one participant")
	}
	if description == "" {
		description = e.defaultDescription(ctx, courseID)
	}

	now := time.Now().UTC()
	chat := &models.Chat{
		Kind:            models.ChatGroup,
		Participants:    append([]string{owner.ID}, members...),
		Name:            name,
		Description:     description,
		CreatedBy:       owner.ID,
		CourseID:        courseID,
		LastMessage:     "",
		LastMessageTime: now,
		CreatedAt:       now,
	}
	if err := chat.Validate(owner.ID); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "new group chat", err)
	}
	if _, err := e.chats.CreateChat(ctx, chat); err != nil {
		return nil, apperr.Wrap(apperr.KindNetwork, "create group chat", err)
	}
	e.events.ChatCreated(ctx, chat)
	view := e.enrich(ctx, owner.ID, []models.Chat{*chat})
	return &view[0], nil
}

func (e *Engine) defaultDescription(ctx context.Context, courseID string) string {
	if courseID == "" {
		return "General Discussion"
	}
	title := "Course"
	if course, err := e.courses.GetCourse(ctx, courseID); err == nil {
		title = course.Title
	}
	return "Group for " + title
}
