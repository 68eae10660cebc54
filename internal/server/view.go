package server

import (
	"fmt"
	"time"

	"github.com/Tyrowin/teamchat/internal/chat"
)

// newMessageView projects msg for display relative to now. The display
// timestamp uses now's location.
func newMessageView(msg chat.Message, now time.Time) MessageView {
	view := MessageView{
		ID:        msg.ID,
		Channel:   msg.Channel,
		Username:  msg.Author.Name,
		Avatar:    msg.Author.AvatarLabel,
		Color:     msg.Author.ColorTag,
		Timestamp: displayTimestamp(msg.CreatedAt, now),
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		Text:      msg.Body,
	}
	for _, r := range msg.Reactions {
		view.Reactions = append(view.Reactions, fmt.Sprintf("%s %d", r.Emoji, r.Count))
	}
	if msg.Thread != nil && msg.Thread.Replies > 0 {
		view.Thread = threadLabel(msg.Thread.Replies)
	}
	return view
}

func newMessageViews(msgs []chat.Message, now time.Time) []MessageView {
	views := make([]MessageView, len(msgs))
	for i, msg := range msgs {
		views[i] = newMessageView(msg, now)
	}
	return views
}

func newChannelViews(summaries []chat.ChannelSummary) []ChannelView {
	views := make([]ChannelView, len(summaries))
	for i, s := range summaries {
		views[i] = ChannelView{Name: s.Name, MessageCount: s.MessageCount}
		if !s.LastActivity.IsZero() {
			views[i].LastActivity = s.LastActivity.UTC().Format(time.RFC3339Nano)
		}
	}
	return views
}

// displayTimestamp renders t the way the chat UI shows it: "Today at 9:23 AM",
// "Yesterday at 4:32 PM", "Mar 3 at 10:15 AM" or "Mar 3, 2023 at 10:15 AM".
func displayTimestamp(t, now time.Time) string {
	t = t.In(now.Location())
	clock := t.Format("3:04 PM")

	switch {
	case sameDay(t, now):
		return "Today at " + clock
	case sameDay(t, now.AddDate(0, 0, -1)):
		return "Yesterday at " + clock
	case t.Year() == now.Year():
		return t.Format("Jan 2") + " at " + clock
	default:
		return t.Format("Jan 2, 2006") + " at " + clock
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func threadLabel(replies int) string {
	if replies == 1 {
		return "1 reply"
	}
	return fmt.Sprintf("%d replies", replies)
}
