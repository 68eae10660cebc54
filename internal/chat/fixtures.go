package chat

import "time"

// fixture is a seed message expressed relative to the seeding time.
type fixture struct {
	ago       time.Duration
	author    Author
	body      string
	reactions []Reaction
	replies   int
}

var (
	sarah = Author{Name: "Sarah Chen", AvatarLabel: "SC", ColorTag: "#e74c3c"}
	mike  = Author{Name: "Mike Johnson", AvatarLabel: "MJ", ColorTag: "#3498db"}
	emma  = Author{Name: "Emma Davis", AvatarLabel: "ED", ColorTag: "#9b59b6"}
	alex  = Author{Name: "Alex Liu", AvatarLabel: "AL", ColorTag: "#e67e22"}

	jennifer = Author{Name: "Jennifer Rodriguez", AvatarLabel: "JR", ColorTag: "#27ae60"}
	brian    = Author{Name: "Brian Wong", AvatarLabel: "BW", ColorTag: "#f39c12"}
	maria    = Author{Name: "Maria Williams", AvatarLabel: "MW", ColorTag: "#8e44ad"}
	david    = Author{Name: "David Smith", AvatarLabel: "DS", ColorTag: "#e74c3c"}
)

var defaultFixtures = []struct {
	channel  string
	messages []fixture
}{
	{"general", []fixture{
		{ago: 3 * time.Hour, author: sarah, body: "Good morning team! Ready for the product demo today? 🚀",
			reactions: []Reaction{{"👍", 3}, {"🔥", 1}}},
		{ago: 178 * time.Minute, author: mike, body: "Absolutely! I've been working on the final touches for the UI. Everything should be ready by 2 PM.",
			replies: 2},
		{ago: 172 * time.Minute, author: emma, body: "The marketing materials are all set too. Great work everyone! 📊",
			reactions: []Reaction{{"💯", 2}}},
		{ago: 128 * time.Minute, author: alex, body: "Quick question - should we include the performance metrics in today's demo, or save those for next week?"},
	}},
	{"random", []fixture{
		{ago: 20 * time.Hour, author: mike, body: "Anyone else excited about the new coffee machine? ☕",
			reactions: []Reaction{{"☕", 5}, {"😍", 2}}},
	}},
	{"development", []fixture{
		{ago: 4 * time.Hour, author: alex, body: "The new deployment pipeline is working great! Build time reduced by 40%.",
			reactions: []Reaction{{"🚀", 4}, {"👏", 2}}},
	}},
	{"design", []fixture{
		{ago: 90 * time.Minute, author: emma, body: "Updated the design system with new color palette. Thoughts?",
			reactions: []Reaction{{"🎨", 3}, {"👍", 1}}},
	}},
	{"accounting-internal", []fixture{
		{ago: 218 * time.Minute, author: jennifer, body: "Can someone send the updated Q2 personnel report by EOD?",
			reactions: []Reaction{{"✅", 1}}},
		{ago: 191 * time.Minute, author: brian, body: "The vendor payment for TechCorp went through this morning. Invoice #A-2024-1156 is now closed."},
		{ago: 145 * time.Minute, author: maria, body: "Reminder: Tax filing deadline is next Friday. All department heads need to submit their final numbers by Wednesday."},
		{ago: 121 * time.Minute, author: david, body: "Can someone double-check the reconciliation for the Morgan account? The numbers seem off by $2,400.",
			reactions: []Reaction{{"👀", 1}}},
	}},
}

// SeedDefaults loads the demo channels into store, timestamped relative to now.
// It returns the number of messages added.
func SeedDefaults(store *Store, now time.Time) int {
	total := 0
	for _, ch := range defaultFixtures {
		msgs := make([]Message, 0, len(ch.messages))
		for _, f := range ch.messages {
			msg := Message{
				Author:    f.author,
				Body:      f.body,
				CreatedAt: now.Add(-f.ago),
				Reactions: f.reactions,
			}
			if f.replies > 0 {
				msg.Thread = &ThreadMarker{Replies: f.replies}
			}
			msgs = append(msgs, msg)
		}
		total += len(store.Seed(ch.channel, msgs))
	}
	return total
}
