package conversation

import "conversation-service/internal/models"

// RecalledPlaceholder replaces the body of a message recalled for everyone.
const RecalledPlaceholder = "This message has been recalled"

// Project decides what a viewer sees of m. Messages the viewer tombstoned
// never get here: every viewer read in the store excludes them, so the only
// remaining decision is the global recall.
func Project(m models.Message) models.MessageView {
	view := models.MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
		Body:           m.Body,
		Visibility:     models.VisibilityVisible,
	}
	if m.RecalledForAll() {
		view.Body = RecalledPlaceholder
		view.Visibility = models.VisibilityRecalled
	}
	return view
}

func projectAll(msgs []models.Message) []models.MessageView {
	views := make([]models.MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = Project(m)
	}
	return views
}
