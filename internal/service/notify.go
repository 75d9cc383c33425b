package service

// Notifier sends toast-style notifications to every connected websocket
// client. *ws.Hub satisfies it.
type Notifier interface {
	BroadcastJSON(payload interface{})
}

// Actor is the authenticated member performing an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
}

func (a Actor) payload() map[string]interface{} {
	return map[string]interface{}{
		"id":    a.ID,
		"name":  a.Name,
		"email": a.Email,
	}
}
