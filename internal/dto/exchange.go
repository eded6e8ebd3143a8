package dto

// CreateExchangeRequest proposes swapping two assigned duty slots.
type CreateExchangeRequest struct {
	SenderScheduleID    string `json:"senderScheduleId" validate:"required"`
	RecipientScheduleID string `json:"recipientScheduleId" validate:"required"`
	Reason              string `json:"reason" validate:"required,max=500"`
}

// ExchangeSlot describes one side of a proposed swap.
type ExchangeSlot struct {
	ScheduleID  string `json:"scheduleId"`
	TeacherID   string `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	Day         string `json:"day"`
	Period      string `json:"period"`
	Type        string `json:"type"`
}

// ExchangeListItem is one exchange visible to the caller.
type ExchangeListItem struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Reason    string       `json:"reason"`
	Sender    ExchangeSlot `json:"sender"`
	Recipient ExchangeSlot `json:"recipient"`
	CreatedAt string       `json:"createdAt"`
}
