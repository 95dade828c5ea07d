package events

import "time"

type createEventRequest struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"required,min=1,max=5000"`
	Category    string    `json:"category" validate:"required,min=1,max=100"`
	Date        time.Time `json:"date" validate:"required"`
	MeetingLink string    `json:"meetingLink" validate:"required,url,max=2000"`
	CoverImage  string    `json:"coverImage" validate:"omitempty,max=2000"`
	Capacity    int       `json:"capacity" validate:"omitempty,min=0"`
}

type updateEventRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,min=1,max=5000"`
	Category    *string    `json:"category" validate:"omitempty,min=1,max=100"`
	Date        *time.Time `json:"date"`
	MeetingLink *string    `json:"meetingLink" validate:"omitempty,url,max=2000"`
	CoverImage  *string    `json:"coverImage" validate:"omitempty,max=2000"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=0"`
}

type rsvpRequest struct {
	Status string `json:"status" validate:"required,oneof=attending maybe declined"`
}

type attendanceRequest struct {
	Action string `json:"action" validate:"required,oneof=join leave"`
}

type eventResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	MeetingLink string    `json:"meetingLink"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Capacity    int       `json:"capacity,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

type rsvpEventResponse struct {
	eventResponse
	RSVPStatus string `json:"rsvpStatus"`
}

type rsvpEventsResponse struct {
	Events []rsvpEventResponse `json:"events"`
}

type attendanceRecordResponse struct {
	EventID  string     `json:"eventId"`
	UserID   string     `json:"userId"`
	UserName string     `json:"userName"`
	JoinedAt time.Time  `json:"joinTime"`
	LeftAt   *time.Time `json:"leaveTime,omitempty"`
	Status   string     `json:"status"`
}

type attendanceResponse struct {
	Records []attendanceRecordResponse `json:"records"`
}

type adminEventResponse struct {
	eventResponse
	AttendingCount int `json:"attendingCount"`
}

type adminEventsResponse struct {
	Events []adminEventResponse `json:"events"`
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Date:        e.Date,
		MeetingLink: e.MeetingLink,
		CoverImage:  e.CoverImage,
		Capacity:    e.Capacity,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func toAttendanceRecordResponse(r AttendanceRecord) attendanceRecordResponse {
	return attendanceRecordResponse{
		EventID:  r.EventID,
		UserID:   r.UserID,
		UserName: r.UserName,
		JoinedAt: r.JoinedAt,
		LeftAt:   r.LeftAt,
		Status:   r.Status,
	}
}
