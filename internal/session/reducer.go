package session

// Op is a single reducer operation. Every state change goes through Reduce
// with one of the types below.
type Op interface {
	op()
}

type AddAppointment struct{ Appointment Appointment }

type UpdateAppointment struct {
	ID    string
	Patch AppointmentPatch
}

type RemoveAppointment struct{ ID string }

// SetSummary stores the end-of-call summary. A non-nil User becomes the
// identified user in the same commit.
type SetSummary struct {
	Summary *ConversationSummary
	User    *UserProfile
}

type AddToolCall struct{ ToolCall ToolCall }

type UpdateToolCall struct {
	ID    string
	Patch ToolCallPatch
}

type SetIdentifiedUser struct{ User *UserProfile }

type Reset struct{}

func (AddAppointment) op()    {}
func (UpdateAppointment) op() {}
func (RemoveAppointment) op() {}
func (SetSummary) op()        {}
func (AddToolCall) op()       {}
func (UpdateToolCall) op()    {}
func (SetIdentifiedUser) op() {}
func (Reset) op()             {}

// AppointmentPatch lists the fields to overwrite; nil fields are left alone.
type AppointmentPatch struct {
	UserName        *string
	ContactNumber   *string
	AppointmentDate *string
	AppointmentTime *string
	Status          *AppointmentStatus
	Notes           *string
	Display         *string
}

// ToolCallPatch lists the fields to overwrite; nil fields are left alone.
type ToolCallPatch struct {
	Name   *string
	Status *ToolCallStatus
	Result *string
	Error  *string
}

func (p AppointmentPatch) apply(a Appointment) Appointment {
	if p.UserName != nil {
		a.UserName = *p.UserName
	}
	if p.ContactNumber != nil {
		a.ContactNumber = clonePtr(p.ContactNumber)
	}
	if p.AppointmentDate != nil {
		a.AppointmentDate = *p.AppointmentDate
	}
	if p.AppointmentTime != nil {
		a.AppointmentTime = *p.AppointmentTime
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.Notes != nil {
		a.Notes = clonePtr(p.Notes)
	}
	if p.Display != nil {
		a.Display = clonePtr(p.Display)
	}
	return a
}

func (p ToolCallPatch) apply(tc ToolCall) ToolCall {
	if p.Name != nil {
		tc.Name = *p.Name
	}
	// Terminal entries never go back to pending/in_progress.
	if p.Status != nil && !(tc.Status.IsTerminal() && !p.Status.IsTerminal()) {
		tc.Status = *p.Status
	}
	if p.Result != nil {
		tc.Result = clonePtr(p.Result)
	}
	if p.Error != nil {
		tc.Error = clonePtr(p.Error)
	}
	return tc
}

// Reduce returns the state that results from applying op to s. The input is
// never modified: any change allocates new slices, so previously published
// states stay valid. An update or removal naming an unknown id returns s
// unchanged.
func Reduce(s State, op Op) State {
	switch o := op.(type) {
	case AddAppointment:
		next := make([]Appointment, 0, len(s.Appointments)+1)
		next = append(next, o.Appointment.clone())
		next = append(next, s.Appointments...)
		s.Appointments = next

	case UpdateAppointment:
		idx := indexAppointment(s.Appointments, o.ID)
		if idx < 0 {
			return s
		}
		next := append([]Appointment(nil), s.Appointments...)
		next[idx] = o.Patch.apply(next[idx])
		s.Appointments = next

	case RemoveAppointment:
		if indexAppointment(s.Appointments, o.ID) < 0 {
			return s
		}
		next := make([]Appointment, 0, len(s.Appointments))
		for _, a := range s.Appointments {
			if a.ID != o.ID {
				next = append(next, a)
			}
		}
		s.Appointments = next

	case SetSummary:
		s.Summary = o.Summary.clone()
		if o.User != nil {
			s.User = o.User.clone()
		}

	case AddToolCall:
		next := make([]ToolCall, 0, len(s.ToolCalls)+1)
		next = append(next, s.ToolCalls...)
		next = append(next, o.ToolCall.clone())
		s.ToolCalls = next

	case UpdateToolCall:
		idx := indexToolCall(s.ToolCalls, o.ID)
		if idx < 0 {
			return s
		}
		next := append([]ToolCall(nil), s.ToolCalls...)
		next[idx] = o.Patch.apply(next[idx])
		s.ToolCalls = next

	case SetIdentifiedUser:
		s.User = o.User.clone()

	case Reset:
		return NewState()
	}
	return s
}

// indexAppointment returns the position of the first appointment with id.
// Duplicate ids are possible (AddAppointment does not dedupe); updates
// target the most recently added one.
func indexAppointment(list []Appointment, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func indexToolCall(list []ToolCall, id string) int {
	for i, tc := range list {
		if tc.ID == id {
			return i
		}
	}
	return -1
}
