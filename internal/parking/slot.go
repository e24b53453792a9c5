package parking

type SpotState int

const (
	Free SpotState = iota
	Occupied
	Reserved
)

func (s SpotState) String() string {
	switch s {
	case Occupied:
		return "occupied"
	case Reserved:
		return "reserved"
	default:
		return "free"
	}
}

type Slot struct {
	Number  int
	State   SpotState
	Session *Session
}

func NewSlot(number int) *Slot {
	return &Slot{
		Number: number,
		State:  Free,
	}
}

func (s *Slot) IsOccupied() bool {
	return s.State == Occupied
}

func (s *Slot) IsReserved() bool {
	return s.State == Reserved
}

func (s *Slot) IsFree() bool {
	return s.State == Free
}

func (s *Slot) Park(session *Session) {
	session.Spot = s.Number
	s.Session = session
	s.State = Occupied
}

func (s *Slot) Leave() *Session {
	session := s.Session
	s.Session = nil
	s.State = Free
	return session
}

func (s *Slot) Reserve() {
	s.State = Reserved
}

func (s *Slot) Reset() {
	s.Session = nil
	s.State = Free
}
