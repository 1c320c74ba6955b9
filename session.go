package mirror

// Session is the resumable identity of a gateway connection. It is owned by
// a Connection and only accessed while holding its lock.
type Session struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`

	// LastSequence is the sequence of the last dispatch. Zero means no
	// dispatch has been received.
	LastSequence uint64 `json:"last_sequence"`

	ShouldResume bool `json:"should_resume"`
}

// Advance records a received sequence number. It returns false when the
// sequence was not exactly one more than the previous one. The sequence is
// stored either way.
func (s *Session) Advance(sequence uint64) (expected uint64, ok bool) {
	expected = s.LastSequence + 1
	s.LastSequence = sequence

	return expected, sequence == expected
}

// Sequence returns the value sent with heartbeats, nil before the first dispatch.
func (s *Session) Sequence() *uint64 {
	if s.LastSequence == 0 {
		return nil
	}

	sequence := s.LastSequence

	return &sequence
}

// MarkResumable requests a resume on the next hello. A session that was
// never established cannot be resumed, so this is a no-op without a
// session id.
func (s *Session) MarkResumable() {
	s.ShouldResume = s.SessionID != ""
}

// Consume returns whether the next handshake should resume and resets the flag.
func (s *Session) Consume() (resume bool) {
	resume = s.ShouldResume
	s.ShouldResume = false

	return resume
}

// Established stores the identity received with READY.
func (s *Session) Established(sessionID, resumeGatewayURL string) {
	s.SessionID = sessionID
	s.ResumeGatewayURL = resumeGatewayURL
}

// Invalidate discards the session so the next handshake identifies.
func (s *Session) Invalidate() {
	s.SessionID = ""
	s.ResumeGatewayURL = ""
	s.LastSequence = 0
	s.ShouldResume = false
}
