package models

import "time"

// User represents an anonymous user identified by a bearer token
type User struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Token     string    `json:"token,omitempty"`
	PushToken *string   `json:"push_token,omitempty"`
	IsPaid    bool      `json:"is_paid"`
	CreatedAt time.Time `json:"created_at"`
}

// Pair represents two linked partners
type Pair struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PartnerOf returns the other member of the pair, or "" if userID is not a member
func (p *Pair) PartnerOf(userID string) string {
	switch userID {
	case p.UserAID:
		return p.UserBID
	case p.UserBID:
		return p.UserAID
	}
	return ""
}

// Photo represents a memory image uploaded by one partner of a pair
type Photo struct {
	ID        string    `json:"id"`
	PairID    string    `json:"pair_id"`
	UserID    string    `json:"user_id"`
	S3URL     string    `json:"s3_url"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ViewerRole is the access level of whoever is looking at content
type ViewerRole string

const (
	RoleGuest         ViewerRole = "GUEST"
	RoleAuthenticated ViewerRole = "SOLO_LOGGED_IN"
	RolePremiumCouple ViewerRole = "COUPLE_PREMIUM"
)

// Rank orders roles by privilege.
func (r ViewerRole) Rank() int {
	switch r {
	case RoleAuthenticated:
		return 1
	case RolePremiumCouple:
		return 2
	}
	return 0
}

// ContentDay is one calendar-gated entry. It is built once from config and never mutated.
type ContentDay struct {
	Day         int       `json:"day"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle,omitempty"`
	UnlockAt    time.Time `json:"unlock_at"`
	PremiumOnly bool      `json:"premium_only"`
}

// SessionKind selects which two-party game a session plays
type SessionKind string

const (
	KindRose      SessionKind = "rose"
	KindProposal  SessionKind = "proposal"
	KindChocolate SessionKind = "chocolate"
	KindLetter    SessionKind = "letter"
)

// SessionStatus is the explicit state tag of a shared session
type SessionStatus string

const (
	StatusPendingPayment    SessionStatus = "PENDING_PAYMENT"
	StatusAwaitingResponder SessionStatus = "AWAITING_RESPONDER"
	StatusResponded         SessionStatus = "RESPONDED"
	StatusCountdown         SessionStatus = "COUNTDOWN"
	StatusResolved          SessionStatus = "RESOLVED"
)

// Participant tags the two seats of a session
type Participant string

const (
	ParticipantA Participant = "A"
	ParticipantB Participant = "B"
)

// Session is the shared record two clients converge on. The id doubles as the access credential.
type Session struct {
	ID              string            `json:"id"`
	Kind            SessionKind       `json:"kind"`
	Status          SessionStatus     `json:"status"`
	OwnerID         *string           `json:"-"`
	InitiatorChoice string            `json:"initiatorChoice"`
	ResponderChoice *string           `json:"responderChoice,omitempty"`
	Details         map[string]string `json:"details,omitempty"`
	Unlocked        bool              `json:"unlocked"`
	PaymentRef      *string           `json:"-"`
	CountdownAt     *time.Time        `json:"countdownAt,omitempty"`
	SnapA           *int64            `json:"snapA,omitempty"`
	SnapB           *int64            `json:"snapB,omitempty"`
	RevealedAt      *time.Time        `json:"revealedAt,omitempty"`
	Outcome         *Outcome          `json:"outcome,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// HasResponder reports whether participant B has acted
func (s *Session) HasResponder() bool {
	return s.ResponderChoice != nil
}

// Clone returns a deep copy so stores never hand out shared pointers
func (s *Session) Clone() *Session {
	c := *s
	if s.OwnerID != nil {
		v := *s.OwnerID
		c.OwnerID = &v
	}
	if s.ResponderChoice != nil {
		v := *s.ResponderChoice
		c.ResponderChoice = &v
	}
	if s.Details != nil {
		c.Details = make(map[string]string, len(s.Details))
		for k, v := range s.Details {
			c.Details[k] = v
		}
	}
	if s.PaymentRef != nil {
		v := *s.PaymentRef
		c.PaymentRef = &v
	}
	if s.CountdownAt != nil {
		v := *s.CountdownAt
		c.CountdownAt = &v
	}
	if s.SnapA != nil {
		v := *s.SnapA
		c.SnapA = &v
	}
	if s.SnapB != nil {
		v := *s.SnapB
		c.SnapB = &v
	}
	if s.RevealedAt != nil {
		v := *s.RevealedAt
		c.RevealedAt = &v
	}
	if s.Outcome != nil {
		o := *s.Outcome
		if o.Score != nil {
			v := *o.Score
			o.Score = &v
		}
		if o.DeltaMillis != nil {
			v := *o.DeltaMillis
			o.DeltaMillis = &v
		}
		if o.Pairing != nil {
			p := *o.Pairing
			o.Pairing = &p
		}
		c.Outcome = &o
	}
	return &c
}

// Rose is one of the fixed rose options
type Rose struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Message string `json:"message"`
}

// RosePairing shows both partners' roses side by side
type RosePairing struct {
	Initiator Rose `json:"initiator"`
	Responder Rose `json:"responder"`
}

// Outcome is the derived result of a resolved session
type Outcome struct {
	Pairing     *RosePairing `json:"pairing,omitempty"`
	Answer      string       `json:"answer,omitempty"`
	Reaction    string       `json:"reaction,omitempty"`
	Score       *int         `json:"compatibilityScore,omitempty"`
	DeltaMillis *int64       `json:"deltaMillis,omitempty"`
	TimedOut    bool         `json:"timedOut,omitempty"`
}

// PaymentPurpose says what a paid order unlocks
type PaymentPurpose string

const (
	PurposeProposal PaymentPurpose = "proposal"
	PurposeCouple   PaymentPurpose = "couple"
)

// OrderStatus tracks a payment order
type OrderStatus string

const (
	OrderCreated OrderStatus = "created"
	OrderPaid    OrderStatus = "paid"
)

// PaymentOrder binds a gateway order to the thing it unlocks
type PaymentOrder struct {
	ID        string         `json:"id"`
	Purpose   PaymentPurpose `json:"purpose"`
	TargetID  string         `json:"target_id"`
	Amount    int64          `json:"amount"`
	Currency  string         `json:"currency"`
	Status    OrderStatus    `json:"status"`
	PaymentID *string        `json:"payment_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MemoryStep names one of the three memories in a guessing game
type MemoryStep string

const (
	StepPlace MemoryStep = "PLACE"
	StepMovie MemoryStep = "MOVIE"
	StepGift  MemoryStep = "GIFT"
)

// MemoryItem is one photo with the story behind it. The answer is stored, never served before a guess.
type MemoryItem struct {
	Step     MemoryStep `json:"step"`
	ImageURL string     `json:"imageUrl"`
	Story    string     `json:"story"`
	Question string     `json:"question"`
	Answer   string     `json:"answer"`
}

// MemoryGuess is the partner's recorded guess for one step
type MemoryGuess struct {
	Guess   string    `json:"guess"`
	Correct bool      `json:"correct"`
	At      time.Time `json:"at"`
}

// MemoryGame is a day two guessing game. Like sessions, the id is the access credential.
type MemoryGame struct {
	ID          string
	OwnerID     *string
	CreatorName string
	PartnerName string
	Items       []MemoryItem
	Guesses     map[MemoryStep]MemoryGuess
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a deep copy
func (g *MemoryGame) Clone() *MemoryGame {
	c := *g
	if g.OwnerID != nil {
		v := *g.OwnerID
		c.OwnerID = &v
	}
	c.Items = append([]MemoryItem(nil), g.Items...)
	c.Guesses = make(map[MemoryStep]MemoryGuess, len(g.Guesses))
	for k, v := range g.Guesses {
		c.Guesses[k] = v
	}
	return &c
}
