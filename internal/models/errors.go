package models

import "errors"

// Session errors
var (
	ErrSessionNotFound = errors.New("invalid or expired link")
	ErrWrongKind       = errors.New("operation not supported for this session kind")
	ErrInvalidChoice   = errors.New("invalid choice")
	ErrNotShareable    = errors.New("session is waiting for payment")
	ErrNotReady        = errors.New("both participants must join first")
	ErrTooEarly        = errors.New("countdown has not finished")
	ErrContentLocked   = errors.New("content is locked")
)

// Memory game errors
var (
	ErrGameNotFound = errors.New("memory game not found")
	ErrInvalidGame  = errors.New("a memory game needs a photo, question and answer for each of the three memories")
)

// Identity and pairing errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPairNotFound  = errors.New("pair not found")
	ErrAlreadyPaired = errors.New("user is already in a pair")
	ErrSelfPair      = errors.New("cannot create pair with yourself")
	ErrInvalidCode   = errors.New("partner code must be 6 letters or digits")
	ErrNotPairMember = errors.New("user is not a member of this pair")
	ErrNotPremium    = errors.New("premium couple access required")
	ErrPhotoNotFound = errors.New("photo not found")
)

// Payment errors
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrInvalidPurpose   = errors.New("invalid payment purpose")
	ErrAlreadyUnlocked  = errors.New("already unlocked")
)
