package domain

import "errors"

var (
	// ErrBankNotLoaded is returned when an operation needs a question bank
	// and none has been uploaded.
	ErrBankNotLoaded = errors.New("question bank not loaded")
	// ErrBankNotFound indicates an archived bank could not be located.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrQuizNotActive is returned when a participant acts before the admin starts.
	ErrQuizNotActive = errors.New("quiz is not active")
	// ErrQuizActive rejects admin changes while a session is running.
	ErrQuizActive = errors.New("quiz is active")
	// ErrNameTaken rejects a join with a display name already in use this session.
	ErrNameTaken = errors.New("participant name already taken")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrAlreadyFinished rejects answers after a participant has submitted.
	ErrAlreadyFinished = errors.New("quiz already submitted")
	// ErrTimeExpired signals that the personal countdown ran out; the
	// participant's quiz has been auto-submitted.
	ErrTimeExpired = errors.New("time expired")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrOptionNotFound indicates a submitted option ID is invalid.
	ErrOptionNotFound = errors.New("option not found")
)
