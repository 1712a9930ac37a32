package matching

import "errors"

var (
	// ErrIncompleteScoreInput is returned when aggregation is attempted with a
	// missing or non-finite score.
	ErrIncompleteScoreInput = errors.New("INCOMPLETE_SCORE_INPUT")

	// ErrInvalidProfile is returned when raw profile data cannot be decoded
	// into the expected field types.
	ErrInvalidProfile = errors.New("INVALID_PROFILE")
)
